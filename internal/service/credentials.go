package service

import (
	"context"
	"crypto/sha1" //nolint:gosec // The directory stores {SHA} digests; matching them requires SHA-1.
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"log/slog"
	"strings"

	"github.com/edgeauth/ldapauthd/internal/ports"
)

// passwordSchemePrefix is the fixed-length scheme tag the directory
// prepends to stored password digests.
const passwordSchemePrefix = "{SHA}"

// CredentialServiceOptions groups dependencies for CredentialService.
type CredentialServiceOptions struct {
	Directory ports.Directory
	Logger    *slog.Logger
}

// CredentialService validates username/password pairs against the
// directory's stored password hashes.
type CredentialService struct {
	directory ports.Directory
	logger    *slog.Logger
}

// NewCredentialService constructs a new CredentialService.
func NewCredentialService(opts CredentialServiceOptions) *CredentialService {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &CredentialService{
		directory: opts.Directory,
		logger:    logger,
	}
}

// Check reports whether the supplied password matches the directory's
// stored hash for username. An unknown user and a wrong password are
// indistinguishable to the caller (both false, nil); only a directory
// failure surfaces as an error, and the caller treats that as an
// authentication failure too.
func (s *CredentialService) Check(ctx context.Context, username, password string) (bool, error) {
	entry, err := s.directory.LookupUser(ctx, username)
	if err != nil {
		if errors.Is(err, ports.ErrUserNotFound) {
			// Logged for operators, never surfaced: distinguishing
			// "no such user" from "wrong password" enables enumeration.
			s.logger.InfoContext(ctx, "login attempt for unknown user", "username", username)
			return false, nil
		}
		return false, err
	}

	stored, ok := decodeStoredDigest(entry.PasswordHash)
	if !ok {
		s.logger.WarnContext(ctx, "unsupported password hash scheme in directory entry",
			"username", username, "dn", entry.DN)
		return false, nil
	}

	supplied := sha1.Sum([]byte(password)) //nolint:gosec // See passwordSchemePrefix.
	return subtle.ConstantTimeCompare(supplied[:], stored) == 1, nil
}

// decodeStoredDigest strips the scheme tag and base64-decodes the
// stored digest. Returns false for any value this service cannot
// compare against.
func decodeStoredDigest(hash string) ([]byte, bool) {
	if !strings.HasPrefix(hash, passwordSchemePrefix) {
		return nil, false
	}
	digest, err := base64.StdEncoding.DecodeString(hash[len(passwordSchemePrefix):])
	if err != nil || len(digest) != sha1.Size {
		return nil, false
	}
	return digest, true
}
