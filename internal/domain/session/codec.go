// Package session implements the signed session token: an HMAC over
// "username:issued_at" plus the expiration policy applied to it.
//
// The codec is stateless; the secret and max-age are fixed at startup
// and never rotate at runtime.
package session

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"time"

	domainauth "github.com/edgeauth/ldapauthd/internal/domain/auth"
)

// ErrInvalid is the uniform failure for any token that does not verify:
// malformed, tampered, or expired. Callers get no partial-match signal.
var ErrInvalid = errors.New("invalid session token")

// Codec issues and verifies signed session tokens.
type Codec struct {
	secret []byte
	maxAge int
	loc    *time.Location
}

// NewCodec constructs a Codec.
//
// maxAge selects the expiration mode: when positive it is an absolute
// TTL in seconds from issuance; when zero or negative the session
// expires at the end of the calendar day (-maxAge) days after the
// issuance date, so maxAge == 0 means "expires tonight at midnight".
// loc is the time zone used for the calendar-day arithmetic; nil means
// the server's local zone.
func NewCodec(secret string, maxAge int, loc *time.Location) *Codec {
	if loc == nil {
		loc = time.Local
	}
	return &Codec{
		secret: []byte(secret),
		maxAge: maxAge,
		loc:    loc,
	}
}

// Issue builds a signed token for username at the given instant and
// returns it together with the expiration instant under the active
// policy. The caller uses the instant to set the cookie lifetime.
func (c *Codec) Issue(username string, now time.Time) (string, time.Time) {
	payload := username + ":" + strconv.FormatInt(now.Unix(), 10)
	return payload + ":" + c.sign(payload), c.ExpiresAt(now)
}

// Verify checks the token's MAC and expiration. On success it returns
// the embedded identity; every failure mode returns ErrInvalid.
func (c *Codec) Verify(token string, now time.Time) (domainauth.Session, error) {
	payload, mac, ok := splitRight(token)
	if !ok {
		return domainauth.Session{}, ErrInvalid
	}

	// Constant-time comparison on the raw MAC bytes. A malformed hex
	// string fails the same way as a wrong one.
	got, err := hex.DecodeString(mac)
	if err != nil || !hmac.Equal(got, c.mac(payload)) {
		return domainauth.Session{}, ErrInvalid
	}

	username, issuedAt, ok := splitPayload(payload)
	if !ok {
		return domainauth.Session{}, ErrInvalid
	}

	if !now.Before(c.ExpiresAt(issuedAt)) {
		return domainauth.Session{}, ErrInvalid
	}

	return domainauth.Session{Username: username, IssuedAt: issuedAt}, nil
}

// ExpiresAt computes the expiration instant for a session issued at the
// given time. The token is valid strictly before the returned instant.
func (c *Codec) ExpiresAt(issuedAt time.Time) time.Time {
	if c.maxAge > 0 {
		return issuedAt.Add(time.Duration(c.maxAge) * time.Second)
	}
	// Calendar mode: midnight after day D + (-maxAge) in the configured
	// zone. time.Date normalizes the day overflow.
	d := issuedAt.In(c.loc)
	return time.Date(d.Year(), d.Month(), d.Day()-c.maxAge+1, 0, 0, 0, 0, c.loc)
}

// PeekUsername extracts the username from a token WITHOUT verifying it.
// Display-only: for the denial page's messaging. Never use the result
// for a trust decision.
func PeekUsername(token string) string {
	payload, _, ok := splitRight(token)
	if !ok {
		return ""
	}
	username, _, ok := splitPayload(payload)
	if !ok {
		return ""
	}
	return username
}

func (c *Codec) sign(payload string) string {
	return hex.EncodeToString(c.mac(payload))
}

func (c *Codec) mac(payload string) []byte {
	h := hmac.New(sha256.New, c.secret)
	h.Write([]byte(payload))
	return h.Sum(nil)
}

// splitRight splits off the trailing ":"-separated field. Usernames may
// contain ":", so splitting always happens from the right.
func splitRight(s string) (rest, last string, ok bool) {
	i := strings.LastIndexByte(s, ':')
	if i < 0 {
		return "", "", false
	}
	return s[:i], s[i+1:], true
}

func splitPayload(payload string) (username string, issuedAt time.Time, ok bool) {
	username, ts, ok := splitRight(payload)
	if !ok || username == "" {
		return "", time.Time{}, false
	}
	unix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return "", time.Time{}, false
	}
	return username, time.Unix(unix, 0), true
}
