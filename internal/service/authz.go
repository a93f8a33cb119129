package service

import (
	"context"
	"log/slog"
	"time"

	domainauth "github.com/edgeauth/ldapauthd/internal/domain/auth"
	"github.com/edgeauth/ldapauthd/internal/domain/session"
)

// GroupResolver is the slice of GroupService the decision needs.
type GroupResolver interface {
	GroupsFor(ctx context.Context, username string, now time.Time) ([]string, error)
}

// AuthzServiceOptions groups dependencies for AuthzService.
type AuthzServiceOptions struct {
	Codec *session.Codec
	// Groups is consulted only when a request carries a group
	// restriction that the users list did not already satisfy.
	Groups GroupResolver
	// ExemptIngress lists ingress identifiers that bypass all identity
	// checks.
	ExemptIngress []string
	Logger        *slog.Logger
}

// AuthzService makes the allow/deny decision for one proxy subrequest.
type AuthzService struct {
	codec  *session.Codec
	groups GroupResolver
	exempt map[string]struct{}
	logger *slog.Logger
}

// NewAuthzService constructs a new AuthzService.
func NewAuthzService(opts AuthzServiceOptions) *AuthzService {
	exempt := make(map[string]struct{}, len(opts.ExemptIngress))
	for _, id := range opts.ExemptIngress {
		if id != "" {
			exempt[id] = struct{}{}
		}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthzService{
		codec:  opts.Codec,
		groups: opts.Groups,
		exempt: exempt,
		logger: logger,
	}
}

// Authorize evaluates the decision protocol in order:
//
//  1. an exempt ingress allows immediately, with no identity check;
//  2. an invalid or missing session denies as unauthenticated;
//  3. a users list containing the session's username allows, before
//     any directory traffic;
//  4. a groups list allows on non-empty intersection with the user's
//     cached memberships;
//  5. no groups list at all is permissive — only then
//  6. the request is forbidden.
//
// The ordering is load-bearing: a present-but-non-matching users list
// still falls through to the group check and the permissive default.
//
// A non-nil error means the group check could not be performed
// (directory failure); the boundary treats that as an authentication
// failure, distinct from Forbidden.
func (s *AuthzService) Authorize(ctx context.Context, req domainauth.AuthzRequest, now time.Time) (domainauth.Decision, error) {
	if _, ok := s.exempt[req.IngressID]; ok {
		return domainauth.Decision{Outcome: domainauth.OutcomeAllow}, nil
	}

	sess, err := s.codec.Verify(req.Token, now)
	if err != nil {
		return domainauth.Decision{Outcome: domainauth.OutcomeUnauthenticated}, nil
	}

	if req.AllowedUsers != nil && contains(req.AllowedUsers, sess.Username) {
		return domainauth.Decision{Outcome: domainauth.OutcomeAllow, Username: sess.Username}, nil
	}

	if req.AllowedGroups != nil {
		groups, groupsErr := s.groups.GroupsFor(ctx, sess.Username, now)
		if groupsErr != nil {
			s.logger.ErrorContext(ctx, "group check could not be performed",
				"username", sess.Username, "error", groupsErr)
			return domainauth.Decision{Outcome: domainauth.OutcomeUnauthenticated, Username: sess.Username}, groupsErr
		}
		if intersects(groups, req.AllowedGroups) {
			return domainauth.Decision{Outcome: domainauth.OutcomeAllow, Username: sess.Username}, nil
		}
	} else {
		// No group restriction on this route at all.
		return domainauth.Decision{Outcome: domainauth.OutcomeAllow, Username: sess.Username}, nil
	}

	return domainauth.Decision{Outcome: domainauth.OutcomeForbidden, Username: sess.Username}, nil
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func intersects(a, b []string) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	set := make(map[string]struct{}, len(a))
	for _, v := range a {
		set[v] = struct{}{}
	}
	for _, v := range b {
		if _, ok := set[v]; ok {
			return true
		}
	}
	return false
}
