package auth

// Package auth contains domain-level types for authentication decisions.
// It is pure and free of framework/adapter concerns.

import "time"

// Session is the identity carried by a verified session token.
// A Session only exists after the token signature has been checked;
// an unverified token never produces one.
type Session struct {
	Username string
	IssuedAt time.Time
}

// AuthzRequest is the per-call input to the authorization decision,
// derived from the proxy's subrequest headers. It is never persisted.
//
// AllowedUsers and AllowedGroups distinguish "header absent" (nil) from
// "header present but empty" (non-nil, len 0). Absence of a group
// restriction is permissive; an empty present restriction is not.
type AuthzRequest struct {
	// Token is the raw session cookie value, empty when no cookie was sent.
	Token string

	AllowedUsers  []string
	AllowedGroups []string

	// IngressID identifies the calling ingress. Members of the configured
	// exempt set bypass all identity checks.
	IngressID string
}

// Outcome is the result of an authorization decision.
type Outcome string

const (
	// OutcomeAllow lets the proxy forward the request upstream.
	OutcomeAllow Outcome = "allow"
	// OutcomeUnauthenticated means the session was missing, invalid, or
	// expired; the proxy sends the client to login.
	OutcomeUnauthenticated Outcome = "unauthenticated"
	// OutcomeForbidden means the session verified but the allow-lists
	// rejected the identity.
	OutcomeForbidden Outcome = "forbidden"
)

// HTTPStatus maps the outcome to the status code the auth_request
// protocol expects.
func (o Outcome) HTTPStatus() int {
	switch o {
	case OutcomeAllow:
		return 200
	case OutcomeUnauthenticated:
		return 401
	case OutcomeForbidden:
		return 403
	default:
		return 401
	}
}

// Decision is the typed result of an authorization check. The HTTP
// boundary maps it to a status code; the decision logic itself stays
// free of HTTP control flow.
type Decision struct {
	Outcome Outcome
	// Username is set when a session verified, regardless of outcome.
	Username string
}

// Allowed reports whether the decision permits the request.
func (d Decision) Allowed() bool { return d.Outcome == OutcomeAllow }
