package httpx

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	domainauth "github.com/edgeauth/ldapauthd/internal/domain/auth"
	"github.com/edgeauth/ldapauthd/internal/observability/statsd"
	"github.com/edgeauth/ldapauthd/internal/ports"
	"github.com/edgeauth/ldapauthd/internal/service"
)

// Subrequest headers set by the reverse proxy per protected route.
const (
	HeaderIngress = "X-LDAP-AUTH-INGRESS"
	HeaderUsers   = "X-LDAP-AUTH-USERS"
	HeaderGroups  = "X-LDAP-AUTH-GROUPS"
)

// AuthzServiceInterface defines the authorization decision operation.
type AuthzServiceInterface interface {
	Authorize(ctx context.Context, req domainauth.AuthzRequest, now time.Time) (domainauth.Decision, error)
}

// DecisionHandlers serves the subrequest decision endpoint the proxy
// calls for every protected upstream request.
type DecisionHandlers struct {
	Authz      AuthzServiceInterface
	CookieName string
	Auditor    *service.Auditor
	Metrics    *statsd.Client
	Logger     *slog.Logger

	// Now is overridable in tests; defaults to time.Now.
	Now func() time.Time
}

func (h *DecisionHandlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

func (h *DecisionHandlers) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

// Decide handles the decision endpoint.
// GET /auth with X-LDAP-AUTH-* headers and the session cookie.
// Responses carry no body: 200 allow, 401 unauthenticated, 403 forbidden.
func (h *DecisionHandlers) Decide(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	req := domainauth.AuthzRequest{
		Token:         h.sessionToken(r),
		AllowedUsers:  headerList(r, HeaderUsers),
		AllowedGroups: headerList(r, HeaderGroups),
		IngressID:     r.Header.Get(HeaderIngress),
	}

	decision, err := h.Authz.Authorize(r.Context(), req, h.now())
	if err != nil {
		h.logger().ErrorContext(r.Context(), "authorization check failed",
			slog.String("ingress", req.IngressID),
			slog.Any("error", err))
	}

	h.Auditor.Record(ports.AuthEvent{
		Kind:      service.AuditKindDecision,
		Username:  decision.Username,
		IngressID: req.IngressID,
		Outcome:   string(decision.Outcome),
	})
	h.Metrics.Count("decision", 1, map[string]string{"outcome": string(decision.Outcome)})
	h.Metrics.Timing("decision.duration", time.Since(start), nil)

	w.WriteHeader(decision.Outcome.HTTPStatus())
}

func (h *DecisionHandlers) sessionToken(r *http.Request) string {
	cookie, err := r.Cookie(h.CookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// headerList parses a ';'-separated header value. A missing header
// returns nil; a present header returns a non-nil slice even when every
// item is blank. Downstream policy treats those two cases differently.
func headerList(r *http.Request, name string) []string {
	values, ok := r.Header[http.CanonicalHeaderKey(name)]
	if !ok {
		return nil
	}

	items := []string{}
	for _, value := range values {
		for _, item := range strings.Split(value, ";") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
	}
	return items
}
