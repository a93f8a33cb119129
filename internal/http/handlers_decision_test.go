package httpx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/edgeauth/ldapauthd/internal/domain/auth"
	apperrors "github.com/edgeauth/ldapauthd/internal/errors"
)

type fakeAuthz struct {
	lastReq  domainauth.AuthzRequest
	decision domainauth.Decision
	err      error
}

func (f *fakeAuthz) Authorize(_ context.Context, req domainauth.AuthzRequest, _ time.Time) (domainauth.Decision, error) {
	f.lastReq = req
	return f.decision, f.err
}

func newDecisionRequest(mutate func(*http.Request)) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/auth", nil)
	if mutate != nil {
		mutate(r)
	}
	return r
}

func TestDecide_StatusMapping(t *testing.T) {
	tests := []struct {
		name     string
		decision domainauth.Decision
		want     int
	}{
		{"allow", domainauth.Decision{Outcome: domainauth.OutcomeAllow, Username: "jdoe"}, http.StatusOK},
		{"unauthenticated", domainauth.Decision{Outcome: domainauth.OutcomeUnauthenticated}, http.StatusUnauthorized},
		{"forbidden", domainauth.Decision{Outcome: domainauth.OutcomeForbidden, Username: "jdoe"}, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &DecisionHandlers{Authz: &fakeAuthz{decision: tt.decision}, CookieName: "authsession"}
			rec := httptest.NewRecorder()

			h.Decide(rec, newDecisionRequest(nil))

			assert.Equal(t, tt.want, rec.Code)
			assert.Empty(t, rec.Body.String())
		})
	}
}

func TestDecide_PassesCookieAndIngress(t *testing.T) {
	authz := &fakeAuthz{decision: domainauth.Decision{Outcome: domainauth.OutcomeAllow}}
	h := &DecisionHandlers{Authz: authz, CookieName: "authsession"}

	r := newDecisionRequest(func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: "authsession", Value: "jdoe:123:abcd"})
		r.Header.Set(HeaderIngress, "grafana")
	})
	h.Decide(httptest.NewRecorder(), r)

	assert.Equal(t, "jdoe:123:abcd", authz.lastReq.Token)
	assert.Equal(t, "grafana", authz.lastReq.IngressID)
}

func TestDecide_NoCookieMeansEmptyToken(t *testing.T) {
	authz := &fakeAuthz{decision: domainauth.Decision{Outcome: domainauth.OutcomeUnauthenticated}}
	h := &DecisionHandlers{Authz: authz, CookieName: "authsession"}

	h.Decide(httptest.NewRecorder(), newDecisionRequest(nil))

	assert.Empty(t, authz.lastReq.Token)
}

func TestDecide_HeaderListSemantics(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(*http.Request)
		wantUsers  []string
		wantGroups []string
	}{
		{
			name:       "absent headers are nil",
			mutate:     nil,
			wantUsers:  nil,
			wantGroups: nil,
		},
		{
			name: "present but empty header is a non-nil empty list",
			mutate: func(r *http.Request) {
				r.Header.Set(HeaderGroups, "")
			},
			wantUsers:  nil,
			wantGroups: []string{},
		},
		{
			name: "semicolon separated with surrounding spaces",
			mutate: func(r *http.Request) {
				r.Header.Set(HeaderUsers, "alice; bob ;carol")
				r.Header.Set(HeaderGroups, "admins;;ops ")
			},
			wantUsers:  []string{"alice", "bob", "carol"},
			wantGroups: []string{"admins", "ops"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			authz := &fakeAuthz{decision: domainauth.Decision{Outcome: domainauth.OutcomeAllow}}
			h := &DecisionHandlers{Authz: authz, CookieName: "authsession"}

			h.Decide(httptest.NewRecorder(), newDecisionRequest(tt.mutate))

			assert.Equal(t, tt.wantUsers, authz.lastReq.AllowedUsers)
			assert.Equal(t, tt.wantGroups, authz.lastReq.AllowedGroups)
		})
	}
}

func TestDecide_AuthzErrorStillAnswersWithDecisionStatus(t *testing.T) {
	authz := &fakeAuthz{
		decision: domainauth.Decision{Outcome: domainauth.OutcomeUnauthenticated},
		err:      apperrors.DirectoryUnavailable("directory down"),
	}
	h := &DecisionHandlers{Authz: authz, CookieName: "authsession"}
	rec := httptest.NewRecorder()

	h.Decide(rec, newDecisionRequest(nil))

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestDecide_FixedClockIsPassedThrough(t *testing.T) {
	fixed := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	var seen time.Time
	record := authzFunc(func(_ context.Context, _ domainauth.AuthzRequest, now time.Time) (domainauth.Decision, error) {
		seen = now
		return domainauth.Decision{Outcome: domainauth.OutcomeAllow}, nil
	})
	h := &DecisionHandlers{
		Authz:      record,
		CookieName: "authsession",
		Now:        func() time.Time { return fixed },
	}

	h.Decide(httptest.NewRecorder(), newDecisionRequest(nil))

	assert.Equal(t, fixed, seen)
}

type authzFunc func(ctx context.Context, req domainauth.AuthzRequest, now time.Time) (domainauth.Decision, error)

func (f authzFunc) Authorize(ctx context.Context, req domainauth.AuthzRequest, now time.Time) (domainauth.Decision, error) {
	return f(ctx, req, now)
}
