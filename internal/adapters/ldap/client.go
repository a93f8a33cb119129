// Package ldap implements the Directory port against an LDAP-compatible
// directory service.
//
// Connections are scoped to a single call: every operation dials, binds
// as the service's administrative identity, runs its searches, and
// closes the connection on every exit path. There is no pooling and no
// retry; a failed call fails closed.
package ldap

import (
	"context"
	"fmt"
	"net"
	"time"

	goldap "github.com/go-ldap/ldap/v3"

	apperrors "github.com/edgeauth/ldapauthd/internal/errors"
	"github.com/edgeauth/ldapauthd/internal/ports"
)

// Config holds directory connection parameters. Loaded once at startup
// from the engine config file and immutable thereafter.
type Config struct {
	// URL is the directory address, e.g. "ldap://dc.corp.local:389".
	URL string
	// BindDN and BindPassword are the administrative bind identity.
	BindDN       string
	BindPassword string
	// UserBaseDN is the subtree searched for user entries.
	UserBaseDN string
	// UserAttr is the attribute matched against the username (e.g. "uid").
	UserAttr string
	// PasswordAttr is the attribute holding the stored password digest.
	PasswordAttr string
	// GroupBaseDN is the subtree searched for group entries.
	GroupBaseDN string
	// GroupAttr is the attribute holding a group's name (e.g. "cn").
	GroupAttr string
	// MemberAttr is the group attribute referencing member DNs
	// (e.g. "uniqueMember").
	MemberAttr string
	// Timeout bounds the dial and each directory operation. A hung
	// directory must not block the service indefinitely.
	Timeout time.Duration
}

const (
	defaultUserAttr     = "uid"
	defaultPasswordAttr = "userPassword"
	defaultGroupAttr    = "cn"
	defaultMemberAttr   = "uniqueMember"
	defaultTimeout      = 10 * time.Second
)

// Client is a Directory implementation backed by go-ldap.
type Client struct {
	cfg Config
}

// NewClient constructs a Client, applying defaults for unset attribute
// names and the timeout.
func NewClient(cfg Config) *Client {
	if cfg.UserAttr == "" {
		cfg.UserAttr = defaultUserAttr
	}
	if cfg.PasswordAttr == "" {
		cfg.PasswordAttr = defaultPasswordAttr
	}
	if cfg.GroupAttr == "" {
		cfg.GroupAttr = defaultGroupAttr
	}
	if cfg.MemberAttr == "" {
		cfg.MemberAttr = defaultMemberAttr
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Client{cfg: cfg}
}

// LookupUser finds the user entry matching username and returns its DN
// and stored password hash.
func (c *Client) LookupUser(ctx context.Context, username string) (ports.UserEntry, error) {
	conn, err := c.bind(ctx)
	if err != nil {
		return ports.UserEntry{}, err
	}
	defer conn.Close()

	req := goldap.NewSearchRequest(
		c.cfg.UserBaseDN,
		goldap.ScopeWholeSubtree,
		goldap.NeverDerefAliases,
		1, 0, false,
		userFilter(c.cfg.UserAttr, username),
		[]string{c.cfg.PasswordAttr},
		nil,
	)
	result, err := conn.Search(req)
	if err != nil {
		return ports.UserEntry{}, apperrors.Wrapf(err,
			apperrors.ErrCodeDirectoryUnavailable, "user search for %q failed", username)
	}
	if len(result.Entries) == 0 {
		return ports.UserEntry{}, ports.ErrUserNotFound
	}

	entry := result.Entries[0]
	return ports.UserEntry{
		DN:           entry.DN,
		PasswordHash: entry.GetAttributeValue(c.cfg.PasswordAttr),
	}, nil
}

// UserGroups returns the names of all group entries whose membership
// attribute references userDN.
func (c *Client) UserGroups(ctx context.Context, userDN string) ([]string, error) {
	conn, err := c.bind(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	req := goldap.NewSearchRequest(
		c.cfg.GroupBaseDN,
		goldap.ScopeWholeSubtree,
		goldap.NeverDerefAliases,
		0, 0, false,
		memberFilter(c.cfg.MemberAttr, userDN),
		[]string{c.cfg.GroupAttr},
		nil,
	)
	result, err := conn.Search(req)
	if err != nil {
		return nil, apperrors.Wrapf(err,
			apperrors.ErrCodeDirectoryUnavailable, "group search for %q failed", userDN)
	}

	groups := make([]string, 0, len(result.Entries))
	for _, entry := range result.Entries {
		if name := entry.GetAttributeValue(c.cfg.GroupAttr); name != "" {
			groups = append(groups, name)
		}
	}
	return groups, nil
}

// bind dials the directory and binds as the admin identity. The two
// failure modes carry distinct messages so operators can tell a
// directory outage from a misconfigured service credential.
func (c *Client) bind(ctx context.Context) (*goldap.Conn, error) {
	timeout := c.cfg.Timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}

	conn, err := goldap.DialURL(c.cfg.URL,
		goldap.DialWithDialer(&net.Dialer{Timeout: timeout}))
	if err != nil {
		return nil, apperrors.Wrapf(err,
			apperrors.ErrCodeDirectoryUnavailable, "directory unreachable at %s", c.cfg.URL)
	}
	conn.SetTimeout(timeout)

	if err := conn.Bind(c.cfg.BindDN, c.cfg.BindPassword); err != nil {
		conn.Close()
		return nil, apperrors.Wrapf(err,
			apperrors.ErrCodeDirectoryUnavailable, "admin bind as %q rejected", c.cfg.BindDN)
	}
	return conn, nil
}

func userFilter(userAttr, username string) string {
	return fmt.Sprintf("(%s=%s)", userAttr, goldap.EscapeFilter(username))
}

func memberFilter(memberAttr, userDN string) string {
	return fmt.Sprintf("(%s=%s)", memberAttr, goldap.EscapeFilter(userDN))
}
