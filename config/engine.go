package config

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	apperrors "github.com/edgeauth/ldapauthd/internal/errors"
)

// EngineConfig is the authentication engine's configuration, read once
// at startup from a JSON file and immutable for the lifetime of a run.
type EngineConfig struct {
	LDAP    LDAPSection    `json:"ldap"`
	Session SessionSection `json:"session"`
	Pages   PagesSection   `json:"pages"`
	Cache   CacheSection   `json:"cache"`
	Ingress IngressSection `json:"ingress"`
}

// LDAPSection holds directory connection parameters.
type LDAPSection struct {
	URL            string `json:"url"`
	BindDN         string `json:"bind_dn"`
	BindPassword   string `json:"bind_password"`
	UserBaseDN     string `json:"user_base_dn"`
	UserAttr       string `json:"user_attr"`
	PasswordAttr   string `json:"password_attr"`
	GroupBaseDN    string `json:"group_base_dn"`
	GroupAttr      string `json:"group_attr"`
	MemberAttr     string `json:"member_attr"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// SessionSection holds the session cookie parameters. MaxAge selects
// the expiration mode: positive values are an absolute TTL in seconds;
// zero or negative values mean "end of the calendar day (-max_age)
// days after issuance".
type SessionSection struct {
	CookieName string `json:"cookie_name"`
	Domain     string `json:"domain"`
	Secret     string `json:"secret"`
	MaxAge     int    `json:"max_age"`
}

// PagesSection holds login/denial page parameters.
type PagesSection struct {
	StaticDir          string `json:"static_dir"`
	FallbackRedirect   string `json:"fallback_redirect"`
	RedirectCookieName string `json:"redirect_cookie_name"`
}

// CacheSection holds group-membership cache parameters. RedisAddr
// empty selects the in-process store.
type CacheSection struct {
	GroupTTLSeconds int    `json:"group_ttl_seconds"`
	RedisAddr       string `json:"redis_addr"`
	RedisDB         int    `json:"redis_db"`
}

// IngressSection lists ingress identifiers exempt from auth.
type IngressSection struct {
	Exempt []string `json:"exempt"`
}

// engineTemplate is the built-in shape every engine config document
// must match. Leaves are nil; nested maps are validated recursively.
// A document missing any of these keys is rejected at startup.
var engineTemplate = map[string]any{
	"ldap": map[string]any{
		"url":             nil,
		"bind_dn":         nil,
		"bind_password":   nil,
		"user_base_dn":    nil,
		"user_attr":       nil,
		"password_attr":   nil,
		"group_base_dn":   nil,
		"group_attr":      nil,
		"member_attr":     nil,
		"timeout_seconds": nil,
	},
	"session": map[string]any{
		"cookie_name": nil,
		"domain":      nil,
		"secret":      nil,
		"max_age":     nil,
	},
	"pages": map[string]any{
		"static_dir":           nil,
		"fallback_redirect":    nil,
		"redirect_cookie_name": nil,
	},
	"cache": map[string]any{
		"group_ttl_seconds": nil,
		"redis_addr":        nil,
		"redis_db":          nil,
	},
	"ingress": map[string]any{
		"exempt": nil,
	},
}

// LoadEngineConfig reads, validates, and decodes the engine config
// file. Any structural mismatch against the built-in template is a
// fatal ConfigInvalid error; the process must not serve traffic on a
// partial configuration.
func LoadEngineConfig(path string) (EngineConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return EngineConfig{}, apperrors.Wrapf(err,
			apperrors.ErrCodeConfigInvalid, "read engine config %q", path)
	}
	return ParseEngineConfig(data)
}

// ParseEngineConfig validates and decodes an engine config document.
func ParseEngineConfig(data []byte) (EngineConfig, error) {
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return EngineConfig{}, apperrors.Wrap(err,
			apperrors.ErrCodeConfigInvalid, "engine config is not valid JSON")
	}

	if missing := missingKeys(doc, engineTemplate, ""); len(missing) > 0 {
		return EngineConfig{}, apperrors.ConfigInvalidf(
			"engine config missing required keys: %s", strings.Join(missing, ", "))
	}

	var cfg EngineConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return EngineConfig{}, apperrors.Wrap(err,
			apperrors.ErrCodeConfigInvalid, "decode engine config")
	}

	if err := cfg.validate(); err != nil {
		return EngineConfig{}, err
	}
	return cfg, nil
}

// missingKeys walks the template and collects dotted paths of keys the
// document lacks. Extra document keys are ignored; only absence is an
// error.
func missingKeys(doc, template map[string]any, prefix string) []string {
	var missing []string
	for key, tmplVal := range template {
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}

		docVal, ok := doc[key]
		if !ok {
			missing = append(missing, path)
			continue
		}

		tmplMap, isMap := tmplVal.(map[string]any)
		if !isMap {
			continue
		}
		docMap, ok := docVal.(map[string]any)
		if !ok {
			missing = append(missing, fmt.Sprintf("%s (expected object)", path))
			continue
		}
		missing = append(missing, missingKeys(docMap, tmplMap, path)...)
	}
	sort.Strings(missing)
	return missing
}

// validate checks value-level constraints the key template cannot
// express.
func (c *EngineConfig) validate() error {
	switch {
	case c.LDAP.URL == "":
		return apperrors.ConfigInvalid("ldap.url must not be empty")
	case c.Session.Secret == "":
		return apperrors.ConfigInvalid("session.secret must not be empty")
	case c.Session.CookieName == "":
		return apperrors.ConfigInvalid("session.cookie_name must not be empty")
	case c.LDAP.TimeoutSeconds < 0:
		return apperrors.ConfigInvalid("ldap.timeout_seconds must not be negative")
	case c.Cache.GroupTTLSeconds < 0:
		return apperrors.ConfigInvalid("cache.group_ttl_seconds must not be negative")
	}
	return nil
}
