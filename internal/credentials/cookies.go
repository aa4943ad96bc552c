package credentials

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrNoCookies is returned when a cookie string holds no cookies.
var ErrNoCookies = errors.New("credentials: no cookies")

// exportedCookie is one entry of a browser cookie export.
type exportedCookie struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Domain string `json:"domain,omitempty"`
}

// ParseCookies reads cookies in one of three forms: a Cookie header
// ("a=1; b=2"), a JSON object of names to values, or a JSON array of
// {name, value, domain} entries as browser extensions export them.
func ParseCookies(s string) (map[string]string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, ErrNoCookies
	}

	cookies := make(map[string]string)
	switch s[0] {
	case '{':
		if err := json.Unmarshal([]byte(s), &cookies); err != nil {
			return nil, fmt.Errorf("credentials: parse cookie object: %w", err)
		}
	case '[':
		var list []exportedCookie
		if err := json.Unmarshal([]byte(s), &list); err != nil {
			return nil, fmt.Errorf("credentials: parse cookie list: %w", err)
		}
		for _, c := range list {
			if c.Name != "" {
				cookies[c.Name] = c.Value
			}
		}
	default:
		parsed, err := http.ParseCookie(s)
		if err != nil {
			return nil, fmt.Errorf("credentials: parse cookie header: %w", err)
		}
		for _, c := range parsed {
			cookies[c.Name] = c.Value
		}
	}

	if len(cookies) == 0 {
		return nil, ErrNoCookies
	}
	return cookies, nil
}
