package credentials

import (
	"net/url"
	"slices"
	"strings"
)

// Service is a video site whose login cookies can be stored.
type Service struct {
	Name        string
	DisplayName string
	LoginURL    string

	// RequiredCookies mark a successful login.
	RequiredCookies []string

	hosts []string
}

var services = []Service{
	{
		Name:            "instagram",
		DisplayName:     "Instagram",
		LoginURL:        "https://www.instagram.com/accounts/login/",
		RequiredCookies: []string{"sessionid"},
		hosts:           []string{"instagram.com"},
	},
	{
		Name:            "youtube",
		DisplayName:     "YouTube",
		LoginURL:        "https://accounts.google.com/ServiceLogin?service=youtube",
		RequiredCookies: []string{"SID", "SAPISID", "APISID"},
		hosts:           []string{"youtube.com", "youtu.be"},
	},
	{
		Name:            "facebook",
		DisplayName:     "Facebook",
		LoginURL:        "https://www.facebook.com/login.php",
		RequiredCookies: []string{"c_user", "xs"},
		hosts:           []string{"facebook.com", "fb.watch"},
	},
	{
		Name:            "linkedin",
		DisplayName:     "LinkedIn",
		LoginURL:        "https://www.linkedin.com/login",
		RequiredCookies: []string{"li_at"},
		hosts:           []string{"linkedin.com"},
	},
	{
		Name:            "tiktok",
		DisplayName:     "TikTok",
		LoginURL:        "https://www.tiktok.com/login",
		RequiredCookies: []string{"sessionid"},
		hosts:           []string{"tiktok.com"},
	},
}

// Services returns all known services.
func Services() []Service {
	return slices.Clone(services)
}

// Lookup returns the service called name.
func Lookup(name string) (Service, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, s := range services {
		if s.Name == name {
			return s, true
		}
	}
	return Service{}, false
}

// ForURL detects the service of a page URL from its host.
func ForURL(pageURL string) (Service, bool) {
	u, err := url.Parse(pageURL)
	if err != nil || u.Host == "" {
		return Service{}, false
	}
	host := strings.ToLower(u.Hostname())
	for _, s := range services {
		for _, h := range s.hosts {
			if host == h || strings.HasSuffix(host, "."+h) {
				return s, true
			}
		}
	}
	return Service{}, false
}

// Missing returns the required cookies not present in cookies.
func (s Service) Missing(cookies map[string]string) []string {
	var missing []string
	for _, name := range s.RequiredCookies {
		if cookies[name] == "" {
			missing = append(missing, name)
		}
	}
	return missing
}
