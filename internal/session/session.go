// Package session holds the identity material that makes outbound requests
// look like an ordinary browser: headers, cookies, TLS fingerprint and proxy.
// Profiles are loaded from YAML and treated as opaque by the fetch layer.
package session

import (
	"maps"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

const defaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/137.0.0.0 Safari/537.36"

// Proxy maps URL schemes to outbound proxy addresses.
type Proxy struct {
	HTTP  string `yaml:"http" json:"http,omitempty" mapstructure:"http"`
	HTTPS string `yaml:"https" json:"https,omitempty" mapstructure:"https"`
}

// IsZero reports whether no proxy is configured.
func (p Proxy) IsZero() bool {
	return p.HTTP == "" && p.HTTPS == ""
}

// Validate checks that every set address is an absolute proxy URL.
func (p Proxy) Validate() error {
	for _, raw := range []string{p.HTTP, p.HTTPS} {
		if raw == "" {
			continue
		}
		if _, err := parseProxy(raw); err != nil {
			return err
		}
	}
	return nil
}

// Profile is the on-disk description of a client identity.
type Profile struct {
	Fingerprint string            `yaml:"fingerprint"`
	Headers     map[string]string `yaml:"headers"`
	Cookies     map[string]string `yaml:"cookies"`
	Proxy       Proxy             `yaml:"proxy"`
}

// DefaultProfile returns a minimal Chrome-like identity without cookies.
func DefaultProfile() Profile {
	return Profile{
		Fingerprint: "chrome",
		Headers: map[string]string{
			"User-Agent":      defaultUserAgent,
			"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
			"Accept-Language": "en-US,en;q=0.9",
		},
	}
}

// LoadProfile reads a YAML profile from path. Headers missing from the file
// fall back to the defaults.
func LoadProfile(path string) (Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, eris.Wrap(err, "session: read profile")
	}
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Profile{}, eris.Wrap(err, "session: parse profile")
	}

	def := DefaultProfile()
	if p.Fingerprint == "" {
		p.Fingerprint = def.Fingerprint
	}
	if p.Headers == nil {
		p.Headers = make(map[string]string)
	}
	for k, v := range def.Headers {
		if !hasHeader(p.Headers, k) {
			p.Headers[k] = v
		}
	}
	return p, nil
}

func hasHeader(h map[string]string, name string) bool {
	for k := range h {
		if strings.EqualFold(k, name) {
			return true
		}
	}
	return false
}

// Context is the request context handed to every fetch.
type Context struct {
	profile    Profile
	proxy      Proxy
	cookieHost string
	cookiePort string
}

// New builds a Context from a profile. A non-zero override replaces the
// profile's proxy. Profile cookies are only sent to origin's host and its
// subdomains, on origin's port when it names one. An empty origin sends them
// nowhere.
func New(p Profile, override Proxy, origin string) (*Context, error) {
	proxy := p.Proxy
	if !override.IsZero() {
		proxy = override
	}
	if err := proxy.Validate(); err != nil {
		return nil, err
	}
	if _, err := helloID(p.Fingerprint); err != nil {
		return nil, err
	}
	c := &Context{profile: p, proxy: proxy}
	if origin != "" {
		u, err := url.Parse(origin)
		if err != nil || u.Hostname() == "" {
			return nil, eris.Errorf("session: invalid origin %q", origin)
		}
		c.cookieHost = bareHost(u.Hostname())
		c.cookiePort = u.Port()
	}
	return c, nil
}

// Proxy returns the effective proxy descriptor.
func (c *Context) Proxy() Proxy { return c.proxy }

// Fingerprint returns the TLS fingerprint name.
func (c *Context) Fingerprint() string { return c.profile.Fingerprint }

// UserAgent returns the configured User-Agent header, if any.
func (c *Context) UserAgent() string {
	for k, v := range c.profile.Headers {
		if strings.EqualFold(k, "User-Agent") {
			return v
		}
	}
	return ""
}

// Headers returns a copy of the profile's header set.
func (c *Context) Headers() map[string]string {
	return maps.Clone(c.profile.Headers)
}

// CookiesFor returns a copy of the profile cookies that may be sent to
// rawURL. Hosts outside the origin get none.
func (c *Context) CookiesFor(rawURL string) map[string]string {
	u, err := url.Parse(rawURL)
	if err != nil || !c.cookiesAllowed(u) {
		return nil
	}
	return maps.Clone(c.profile.Cookies)
}

// Apply sets the profile's headers on req, and its cookies when req targets
// the origin.
func (c *Context) Apply(req *http.Request) {
	for k, v := range c.profile.Headers {
		req.Header.Set(k, v)
	}
	if !c.cookiesAllowed(req.URL) {
		return
	}
	for name, value := range c.profile.Cookies {
		req.AddCookie(&http.Cookie{Name: name, Value: value})
	}
}

func (c *Context) cookiesAllowed(u *url.URL) bool {
	if c.cookieHost == "" || u == nil {
		return false
	}
	if c.cookiePort != "" && u.Port() != c.cookiePort {
		return false
	}
	host := bareHost(u.Hostname())
	return host == c.cookieHost || strings.HasSuffix(host, "."+c.cookieHost)
}

func bareHost(host string) string {
	return strings.TrimPrefix(strings.ToLower(host), "www.")
}

// ProxyFunc selects the proxy for a request by its scheme.
func (c *Context) ProxyFunc() func(*http.Request) (*url.URL, error) {
	return func(req *http.Request) (*url.URL, error) {
		raw := c.proxy.HTTP
		if req.URL.Scheme == "https" {
			raw = c.proxy.HTTPS
		}
		if raw == "" {
			return nil, nil
		}
		return parseProxy(raw)
	}
}

func parseProxy(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, eris.Errorf("session: invalid proxy address %q", raw)
	}
	return u, nil
}
