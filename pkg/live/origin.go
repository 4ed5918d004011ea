package live

import (
	"errors"
	"net/url"
)

// ErrOriginNotAllowed is returned when a websocket upgrade comes from a
// foreign origin.
var ErrOriginNotAllowed = errors.New("origin not allowed")

// OriginPolicy decides which browser origins may open a live connection.
type OriginPolicy struct {
	// AllowedOrigins lists extra origins besides the serving host. "*"
	// allows any origin.
	AllowedOrigins []string

	// InsecureDevMode disables origin validation. Development only.
	InsecureDevMode bool
}

// Allowed reports whether origin may connect to a server reached as host.
// An empty origin is a same-origin or non-browser request.
func (p OriginPolicy) Allowed(origin, host string) bool {
	if p.InsecureDevMode || origin == "" {
		return true
	}

	originURL, err := url.Parse(origin)
	if err != nil || originURL.Host == "" {
		return false
	}
	if originURL.Host == host {
		return true
	}

	for _, allowed := range p.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
		if allowedURL, err := url.Parse(allowed); err == nil && allowedURL.Host != "" && allowedURL.Host == originURL.Host {
			return true
		}
	}
	return false
}
