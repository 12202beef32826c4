package mw

import (
	"net/http"
	"strings"

	"github.com/MrSnakeDoc/jobhub/internal/logger"
)

// hostMatcher holds the allowed Host headers, lower-cased and without port.
// A "*.example.com" pattern allows any subdomain of example.com.
type hostMatcher struct {
	exact    map[string]struct{}
	suffixes []string // ".example.com"
}

func newHostMatcher(patterns []string) hostMatcher {
	m := hostMatcher{exact: make(map[string]struct{}, len(patterns))}
	for _, p := range patterns {
		p = strings.ToLower(hostNoPort(strings.TrimSpace(p)))
		switch {
		case p == "":
		case strings.HasPrefix(p, "*."):
			m.suffixes = append(m.suffixes, p[1:])
		default:
			m.exact[p] = struct{}{}
		}
	}
	return m
}

func (m hostMatcher) empty() bool { return len(m.exact) == 0 && len(m.suffixes) == 0 }

func (m hostMatcher) allow(host string) bool {
	host = strings.ToLower(hostNoPort(host))
	if _, ok := m.exact[host]; ok {
		return true
	}
	for _, s := range m.suffixes {
		if strings.HasSuffix(host, s) {
			return true
		}
	}
	return false
}

// EnforceHost rejects requests whose Host header is not allowed.
// If allowedHosts is empty, it acts as a passthrough.
func EnforceHost(allowedHosts []string, log logger.Logger) func(http.Handler) http.Handler {
	m := newHostMatcher(allowedHosts)
	if m.empty() {
		log.Debug("EnforceHost: empty allowedHosts, passthrough mode")
		return func(next http.Handler) http.Handler { return next }
	}

	log.Debugf("EnforceHost: initialized with hosts=%v", allowedHosts)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !m.allow(r.Host) {
				log.Debug("host rejected", logger.String("host", r.Host), logger.String("path", r.URL.Path))
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
