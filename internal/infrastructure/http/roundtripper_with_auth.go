package httpinfra

import (
	"net/http"
	"strings"
)

// RoundTripperWithAuth stamps every request with the identifying User-Agent
// and adds a bearer token for requests to trusted hosts.
type RoundTripperWithAuth struct {
	base      http.RoundTripper
	userAgent string
	token     string
	hosts     map[string]bool
}

func NewRoundTripperWithAuth(base http.RoundTripper, userAgent, token string, hosts []string) *RoundTripperWithAuth {
	if base == nil {
		base = http.DefaultTransport
	}
	trusted := make(map[string]bool, len(hosts))
	for _, h := range hosts {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			trusted[h] = true
		}
	}
	return &RoundTripperWithAuth{base: base, userAgent: userAgent, token: token, hosts: trusted}
}

func (t *RoundTripperWithAuth) RoundTrip(req *http.Request) (*http.Response, error) {
	newReq := req.Clone(req.Context())
	if t.userAgent != "" {
		newReq.Header.Set("User-Agent", t.userAgent)
	}
	if t.token != "" && newReq.Header.Get("Authorization") == "" && t.hosts[strings.ToLower(newReq.URL.Hostname())] {
		newReq.Header.Set("Authorization", "Bearer "+t.token)
	}
	return t.base.RoundTrip(newReq)
}
