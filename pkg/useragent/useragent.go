/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: useragent.go
Description: HTTP RoundTripper that stamps a fixed User-Agent on every request.
APK catalogs reject the default Go user agent, so every client goes through this.
*/

package useragent

import (
	"net/http"
)

type uaRoundTripper struct {
	parent    http.RoundTripper
	userAgent string
}

// RoundTrip implements the http.RoundTripper interface.
func (rt *uaRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", rt.userAgent)
	return rt.parent.RoundTrip(req)
}

// RoundTripper wraps parent with a RoundTripper that sets the User-Agent
// header to ua. A nil parent uses http.DefaultTransport.
func RoundTripper(ua string, parent http.RoundTripper) http.RoundTripper {
	if parent == nil {
		parent = http.DefaultTransport
	}
	return &uaRoundTripper{
		parent:    parent,
		userAgent: ua,
	}
}

// Client returns an http.Client sending ua on every request
func Client(ua string) *http.Client {
	return &http.Client{Transport: RoundTripper(ua, nil)}
}
