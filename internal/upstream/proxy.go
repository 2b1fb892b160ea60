package upstream

import (
	"net/http"
	"net/http/httputil"
)

// ReverseProxy returns a handler that relays requests to the backend
// unchanged. Transport failures are answered with 502
// {"error":"upstream_error"}.
func (c *Client) ReverseProxy() *httputil.ReverseProxy {
	base := c.Base()
	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(base)
			pr.SetXForwarded()
		},
		Transport: c.httpClient.Transport,
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			c.logger.Warn().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("pass-through failed")
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte(`{"error":"upstream_error"}`))
		},
	}
}
