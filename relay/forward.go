package relay

import (
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"github.com/eventrelay/relay/internal/logging"
	"github.com/eventrelay/relay/internal/middleware"
)

// hopHeaders are dropped from forwarded requests in addition to the hop-by-hop headers that
// httputil.ReverseProxy removes.
var hopHeaders = []string{"Host", "X-Forwarded-Host"} //nolint:gochecknoglobals

// makeForwardHandler passes requests to endpoints the relay does not implement through to the
// upstream unchanged. Cacheable responses are served from memory.
func (r *Relay) makeForwardHandler() http.Handler {
	target, _ := url.Parse(r.config.Relay.Upstream.String())
	return &httputil.ReverseProxy{
		Director: func(req *http.Request) {
			req.URL.Scheme = target.Scheme
			req.URL.Host = target.Host
			req.Host = target.Host
			for _, h := range hopHeaders {
				req.Header.Del(h)
			}
			if _, ok := req.Header["User-Agent"]; !ok {
				req.Header.Set("User-Agent", "")
			}
		},
		Transport: r.upstream.ForwardTransport(),
		ModifyResponse: func(resp *http.Response) error {
			// Leave access control to our own CORS middleware
			for h := range resp.Header {
				if strings.HasPrefix(strings.ToLower(h), "access-control") {
					resp.Header.Del(h)
				}
			}
			return nil
		},
		ErrorHandler: func(w http.ResponseWriter, req *http.Request, err error) {
			logging.GetContextLoggers(req.Context()).Warnf(logMsgForwardFailed, req.Method, req.URL.Path, err)
			middleware.WriteError(w, http.StatusBadGateway, "upstream request failed")
		},
	}
}
