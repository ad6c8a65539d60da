package protocol

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/eventrelay/relay/internal/basictypes"
)

const (
	// AuthHeaderName is the header SDKs use to authenticate.
	AuthHeaderName = "X-Sentry-Auth"
	authScheme     = "sentry"
)

// AuthHeader is the parsed authentication information of an SDK request.
type AuthHeader struct {
	PublicKey basictypes.ProjectKey
	Version   string
	Client    string
}

// ParseAuthHeader parses "Sentry sentry_key=<key>, sentry_version=7, sentry_client=<client>".
// The "sentry_" prefix of each field is optional.
func ParseAuthHeader(header string) (AuthHeader, error) {
	header = strings.TrimSpace(header)
	space := strings.IndexAny(header, " \t")
	if space < 0 || !strings.EqualFold(header[:space], authScheme) {
		return AuthHeader{}, errBadAuthHeader(header)
	}
	fields := make(map[string]string)
	for _, pair := range strings.Split(header[space+1:], ",") {
		pair = strings.TrimSpace(pair)
		eq := strings.IndexByte(pair, '=')
		if eq < 0 {
			continue
		}
		name := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(pair[:eq])), "sentry_")
		fields[name] = strings.Trim(strings.TrimSpace(pair[eq+1:]), `"`)
	}
	return authFromFields(fields)
}

// AuthFromQuery reads "sentry_key", "sentry_version" and "sentry_client" query parameters, which
// browser SDKs use instead of a header.
func AuthFromQuery(query url.Values) (AuthHeader, error) {
	fields := make(map[string]string)
	for _, name := range []string{"key", "version", "client"} {
		if v := query.Get("sentry_" + name); v != "" {
			fields[name] = v
		}
	}
	if len(fields) == 0 {
		return AuthHeader{}, errMissingAuth()
	}
	return authFromFields(fields)
}

// AuthFromRequest looks for authentication information in the X-Sentry-Auth header, the
// Authorization header, and the query string, in that order.
func AuthFromRequest(req *http.Request) (AuthHeader, error) {
	if h := req.Header.Get(AuthHeaderName); h != "" {
		return ParseAuthHeader(h)
	}
	if h := req.Header.Get("Authorization"); h != "" {
		return ParseAuthHeader(h)
	}
	return AuthFromQuery(req.URL.Query())
}

func authFromFields(fields map[string]string) (AuthHeader, error) {
	key, err := basictypes.ParseProjectKey(fields["key"])
	if err != nil {
		return AuthHeader{}, errBadPublicKey()
	}
	return AuthHeader{PublicKey: key, Version: fields["version"], Client: fields["client"]}, nil
}

// String renders the header in the form SDKs send it.
func (a AuthHeader) String() string {
	parts := []string{"sentry_key=" + string(a.PublicKey)}
	if a.Version != "" {
		parts = append(parts, "sentry_version="+a.Version)
	}
	if a.Client != "" {
		parts = append(parts, "sentry_client="+a.Client)
	}
	return "Sentry " + strings.Join(parts, ", ")
}
