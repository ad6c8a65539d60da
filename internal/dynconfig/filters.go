package dynconfig

import (
	"net/url"
	"strings"

	"github.com/eventrelay/relay/internal/basictypes"
	"github.com/eventrelay/relay/internal/protocol"
)

// FilterReason names the inbound filter that dropped an event. It is used as the outcome reason.
type FilterReason string

// Inbound filters.
const (
	FilterLocalhost      FilterReason = "localhost"
	FilterWebCrawlers    FilterReason = "web-crawlers"
	FilterReleaseVersion FilterReason = "release-version"
	FilterErrorMessage   FilterReason = "error-message"
)

// FilterConfig toggles a filter without options.
type FilterConfig struct {
	IsEnabled bool `json:"isEnabled"`
}

// ReleasesFilterConfig drops events whose release matches a pattern.
type ReleasesFilterConfig struct {
	Releases []string `json:"releases,omitempty"`
}

// ErrorMessagesFilterConfig drops events whose message matches a pattern.
type ErrorMessagesFilterConfig struct {
	Patterns []string `json:"patterns,omitempty"`
}

// FilterSettings are the inbound filters of a project.
type FilterSettings struct {
	Localhost     FilterConfig              `json:"localhost"`
	WebCrawlers   FilterConfig              `json:"webCrawlers"`
	Releases      ReleasesFilterConfig      `json:"releases"`
	ErrorMessages ErrorMessagesFilterConfig `json:"errorMessages"`
}

var webCrawlerTokens = []string{ //nolint:gochecknoglobals
	"bot", "crawler", "spider", "slurp", "mediapartners-google", "facebookexternalhit", "ia_archiver",
}

// ShouldFilter applies the filters to an event. The patterns of the release and message filters
// are globs in which "*" matches any character.
func (f FilterSettings) ShouldFilter(event protocol.Object) (FilterReason, bool) {
	if f.Localhost.IsEnabled && isLocalhostEvent(event) {
		return FilterLocalhost, true
	}
	if f.WebCrawlers.IsEnabled && isWebCrawler(userAgent(event)) {
		return FilterWebCrawlers, true
	}
	if release, ok := event.StringField("release"); ok && release != "" {
		for _, pattern := range f.Releases.Releases {
			if basictypes.IsGlobMatch(release, pattern, false) {
				return FilterReleaseVersion, true
			}
		}
	}
	if len(f.ErrorMessages.Patterns) > 0 {
		for _, message := range eventMessages(event) {
			for _, pattern := range f.ErrorMessages.Patterns {
				if basictypes.IsGlobMatch(strings.ToLower(message), strings.ToLower(pattern), false) {
					return FilterErrorMessage, true
				}
			}
		}
	}
	return "", false
}

func isLocalhostEvent(event protocol.Object) bool {
	if ip, ok := protocol.GetPath(event, "user.ip_address"); ok {
		if s, _ := ip.(string); s == "127.0.0.1" || s == "::1" {
			return true
		}
	}
	if raw, ok := protocol.GetPath(event, "request.url"); ok {
		if s, _ := raw.(string); s != "" {
			if u, err := url.Parse(s); err == nil {
				switch u.Hostname() {
				case "localhost", "127.0.0.1", "::1":
					return true
				}
			}
		}
	}
	return false
}

func userAgent(event protocol.Object) string {
	headers, ok := protocol.GetPath(event, "request.headers")
	if !ok {
		return ""
	}
	switch h := headers.(type) {
	case protocol.Object:
		for k, v := range h {
			if strings.EqualFold(k, "user-agent") {
				s, _ := v.(string)
				return s
			}
		}
	case protocol.Array:
		for _, pair := range h {
			if kv, ok := pair.(protocol.Array); ok && len(kv) == 2 {
				if k, _ := kv[0].(string); strings.EqualFold(k, "user-agent") {
					s, _ := kv[1].(string)
					return s
				}
			}
		}
	}
	return ""
}

func isWebCrawler(ua string) bool {
	ua = strings.ToLower(ua)
	for _, token := range webCrawlerTokens {
		if strings.Contains(ua, token) {
			return true
		}
	}
	return false
}

func eventMessages(event protocol.Object) []string {
	var messages []string
	for _, path := range []string{"logentry.formatted", "logentry.message", "message"} {
		if v, ok := protocol.GetPath(event, path); ok {
			if s, _ := v.(string); s != "" {
				messages = append(messages, s)
			}
		}
	}
	if values, ok := protocol.GetPath(event, "exception.values"); ok {
		if arr, ok := values.(protocol.Array); ok {
			for _, item := range arr {
				exc, ok := item.(protocol.Object)
				if !ok {
					continue
				}
				ty, _ := exc.StringField("type")
				value, _ := exc.StringField("value")
				switch {
				case ty != "" && value != "":
					messages = append(messages, ty+": "+value)
				case ty != "":
					messages = append(messages, ty)
				case value != "":
					messages = append(messages, value)
				}
			}
		}
	}
	return messages
}
