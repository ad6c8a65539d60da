package config

import (
	"crypto/tls"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	ct "github.com/launchdarkly/go-configtypes"
	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
)

// OptLogLevel represents an optional log level parameter. It must match one of the level names "debug",
// "info", "warn", or "error" (case-insensitive).
//
// The zero value OptLogLevel{} is valid and undefined (IsDefined() is false).
type OptLogLevel struct {
	level ldlog.LogLevel
}

// NewOptLogLevel creates an OptLogLevel that wraps the given value.
func NewOptLogLevel(level ldlog.LogLevel) OptLogLevel {
	return OptLogLevel{level: level}
}

// NewOptLogLevelFromString creates an OptLogLevel from a string that must either be a valid log level
// name or an empty string.
func NewOptLogLevelFromString(levelName string) (OptLogLevel, error) {
	if levelName == "" {
		return OptLogLevel{}, nil
	}
	for _, level := range []ldlog.LogLevel{ldlog.Debug, ldlog.Info, ldlog.Warn, ldlog.Error, ldlog.None} {
		if strings.EqualFold(level.Name(), levelName) {
			return NewOptLogLevel(level), nil
		}
	}
	return OptLogLevel{}, errBadLogLevel(levelName)
}

// IsDefined returns true if the instance contains a value.
func (o OptLogLevel) IsDefined() bool {
	return o.level != 0
}

// GetOrElse returns the wrapped value, or the alternative value if there is no value.
func (o OptLogLevel) GetOrElse(orElseValue ldlog.LogLevel) ldlog.LogLevel {
	if o.level == 0 {
		return orElseValue
	}
	return o.level
}

// UnmarshalText attempts to parse the value from a byte string, using the same logic as
// NewOptLogLevelFromString.
func (o *OptLogLevel) UnmarshalText(data []byte) error {
	opt, err := NewOptLogLevelFromString(string(data))
	if err == nil {
		*o = opt
	}
	return err
}

// OptTLSVersion represents an optional TLS version parameter, written as "1.0", "1.1", "1.2", or "1.3".
//
// The zero value OptTLSVersion{} is valid and undefined (IsDefined() is false).
type OptTLSVersion struct {
	value uint16
}

// NewOptTLSVersion creates an OptTLSVersion that wraps one of the crypto/tls version constants.
func NewOptTLSVersion(value uint16) OptTLSVersion {
	return OptTLSVersion{value: value}
}

// NewOptTLSVersionFromString parses a version string. An empty string is undefined.
func NewOptTLSVersionFromString(s string) (OptTLSVersion, error) {
	switch s {
	case "":
		return OptTLSVersion{}, nil
	case "1.0":
		return NewOptTLSVersion(tls.VersionTLS10), nil
	case "1.1":
		return NewOptTLSVersion(tls.VersionTLS11), nil
	case "1.2":
		return NewOptTLSVersion(tls.VersionTLS12), nil
	case "1.3":
		return NewOptTLSVersion(tls.VersionTLS13), nil
	default:
		return OptTLSVersion{}, errBadTLSVersion(s)
	}
}

// IsDefined returns true if the instance contains a value.
func (o OptTLSVersion) IsDefined() bool { return o.value != 0 }

// Get returns the wrapped value, or zero.
func (o OptTLSVersion) Get() uint16 { return o.value }

// String returns the version in the same format that NewOptTLSVersionFromString accepts.
func (o OptTLSVersion) String() string {
	switch o.value {
	case 0:
		return ""
	case tls.VersionTLS10:
		return "1.0"
	case tls.VersionTLS11:
		return "1.1"
	case tls.VersionTLS12:
		return "1.2"
	case tls.VersionTLS13:
		return "1.3"
	default:
		return fmt.Sprintf("0x%04x", o.value)
	}
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (o *OptTLSVersion) UnmarshalText(data []byte) error {
	opt, err := NewOptTLSVersionFromString(string(data))
	if err == nil {
		*o = opt
	}
	return err
}

// ByteSize is an amount of memory or data in bytes.
type ByteSize uint64

var byteSizeUnits = []struct { //nolint:gochecknoglobals
	suffix     string
	multiplier uint64
}{
	{"KiB", 1 << 10}, {"MiB", 1 << 20}, {"GiB", 1 << 30}, {"TiB", 1 << 40},
	{"KB", 1000}, {"MB", 1000 * 1000}, {"GB", 1000 * 1000 * 1000}, {"TB", 1000 * 1000 * 1000 * 1000},
	{"B", 1},
}

// ParseByteSize parses a number of bytes with an optional decimal (KB, MB, ...) or binary (KiB, MiB, ...)
// unit. Units are case-insensitive.
func ParseByteSize(s string) (ByteSize, error) {
	trimmed := strings.TrimSpace(s)
	for _, unit := range byteSizeUnits {
		if len(trimmed) > len(unit.suffix) && strings.EqualFold(trimmed[len(trimmed)-len(unit.suffix):], unit.suffix) {
			n, err := strconv.ParseUint(strings.TrimSpace(trimmed[:len(trimmed)-len(unit.suffix)]), 10, 64)
			if err != nil {
				return 0, errBadByteSize(s)
			}
			return ByteSize(n * unit.multiplier), nil
		}
	}
	n, err := strconv.ParseUint(trimmed, 10, 64)
	if err != nil {
		return 0, errBadByteSize(s)
	}
	return ByteSize(n), nil
}

// Bytes returns the size as a plain number.
func (b ByteSize) Bytes() int64 { return int64(b) }

// String renders the size with the largest unit that represents it exactly.
func (b ByteSize) String() string {
	n := uint64(b)
	if n == 0 {
		return "0B"
	}
	best := byteSizeUnits[len(byteSizeUnits)-1]
	for _, unit := range byteSizeUnits {
		if n%unit.multiplier == 0 && unit.multiplier > best.multiplier {
			best = unit
		}
	}
	return strconv.FormatUint(n/best.multiplier, 10) + best.suffix
}

// OptByteSize represents an optional ByteSize parameter.
//
// The zero value OptByteSize{} is valid and undefined (IsDefined() is false).
type OptByteSize struct {
	defined bool
	value   ByteSize
}

// NewOptByteSize creates an OptByteSize that wraps the given value.
func NewOptByteSize(value ByteSize) OptByteSize {
	return OptByteSize{defined: true, value: value}
}

// IsDefined returns true if the instance contains a value.
func (o OptByteSize) IsDefined() bool { return o.defined }

// GetOrElse returns the wrapped value, or the alternative value if there is no value.
func (o OptByteSize) GetOrElse(orElseValue ByteSize) ByteSize {
	if !o.defined {
		return orElseValue
	}
	return o.value
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (o *OptByteSize) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*o = OptByteSize{}
		return nil
	}
	value, err := ParseByteSize(string(data))
	if err == nil {
		*o = NewOptByteSize(value)
	}
	return err
}

// RelayMode determines how a relay obtains project configurations and whether it trusts its upstream.
type RelayMode string

const (
	// RelayModeManaged fetches project configurations from the upstream, authenticating with credentials.
	// This is the default.
	RelayModeManaged RelayMode = "managed"
	// RelayModeProxy forwards everything to the upstream without project configurations.
	RelayModeProxy RelayMode = "proxy"
	// RelayModeStatic reads project configurations from local files and rejects unknown projects.
	RelayModeStatic RelayMode = "static"
	// RelayModeCapture keeps envelopes in memory instead of forwarding them. It is meant for tests.
	RelayModeCapture RelayMode = "capture"
)

// GetOrDefault returns the mode, or RelayModeManaged if it is unset.
func (m RelayMode) GetOrDefault() RelayMode {
	if m == "" {
		return RelayModeManaged
	}
	return m
}

func (m RelayMode) String() string { return string(m.GetOrDefault()) }

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *RelayMode) UnmarshalText(data []byte) error {
	switch mode := RelayMode(strings.ToLower(string(data))); mode {
	case "", RelayModeManaged, RelayModeProxy, RelayModeStatic, RelayModeCapture:
		*m = mode
		return nil
	default:
		return errBadRelayMode(string(data))
	}
}

// UpstreamDescriptor is the origin (scheme, host, and port) of the upstream that a relay forwards to.
//
// The zero value is valid and means DefaultUpstream.
type UpstreamDescriptor struct {
	scheme string
	host   string
	port   int
}

// ParseUpstreamDescriptor parses an origin URL such as "https://sentry.io/" or "http://localhost:3001".
func ParseUpstreamDescriptor(s string) (UpstreamDescriptor, error) {
	u, err := url.Parse(s)
	if err != nil || u.Scheme == "" {
		return UpstreamDescriptor{}, UpstreamErrorBadScheme
	}
	var defaultPort int
	switch u.Scheme {
	case "http":
		defaultPort = 80
	case "https":
		defaultPort = 443
	default:
		return UpstreamDescriptor{}, UpstreamErrorBadScheme
	}
	if u.Hostname() == "" {
		return UpstreamDescriptor{}, UpstreamErrorNoHost
	}
	if (u.Path != "" && u.Path != "/") || u.RawQuery != "" || u.Fragment != "" || u.User != nil {
		return UpstreamDescriptor{}, UpstreamErrorNonOriginURL
	}
	port := defaultPort
	if p := u.Port(); p != "" {
		port, err = strconv.Atoi(p)
		if err != nil {
			return UpstreamDescriptor{}, UpstreamErrorNonOriginURL
		}
	}
	return UpstreamDescriptor{scheme: u.Scheme, host: u.Hostname(), port: port}, nil
}

func mustParseUpstreamDescriptor(s string) UpstreamDescriptor {
	u, err := ParseUpstreamDescriptor(s)
	if err != nil {
		panic(err)
	}
	return u
}

// IsDefined returns true if an upstream was configured explicitly.
func (u UpstreamDescriptor) IsDefined() bool { return u.host != "" }

// GetOrDefault returns the descriptor, or the descriptor of DefaultUpstream if it is unset.
func (u UpstreamDescriptor) GetOrDefault() UpstreamDescriptor {
	if u.IsDefined() {
		return u
	}
	return mustParseUpstreamDescriptor(DefaultUpstream)
}

// Scheme returns "http" or "https".
func (u UpstreamDescriptor) Scheme() string { return u.GetOrDefault().scheme }

// Host returns the host name without port.
func (u UpstreamDescriptor) Host() string { return u.GetOrDefault().host }

// Port returns the port, which defaults to 80 or 443 depending on the scheme.
func (u UpstreamDescriptor) Port() int { return u.GetOrDefault().port }

// URL returns an absolute URL for the given path on the upstream.
func (u UpstreamDescriptor) URL(path string) string {
	d := u.GetOrDefault()
	host := d.host
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	if (d.scheme == "http" && d.port != 80) || (d.scheme == "https" && d.port != 443) {
		host += ":" + strconv.Itoa(d.port)
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return d.scheme + "://" + host + path
}

func (u UpstreamDescriptor) String() string { return u.URL("/") }

// UnmarshalText implements encoding.TextUnmarshaler.
func (u *UpstreamDescriptor) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*u = UpstreamDescriptor{}
		return nil
	}
	parsed, err := ParseUpstreamDescriptor(string(data))
	if err == nil {
		*u = parsed
	}
	return err
}

// HTTPEncoding is the content encoding Relay uses for request bodies sent upstream.
type HTTPEncoding string

//nolint:revive
const (
	HTTPEncodingIdentity HTTPEncoding = "identity"
	HTTPEncodingDeflate  HTTPEncoding = "deflate"
	HTTPEncodingGzip     HTTPEncoding = "gzip"
	HTTPEncodingZstd     HTTPEncoding = "zstd"
)

// GetOrDefault returns the encoding, or HTTPEncodingIdentity if it is unset.
func (e HTTPEncoding) GetOrDefault() HTTPEncoding {
	if e == "" {
		return HTTPEncodingIdentity
	}
	return e
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (e *HTTPEncoding) UnmarshalText(data []byte) error {
	switch enc := HTTPEncoding(strings.ToLower(string(data))); enc {
	case "", HTTPEncodingIdentity, HTTPEncodingDeflate, HTTPEncodingGzip, HTTPEncodingZstd:
		*e = enc
		return nil
	default:
		return errBadHTTPEncoding(string(data))
	}
}

// StoreKind selects the persistent store for project states.
type StoreKind string

//nolint:revive
const (
	StoreNone     StoreKind = ""
	StoreRedis    StoreKind = "redis"
	StoreConsul   StoreKind = "consul"
	StoreDynamoDB StoreKind = "dynamodb"
)

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *StoreKind) UnmarshalText(data []byte) error {
	switch kind := StoreKind(strings.ToLower(string(data))); kind {
	case StoreNone, StoreRedis, StoreConsul, StoreDynamoDB:
		*k = kind
		return nil
	default:
		return errBadStoreKind(string(data))
	}
}

func newOptURLAbsoluteMustBeValid(urlString string) ct.OptURLAbsolute {
	o, err := ct.NewOptURLAbsoluteFromString(urlString)
	if err != nil {
		panic(err)
	}
	return o
}
