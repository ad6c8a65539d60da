package dynconfig

import (
	"encoding/json"
	"time"

	"github.com/eventrelay/relay/internal/basictypes"
	"github.com/eventrelay/relay/internal/quotas"
)

// ProjectConfig is the configuration of a project as provided by upstream.
type ProjectConfig struct {
	AllowedDomains []string `json:"allowedDomains"`
	// TrustedRelays are the public keys of downstream relays allowed to fetch this project.
	TrustedRelays  []string        `json:"trustedRelays"`
	PIIConfig      json.RawMessage `json:"piiConfig,omitempty"`
	FilterSettings FilterSettings  `json:"filterSettings"`
	Quotas         []quotas.Quota  `json:"quotas,omitempty"`
	Features       FeatureSet      `json:"features,omitempty"`

	MetricExtraction   *MetricExtractionConfig   `json:"metricExtraction,omitempty"`
	TransactionMetrics *TransactionMetricsConfig `json:"transactionMetrics,omitempty"`
	Sampling           *SamplingConfig           `json:"sampling,omitempty"`
}

// DefaultProjectConfig is the config of projects that upstream did not configure further.
func DefaultProjectConfig() ProjectConfig {
	return ProjectConfig{AllowedDomains: []string{"*"}, TrustedRelays: []string{}}
}

// IsOriginAllowed returns true if a browser request from the origin may submit data.
func (c ProjectConfig) IsOriginAllowed(origin string) bool {
	if origin == "" {
		return true
	}
	for _, pattern := range c.AllowedDomains {
		if pattern == "*" || basictypes.IsGlobMatch(origin, pattern, false) ||
			basictypes.IsGlobMatch(origin, "*://"+pattern, false) {
			return true
		}
	}
	return false
}

// PublicKeyConfig is one DSN public key of a project.
type PublicKeyConfig struct {
	PublicKey basictypes.ProjectKey `json:"publicKey"`
	NumericID uint64                `json:"numericId,omitempty"`
}

// ProjectState is everything Relay knows about a project.
type ProjectState struct {
	ProjectID      basictypes.ProjectID `json:"projectId,omitempty"`
	Disabled       bool                 `json:"disabled"`
	PublicKeys     []PublicKeyConfig    `json:"publicKeys"`
	Slug           string               `json:"slug,omitempty"`
	Config         ProjectConfig        `json:"config"`
	OrganizationID uint64               `json:"organizationId,omitempty"`
	Rev            string               `json:"rev,omitempty"`
	LastFetch      *time.Time           `json:"lastFetch,omitempty"`

	// Invalid is set when the state could not be parsed. Such projects reject all requests.
	Invalid bool `json:"-"`
}

// MissingProjectState is the state of a project that upstream does not know about.
func MissingProjectState() *ProjectState {
	return &ProjectState{Disabled: true, PublicKeys: []PublicKeyConfig{}, Config: DefaultProjectConfig()}
}

// InvalidProjectState is the state of a project whose config could not be parsed.
func InvalidProjectState() *ProjectState {
	s := MissingProjectState()
	s.Invalid = true
	return s
}

// IsMissing returns true for states of unknown projects.
func (s *ProjectState) IsMissing() bool {
	return s.Disabled && len(s.PublicKeys) == 0 && !s.Invalid
}

// GetPublicKeyConfig returns the config of one of the project's keys.
func (s *ProjectState) GetPublicKeyConfig(key basictypes.ProjectKey) (PublicKeyConfig, bool) {
	for _, pk := range s.PublicKeys {
		if pk.PublicKey == key {
			return pk, true
		}
	}
	return PublicKeyConfig{}, false
}

// CheckRequest validates that a request with the given key and project ID may be accepted. A
// zero project ID skips the project ID comparison.
func (s *ProjectState) CheckRequest(key basictypes.ProjectKey, projectID basictypes.ProjectID) error {
	switch {
	case s.Invalid:
		return errProjectInvalid()
	case s.Disabled:
		return errProjectDisabled()
	}
	if _, ok := s.GetPublicKeyConfig(key); !ok {
		return errUnknownKey(key)
	}
	if projectID != 0 && s.ProjectID != 0 && projectID != s.ProjectID {
		return errProjectIDMismatch(projectID)
	}
	return nil
}

// Scoping returns the quota scoping of requests with the given key.
func (s *ProjectState) Scoping(key basictypes.ProjectKey) quotas.Scoping {
	scoping := quotas.Scoping{
		OrganizationID: s.OrganizationID,
		ProjectID:      s.ProjectID,
		ProjectKey:     key,
	}
	if pk, ok := s.GetPublicKeyConfig(key); ok {
		scoping.KeyID = pk.NumericID
	}
	return scoping
}

// IsExpired returns true if the state was fetched longer than expiry ago.
func (s *ProjectState) IsExpired(expiry time.Duration, now time.Time) bool {
	return s.LastFetch == nil || now.Sub(*s.LastFetch) >= expiry
}

// Sanitize applies the defaults Relay adds to every fetched config.
func (s *ProjectState) Sanitize() {
	AddSpanMetrics(&s.Config)
	AddTransactionMetrics(&s.Config)
}
