package dynconfig

// Feature is a flag that upstream enables for an organization or project.
type Feature string

// Features that change Relay's behavior. Other feature names are kept but have no effect.
const (
	FeatureCustomMetrics         Feature = "organizations:custom-metrics"
	FeatureSpanMetricsExtraction Feature = "projects:span-metrics-extraction"
	FeatureProfiling             Feature = "organizations:profiling"
	FeatureSessionReplay         Feature = "organizations:session-replay"
	FeatureStandaloneSpans       Feature = "projects:relay-store-standalone-spans"
)

// FeatureSet is the list of features enabled for a project.
type FeatureSet []Feature

// Has returns true if the feature is enabled.
func (s FeatureSet) Has(f Feature) bool {
	for _, x := range s {
		if x == f {
			return true
		}
	}
	return false
}
