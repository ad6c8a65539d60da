package processing

// Topic is the logical name of a Kafka topic. The configured topic prefix is prepended to it.
type Topic string

// Topics that processing mode produces to.
const (
	TopicEvents           Topic = "events"
	TopicAttachments      Topic = "attachments"
	TopicTransactions     Topic = "transactions"
	TopicOutcomes         Topic = "outcomes"
	TopicSessions         Topic = "sessions"
	TopicMetrics          Topic = "metrics"
	TopicProfiles         Topic = "profiles"
	TopicReplayEvents     Topic = "replay_events"
	TopicReplayRecordings Topic = "replay_recordings"
	TopicMonitors         Topic = "monitors"
	TopicSpans            Topic = "spans"
)

// AllTopics lists every topic.
func AllTopics() []Topic {
	return []Topic{
		TopicEvents, TopicAttachments, TopicTransactions, TopicOutcomes, TopicSessions, TopicMetrics,
		TopicProfiles, TopicReplayEvents, TopicReplayRecordings, TopicMonitors, TopicSpans,
	}
}
