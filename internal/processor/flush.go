package processor

import (
	"context"

	"github.com/eventrelay/relay/internal/buckets"
	"github.com/eventrelay/relay/internal/protocol"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
)

// MetricsFlusher receives buckets flushed by the aggregator and forwards them as one
// metric_buckets envelope per project.
type MetricsFlusher struct {
	Projects  ProjectProvider
	Forwarder Forwarder
	Loggers   ldlog.Loggers
}

// FlushBuckets implements buckets.FlushReceiver.
func (f MetricsFlusher) FlushBuckets(batch buckets.FlushBatch) {
	for key, projectBuckets := range batch.Buckets {
		state, ok := f.Projects.GetCachedState(key)
		if !ok || state.CheckRequest(key, 0) != nil {
			f.Loggers.Warnf(logMsgFlushNoProject, len(projectBuckets), key)
			continue
		}
		env := protocol.NewEnvelope("")
		env.AddItem(protocol.NewItem(protocol.ItemTypeMetricBuckets, buckets.MarshalBuckets(projectBuckets)))
		m := &ManagedEnvelope{
			Envelope: env,
			Meta:     RequestMeta{Auth: protocol.AuthHeader{PublicKey: key}},
			Scoping:  state.Scoping(key),
			State:    state,
		}
		ctx, cancel := context.WithTimeout(context.Background(), forwardTimeout)
		if err := f.Forwarder.Forward(ctx, m); err != nil {
			f.Loggers.Errorf(logMsgFlushFailed, key, err)
		}
		cancel()
	}
}
