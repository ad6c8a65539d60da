package outcomes

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/eventrelay/relay/internal/processing"
	"github.com/eventrelay/relay/internal/upstream"
)

// OutcomesPath is the upstream endpoint that accepts outcome batches.
const OutcomesPath = "/api/0/relays/outcomes/"

// Sink delivers a batch of outcomes.
type Sink interface {
	Send(ctx context.Context, batch []TrackRawOutcome) error
}

// UpstreamSink posts batches to the upstream. The upstream trusts the outcomes only from
// registered relays, so the request is signed.
type UpstreamSink struct {
	Relay *upstream.Relay
}

// Send implements Sink.
func (s UpstreamSink) Send(ctx context.Context, batch []TrackRawOutcome) error {
	body, err := MarshalOutcomes(batch)
	if err != nil {
		return err
	}
	return s.Relay.SendJSON(ctx, OutcomesPath, json.RawMessage(body), nil)
}

// KafkaSink writes each outcome as one message to the outcomes topic.
type KafkaSink struct {
	Producer processing.Producer
}

// Send implements Sink.
func (s KafkaSink) Send(ctx context.Context, batch []TrackRawOutcome) error {
	msgs := make([]processing.Message, 0, len(batch))
	for _, o := range batch {
		value, err := json.Marshal(o)
		if err != nil {
			return err
		}
		msgs = append(msgs, processing.Message{
			Topic: processing.TopicOutcomes,
			Key:   []byte(strconv.FormatUint(o.ProjectID, 10)),
			Value: value,
		})
	}
	return s.Producer.Produce(ctx, msgs...)
}
