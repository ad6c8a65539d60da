package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/eventrelay/relay/internal/processing"
	"github.com/eventrelay/relay/internal/protocol"
	"github.com/eventrelay/relay/internal/upstream"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
)

// Forwarder delivers a processed envelope.
type Forwarder interface {
	Forward(ctx context.Context, m *ManagedEnvelope) error
}

// EnvelopePath returns the upstream path of the envelope endpoint of a project.
func EnvelopePath(projectID fmt.Stringer) string {
	return fmt.Sprintf("/api/%s/envelope/", projectID)
}

// UpstreamForwarder posts envelopes to the upstream with the client's authentication.
type UpstreamForwarder struct {
	Relay *upstream.Relay
}

// Forward implements Forwarder.
func (f UpstreamForwarder) Forward(ctx context.Context, m *ManagedEnvelope) error {
	header := make(http.Header)
	header.Set(protocol.AuthHeaderName, m.Meta.Auth.String())
	if m.Meta.RemoteAddr != "" {
		header.Set("X-Forwarded-For", m.Meta.RemoteAddr)
	}
	_, err := f.Relay.Send(ctx, upstream.Request{
		Path:        EnvelopePath(m.Scoping.ProjectID),
		Body:        m.Envelope.Serialize(),
		ContentType: protocol.ContentTypeEnvelope,
		Header:      header,
		Signed:      f.Relay.Credentials() != nil,
		Compress:    true,
	})
	return err
}

// KafkaMessage is the value of messages that KafkaForwarder produces.
type KafkaMessage struct {
	Type           protocol.ItemType `json:"type"`
	EventID        string            `json:"event_id,omitempty"`
	ProjectID      uint64            `json:"project_id"`
	OrganizationID uint64            `json:"org_id,omitempty"`
	KeyID          uint64            `json:"key_id,omitempty"`
	StartTime      int64             `json:"start_time"`
	RemoteAddr     string            `json:"remote_addr,omitempty"`
	Headers        protocol.Object   `json:"headers,omitempty"`
	Payload        []byte            `json:"payload"`
}

// KafkaForwarder writes each item of an envelope to the Kafka topic for its type.
type KafkaForwarder struct {
	Producer processing.Producer
	Loggers  ldlog.Loggers
}

// TopicForItem returns the topic that items of a type are written to.
func TopicForItem(t protocol.ItemType) (processing.Topic, bool) {
	switch t {
	case protocol.ItemTypeEvent, protocol.ItemTypeSecurity, protocol.ItemTypeRawSecurity, protocol.ItemTypeFormData:
		return processing.TopicEvents, true
	case protocol.ItemTypeTransaction:
		return processing.TopicTransactions, true
	case protocol.ItemTypeAttachment, protocol.ItemTypeUserReport:
		return processing.TopicAttachments, true
	case protocol.ItemTypeSession, protocol.ItemTypeSessions:
		return processing.TopicSessions, true
	case protocol.ItemTypeStatsd, protocol.ItemTypeMetricBuckets:
		return processing.TopicMetrics, true
	case protocol.ItemTypeProfile:
		return processing.TopicProfiles, true
	case protocol.ItemTypeReplayEvent:
		return processing.TopicReplayEvents, true
	case protocol.ItemTypeReplayRecording:
		return processing.TopicReplayRecordings, true
	case protocol.ItemTypeCheckIn:
		return processing.TopicMonitors, true
	case protocol.ItemTypeSpan:
		return processing.TopicSpans, true
	default:
		return "", false
	}
}

// Forward implements Forwarder.
func (f KafkaForwarder) Forward(ctx context.Context, m *ManagedEnvelope) error {
	eventID := string(m.Envelope.EventID())
	msgs := make([]processing.Message, 0, len(m.Envelope.Items))
	for _, item := range m.Envelope.Items {
		topic, ok := TopicForItem(item.Type())
		if !ok {
			f.Loggers.Warnf(logMsgUnknownItemDropped, item.Type())
			continue
		}
		value, err := json.Marshal(KafkaMessage{
			Type:           item.Type(),
			EventID:        eventID,
			ProjectID:      uint64(m.Scoping.ProjectID),
			OrganizationID: m.Scoping.OrganizationID,
			KeyID:          m.Scoping.KeyID,
			StartTime:      m.Meta.ReceivedAt.Unix(),
			RemoteAddr:     m.Meta.RemoteAddr,
			Headers:        item.Headers,
			Payload:        item.Payload,
		})
		if err != nil {
			return err
		}
		msgs = append(msgs, processing.Message{
			Topic: topic,
			Key:   processing.KeyForEvent(eventID, m.Scoping.ProjectID),
			Value: value,
		})
	}
	if len(msgs) == 0 {
		return nil
	}
	return f.Producer.Produce(ctx, msgs...)
}
