package extraction

import (
	"math"

	"github.com/eventrelay/relay/internal/basictypes"
	"github.com/eventrelay/relay/internal/protocol"
)

var mobilePlatforms = map[string]bool{"cocoa": true, "android": true, "react-native": true, "flutter": true} //nolint:gochecknoglobals

// Span is a span payload prepared for metric extraction. Fields are addressed as "span.<field>".
type Span struct {
	Fields    protocol.Object
	Timestamp basictypes.UnixTimestamp
}

// GetValue implements protocol.Getter.
func (s Span) GetValue(key string) (protocol.Value, bool) {
	if key == "span" {
		return s.Fields, true
	}
	return nil, false
}

// Keys implements protocol.Getter.
func (s Span) Keys() []string { return []string{"span"} }

// NewSpan wraps a standalone span payload.
func NewSpan(fields protocol.Object, fallback basictypes.UnixTimestamp) Span {
	return Span{Fields: fields, Timestamp: timestampOf(fields, fallback)}
}

// SpansFromTransaction returns the spans of a transaction event, including the transaction's
// own root span. Fields of the transaction that tags are read from are copied into each span's
// "data" object unless the span already sets them.
func SpansFromTransaction(event protocol.Object, fallback basictypes.UnixTimestamp) []Span {
	shared := protocol.Object{}
	for _, field := range []string{"environment", "release", "transaction"} {
		if s, ok := event.StringField(field); ok {
			shared[field] = s
		}
	}
	if op, ok := protocol.GetPath(event, "contexts.trace.op"); ok {
		shared["transaction.op"] = op
	}
	if method, ok := protocol.GetPath(event, "request.method"); ok {
		shared["transaction.method"] = method
	}
	if class, ok := protocol.GetPath(event, "contexts.device.class"); ok {
		shared["device.class"] = class
	}
	if platform, _ := event.StringField("platform"); mobilePlatforms[platform] {
		shared["mobile"] = true
	}

	var ret []Span
	if trace, ok := protocol.GetPath(event, "contexts.trace"); ok {
		if traceObj, ok := trace.(protocol.Object); ok {
			root := protocol.Object{}
			for k, v := range traceObj {
				root[k] = v
			}
			if _, ok := root["exclusive_time"]; !ok {
				if d, ok := transactionDuration(event); ok {
					root["exclusive_time"] = d
				}
			}
			if ts, ok := event["timestamp"]; ok {
				root["timestamp"] = ts
			}
			ret = append(ret, NewSpan(withSharedData(root, shared), fallback))
		}
	}
	if spans, ok := event["spans"].(protocol.Array); ok {
		for _, raw := range spans {
			if span, ok := raw.(protocol.Object); ok {
				ret = append(ret, NewSpan(withSharedData(span, shared), fallback))
			}
		}
	}
	return ret
}

func withSharedData(span protocol.Object, shared protocol.Object) protocol.Object {
	out := make(protocol.Object, len(span)+1)
	for k, v := range span {
		out[k] = v
	}
	data := protocol.Object{}
	if existing, ok := span["data"].(protocol.Object); ok {
		for k, v := range existing {
			data[k] = v
		}
	}
	for k, v := range shared {
		if _, ok := data[k]; !ok {
			data[k] = v
		}
	}
	out["data"] = data
	return out
}

func transactionDuration(event protocol.Object) (float64, bool) {
	start, ok1 := protocol.AsFloat(event["start_timestamp"])
	end, ok2 := protocol.AsFloat(event["timestamp"])
	if !ok1 || !ok2 || end < start {
		return 0, false
	}
	return (end - start) * 1000, true
}

func timestampOf(fields protocol.Object, fallback basictypes.UnixTimestamp) basictypes.UnixTimestamp {
	if f, ok := protocol.AsFloat(fields["timestamp"]); ok && f > 0 {
		return basictypes.UnixTimestamp(math.Floor(f))
	}
	return fallback
}
