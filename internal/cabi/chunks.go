package cabi

import (
	"errors"
	"sort"

	"github.com/eventrelay/relay/internal/protocol"

	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
)

var errBadRemarks = errors.New("remarks must be an array of [rule_id, type, start, end] arrays")

type remark struct {
	ruleID     string
	kind       string
	start, end int
}

// SplitChunks splits a scrubbed string into text and redaction chunks using the remarks recorded
// when it was scrubbed. Remarks are JSON arrays of the form [rule_id, type, start, end], where
// start and end are character offsets; remarks without a range are ignored. The result is a JSON
// array of chunk objects.
func SplitChunks(text, remarks Str) Str {
	return call(func() (Str, error) {
		parsed, err := parseRemarks(remarks.Data)
		if err != nil {
			return Str{}, err
		}
		return NewStr(string(writeChunks([]rune(text.Data), parsed))), nil
	})
}

func parseRemarks(data string) ([]remark, error) {
	value, err := protocol.ParseValue([]byte(data))
	if err != nil {
		return nil, err
	}
	list, ok := value.(protocol.Array)
	if !ok {
		return nil, errBadRemarks
	}
	var out []remark
	for _, item := range list {
		fields, ok := item.(protocol.Array)
		if !ok || len(fields) < 2 {
			return nil, errBadRemarks
		}
		ruleID, ok1 := fields[0].(string)
		kind, ok2 := fields[1].(string)
		if !ok1 || !ok2 {
			return nil, errBadRemarks
		}
		if len(fields) < 4 {
			continue
		}
		start, ok1 := fields[2].(int64)
		end, ok2 := fields[3].(int64)
		if !ok1 || !ok2 || start < 0 || end < start {
			return nil, errBadRemarks
		}
		out = append(out, remark{ruleID: ruleID, kind: kind, start: int(start), end: int(end)})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].start < out[j].start })
	return out, nil
}

func writeChunks(text []rune, remarks []remark) []byte {
	w := jwriter.NewWriter()
	arr := w.Array()
	pos := 0
	for _, r := range remarks {
		if r.start < pos || r.start >= len(text) {
			continue
		}
		end := r.end
		if end > len(text) {
			end = len(text)
		}
		if r.start > pos {
			writeTextChunk(&w, string(text[pos:r.start]))
		}
		obj := w.Object()
		obj.Name("type").String("redaction")
		obj.Name("text").String(string(text[r.start:end]))
		obj.Name("rule_id").String(r.ruleID)
		obj.Name("remark").String(r.kind)
		obj.End()
		pos = end
	}
	if pos < len(text) {
		writeTextChunk(&w, string(text[pos:]))
	}
	arr.End()
	return w.Bytes()
}

func writeTextChunk(w *jwriter.Writer, text string) {
	obj := w.Object()
	obj.Name("type").String("text")
	obj.Name("text").String(text)
	obj.End()
}
