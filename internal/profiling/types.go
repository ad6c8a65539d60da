package profiling

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// pointerAuthMask clears the pointer authentication code of arm64e instruction addresses.
const pointerAuthMask = 0x0000000FFFFFFFFF

// Addr is an instruction address. It is written as a hexadecimal string.
type Addr uint64

// MarshalJSON implements json.Marshaler.
func (a Addr) MarshalJSON() ([]byte, error) {
	return json.Marshal(fmt.Sprintf("0x%x", uint64(a)))
}

// UnmarshalJSON accepts a hexadecimal string or a number.
func (a *Addr) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		var n uint64
		if err := json.Unmarshal(data, &n); err != nil {
			return err
		}
		*a = Addr(n)
		return nil
	}
	n, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(s), "0x"), 16, 64)
	if err != nil {
		return err
	}
	*a = Addr(n)
	return nil
}

// flexUint64 accepts a JSON number or a string of digits.
type flexUint64 uint64

func (n flexUint64) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatUint(uint64(n), 10)), nil
}

func (n *flexUint64) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		v, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return err
		}
		*n = flexUint64(v)
		return nil
	}
	var v uint64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*n = flexUint64(v)
	return nil
}

// Frame is one stack frame.
type Frame struct {
	AbsPath         *string `json:"abs_path,omitempty"`
	Colno           *uint32 `json:"colno,omitempty"`
	Filename        *string `json:"filename,omitempty"`
	Function        *string `json:"function,omitempty"`
	InApp           *bool   `json:"in_app,omitempty"`
	InstructionAddr *Addr   `json:"instruction_addr,omitempty"`
	Lineno          *uint32 `json:"lineno,omitempty"`
	Module          *string `json:"module,omitempty"`
}

type frameAliases struct {
	Column *uint32 `json:"column"`
	File   *string `json:"file"`
	Name   *string `json:"name"`
	Line   *uint32 `json:"line"`
}

// UnmarshalJSON accepts "column", "file", "name" and "line" as aliases.
func (f *Frame) UnmarshalJSON(data []byte) error {
	type plain Frame
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	var aliases frameAliases
	if err := json.Unmarshal(data, &aliases); err != nil {
		return err
	}
	if p.Colno == nil {
		p.Colno = aliases.Column
	}
	if p.Filename == nil {
		p.Filename = aliases.File
	}
	if p.Function == nil {
		p.Function = aliases.Name
	}
	if p.Lineno == nil {
		p.Lineno = aliases.Line
	}
	*f = Frame(p)
	return nil
}

// Sample is one observation of a thread's stack.
type Sample struct {
	StackID             int        `json:"stack_id"`
	ThreadID            flexUint64 `json:"thread_id"`
	ElapsedSinceStartNS flexUint64 `json:"elapsed_since_start_ns"`
	QueueAddress        *string    `json:"queue_address,omitempty"`
}

// ThreadMetadata describes a thread.
type ThreadMetadata struct {
	Name     *string `json:"name,omitempty"`
	Priority *uint32 `json:"priority,omitempty"`
}

// QueueMetadata describes a dispatch queue.
type QueueMetadata struct {
	Label string `json:"label"`
}

// Profile holds the samples and the stacks and frames they reference.
type Profile struct {
	Samples        []Sample                  `json:"samples"`
	Stacks         [][]int                   `json:"stacks"`
	Frames         []Frame                   `json:"frames"`
	ThreadMetadata map[string]ThreadMetadata `json:"thread_metadata,omitempty"`
	QueueMetadata  map[string]QueueMetadata  `json:"queue_metadata,omitempty"`
}

// OSMetadata describes the operating system.
type OSMetadata struct {
	Name        string  `json:"name"`
	Version     string  `json:"version"`
	BuildNumber *string `json:"build_number,omitempty"`
}

// DeviceMetadata describes the device.
type DeviceMetadata struct {
	Architecture string  `json:"architecture"`
	IsEmulator   *bool   `json:"is_emulator,omitempty"`
	Locale       *string `json:"locale,omitempty"`
	Manufacturer *string `json:"manufacturer,omitempty"`
	Model        *string `json:"model,omitempty"`
}

// DebugMeta lists the native images of the profiled process.
type DebugMeta struct {
	Images []json.RawMessage `json:"images"`
}

// TransactionMetadata links a profile to the transaction it was recorded for.
type TransactionMetadata struct {
	ID                 string     `json:"id"`
	TraceID            string     `json:"trace_id"`
	Name               string     `json:"name"`
	ActiveThreadID     flexUint64 `json:"active_thread_id"`
	RelativeStartNS    flexUint64 `json:"relative_start_ns"`
	RelativeEndNS      flexUint64 `json:"relative_end_ns"`
	RelativeCPUStartMS flexUint64 `json:"relative_cpu_start_ms"`
	RelativeCPUEndMS   flexUint64 `json:"relative_cpu_end_ms"`
}

func (t TransactionMetadata) valid() bool {
	if t.ID == "" || t.TraceID == "" || t.Name == "" {
		return false
	}
	return t.RelativeEndNS == 0 || t.RelativeStartNS <= t.RelativeEndNS
}

// SampleProfile is a profile in the sample format.
type SampleProfile struct {
	Version      string                     `json:"version"`
	DebugMeta    *DebugMeta                 `json:"debug_meta,omitempty"`
	Device       DeviceMetadata             `json:"device"`
	OS           OSMetadata                 `json:"os"`
	Runtime      json.RawMessage            `json:"runtime,omitempty"`
	Environment  string                     `json:"environment,omitempty"`
	EventID      string                     `json:"event_id"`
	Platform     string                     `json:"platform"`
	Profile      Profile                    `json:"profile"`
	Release      string                     `json:"release"`
	Timestamp    time.Time                  `json:"timestamp"`
	Transactions []TransactionMetadata      `json:"transactions,omitempty"`
	Transaction  *TransactionMetadata       `json:"transaction,omitempty"`
	Measurements map[string]json.RawMessage `json:"measurements,omitempty"`
}

// UnmarshalJSON accepts "profile_id" as an alias of "event_id".
func (p *SampleProfile) UnmarshalJSON(data []byte) error {
	type plain SampleProfile
	var out plain
	if err := json.Unmarshal(data, &out); err != nil {
		return err
	}
	if out.EventID == "" {
		var alias struct {
			ProfileID string `json:"profile_id"`
		}
		if err := json.Unmarshal(data, &alias); err != nil {
			return err
		}
		out.EventID = alias.ProfileID
	}
	*p = SampleProfile(out)
	return nil
}
