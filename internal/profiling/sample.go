package profiling

import (
	"encoding/json"
	"strconv"
)

const sampleFormatVersion = "1"

// ExpandProfile parses, validates and normalizes a sampled profile and returns it re-serialized.
func ExpandProfile(payload []byte) ([]byte, error) {
	profile, err := ParseSampleProfile(payload)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(profile)
	if err != nil {
		return nil, ErrCannotSerializePayload
	}
	return data, nil
}

// ParseSampleProfile parses and normalizes a sampled profile.
func ParseSampleProfile(payload []byte) (*SampleProfile, error) {
	var p SampleProfile
	// The format version is part of the schema, so an unknown one is a decoding failure.
	if err := json.Unmarshal(payload, &p); err != nil || p.EventID == "" || p.Timestamp.IsZero() ||
		p.Version != sampleFormatVersion {
		return nil, ErrInvalidJSON
	}
	if !p.hasPlatformMetadata() {
		return nil, ErrMissingProfileMetadata
	}
	if !p.hasValidDebugMeta() {
		return nil, ErrInvalidDebugMeta
	}

	if p.Transaction == nil && len(p.Transactions) > 0 {
		t := p.Transactions[0]
		p.Transaction = &t
	}
	p.Transactions = nil
	if p.Transaction == nil {
		return nil, ErrNoTransactionAssociated
	}
	if !p.Transaction.valid() {
		return nil, ErrInvalidTransactionMetadata
	}

	if t := p.Transaction; t.RelativeEndNS > 0 {
		kept := p.Profile.Samples[:0]
		for _, s := range p.Profile.Samples {
			if s.ElapsedSinceStartNS >= t.RelativeStartNS && s.ElapsedSinceStartNS <= t.RelativeEndNS {
				kept = append(kept, s)
			}
		}
		p.Profile.Samples = kept
	}

	p.removeIdleSamplesAtTheEdge()
	p.removeSingleSamplesPerThread()

	if len(p.Profile.Samples) == 0 {
		return nil, ErrNotEnoughSamples
	}
	if !p.checkSamples() {
		return nil, ErrMalformedSamples
	}
	if !p.checkStacks() {
		return nil, ErrMalformedStacks
	}

	p.stripPointerAuthenticationCode()
	p.cleanupThreadMetadata()
	p.cleanupQueueMetadata()
	return &p, nil
}

// Cocoa profiles need complete device metadata.
func (p *SampleProfile) hasPlatformMetadata() bool {
	if p.Platform != "cocoa" {
		return true
	}
	d := p.Device
	return p.OS.BuildNumber != nil && d.IsEmulator != nil && d.Locale != nil &&
		d.Manufacturer != nil && d.Model != nil
}

func (p *SampleProfile) hasValidDebugMeta() bool {
	if p.DebugMeta == nil {
		return true
	}
	for _, raw := range p.DebugMeta.Images {
		var image struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(raw, &image); err != nil || image.Type == "" {
			return false
		}
	}
	return true
}

func (p *SampleProfile) stackIsEmpty(s Sample) bool {
	if s.StackID < 0 || s.StackID >= len(p.Profile.Stacks) {
		return true
	}
	return len(p.Profile.Stacks[s.StackID]) == 0
}

// removeIdleSamplesAtTheEdge drops the samples before the first and after the last sample
// with a non-empty stack. If no sample has a stack, nothing is dropped.
func (p *SampleProfile) removeIdleSamplesAtTheEdge() {
	samples := p.Profile.Samples
	start := -1
	for i, s := range samples {
		if !p.stackIsEmpty(s) {
			start = i
			break
		}
	}
	if start < 0 {
		return
	}
	end := start
	for i := len(samples) - 1; i >= start; i-- {
		if !p.stackIsEmpty(samples[i]) {
			end = i
			break
		}
	}
	p.Profile.Samples = samples[start : end+1]
}

// removeSingleSamplesPerThread drops threads with only one sample, since no duration can be
// computed for them.
func (p *SampleProfile) removeSingleSamplesPerThread() {
	counts := make(map[flexUint64]int)
	for _, s := range p.Profile.Samples {
		counts[s.ThreadID]++
	}
	kept := p.Profile.Samples[:0]
	for _, s := range p.Profile.Samples {
		if counts[s.ThreadID] > 1 {
			kept = append(kept, s)
		}
	}
	p.Profile.Samples = kept
}

func (p *SampleProfile) checkSamples() bool {
	for _, s := range p.Profile.Samples {
		if s.StackID < 0 || s.StackID >= len(p.Profile.Stacks) {
			return false
		}
	}
	return true
}

func (p *SampleProfile) checkStacks() bool {
	for _, stack := range p.Profile.Stacks {
		for _, frameID := range stack {
			if frameID < 0 || frameID >= len(p.Profile.Frames) {
				return false
			}
		}
	}
	return true
}

func (p *SampleProfile) stripPointerAuthenticationCode() {
	if p.Platform != "cocoa" {
		return
	}
	if arch := p.Device.Architecture; arch != "arm64" && arch != "arm64e" {
		return
	}
	for i := range p.Profile.Frames {
		if addr := p.Profile.Frames[i].InstructionAddr; addr != nil {
			stripped := *addr & pointerAuthMask
			p.Profile.Frames[i].InstructionAddr = &stripped
		}
	}
}

func (p *SampleProfile) cleanupThreadMetadata() {
	if p.Profile.ThreadMetadata == nil {
		return
	}
	threads := make(map[string]bool)
	for _, s := range p.Profile.Samples {
		threads[strconv.FormatUint(uint64(s.ThreadID), 10)] = true
	}
	for id := range p.Profile.ThreadMetadata {
		if !threads[id] {
			delete(p.Profile.ThreadMetadata, id)
		}
	}
}

func (p *SampleProfile) cleanupQueueMetadata() {
	if p.Profile.QueueMetadata == nil {
		return
	}
	queues := make(map[string]bool)
	for _, s := range p.Profile.Samples {
		if s.QueueAddress != nil {
			queues[*s.QueueAddress] = true
		}
	}
	for addr := range p.Profile.QueueMetadata {
		if !queues[addr] {
			delete(p.Profile.QueueMetadata, addr)
		}
	}
}
