// Copyright 2026 The switchAILocal Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package quality classifies accepted model output. It flags replies that
// refuse the task and replies that expose the model's internal deliberation.
package quality

import "strings"

// Verdict is the classification of a reply.
type Verdict string

const (
	// VerdictOK means the reply is usable.
	VerdictOK Verdict = "ok"
	// VerdictRefusal means the model declined the task.
	VerdictRefusal Verdict = "refusal"
	// VerdictReasoningLeak means the model exposed its internal reasoning.
	VerdictReasoningLeak Verdict = "reasoning_leak"
)

// Signal is one matched marker phrase.
type Signal struct {
	Verdict Verdict `json:"verdict"`
	Marker  string  `json:"marker"`
}

// RefusalMarkers are lower-case apology and refusal phrases.
var RefusalMarkers = []string{
	"i'm sorry",
	"i am sorry",
	"sorry, i can't",
	"sorry, i cannot",
	"sorry but i can't",
	"can't comply",
	"cannot comply",
	"can't assist",
	"cannot assist",
	"i can't help with",
	"i cannot help with",
	"i can't provide",
	"i cannot provide",
	"i can't fulfill",
	"i cannot fulfill",
	"against my policy",
	"against our policy",
	"against policy",
	"due to policy",
	"violates policy",
	"policy guidelines",
	"content policy",
	"moderation guidelines",
	"i must refuse",
	"i have to refuse",
	"cannot generate that",
	"i cannot generate",
	"not able to comply",
	"decline to comply",
	"sorry but i won't",
	"i won't do that request",
}

// ReasoningMarkers are lower-case meta-commentary phrases.
var ReasoningMarkers = []string{
	"the user wants",
	"the instruction says",
	"the user is asking",
	"let me think",
	"let's think",
	"analysis:",
	"reasoning:",
	"thought process",
	"deliberation:",
	"step by step reasoning",
	"internal reasoning",
}

// Detector matches text against fixed marker lists. The zero value is not usable; use NewDetector.
type Detector struct {
	refusal   []string
	reasoning []string
}

// NewDetector creates a detector with the default marker lists.
func NewDetector() *Detector {
	return &Detector{refusal: RefusalMarkers, reasoning: ReasoningMarkers}
}

// DetectSignals returns every matched marker. Refusal markers are listed first.
func (d *Detector) DetectSignals(text string) []Signal {
	lowered := strings.ToLower(text)
	var signals []Signal
	for _, m := range d.refusal {
		if strings.Contains(lowered, m) {
			signals = append(signals, Signal{Verdict: VerdictRefusal, Marker: m})
		}
	}
	for _, m := range d.reasoning {
		if strings.Contains(lowered, m) {
			signals = append(signals, Signal{Verdict: VerdictReasoningLeak, Marker: m})
		}
	}
	return signals
}

// Classify returns the verdict for text and the first matched marker.
// Refusal takes precedence over a reasoning leak.
func (d *Detector) Classify(text string) (Verdict, string) {
	if m, ok := d.IsRefusal(text); ok {
		return VerdictRefusal, m
	}
	if m, ok := d.HasReasoningLeak(text); ok {
		return VerdictReasoningLeak, m
	}
	return VerdictOK, ""
}

// IsRefusal reports whether text contains a refusal marker.
func (d *Detector) IsRefusal(text string) (string, bool) {
	return firstMatch(strings.ToLower(text), d.refusal)
}

// HasReasoningLeak reports whether text contains a reasoning marker.
func (d *Detector) HasReasoningLeak(text string) (string, bool) {
	return firstMatch(strings.ToLower(text), d.reasoning)
}

func firstMatch(lowered string, markers []string) (string, bool) {
	for _, m := range markers {
		if strings.Contains(lowered, m) {
			return m, true
		}
	}
	return "", false
}
