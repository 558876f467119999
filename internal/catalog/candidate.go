// Copyright 2026 The switchAILocal Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package catalog discovers zero-cost models from the provider's model listing
// and orders them by capability.
package catalog

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/traylinx/switchAIFree/internal/util"
)

// Candidate is a free model listed by the provider. Values are immutable once built.
type Candidate struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	ContextTokens int    `json:"context_tokens"`
}

// flatContextKeys are probed in order before nestedContextPaths.
var flatContextKeys = []string{
	"context_length",
	"context_window",
	"max_context_tokens",
	"input_max_tokens",
	"max_input_tokens",
	"max_output_tokens",
	"tokens",
}

var nestedContextPaths = []string{
	"limits.context_length",
	"limits.max_context",
	"limits.max_input_tokens",
	"usage.max_tokens",
}

// ParseCandidates extracts free candidates from a catalog body shaped like {"data":[...]}.
// Entries that are malformed, priced, or lack the free marker are skipped.
func ParseCandidates(body []byte) ([]Candidate, error) {
	if !gjson.ValidBytes(body) {
		return nil, errInvalidCatalog
	}
	data := gjson.GetBytes(body, "data")
	if !data.IsArray() {
		return nil, errInvalidCatalog
	}

	out := make([]Candidate, 0)
	data.ForEach(func(_, entry gjson.Result) bool {
		if c, ok := candidateFrom(entry); ok {
			out = append(out, c)
		}
		return true
	})
	return out, nil
}

func candidateFrom(entry gjson.Result) (Candidate, bool) {
	if !entry.IsObject() {
		return Candidate{}, false
	}
	id := strings.TrimSpace(entry.Get("id").String())
	if id == "" {
		return Candidate{}, false
	}
	name := entry.Get("name").String()
	if !util.HasFreeMarker(id, name) {
		return Candidate{}, false
	}
	if !isZeroPrice(entry.Get("pricing.prompt")) || !isZeroPrice(entry.Get("pricing.completion")) {
		return Candidate{}, false
	}
	if strings.TrimSpace(name) == "" {
		name = id
	}
	return Candidate{ID: id, Name: name, ContextTokens: ContextTokens(entry)}, true
}

// isZeroPrice reports whether a pricing field parses to exactly zero.
// Absent or unparsable fields never count as free.
func isZeroPrice(v gjson.Result) bool {
	var f float64
	switch v.Type {
	case gjson.Number:
		f = v.Float()
	case gjson.String:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v.Str), 64)
		if err != nil {
			return false
		}
		f = parsed
	default:
		return false
	}
	return !math.IsNaN(f) && f == 0
}

// ContextTokens returns the first positive context size found on a catalog entry, or 0.
func ContextTokens(entry gjson.Result) int {
	for _, key := range flatContextKeys {
		if n := coerceTokens(entry.Get(key)); n > 0 {
			return n
		}
	}
	for _, path := range nestedContextPaths {
		if n := coerceTokens(entry.Get(path)); n > 0 {
			return n
		}
	}
	return 0
}

func coerceTokens(v gjson.Result) int {
	switch v.Type {
	case gjson.Number:
		if v.Num < 0 || math.IsNaN(v.Num) || math.IsInf(v.Num, 0) {
			return 0
		}
		return int(v.Num)
	case gjson.String:
		s := strings.TrimSpace(v.Str)
		if s == "" {
			return 0
		}
		for _, r := range s {
			if r < '0' || r > '9' {
				return 0
			}
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}

// Rank orders candidates by ContextTokens descending, then ID ascending.
// The input slice is not modified.
func Rank(candidates []Candidate) []Candidate {
	ranked := make([]Candidate, len(candidates))
	copy(ranked, candidates)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].ContextTokens != ranked[j].ContextTokens {
			return ranked[i].ContextTokens > ranked[j].ContextTokens
		}
		return ranked[i].ID < ranked[j].ID
	})
	return ranked
}
