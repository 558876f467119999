// Copyright 2026 The switchAILocal Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package catalog

import (
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/tidwall/sjson"
)

func TestProperty_RankIsSortedAndTotal(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("ranked output is ordered by context desc then id asc", prop.ForAll(
		func(ids []string, sizes []int) bool {
			n := min(len(ids), len(sizes))
			in := make([]Candidate, 0, n)
			for i := 0; i < n; i++ {
				in = append(in, Candidate{ID: ids[i], ContextTokens: sizes[i]})
			}
			ranked := Rank(in)
			if len(ranked) != len(in) {
				return false
			}
			for i := 1; i < len(ranked); i++ {
				prev, cur := ranked[i-1], ranked[i]
				if prev.ContextTokens < cur.ContextTokens {
					return false
				}
				if prev.ContextTokens == cur.ContextTokens && prev.ID > cur.ID {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.Identifier()),
		gen.SliceOf(gen.IntRange(0, 4)),
	))

	properties.Property("ranking is independent of input order", prop.ForAll(
		func(ids []string, sizes []int) bool {
			n := min(len(ids), len(sizes))
			in := make([]Candidate, 0, n)
			for i := 0; i < n; i++ {
				in = append(in, Candidate{ID: fmt.Sprintf("%s-%d", ids[i], i), ContextTokens: sizes[i]})
			}
			rev := make([]Candidate, len(in))
			for i := range in {
				rev[len(in)-1-i] = in[i]
			}
			a, b := Rank(in), Rank(rev)
			for i := range a {
				if a[i] != b[i] {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.Identifier()),
		gen.SliceOf(gen.IntRange(0, 4)),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestProperty_CatalogOnlyAdmitsFreeZeroCost(t *testing.T) {
	properties := gopter.NewProperties(nil)

	prices := []interface{}{"0", "0.0", "0.000001", "", "abc", 0, 1.5}
	names := []string{"Free Model", "Pro Model", ""}
	suffixes := []string{":free", ":beta", "-FREE", ""}

	properties.Property("admitted entries are zero-cost and free-tagged", prop.ForAll(
		func(picks []int) bool {
			body := `{"data":[]}`
			type entry struct {
				free bool
				zero bool
			}
			expected := map[string]entry{}
			for i := 0; i+3 < len(picks); i += 4 {
				id := "p/model" + strconv.Itoa(i) + suffixes[picks[i]%len(suffixes)]
				name := names[picks[i+1]%len(names)]
				prompt := prices[picks[i+2]%len(prices)]
				completion := prices[picks[i+3]%len(prices)]

				idx := strconv.Itoa(i / 4)
				body, _ = sjson.Set(body, "data."+idx+".id", id)
				body, _ = sjson.Set(body, "data."+idx+".name", name)
				body, _ = sjson.Set(body, "data."+idx+".pricing.prompt", prompt)
				body, _ = sjson.Set(body, "data."+idx+".pricing.completion", completion)

				expected[id] = entry{
					free: strings.Contains(strings.ToLower(id+name), "free"),
					zero: isZeroLiteral(prompt) && isZeroLiteral(completion),
				}
			}

			got, err := ParseCandidates([]byte(body))
			if err != nil {
				return false
			}
			admitted := map[string]bool{}
			for _, c := range got {
				e, ok := expected[c.ID]
				if !ok || !e.free || !e.zero {
					return false
				}
				admitted[c.ID] = true
			}
			for id, e := range expected {
				if e.free && e.zero && !admitted[id] {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, 100)),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func isZeroLiteral(v interface{}) bool {
	switch p := v.(type) {
	case string:
		return p == "0" || p == "0.0"
	case int:
		return p == 0
	default:
		return false
	}
}
