// Copyright 2026 The switchAILocal Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package sanitize

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

func defaultOptions() Options {
	return Options{
		CurrentYear:     "2025",
		RewriteHashtags: []string{"Trump"},
		DropHashtags:    []string{"Biden"},
	}
}

func TestSanitize_ThinkBlockScenario(t *testing.T) {
	s := New(defaultOptions())
	assert.Equal(t, "SAD! FAKE NEWS!", s.Sanitize("<think>plan</think>SAD! FAKE NEWS!"))
}

func TestStepOrder(t *testing.T) {
	assert.Equal(t, []string{
		"strip_think_blocks",
		"space_emphasis",
		"trim_leading_dashes",
		"strip_preamble",
		"strip_disclaimer",
		"strip_trailing_emphasis",
		"blockquotes_to_newlines",
		"rewrite_hashtags",
		"strip_meta_tail",
		"trim",
	}, New(defaultOptions()).StepNames())
}

func TestStripThinkBlocks(t *testing.T) {
	assert.Equal(t, "A B", StripThinkBlocks("A <think>x</think>B"))
	assert.Equal(t, "A ", StripThinkBlocks("A <THINK reason=1>never closed\nmore"))
	assert.Equal(t, "ok", StripThinkBlocks("< think >a</ think >ok"))
}

func TestSpaceEmphasis(t *testing.T) {
	assert.Equal(t, "** BIG** ", SpaceEmphasis("**BIG**"+" "))
	assert.Equal(t, "__ x", SpaceEmphasis("__x"))
	assert.Equal(t, "* a", SpaceEmphasis("*a"))
	assert.Equal(t, "* a", SpaceEmphasis(SpaceEmphasis("*a")))
}

func TestTrimLeadingDashes(t *testing.T) {
	assert.Equal(t, "Hello", TrimLeadingDashes("  -- \n Hello "))
	assert.Equal(t, "-Hello", TrimLeadingDashes("-Hello"))
}

func TestStripPreamble(t *testing.T) {
	assert.Equal(t, "MAKE IT GREAT.", StripPreamble("Okay, here's the post in Trump style:\nMAKE IT GREAT."))
	assert.Equal(t, "MAKE IT GREAT.", StripPreamble("Sure! Here is a Truth Social post\nMAKE IT GREAT."))
	assert.Equal(t, "Okay folks, big day.", StripPreamble("Okay folks, big day."))
}

func TestStripDisclaimer(t *testing.T) {
	assert.Equal(t, "TREMENDOUS. ", StripDisclaimer("TREMENDOUS. Disclaimer: satire\nmore"))
	assert.Equal(t, "TREMENDOUS. ", StripDisclaimer("TREMENDOUS. DISCLAIMER：satire"))
	assert.Equal(t, "no disclaimer here", StripDisclaimer("no disclaimer here"))
}

func TestStripTrailingEmphasis(t *testing.T) {
	assert.Equal(t, "WINNING", StripTrailingEmphasis("WINNING** "))
	assert.Equal(t, "WINNING", StripTrailingEmphasis("WINNING*"))
}

func TestBlockquotesToNewlines(t *testing.T) {
	assert.Equal(t, "quote\n\n line", BlockquotesToNewlines("> quote\n> line"))
}

func TestHashtagRewriter(t *testing.T) {
	step := HashtagRewriter(defaultOptions())
	assert.Equal(t, "Vote #Trump2025 now ", step("Vote #trump2024 now #Biden2020"))
	assert.Equal(t, "#Trump is fine", step("#Trump is fine"))

	custom := HashtagRewriter(Options{CurrentYear: "2031", RewriteHashtags: []string{"#MAGA"}})
	assert.Equal(t, "#MAGA2031 #Biden2024", custom("#maga2028 #Biden2024"))
}

func TestStripMetaTail(t *testing.T) {
	assert.Equal(t, "POST.", StripMetaTail("POST.\n---\nThis was generated for fun."))
	assert.Equal(t, "POST.", StripMetaTail("POST.\n  -----  "))
	assert.Equal(t, "POST. ", StripMetaTail("POST. IMPORTANT: satire"))
	assert.Equal(t, "POST. ", StripMetaTail("POST. This is a fictional exercise, relax."))
	assert.Equal(t, "POST. ", StripMetaTail("POST. the content is OFFENSIVE to some"))
	assert.Equal(t, "an important day---truly", StripMetaTail("an important day---truly"))
	assert.Equal(t, "SAD!\n", StripMetaTail("SAD!\nImportant: this is satire written by an AI."))
	assert.Equal(t, "SAD!\n", StripMetaTail("SAD!\n  importantly, none of this happened"))
	assert.Equal(t, "WINNING. ", StripMetaTail("WINNING. IMPORTANTLY, this is parody."))
	assert.Equal(t, "We had an Important meeting.", StripMetaTail("We had an Important meeting."))
}

func TestSanitize_FullCleanup(t *testing.T) {
	s := New(defaultOptions())
	in := "<think>draft it</think>\n -- Okay, here's a Truth Social post:\n" +
		"> CHINA is **LOSING** BIG! #Trump2024 #Biden2024\n---\nNote: satire. Disclaimer: not real"
	got := s.Sanitize(in)
	assert.Equal(t, "CHINA is ** LOSING** BIG! #Trump2025", got)
	assert.NotContains(t, got, "<think>")
}

func TestSanitize_EmptyInput(t *testing.T) {
	assert.Equal(t, "", New(defaultOptions()).Sanitize("   "))
	assert.Equal(t, "", New(defaultOptions()).Sanitize("<think>only reasoning"))
}

func TestProperty_SanitizeIdempotent(t *testing.T) {
	s := New(defaultOptions())
	properties := gopter.NewProperties(nil)

	fragments := []string{
		"<think>", "</think>", "**", "__", "*", "> ", "---", "\n", " -- ",
		"Okay, the post", "Disclaimer:", "IMPORTANT", "#Trump2024", "#Biden2019",
		"This is a fictional exercise", "SAD!", "FAKE NEWS", "folks", "  ",
	}

	properties.Property("sanitize(sanitize(x)) == sanitize(x) for fragment soup", prop.ForAll(
		func(picks []int) bool {
			var b strings.Builder
			for _, p := range picks {
				b.WriteString(fragments[p%len(fragments)])
			}
			once := s.Sanitize(b.String())
			return s.Sanitize(once) == once
		},
		gen.SliceOf(gen.IntRange(0, 1000)),
	))

	properties.Property("sanitize(sanitize(x)) == sanitize(x) for arbitrary strings", prop.ForAll(
		func(x string) bool {
			once := s.Sanitize(x)
			return s.Sanitize(once) == once
		},
		gen.AnyString(),
	))

	properties.Property("output never contains an opening think tag", prop.ForAll(
		func(a, b string) bool {
			return !strings.Contains(strings.ToLower(s.Sanitize(a+"<think>"+b)), "<think")
		},
		gen.AlphaString(),
		gen.AlphaString(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}
