// Copyright 2026 The switchAILocal Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package sanitize cleans accepted model output for chat display.
//
// The transform is an ordered list of named steps. Each step is a pure
// function of its input and can be exercised on its own through Step.Apply.
// The pipeline is repeated until the text stops changing, which makes
// Sanitize idempotent even when one step exposes work for an earlier one.
package sanitize

import (
	"regexp"
	"strings"
)

// maxPasses bounds fixpoint iteration.
const maxPasses = 32

// Step is one named text rewrite.
type Step struct {
	Name  string
	Apply func(string) string
}

// Options configures the hashtag step.
type Options struct {
	// CurrentYear replaces the year on rewritten hashtags.
	CurrentYear string
	// RewriteHashtags are stems whose year suffix is refreshed.
	RewriteHashtags []string
	// DropHashtags are stems removed entirely when year-tagged.
	DropHashtags []string
}

// Sanitizer applies the ordered steps.
type Sanitizer struct {
	steps []Step
}

var (
	thinkBlockRe    = regexp.MustCompile(`(?is)<\s*think[^>]*>.*?(?:<\s*/\s*think\s*>|$)`)
	emphasisRe      = regexp.MustCompile(`(\*\*|__|\*)([^\s*])`)
	leadingDashesRe = regexp.MustCompile(`^[-\s]{2,}`)
	preambleRe      = regexp.MustCompile(`(?i)^(respond with|okay|sure)[^\n]*?(post|style)[^\n]*\n?`)
	disclaimerRe    = regexp.MustCompile(`(?is)disclaimer[:：*].*`)
	trailingStarsRe = regexp.MustCompile(`\*{1,2}\s*$`)
	separatorTailRe = regexp.MustCompile(`(?s)(?:^|\n)[ \t]*-{3,}[ \t]*(?:\n.*)?$`)
	importantTailRe = regexp.MustCompile(`(?s)(?:\bIMPORTANT|(?im:^[ \t]*important)).*`)
	fictionalTailRe = regexp.MustCompile(`(?is)(this is a fictional exercise|the content is offensive).*`)
)

// New builds a sanitizer from opts.
func New(opts Options) *Sanitizer {
	return &Sanitizer{steps: Steps(opts)}
}

// Steps returns the ordered pipeline for opts.
func Steps(opts Options) []Step {
	return []Step{
		{Name: "strip_think_blocks", Apply: StripThinkBlocks},
		{Name: "space_emphasis", Apply: SpaceEmphasis},
		{Name: "trim_leading_dashes", Apply: TrimLeadingDashes},
		{Name: "strip_preamble", Apply: StripPreamble},
		{Name: "strip_disclaimer", Apply: StripDisclaimer},
		{Name: "strip_trailing_emphasis", Apply: StripTrailingEmphasis},
		{Name: "blockquotes_to_newlines", Apply: BlockquotesToNewlines},
		{Name: "rewrite_hashtags", Apply: HashtagRewriter(opts)},
		{Name: "strip_meta_tail", Apply: StripMetaTail},
		{Name: "trim", Apply: strings.TrimSpace},
	}
}

// StepNames returns the pipeline order.
func (s *Sanitizer) StepNames() []string {
	names := make([]string, len(s.steps))
	for i, st := range s.steps {
		names[i] = st.Name
	}
	return names
}

// Sanitize runs the pipeline until the output is stable.
func (s *Sanitizer) Sanitize(text string) string {
	for i := 0; i < maxPasses; i++ {
		next := s.pass(text)
		if next == text {
			return next
		}
		text = next
	}
	return text
}

func (s *Sanitizer) pass(text string) string {
	for _, st := range s.steps {
		text = st.Apply(text)
	}
	return text
}

// StripThinkBlocks removes <think> blocks, including an unterminated one running to the end.
func StripThinkBlocks(text string) string {
	return thinkBlockRe.ReplaceAllString(text, "")
}

// SpaceEmphasis puts a space after markdown emphasis markers that touch a word.
func SpaceEmphasis(text string) string {
	return emphasisRe.ReplaceAllString(text, "$1 $2")
}

// TrimLeadingDashes trims the text and drops a leading run of dashes and whitespace.
func TrimLeadingDashes(text string) string {
	text = strings.TrimSpace(text)
	return strings.TrimSpace(leadingDashesRe.ReplaceAllString(text, ""))
}

// StripPreamble removes a leading "okay, here's the post" style line.
func StripPreamble(text string) string {
	return preambleRe.ReplaceAllString(text, "")
}

// StripDisclaimer removes everything from a disclaimer marker to the end.
func StripDisclaimer(text string) string {
	return disclaimerRe.ReplaceAllString(text, "")
}

// StripTrailingEmphasis removes dangling emphasis markers at the end.
func StripTrailingEmphasis(text string) string {
	return strings.TrimSpace(trailingStarsRe.ReplaceAllString(text, ""))
}

// BlockquotesToNewlines turns '>' into line breaks and drops leading whitespace.
func BlockquotesToNewlines(text string) string {
	text = strings.ReplaceAll(text, ">", "\n")
	return strings.TrimLeft(text, " \t\r\n")
}

// StripMetaTail removes trailing meta-commentary: a separator line, an IMPORTANT
// note, or a fictional/offensive content disclaimer, with everything after it.
// An uppercase IMPORTANT matches anywhere; other casings only at a line start.
func StripMetaTail(text string) string {
	text = separatorTailRe.ReplaceAllString(text, "")
	text = importantTailRe.ReplaceAllString(text, "")
	return fictionalTailRe.ReplaceAllString(text, "")
}

// HashtagRewriter returns a step that refreshes stale year tags and drops unwanted ones.
func HashtagRewriter(opts Options) func(string) string {
	type rule struct {
		re   *regexp.Regexp
		repl string
	}
	var rules []rule
	for _, tag := range opts.RewriteHashtags {
		if tag = strings.TrimPrefix(strings.TrimSpace(tag), "#"); tag == "" {
			continue
		}
		rules = append(rules, rule{
			re:   regexp.MustCompile(`(?i)#` + regexp.QuoteMeta(tag) + `20\d{2}`),
			repl: "#" + tag + opts.CurrentYear,
		})
	}
	for _, tag := range opts.DropHashtags {
		if tag = strings.TrimPrefix(strings.TrimSpace(tag), "#"); tag == "" {
			continue
		}
		rules = append(rules, rule{
			re: regexp.MustCompile(`(?i)#` + regexp.QuoteMeta(tag) + `20\d{2}`),
		})
	}
	return func(text string) string {
		for _, r := range rules {
			text = r.re.ReplaceAllLiteralString(text, r.repl)
		}
		return text
	}
}
