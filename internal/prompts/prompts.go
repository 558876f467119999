// Copyright 2026 The switchAILocal Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package prompts builds the system and user prompts sent for each request kind.
package prompts

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// DefaultTopic is used when a topic request carries no topic.
const DefaultTopic = "the fake news media"

// FallbackPost is returned by SelectValidPost when there is nothing to choose from.
const FallbackPost = "Trump posted something big and beautiful, folks!"

// HelpPrompt asks the model for the in-character help message.
const HelpPrompt = `
As Donald Trump, write a short and funny help message for a chat bot.
Describe the available commands in an overconfident, sarcastic tone.
Use caps, exaggeration, emojis, and act like you're the greatest president AND bot creator.
Commands:
- /trump [1~5]: Get the latest Trump posts
- /trumpjoke [topic]: Generate a Trump-style tweet joke
- @Bot joke: Ask the bot to tell a joke
- @Bot 3: Get 3 latest posts
- @Bot help: Show this amazing help
`

var lowValuePrefixes = []string{"thank", "thanks", "great", "good", "👍", "🙏"}

// SystemPrompt returns the persona instructions for year.
func SystemPrompt(year string) string {
	return fmt.Sprintf("You are a stand-up comedian impersonating Donald Trump in %s. ", year) +
		"You ONLY write short, sarcastic, bold, and funny Truth Social-style tweets. " +
		"Use ALL CAPS, emojis, and phrases like 'SAD!', 'FAKE NEWS!', 'DISASTER!'. " +
		"Respond with ONLY ONE tweet. Do NOT explain, do NOT clarify, and absolutely NO disclaimers. " +
		"Do NOT output internal reasoning, analysis, or anything inside <think> tags, only the final tweet. " +
		"Just the tweet. Nothing else. Your tweet MUST end with a period ('.') and contain no follow-up explanation. " +
		"If you are not allowed to respond due to content moderation, respond IN CHARACTER as Trump yelling at the user for being TOO SENSITIVE or for CENSORSHIP." +
		"Maximum 280 characters."
}

// TopicPrompt asks for a post about topic, or about DefaultTopic when blank.
func TopicPrompt(topic string) string {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		topic = DefaultTopic
	}
	return fmt.Sprintf("Write a Truth Social post about %s.", topic)
}

// ReplyPrompt asks for a reply to a seed post.
func ReplyPrompt(post string) string {
	return fmt.Sprintf("Donald Trump just posted on Truth Social:\n\n%q\n\n"+
		"Write a funnier, bolder Trump-style reply to his own post. Be sarcastic, confident, and hilarious. One tweet only.", post)
}

// SelfRoastPrompt asks for a harsher reply to a seed post.
func SelfRoastPrompt(post string) string {
	return fmt.Sprintf("Donald Trump just posted:\n\n%q\n\n"+
		"Now write a savage Trump-style tweet replying to himself. Go hard. One tweet only.", post)
}

// SelectValidPost returns the first post of useful length that is not a bare
// thank-you, else the first post, else FallbackPost.
func SelectValidPost(posts []string) string {
	for _, post := range posts {
		clean := strings.ToLower(strings.TrimSpace(post))
		n := utf8.RuneCountInString(clean)
		if n > 20 && n < 300 && !hasLowValuePrefix(clean) {
			return post
		}
	}
	if len(posts) > 0 {
		return posts[0]
	}
	return FallbackPost
}

func hasLowValuePrefix(s string) bool {
	for _, p := range lowValuePrefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}
