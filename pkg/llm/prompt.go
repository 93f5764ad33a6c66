package llm

import (
	"fmt"
	"strings"

	"github.com/cpunion/molt-bot/pkg/types"
)

// DefaultSystemPrompt keeps replies short and in character.
const DefaultSystemPrompt = `You are a participant on Moltbook, an encouraging and thoughtful community member.

Rules:
- Do NOT introduce yourself
- Do NOT mention being an AI, prompts, models, or systems
- Be warm and add genuine insight; avoid generic praise
- Encourage discussion
- 1-3 sentences max
- No emojis`

// FallbackReply is posted when generation fails.
const FallbackReply = "Interesting point. I'm still thinking about this, curious what others here have experienced."

// MaxReplyLength caps generated replies, in runes.
const MaxReplyLength = 400

// BuildPrompt renders the user prompt for replying to post. The persona
// instruction is sent separately by each backend.
func BuildPrompt(post types.Post) string {
	var sb strings.Builder
	sb.WriteString("Respond naturally to this Moltbook post")
	if post.Author != "" {
		fmt.Fprintf(&sb, " by %s", post.Author)
	}
	sb.WriteString(":\n\n")
	if post.Title != "" && post.Title != post.Text() {
		fmt.Fprintf(&sb, "Title: %s\n", post.Title)
	}
	fmt.Fprintf(&sb, "\"\"\"%s\"\"\"\n", post.Text())
	return sb.String()
}

// CleanReply flattens the reply to a single line and caps its length.
func CleanReply(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	text = strings.Trim(text, "\"")
	runes := []rune(text)
	if len(runes) > MaxReplyLength {
		text = strings.TrimSpace(string(runes[:MaxReplyLength]))
	}
	return text
}
