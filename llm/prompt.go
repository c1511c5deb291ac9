package llm

import (
	"fmt"
	"strings"

	"github.com/jupark12/meeting-minutes/models"
)

// SystemPrompt instructs the model to answer with the summary document shape.
var SystemPrompt = buildSystemPrompt()

func buildSystemPrompt() string {
	var b strings.Builder
	b.WriteString(`You are a meeting minutes assistant. You receive one excerpt of a longer meeting transcript.
Summarize only what the excerpt says. Respond with a single JSON object and nothing else, using exactly these keys:

  "MeetingName": a short title for the meeting if the excerpt reveals one, otherwise ""
`)
	for _, key := range models.SectionKeys {
		fmt.Fprintf(&b, "  %q: {\"title\": %q, \"blocks\": [...]}\n", string(key), key.Title())
	}
	b.WriteString(`
Each block is an object {"id": string, "type": "text" | "bullet" | "heading1" | "heading2", "content": string, "color": "default" | "gray"}.
Leave "blocks" empty when the excerpt has nothing for that section. Do not invent facts.`)
	return b.String()
}

// UserPrompt wraps one window of transcript text.
func UserPrompt(text string) string {
	return "Transcript excerpt:\n---\n" + text + "\n---"
}
