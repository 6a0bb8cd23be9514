package rag

import (
	"fmt"
	"strings"

	"github.com/mohammadjaf013/findlanqbot/internal/models"
)

const (
	maxContextRunes = 6000
	maxHistoryRunes = 500
)

const assistantBrief = `You are the FindLanq assistant, the customer-support agent of an immigration consulting company that helps people study, work and settle in Finland.
Answer the user's question using the reference material below when it is relevant.
If the reference material is empty or does not cover the question, still give a short, helpful general answer, say that you are not certain, and suggest booking a consultation with an adviser.
Never invent fees, deadlines or legal requirements that are not in the reference material.
Reply in the same language as the question. Keep answers concise and friendly.`

// BuildPrompt renders the generation prompt from retrieved chunks and the
// recent conversation, oldest message first.
func BuildPrompt(question string, chunks []Result, history []models.Message) string {
	var b strings.Builder
	b.WriteString(assistantBrief)
	b.WriteString("\n\n## Reference material\n")

	if len(chunks) == 0 {
		b.WriteString("(no matching documents)\n")
	}
	budget := maxContextRunes
	for i, c := range chunks {
		text := truncateRunes(strings.TrimSpace(c.Text), budget)
		if text == "" {
			break
		}
		fmt.Fprintf(&b, "[%d] (%s)\n%s\n\n", i+1, c.FileName, text)
		budget -= runeLen(text)
	}

	if len(history) > 0 {
		b.WriteString("## Conversation so far\n")
		for _, m := range history {
			speaker := "User"
			if m.Role == models.RoleAssistant {
				speaker = "Assistant"
			}
			fmt.Fprintf(&b, "%s: %s\n", speaker, truncateRunes(strings.TrimSpace(m.Content), maxHistoryRunes))
		}
		b.WriteString("\n")
	}

	b.WriteString("## Question\n")
	b.WriteString(strings.TrimSpace(question))
	b.WriteString("\n\n## Answer\n")
	return b.String()
}

// ExtractiveAnswer is used when no language model is configured.
func ExtractiveAnswer(chunks []Result) string {
	if len(chunks) == 0 {
		return "I could not find this in our knowledge base yet. Please book a consultation and one of our advisers will help you directly."
	}
	lines := make([]string, 0, 4)
	lines = append(lines, "Here is what our knowledge base says:")
	limit := len(chunks)
	if limit > 3 {
		limit = 3
	}
	for i := 0; i < limit; i++ {
		lines = append(lines, "- "+truncateRunes(strings.TrimSpace(chunks[i].Text), 280))
	}
	return strings.Join(lines, "\n")
}

func truncateRunes(s string, max int) string {
	if max <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return strings.TrimSpace(string(r[:max])) + "..."
}
