package ai

import (
	"fmt"
	"strings"

	"mailtriage/internal/model"
)

const maxBodyChars = 4000

// BuildPrompt renders the analysis request for one email. The assistant
// response is prefilled with "{" by the capability, so the prompt asks for
// bare JSON.
func BuildPrompt(email *model.Email) string {
	body := email.Body
	if body == "" {
		body = email.Snippet
	}
	if len(body) > maxBodyChars {
		body = body[:maxBodyChars]
	}

	var b strings.Builder
	b.WriteString("Analyze this email and respond with a single JSON object, no prose.\n\n")
	fmt.Fprintf(&b, "From: %s <%s>\n", email.SenderName, email.Sender)
	fmt.Fprintf(&b, "Subject: %s\n", email.Subject)
	fmt.Fprintf(&b, "Received: %s\n\n", email.ReceivedAt.Format("2006-01-02 15:04"))
	b.WriteString(body)
	b.WriteString("\n\nJSON fields:\n")
	b.WriteString(`  "category": one of "work", "personal", "finance", "scheduling", "marketing", "other"` + "\n")
	b.WriteString(`  "priority": integer 1-10, 10 = needs immediate attention` + "\n")
	b.WriteString(`  "summary": one sentence` + "\n")
	b.WriteString(`  "action_items": array of short strings, empty if none` + "\n")
	b.WriteString(`  "confidence": 0.0-1.0` + "\n")
	return b.String()
}
