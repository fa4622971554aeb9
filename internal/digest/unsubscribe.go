package digest

import (
	"strings"

	"mailtriage/internal/model"
)

// Confidence bands for unsubscribe suggestions. Above safe the suggestion
// goes straight to the "safe to unsubscribe" list; between review and safe
// it lands in "needs review"; below review it is not surfaced at all.
const (
	SafeConfidence   = 0.8
	ReviewConfidence = 0.5
)

// contentRichDomains host long-form content people deliberately subscribe
// to. A high send frequency from these is weak evidence for unsubscribing.
var contentRichDomains = []string{
	"substack.com",
	"ghost.io",
	"buttondown.email",
	"medium.com",
	"beehiiv.com",
	"mailchimpapp.com",
}

// senderWeek is one sender's aggregate for the digest window.
type senderWeek struct {
	sender    string
	domain    string
	category  string
	count     int
	hasUnsub  bool
	subjects  []string
	anyOpened bool
}

// unsubscribeConfidence scores how safely the user could unsubscribe from
// one sender, from weekly volume and engagement signals.
//
//	frequency:  min(0.5, 0.05 * count)
//	unsub link: +0.35 when the sender's mail carries unsubscribe signals
//	marketing:  +0.1 for the marketing category
//	content:    -0.25 for content-rich newsletter platforms
//	engagement: -0.3 when the user opened any of the sender's mail this week
func unsubscribeConfidence(w senderWeek) float64 {
	conf := 0.05 * float64(w.count)
	if conf > 0.5 {
		conf = 0.5
	}
	if w.hasUnsub {
		conf += 0.35
	}
	if w.category == model.CategoryMarketing {
		conf += 0.1
	}
	if isContentRichDomain(w.domain) {
		conf -= 0.25
	}
	if w.anyOpened {
		conf -= 0.3
	}
	return model.Clamp(conf, 0, 1)
}

func isContentRichDomain(domain string) bool {
	for _, d := range contentRichDomains {
		if domain == d || strings.HasSuffix(domain, "."+d) {
			return true
		}
	}
	return false
}

// hasUnsubscribeSignal reports whether one email carries an explicit
// unsubscribe affordance.
func hasUnsubscribeSignal(e *model.Email) bool {
	body := strings.ToLower(e.Body + " " + e.Snippet)
	return strings.Contains(body, "unsubscribe") ||
		strings.Contains(body, "opt out") ||
		strings.Contains(body, "opt-out") ||
		strings.Contains(body, "manage preferences") ||
		strings.Contains(body, "email preferences")
}
