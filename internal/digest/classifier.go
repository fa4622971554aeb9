package digest

import (
	"strings"

	"mailtriage/internal/model"
)

// CategoryClassifier buckets a low-tier email for the weekly digest.
type CategoryClassifier interface {
	Classify(e *model.Email) string
}

// KeywordClassifier is the default rule-based classifier. It checks the
// strongest signals first so an email lands in exactly one bucket.
type KeywordClassifier struct {
	marketingPhrases  []string
	newsletterPhrases []string
	socialDomains     []string
	automatedPrefixes []string
}

func NewKeywordClassifier() *KeywordClassifier {
	return &KeywordClassifier{
		marketingPhrases: []string{
			"% off", "sale", "discount", "limited time", "deal",
			"coupon", "free shipping", "last chance", "offer",
		},
		newsletterPhrases: []string{
			"newsletter", "digest", "weekly roundup", "this week in",
			"issue #", "edition",
		},
		socialDomains: []string{
			"facebookmail.com", "linkedin.com", "twitter.com", "x.com",
			"instagram.com", "pinterest.com", "reddit.com", "redditmail.com",
			"discord.com", "slack.com",
		},
		automatedPrefixes: []string{
			"noreply@", "no-reply@", "donotreply@", "do-not-reply@",
			"notifications@", "alerts@", "mailer-daemon@", "automated@",
		},
	}
}

func (c *KeywordClassifier) Classify(e *model.Email) string {
	sender := model.NormalizeAddress(e.Sender)
	domain := e.SenderDomain()
	subject := strings.ToLower(e.Subject)
	body := strings.ToLower(e.Snippet + " " + e.Body)

	for _, d := range c.socialDomains {
		if domain == d || strings.HasSuffix(domain, "."+d) {
			return model.CategorySocial
		}
	}
	for _, phrase := range c.marketingPhrases {
		if strings.Contains(subject, phrase) || strings.Contains(body, phrase) {
			return model.CategoryMarketing
		}
	}
	if e.HasLabel("CATEGORY_PROMOTIONS") {
		return model.CategoryMarketing
	}
	for _, phrase := range c.newsletterPhrases {
		if strings.Contains(subject, phrase) {
			return model.CategoryNewsletter
		}
	}
	if strings.Contains(body, "unsubscribe") && !strings.Contains(subject, "re:") {
		return model.CategoryNewsletter
	}
	for _, prefix := range c.automatedPrefixes {
		if strings.HasPrefix(sender, prefix) {
			return model.CategoryAutomated
		}
	}
	return model.CategoryOther
}
