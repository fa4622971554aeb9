package scoring

import "mailtriage/internal/model"

// Profile is a snapshot of everything user-specific the engine reads: tuning
// preferences, VIP senders, eligible learned patterns and sender stats. It is
// loaded once per scoring call so the engine itself stays free of I/O.
type Profile struct {
	Prefs model.UserPrefs

	// VIPs is keyed by normalized sender address.
	VIPs map[string]model.VIPSender

	Patterns []model.LearnedPattern

	// Stats is keyed by normalized sender address.
	Stats map[string]model.SenderStats
}

// EmptyProfile returns a cold-start profile: defaults only, no learned data.
func EmptyProfile(userID int) Profile {
	return Profile{Prefs: model.DefaultPrefs(userID)}
}
