package cmd

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/text"
)

// formatDuration formats a duration in a human-readable way
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return "< 1 minute"
	}
	if d < time.Hour {
		minutes := int(d.Minutes())
		if minutes == 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", minutes)
	}
	if d < 24*time.Hour {
		hours := int(d.Hours())
		if hours == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", hours)
	}
	days := int(d.Hours() / 24)
	if days == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", days)
}

// formatExpiry renders an expiry instant relative to now: "in 2 hours"
// for the future, a yellow "expired 5 minutes ago" for the past.
func formatExpiry(expiresAt time.Time) string {
	now := time.Now()
	if expiresAt.After(now) {
		return fmt.Sprintf("in %s", formatDuration(expiresAt.Sub(now)))
	}
	return text.FgYellow.Sprintf("expired %s ago", formatDuration(now.Sub(expiresAt)))
}
