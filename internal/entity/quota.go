package entity

import "time"

const quotaDayLayout = "2006-01-02"

// QuotaDay is the ledger key for the UTC calendar day containing t.
func QuotaDay(t time.Time) string {
	return t.UTC().Format(quotaDayLayout)
}

// QuotaStatus is an advisory snapshot of the day's provider usage.
type QuotaStatus struct {
	Date       string `json:"date"`
	DailyLimit int64  `json:"daily_limit"`
	UsedToday  int64  `json:"used_today"`
	Remaining  int64  `json:"remaining"`
	// Pending counts increments buffered in-process because the ledger store was unreachable.
	Pending int64 `json:"pending,omitempty"`
	// Degraded is set when UsedToday could not be read from the store.
	Degraded bool `json:"degraded,omitempty"`
}

// Remaining is max(0, dailyLimit - consumed).
func Remaining(consumed, dailyLimit int64) int64 {
	if r := dailyLimit - consumed; r > 0 {
		return r
	}
	return 0
}
