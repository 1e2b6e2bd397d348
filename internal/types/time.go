package types

import "time"

// FormatTime renders t as RFC3339, the format used in cache keys and CSV exports
func FormatTime(t time.Time) string {
	return t.Format(time.RFC3339)
}
