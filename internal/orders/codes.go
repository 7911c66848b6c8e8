package orders

import (
	"fmt"
	"time"
)

// FormatCode builds the human-facing order code from the calendar day and
// the daily sequence number: ORD20250901007.
func FormatCode(day time.Time, seq int) string {
	return fmt.Sprintf("ORD%s%03d", day.Format("20060102"), seq)
}

// CodeDay is the key the daily sequence is allocated under.
func CodeDay(t time.Time) string {
	return t.Format("2006-01-02")
}
