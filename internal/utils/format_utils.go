package utils

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// ValueMissing is rendered wherever the provider omitted a metric.
const ValueMissing = "N/A"

// FormatPace renders min:sec per km for a stretch of totalSeconds over
// distanceKm, e.g. 295s over 1km is "4:55/km".
func FormatPace(totalSeconds float64, distanceKm float64) string {
	if totalSeconds <= 0 || distanceKm <= 0 {
		return ValueMissing
	}

	pace := totalSeconds / distanceKm
	mins := int(pace) / 60
	secs := int(pace) % 60
	return fmt.Sprintf("%d:%02d/km", mins, secs)
}

// FormatDuration renders a second count. Style "colon" gives H:MM:SS (or
// MM:SS under an hour), "long" gives 1h 05m 22s, "compact" always MM:SS.
func FormatDuration(seconds int64, style string) string {
	if seconds < 0 {
		return ValueMissing
	}

	hours := seconds / 3600
	minutes := (seconds % 3600) / 60
	secs := seconds % 60

	switch style {
	case "long":
		parts := make([]string, 0, 3)
		if hours > 0 {
			parts = append(parts, fmt.Sprintf("%dh", hours))
		}
		if minutes > 0 || hours > 0 {
			parts = append(parts, fmt.Sprintf("%dm", minutes))
		}
		parts = append(parts, fmt.Sprintf("%ds", secs))
		return strings.Join(parts, " ")
	case "compact":
		return fmt.Sprintf("%d:%02d", seconds/60, secs)
	default:
		if hours > 0 {
			return fmt.Sprintf("%d:%02d:%02d", hours, minutes, secs)
		}
		return fmt.Sprintf("%d:%02d", minutes, secs)
	}
}

// FormatDate turns an ISO 8601 timestamp like 2025-07-27T08:34:12Z into a
// readable "Sun, 27 Jul 2025 08:34".
func FormatDate(iso string) string {
	if iso == "" {
		return ValueMissing
	}

	parsed, err := time.Parse(time.RFC3339, iso)

	if err != nil {
		return ValueMissing
	}

	return parsed.Format("Mon, 02 Jan 2006 15:04")
}

// RoundTo rounds to the given number of decimals.
func RoundTo(value float64, decimals int) float64 {
	factor := math.Pow(10, float64(decimals))
	return math.Round(value*factor) / factor
}

// MetersToKm converts meters to kilometers rounded to two decimals.
func MetersToKm(meters float64) float64 {
	return RoundTo(meters/1000, 2)
}
