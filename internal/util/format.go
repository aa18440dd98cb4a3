package util

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"
)

// FormatSize returns a human-readable size string.
func FormatSize(bytes int64) string {
	if bytes < 0 {
		return "0 B"
	}

	const (
		_          = iota
		kB float64 = 1 << (10 * iota)
		mB
		gB
		tB
		pB
	)

	b := float64(bytes)
	switch {
	case b >= pB:
		return fmt.Sprintf("%.1f PiB", b/pB)
	case b >= tB:
		return fmt.Sprintf("%.1f TiB", b/tB)
	case b >= gB:
		return fmt.Sprintf("%.1f GiB", b/gB)
	case b >= mB:
		return fmt.Sprintf("%.1f MiB", b/mB)
	case b >= kB:
		return fmt.Sprintf("%.1f KiB", b/kB)
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

// FormatCount returns a human-readable count string.
func FormatCount(n int64) string {
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}
	if n < 1_000_000 {
		return fmt.Sprintf("%.1fK", float64(n)/1000)
	}
	if n < 1_000_000_000 {
		return fmt.Sprintf("%.1fM", float64(n)/1_000_000)
	}
	return fmt.Sprintf("%.1fB", float64(n)/1_000_000_000)
}

// Percent returns the percentage of part relative to total.
func Percent(part, total int64) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}

// FormatDelta returns a signed human-readable size difference.
func FormatDelta(bytes int64) string {
	switch {
	case bytes > 0:
		return "+" + FormatSize(bytes)
	case bytes < 0:
		if bytes == math.MinInt64 {
			bytes++
		}
		return "-" + FormatSize(-bytes)
	default:
		return "0 B"
	}
}

// TruncatePath shortens a slash separated path to maxLen runes. It keeps the
// first two and last two components when that fits, and otherwise cuts the
// middle.
func TruncatePath(path string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	runes := []rune(path)
	if len(runes) <= maxLen {
		return path
	}
	if maxLen <= 3 {
		return string(runes[len(runes)-maxLen:])
	}

	parts := strings.Split(path, "/")
	if len(parts) <= 3 {
		return "..." + string(runes[len(runes)-(maxLen-3):])
	}
	short := strings.Join(parts[:2], "/") + "/.../" + strings.Join(parts[len(parts)-2:], "/")
	if utf8.RuneCountInString(short) <= maxLen {
		return short
	}

	head := (maxLen - 3) / 2
	tail := maxLen - 3 - head
	return string(runes[:head]) + "..." + string(runes[len(runes)-tail:])
}
