package utils

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
)

var Log = logrus.New()

// SetLogLevel accepts debug, info, warn, error and fatal.
func SetLogLevel(level string) error {
	// We are not using logrus' trace and panic levels
	switch strings.ToLower(level) {
	case "debug":
		Log.SetLevel(logrus.DebugLevel)
	case "info":
		Log.SetLevel(logrus.InfoLevel)
	case "warning", "warn":
		Log.SetLevel(logrus.WarnLevel)
	case "error":
		Log.SetLevel(logrus.ErrorLevel)
	case "fatal":
		Log.SetLevel(logrus.FatalLevel)
	default:
		return fmt.Errorf("bad log level %q", level)
	}
	return nil
}

// FormatMoney renders an optional amount as "$45,000", or "-" when unset.
func FormatMoney(v *float64) string {
	if v == nil {
		return "-"
	}
	return "$" + humanize.CommafWithDigits(*v, 0)
}

// FormatScore renders an optional score with two decimals, or "-".
func FormatScore(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f", *v)
}

// Truncate shortens s to at most n runes, marking the cut with "...".
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}
