package storage

import (
	"strconv"
	"strings"
)

// emailKey is the uniqueness key for an email. Empty emails are not indexed.
func emailKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
