package settings

import (
	"regexp"
	"strings"
)

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9\- ]`)

// NameSafe reduces name to lowercase letters, digits and hyphens. Spaces
// become hyphens; every other character is dropped. NameSafe(NameSafe(s)) ==
// NameSafe(s).
func NameSafe(name string) string {
	key := unsafeChars.ReplaceAllString(strings.TrimSpace(name), "")
	key = strings.ReplaceAll(key, " ", "-")
	return strings.ToLower(key)
}

// SettingName is the storage name for a form key under prefix.
func SettingName(prefix, key string) string {
	return prefix + NameSafe(key)
}
