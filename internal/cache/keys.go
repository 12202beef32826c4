package cache

import (
	"strconv"
	"strings"
)

const (
	// KeyPrefix namespaces every key written by jobhub.
	KeyPrefix = "jobhub:"

	keyPrefixSearch = KeyPrefix + "search:"
	keyPrefixJob    = KeyPrefix + "job:"
	keyPrefixHealth = KeyPrefix + "health:"

	// AllPattern matches every jobhub cache entry.
	AllPattern = KeyPrefix + "*"
)

// SearchKey returns the key of one provider's search page.
// Keywords and location are lower-cased, trimmed and space-collapsed so that
// equivalent queries share an entry.
func SearchKey(provider, keywords, location string, page int) string {
	var b strings.Builder
	b.Grow(len(keyPrefixSearch) + len(provider) + len(keywords) + len(location) + 8)
	b.WriteString(keyPrefixSearch)
	b.WriteString(provider)
	b.WriteByte(':')
	b.WriteString(normalizePart(keywords))
	b.WriteByte(':')
	b.WriteString(normalizePart(location))
	b.WriteByte(':')
	if page <= 0 {
		page = 1
	}
	b.WriteString(strconv.Itoa(page))
	return b.String()
}

// DetailKey returns the key of a single listing lookup.
func DetailKey(provider, externalID string) string {
	return keyPrefixJob + provider + ":" + externalID
}

// HealthKey returns the key of a provider's health flag.
func HealthKey(provider string) string {
	return keyPrefixHealth + provider
}

// ProviderPatterns returns the SCAN patterns covering every entry of one provider.
func ProviderPatterns(provider string) []string {
	return []string{
		keyPrefixSearch + provider + ":*",
		keyPrefixJob + provider + ":*",
		HealthKey(provider),
	}
}

func normalizePart(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
