// Package fingerprint derives the deduplication key for imported transactions.
//
// A fingerprint is "occurred_on|normalized_description|amount_cents". Two
// transactions with the same canonical date, normalized description and
// cents share a key, and the store keeps one row per (user, key).
package fingerprint

import (
	"strconv"
	"strings"
)

// Separator joins the fingerprint fields.
const Separator = "|"

// NormalizeDescription trims, lowercases and collapses whitespace runs to one space.
func NormalizeDescription(description string) string {
	return strings.Join(strings.Fields(strings.ToLower(description)), " ")
}

// Make builds the fingerprint for an already normalized transaction.
//
// occurredOn must be a canonical YYYY-MM-DD string and description the
// trimmed cell value. Raw cells produce keys that do not dedup.
func Make(occurredOn, description string, amountCents int64) string {
	var b strings.Builder
	b.WriteString(occurredOn)
	b.WriteString(Separator)
	b.WriteString(NormalizeDescription(description))
	b.WriteString(Separator)
	b.WriteString(strconv.FormatInt(amountCents, 10))
	return b.String()
}
