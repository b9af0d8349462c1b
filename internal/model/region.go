package model

import "strings"

// NormalizeID returns the canonical (lowercase) form of a region id.
// Region ids are case-insensitive; only normalized ids are stored or compared.
func NormalizeID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// Region is a named cuboid as reported by the region authority.
type Region struct {
	ID       string // normalized
	World    string
	Box      Box
	Priority int
}
