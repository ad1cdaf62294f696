// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package icon

// Icon is an opaque reaction token with a display name. The zero value
// means "no icon".
type Icon struct {
	// Name identifies the icon in configuration and in persisted event
	// files ("ASL", "ZEUS", or "1".."10", "A".."J" for pool icons).
	Name string

	// Key is what the transport receives as the reaction key and what
	// the rendered role line shows.
	Key string
}

// IsZero reports whether the icon is unset.
func (i Icon) IsZero() bool { return i.Key == "" }

// Equal reports whether two icons are the same reaction token.
func (i Icon) Equal(other Icon) bool { return i.Key == other.Key }

func (i Icon) String() string { return i.Key }

// PoolSize is the number of icons in the pool, and so the capacity of
// an Additional group.
const PoolSize = 20

var pool = [PoolSize]Icon{
	{Name: "1", Key: "1️⃣"},
	{Name: "2", Key: "2️⃣"},
	{Name: "3", Key: "3️⃣"},
	{Name: "4", Key: "4️⃣"},
	{Name: "5", Key: "5️⃣"},
	{Name: "6", Key: "6️⃣"},
	{Name: "7", Key: "7️⃣"},
	{Name: "8", Key: "8️⃣"},
	{Name: "9", Key: "9️⃣"},
	{Name: "10", Key: "\U0001F51F"},
	{Name: "A", Key: "\U0001F1E6"},
	{Name: "B", Key: "\U0001F1E7"},
	{Name: "C", Key: "\U0001F1E8"},
	{Name: "D", Key: "\U0001F1E9"},
	{Name: "E", Key: "\U0001F1EA"},
	{Name: "F", Key: "\U0001F1EB"},
	{Name: "G", Key: "\U0001F1EC"},
	{Name: "H", Key: "\U0001F1ED"},
	{Name: "I", Key: "\U0001F1EE"},
	{Name: "J", Key: "\U0001F1EF"},
}

// Pool returns a copy of the ordered icon pool.
func Pool() []Icon {
	icons := make([]Icon, PoolSize)
	copy(icons, pool[:])
	return icons
}

// PoolAt returns the pool icon at index, or false when the index is
// outside the pool.
func PoolAt(index int) (Icon, bool) {
	if index < 0 || index >= PoolSize {
		return Icon{}, false
	}
	return pool[index], true
}

// PoolIndex returns the pool position of icon, or -1 when the icon is
// not a pool icon.
func PoolIndex(icon Icon) int {
	for index, candidate := range pool {
		if candidate.Equal(icon) {
			return index
		}
	}
	return -1
}
