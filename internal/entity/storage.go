// SPDX-License-Identifier: MPL-2.0

package entity

import (
	"maps"
	"slices"

	"github.com/addonbridge/addonbridge/internal/modid"
)

type (
	storageEntry struct {
		owner modid.ID
		value any
	}

	// Storage is a generic key/value bag. The zero value is ready to use.
	Storage struct {
		entries map[string]storageEntry
	}
)

// Set stores value under key on behalf of owner, replacing any previous
// entry and its owner tag.
func (s *Storage) Set(owner modid.ID, key string, value any) {
	if s.entries == nil {
		s.entries = make(map[string]storageEntry)
	}
	s.entries[key] = storageEntry{owner: owner, value: value}
}

// Get returns the value stored under key.
func (s *Storage) Get(key string) (any, bool) {
	e, ok := s.entries[key]
	return e.value, ok
}

// OwnerOf returns the mod that stored key.
func (s *Storage) OwnerOf(key string) (modid.ID, bool) {
	e, ok := s.entries[key]
	return e.owner, ok
}

// Delete removes key.
func (s *Storage) Delete(key string) {
	delete(s.entries, key)
}

// Len returns the number of stored keys.
func (s *Storage) Len() int {
	return len(s.entries)
}

// Keys returns the stored keys in sorted order.
func (s *Storage) Keys() []string {
	return slices.Sorted(maps.Keys(s.entries))
}

// Clear removes every entry in scope and returns how many were removed.
func (s *Storage) Clear(scope Scope) int {
	if scope.All() {
		n := len(s.entries)
		clear(s.entries)
		return n
	}
	n := 0
	for k, e := range s.entries {
		if scope.Matches(e.owner) {
			delete(s.entries, k)
			n++
		}
	}
	return n
}

// GetAs returns the value under key when it holds a T.
func GetAs[T any](s *Storage, key string) (T, bool) {
	v, ok := s.Get(key)
	if !ok {
		var zero T
		return zero, false
	}
	t, ok := v.(T)
	return t, ok
}
