// Package forms provides field validation and field descriptors for
// step-based intake forms.
package forms

import (
	"sort"
	"strings"
)

// ErrorMap maps a field name to a single human-readable message.
// An empty map means the validated fields are all valid.
type ErrorMap map[string]string

// NewErrorMap creates an empty error map.
func NewErrorMap() ErrorMap {
	return make(ErrorMap)
}

// Set records a message for a field, replacing any previous one.
func (m ErrorMap) Set(field, message string) {
	m[field] = message
}

// Get returns the message for a field, or an empty string.
func (m ErrorMap) Get(field string) string {
	return m[field]
}

// Has reports whether a field has a message.
func (m ErrorMap) Has(field string) bool {
	_, ok := m[field]
	return ok
}

// Len returns the number of failing fields.
func (m ErrorMap) Len() int {
	return len(m)
}

// Empty reports whether no field failed.
func (m ErrorMap) Empty() bool {
	return len(m) == 0
}

// Fields returns the failing field names in sorted order.
func (m ErrorMap) Fields() []string {
	fields := make([]string, 0, len(m))
	for field := range m {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return fields
}

// Clone returns an independent copy. A nil map clones to an empty one.
func (m ErrorMap) Clone() ErrorMap {
	out := make(ErrorMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Merge copies every entry of other into m.
func (m ErrorMap) Merge(other ErrorMap) ErrorMap {
	for k, v := range other {
		m[k] = v
	}
	return m
}

// String renders the map as "field: message" pairs in field order.
func (m ErrorMap) String() string {
	parts := make([]string, 0, len(m))
	for _, field := range m.Fields() {
		parts = append(parts, field+": "+m[field])
	}
	return strings.Join(parts, ", ")
}
