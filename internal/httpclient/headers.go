package httpclient

import "strings"

// Headers is a case-insensitive, case-preserving header table. The case
// of a field's first assignment is preserved for serialization; reads by
// any case alias return the same slot. When a field name recurs (as
// happens during response parsing), its values accumulate in arrival
// order.
type Headers struct {
	order  []string            // lowercased keys, insertion order
	casing map[string]string   // lowercased key -> first-seen case
	values map[string][]string // lowercased key -> values in arrival order
}

// NewHeaders returns an empty header table.
func NewHeaders() *Headers {
	return &Headers{
		casing: make(map[string]string),
		values: make(map[string][]string),
	}
}

func normalize(name string) string {
	return strings.ToLower(name)
}

// Set replaces any existing values for name with a single value,
// preserving the original case of name's first assignment.
func (h *Headers) Set(name, value string) {
	key := normalize(name)
	if _, ok := h.casing[key]; !ok {
		h.order = append(h.order, key)
		h.casing[key] = name
	}
	h.values[key] = []string{value}
}

// Add appends value to any existing values for name, as a response
// parser does when the same field name recurs.
func (h *Headers) Add(name, value string) {
	key := normalize(name)
	if _, ok := h.casing[key]; !ok {
		h.order = append(h.order, key)
		h.casing[key] = name
	}
	h.values[key] = append(h.values[key], value)
}

// SetIfAbsent sets name to value only if no value is currently stored
// for it under any case alias. It reports whether the value was set.
func (h *Headers) SetIfAbsent(name, value string) bool {
	if _, ok := h.Get(name); ok {
		return false
	}
	h.Set(name, value)
	return true
}

// Get returns the last-written value for name and whether it was
// present.
func (h *Headers) Get(name string) (string, bool) {
	vals, ok := h.values[normalize(name)]
	if !ok || len(vals) == 0 {
		return "", false
	}
	return vals[len(vals)-1], true
}

// GetAll returns every value stored for name, in arrival order.
func (h *Headers) GetAll(name string) []string {
	return h.values[normalize(name)]
}

// Del removes all values for name.
func (h *Headers) Del(name string) {
	key := normalize(name)
	if _, ok := h.casing[key]; !ok {
		return
	}
	delete(h.casing, key)
	delete(h.values, key)
	for i, k := range h.order {
		if k == key {
			h.order = append(h.order[:i], h.order[i+1:]...)
			break
		}
	}
}

// Has reports whether name has any stored value.
func (h *Headers) Has(name string) bool {
	_, ok := h.Get(name)
	return ok
}

// HeaderField is one (original-case name, values) pair produced by Iter.
type HeaderField struct {
	Name   string
	Values []string
}

// Iter yields every stored field in insertion order, with the name's
// first-seen case and its full value list.
func (h *Headers) Iter() []HeaderField {
	out := make([]HeaderField, 0, len(h.order))
	for _, key := range h.order {
		out = append(out, HeaderField{
			Name:   h.casing[key],
			Values: h.values[key],
		})
	}
	return out
}

// MergeTrailerFallback copies any trailer field not already present in
// h, so trailer values become visible through normal header lookup
// without overwriting an already-present name.
func (h *Headers) MergeTrailerFallback(trailers *Headers) {
	if trailers == nil {
		return
	}
	for _, field := range trailers.Iter() {
		if h.Has(field.Name) {
			continue
		}
		for _, v := range field.Values {
			h.Add(field.Name, v)
		}
	}
}

// Clone returns a deep copy of h.
func (h *Headers) Clone() *Headers {
	out := NewHeaders()
	for _, field := range h.Iter() {
		for _, v := range field.Values {
			out.Add(field.Name, v)
		}
	}
	return out
}
