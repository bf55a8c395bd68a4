// Package form builds signed request bodies. The canonicalized query
// string feeds a cryptographic signature, so field order must be preserved
// byte for byte; url.Values would lose it.
package form

import (
	"net/url"
	"strings"
)

// Pair is one (name, value) form field.
type Pair struct {
	Name  string
	Value string
}

// Body is an ordered list of form fields.
type Body struct {
	pairs []Pair
}

// New returns an empty body.
func New() *Body {
	return &Body{}
}

// Add appends one field, preserving insertion order.
func (b *Body) Add(name, value string) *Body {
	b.pairs = append(b.pairs, Pair{Name: name, Value: value})
	return b
}

// Pairs returns the fields in insertion order.
func (b *Body) Pairs() []Pair {
	return b.pairs
}

// Encode renders the body as an application/x-www-form-urlencoded query
// string in insertion order. This exact byte sequence is what gets signed
// and what gets sent.
func (b *Body) Encode() string {
	var sb strings.Builder
	for i, p := range b.pairs {
		if i > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(url.QueryEscape(p.Name))
		sb.WriteByte('=')
		sb.WriteString(url.QueryEscape(p.Value))
	}
	return sb.String()
}
