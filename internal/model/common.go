package model

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ErrValidation marks input rejected by form-level checks.
var ErrValidation = errors.New("invalid record")

// Store locations. Warranty claims and material requests are filed against one of these.
const (
	StoreCocais   = "Cocais Shopping"
	StoreParnaiba = "Parnaíba Shopping"
	StoreRioAnil  = "Rio Anil Shopping"
	StoreRioPoty  = "Rio Poty Shopping"
	StoreTeresina = "Teresina Shopping"
)

// Stores lists the shop locations in form order.
var Stores = []string{
	StoreCocais,
	StoreParnaiba,
	StoreRioAnil,
	StoreRioPoty,
	StoreTeresina,
}

// IsStore reports whether name is a known shop location.
func IsStore(name string) bool {
	return slices.Contains(Stores, name)
}

// Searchable is a record that can be matched against a list search term.
type Searchable interface {
	Matches(term string) bool
}

// Filter returns the records matching term. An empty term matches everything.
func Filter[T Searchable](records []T, term string) []T {
	if term == "" {
		return records
	}
	out := make([]T, 0, len(records))
	for _, r := range records {
		if r.Matches(term) {
			out = append(out, r)
		}
	}
	return out
}

// containsFold reports whether any field contains term, ignoring case.
func containsFold(term string, fields ...string) bool {
	term = strings.ToLower(term)
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), term) {
			return true
		}
	}
	return false
}

// required takes name/value pairs and fails on the first blank value.
func required(pairs ...string) error {
	for i := 0; i+1 < len(pairs); i += 2 {
		if strings.TrimSpace(pairs[i+1]) == "" {
			return fmt.Errorf("%w: %s required", ErrValidation, pairs[i])
		}
	}
	return nil
}

// notBlanked takes name/pointer pairs and fails when a present value is blank.
func notBlanked(pairs ...any) error {
	for i := 0; i+1 < len(pairs); i += 2 {
		v, _ := pairs[i+1].(*string)
		if v != nil && strings.TrimSpace(*v) == "" {
			return fmt.Errorf("%w: %s cannot be empty", ErrValidation, pairs[i])
		}
	}
	return nil
}

func nonEmpty(refs ...string) []string {
	var out []string
	for _, r := range refs {
		if r != "" {
			out = append(out, r)
		}
	}
	return out
}
