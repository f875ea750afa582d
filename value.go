// FILE: modconf/value.go
package modconf

import (
	"fmt"
	"math"
	"strings"
	"sync/atomic"
)

// ValueKind identifies the closed set of value variants. Each kind carries
// its own concrete validation rule; there is no open-ended generic
// validator mechanism.
type ValueKind uint8

const (
	// KindBool values deserialize from TOML booleans only.
	KindBool ValueKind = iota
	// KindInt values deserialize from TOML integers (or integral floats).
	KindInt
	// KindFloat values deserialize from TOML floats or integers.
	KindFloat
	// KindString values deserialize from TOML strings.
	KindString
	// KindStringInList values deserialize from TOML strings and must be
	// members of a fixed allowed set.
	KindStringInList
	// KindList values deserialize from TOML string arrays, each element
	// validated independently.
	KindList
	// KindEnum values resolve by name or ordinal against a fixed universe.
	KindEnum
)

// String returns a short name for the kind.
func (k ValueKind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindStringInList:
		return "string-in-list"
	case KindList:
		return "list"
	case KindEnum:
		return "enum"
	default:
		return "unknown"
	}
}

// ValueSpec describes one typed, validated, defaulted setting: its path in
// the tree, its default, its validator, and optional metadata. The cached
// slot holds the last successfully validated value and refreshes atomically
// at the end of each load, so concurrent readers never observe a torn value.
type ValueSpec struct {
	path     string
	kind     ValueKind
	def      any
	validate func(any) (any, *ValidationError)

	comment        []string
	translationKey string
	worldRestart   bool

	// rangeNote and allowed feed the generated constraint comments.
	rangeNote string
	allowed   []string

	cache atomic.Value
	owner *ConfigSpec
}

// Path returns the full dot path of the value.
func (v *ValueSpec) Path() string { return v.path }

// Kind returns the value's variant kind.
func (v *ValueSpec) Kind() ValueKind { return v.kind }

// Default returns the value's default.
func (v *ValueSpec) Default() any { return v.def }

// Comment returns the comment lines attached at definition time.
func (v *ValueSpec) Comment() []string {
	out := make([]string, len(v.comment))
	copy(out, v.comment)
	return out
}

// TranslationKey returns the attached translation key, or "".
func (v *ValueSpec) TranslationKey() string { return v.translationKey }

// NeedsWorldRestart reports whether changing the value requires a world
// restart to take effect.
func (v *ValueSpec) NeedsWorldRestart() bool { return v.worldRestart }

// AllowedValues returns the allowed member names for whitelist and enum
// values, or nil for other kinds.
func (v *ValueSpec) AllowedValues() []string {
	if v.allowed == nil {
		return nil
	}
	out := make([]string, len(v.allowed))
	copy(out, v.allowed)
	return out
}

// Validate normalizes and checks a candidate value. On success it returns
// the normalized value in the kind's canonical Go type.
func (v *ValueSpec) Validate(candidate any) (any, error) {
	normalized, ve := v.validate(candidate)
	if ve != nil {
		ve.Path = v.path
		return nil, ve
	}
	return normalized, nil
}

// value returns the cached value, or the default before the first load.
func (v *ValueSpec) value() any {
	if c := v.cache.Load(); c != nil {
		return c
	}
	return v.def
}

// setCache stores a normalized value in the cached slot.
func (v *ValueSpec) setCache(val any) {
	v.cache.Store(val)
}

// resetCache restores the cached slot to the default.
func (v *ValueSpec) resetCache() {
	v.cache.Store(v.def)
}

// Value is a typed handle to a defined setting. Handles are cheap to copy
// and safe for concurrent use; Get is a single atomic read of the cached
// slot.
type Value[T any] struct {
	spec *ValueSpec
}

// Get returns the cached value, or the default before the first load.
func (v Value[T]) Get() T {
	val, _ := v.spec.value().(T)
	return val
}

// Default returns the value's default.
func (v Value[T]) Default() T {
	val, _ := v.spec.def.(T)
	return val
}

// Set validates val and updates the cached slot, marking the owning spec
// dirty so the backing document is rewritten on next save. It fails with
// ErrSpecNotBuilt before Build and with a ValidationError for rejected
// values.
func (v Value[T]) Set(val T) error {
	if v.spec.owner == nil {
		return ErrSpecNotBuilt
	}
	normalized, err := v.spec.Validate(val)
	if err != nil {
		return err
	}
	v.spec.setCache(normalized)
	v.spec.owner.markDirty()
	return nil
}

// Path returns the full dot path of the value.
func (v Value[T]) Path() string { return v.spec.path }

// Spec returns the underlying descriptor.
func (v Value[T]) Spec() *ValueSpec { return v.spec }

// --- Candidate normalization ---
//
// TOML deserialization yields int64, float64, bool, string, and []any.
// Each normalizer converts a candidate to the kind's canonical Go type or
// reports a type mismatch. Paths on the returned errors are filled in by
// ValueSpec.Validate.

func normalizeBool(c any) (bool, *ValidationError) {
	if b, ok := c.(bool); ok {
		return b, nil
	}
	return false, &ValidationError{
		Message: fmt.Sprintf("expected boolean, got %T", c),
		Value:   c,
		Code:    CodeTypeMismatch,
	}
}

func normalizeInt(c any) (int, *ValidationError) {
	switch n := c.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		// float64(MaxInt64) rounds up to 2^63, so the upper bound must be
		// strict or int(n) overflows for values at exactly 2^63.
		if n == math.Trunc(n) && n >= math.MinInt64 && n < math.MaxInt64 {
			return int(n), nil
		}
	}
	return 0, &ValidationError{
		Message: fmt.Sprintf("expected integer, got %T", c),
		Value:   c,
		Code:    CodeTypeMismatch,
	}
}

func normalizeFloat(c any) (float64, *ValidationError) {
	switch n := c.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	}
	return 0, &ValidationError{
		Message: fmt.Sprintf("expected float, got %T", c),
		Value:   c,
		Code:    CodeTypeMismatch,
	}
}

func normalizeString(c any) (string, *ValidationError) {
	if s, ok := c.(string); ok {
		return s, nil
	}
	return "", &ValidationError{
		Message: fmt.Sprintf("expected string, got %T", c),
		Value:   c,
		Code:    CodeTypeMismatch,
	}
}

func normalizeStringList(c any) ([]string, *ValidationError) {
	switch list := c.(type) {
	case []string:
		out := make([]string, len(list))
		copy(out, list)
		return out, nil
	case []any:
		out := make([]string, 0, len(list))
		for _, elem := range list {
			s, ok := elem.(string)
			if !ok {
				return nil, &ValidationError{
					Message: fmt.Sprintf("expected string element, got %T", elem),
					Value:   elem,
					Code:    CodeTypeMismatch,
				}
			}
			out = append(out, s)
		}
		return out, nil
	}
	return nil, &ValidationError{
		Message: fmt.Sprintf("expected string list, got %T", c),
		Value:   c,
		Code:    CodeTypeMismatch,
	}
}

// resolveEnum maps a candidate to a canonical member of the universe:
// strings match case-insensitively by name, integers index by ordinal.
func resolveEnum(c any, universe []string) (string, bool) {
	switch v := c.(type) {
	case string:
		for _, member := range universe {
			if strings.EqualFold(v, member) {
				return member, true
			}
		}
	case int:
		if v >= 0 && v < len(universe) {
			return universe[v], true
		}
	case int64:
		if v >= 0 && v < int64(len(universe)) {
			return universe[v], true
		}
	}
	return "", false
}

// --- Validator constructors ---

func boolValidator() func(any) (any, *ValidationError) {
	return func(c any) (any, *ValidationError) {
		b, ve := normalizeBool(c)
		if ve != nil {
			return nil, ve
		}
		return b, nil
	}
}

func intValidator(checks []func(int) bool) func(any) (any, *ValidationError) {
	return func(c any) (any, *ValidationError) {
		n, ve := normalizeInt(c)
		if ve != nil {
			return nil, ve
		}
		for _, check := range checks {
			if !check(n) {
				return nil, rejectedError(c)
			}
		}
		return n, nil
	}
}

func intRangeValidator(min, max int) func(any) (any, *ValidationError) {
	return func(c any) (any, *ValidationError) {
		n, ve := normalizeInt(c)
		if ve != nil {
			return nil, ve
		}
		if n < min || n > max {
			return nil, &ValidationError{
				Message: fmt.Sprintf("out of range [%d, %d]", min, max),
				Value:   c,
				Code:    CodeOutOfRange,
			}
		}
		return n, nil
	}
}

func floatValidator(checks []func(float64) bool) func(any) (any, *ValidationError) {
	return func(c any) (any, *ValidationError) {
		f, ve := normalizeFloat(c)
		if ve != nil {
			return nil, ve
		}
		for _, check := range checks {
			if !check(f) {
				return nil, rejectedError(c)
			}
		}
		return f, nil
	}
}

func floatRangeValidator(min, max float64) func(any) (any, *ValidationError) {
	return func(c any) (any, *ValidationError) {
		f, ve := normalizeFloat(c)
		if ve != nil {
			return nil, ve
		}
		if f < min || f > max {
			return nil, &ValidationError{
				Message: fmt.Sprintf("out of range [%v, %v]", min, max),
				Value:   c,
				Code:    CodeOutOfRange,
			}
		}
		return f, nil
	}
}

func stringValidator(checks []func(string) bool) func(any) (any, *ValidationError) {
	return func(c any) (any, *ValidationError) {
		s, ve := normalizeString(c)
		if ve != nil {
			return nil, ve
		}
		for _, check := range checks {
			if !check(s) {
				return nil, rejectedError(c)
			}
		}
		return s, nil
	}
}

func whitelistValidator(allowed []string) func(any) (any, *ValidationError) {
	return func(c any) (any, *ValidationError) {
		s, ve := normalizeString(c)
		if ve != nil {
			return nil, ve
		}
		for _, member := range allowed {
			if s == member {
				return s, nil
			}
		}
		return nil, &ValidationError{
			Message: fmt.Sprintf("not in allowed set [%s]", strings.Join(allowed, ", ")),
			Value:   c,
			Code:    CodeNotAllowed,
		}
	}
}

func listValidator(elem func(string) bool, allowEmpty bool) func(any) (any, *ValidationError) {
	return func(c any) (any, *ValidationError) {
		list, ve := normalizeStringList(c)
		if ve != nil {
			return nil, ve
		}
		if len(list) == 0 && !allowEmpty {
			return nil, &ValidationError{
				Message: "empty list not allowed",
				Value:   c,
				Code:    CodeEmptyList,
			}
		}
		if elem != nil {
			for _, entry := range list {
				if !elem(entry) {
					return nil, &ValidationError{
						Message: fmt.Sprintf("element %q rejected", entry),
						Value:   c,
						Code:    CodeBadElement,
					}
				}
			}
		}
		return list, nil
	}
}

func enumValidator(universe, allowed []string) func(any) (any, *ValidationError) {
	return func(c any) (any, *ValidationError) {
		member, ok := resolveEnum(c, universe)
		if !ok {
			return nil, &ValidationError{
				Message: fmt.Sprintf("no enum member for %v in [%s]", c, strings.Join(universe, ", ")),
				Value:   c,
				Code:    CodeTypeMismatch,
			}
		}
		for _, a := range allowed {
			if member == a {
				return member, nil
			}
		}
		return nil, &ValidationError{
			Message: fmt.Sprintf("not in allowed subset [%s]", strings.Join(allowed, ", ")),
			Value:   c,
			Code:    CodeNotAllowed,
		}
	}
}

func rejectedError(c any) *ValidationError {
	return &ValidationError{
		Message: "rejected by validator",
		Value:   c,
		Code:    CodeRejected,
	}
}
