// FILE: modconf/spec.go
package modconf

import (
	"fmt"
	"sort"
	"sync/atomic"
)

// ConfigSpec is the frozen, immutable tree of sections and values produced
// by a builder. The tree shape never changes after Build; loads and sets
// mutate only the cached slot of each value.
type ConfigSpec struct {
	root   *SectionSpec
	values []*ValueSpec
	byPath map[string]*ValueSpec

	dirty atomic.Bool
}

func newConfigSpec(root *SectionSpec, values []*ValueSpec) *ConfigSpec {
	byPath := make(map[string]*ValueSpec, len(values))
	for _, vs := range values {
		byPath[vs.path] = vs
	}
	return &ConfigSpec{
		root:   root,
		values: values,
		byPath: byPath,
	}
}

// Root returns the root section of the tree.
func (s *ConfigSpec) Root() *SectionSpec { return s.root }

// Values returns every defined value in definition order.
func (s *ConfigSpec) Values() []*ValueSpec {
	out := make([]*ValueSpec, len(s.values))
	copy(out, s.values)
	return out
}

// Value returns the descriptor at a dot path.
func (s *ConfigSpec) Value(path string) (*ValueSpec, bool) {
	vs, ok := s.byPath[path]
	return vs, ok
}

// Get retrieves the effective value at a dot path: the cached value, or
// the default before the first load. The second return reports whether the
// path is defined.
func (s *ConfigSpec) Get(path string) (any, bool) {
	vs, ok := s.byPath[path]
	if !ok {
		return nil, false
	}
	return vs.value(), true
}

// GetBool retrieves a boolean value using the path.
func (s *ConfigSpec) GetBool(path string) (bool, error) {
	val, found := s.Get(path)
	if !found {
		return false, fmt.Errorf("path not defined: %s", path)
	}
	if b, ok := val.(bool); ok {
		return b, nil
	}
	return false, fmt.Errorf("cannot convert %T to bool for path %s", val, path)
}

// GetInt retrieves an integer value using the path.
func (s *ConfigSpec) GetInt(path string) (int, error) {
	val, found := s.Get(path)
	if !found {
		return 0, fmt.Errorf("path not defined: %s", path)
	}
	if n, ok := val.(int); ok {
		return n, nil
	}
	return 0, fmt.Errorf("cannot convert %T to int for path %s", val, path)
}

// GetFloat retrieves a float value using the path. Integer values convert.
func (s *ConfigSpec) GetFloat(path string) (float64, error) {
	val, found := s.Get(path)
	if !found {
		return 0, fmt.Errorf("path not defined: %s", path)
	}
	switch n := val.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	}
	return 0, fmt.Errorf("cannot convert %T to float64 for path %s", val, path)
}

// GetString retrieves a string value using the path.
func (s *ConfigSpec) GetString(path string) (string, error) {
	val, found := s.Get(path)
	if !found {
		return "", fmt.Errorf("path not defined: %s", path)
	}
	if str, ok := val.(string); ok {
		return str, nil
	}
	return "", fmt.Errorf("cannot convert %T to string for path %s", val, path)
}

// GetStringList retrieves a string list value using the path.
func (s *ConfigSpec) GetStringList(path string) ([]string, error) {
	val, found := s.Get(path)
	if !found {
		return nil, fmt.Errorf("path not defined: %s", path)
	}
	if list, ok := val.([]string); ok {
		out := make([]string, len(list))
		copy(out, list)
		return out, nil
	}
	return nil, fmt.Errorf("cannot convert %T to []string for path %s", val, path)
}

// IsDirty reports whether the backing document diverges from the effective
// values and must be rewritten on next save.
func (s *ConfigSpec) IsDirty() bool {
	return s.dirty.Load()
}

func (s *ConfigSpec) markDirty() {
	s.dirty.Store(true)
}

func (s *ConfigSpec) clearDirty() {
	s.dirty.Store(false)
}

// resetValues restores every cached slot to its default and clears the
// dirty flag.
func (s *ConfigSpec) resetValues() {
	for _, vs := range s.values {
		vs.resetCache()
	}
	s.dirty.Store(false)
}

// Correction records one value that failed validation and fell back to its
// default during a load.
type Correction struct {
	// Path is the corrected value's dot path.
	Path string
	// Invalid is the rejected candidate from the document.
	Invalid any
	// Corrected is the default that replaced it.
	Corrected any
	// Err is the validation failure.
	Err *ValidationError
}

// ApplyReport summarizes one application of a document to a spec.
type ApplyReport struct {
	// Corrections lists values present in the document but rejected by
	// their validators.
	Corrections []Correction
	// Missing lists defined paths absent from the document.
	Missing []string
	// Unknown lists document keys with no matching definition; they are
	// dropped when the document is rewritten.
	Unknown []string
	// ParseErr is set when the document was structurally unparseable and
	// every value fell back to its default.
	ParseErr *DeserializationError
}

// Dirty reports whether the applied document diverges from the effective
// values and must be rewritten.
func (r *ApplyReport) Dirty() bool {
	return len(r.Corrections) > 0 || len(r.Missing) > 0 || len(r.Unknown) > 0 || r.ParseErr != nil
}

// Apply deserializes a document into the spec. Every defined value is
// visited in definition order: present and valid candidates refresh the
// cached slot; absent paths fall back to the default; invalid candidates
// are recorded as corrections and fall back to the default. A structurally
// unparseable document is treated as empty. Apply never fails; recovery is
// reported, not returned.
func (s *ConfigSpec) Apply(data []byte) *ApplyReport {
	doc, err := parseDocument(data)
	if err != nil {
		report := s.applyDocument(map[string]any{})
		report.ParseErr = &DeserializationError{Err: err}
		s.dirty.Store(true)
		return report
	}
	return s.applyDocument(doc)
}

// applyDocument walks the spec against a parsed document. The walk always
// runs to completion; corrections are local to each value. The dirty flag
// is recomputed from the report, so reapplying an unchanged clean document
// leaves it false.
func (s *ConfigSpec) applyDocument(doc map[string]any) *ApplyReport {
	report := &ApplyReport{}
	flat := flattenMap(doc, "")

	for _, vs := range s.values {
		raw, present := flat[vs.path]
		if !present {
			vs.resetCache()
			report.Missing = append(report.Missing, vs.path)
			continue
		}
		delete(flat, vs.path)

		normalized, ve := vs.validate(raw)
		if ve != nil {
			ve.Path = vs.path
			vs.resetCache()
			report.Corrections = append(report.Corrections, Correction{
				Path:      vs.path,
				Invalid:   raw,
				Corrected: vs.def,
				Err:       ve,
			})
			continue
		}
		vs.setCache(normalized)
	}

	// Leftover flattened keys have no definition.
	for path := range flat {
		report.Unknown = append(report.Unknown, path)
	}
	sort.Strings(report.Unknown)

	s.dirty.Store(report.Dirty())
	return report
}
