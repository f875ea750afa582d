// FILE: modconf/section.go
package modconf

// SectionSpec is a named grouping node in the configuration tree. Children
// are values or nested sections, keyed by their last path segment; no two
// children share a segment name. Insertion order is preserved for
// serialization.
type SectionSpec struct {
	path    string // dot path, "" at the root
	name    string // last segment, "" at the root
	comment []string

	order    []string
	values   map[string]*ValueSpec
	sections map[string]*SectionSpec
}

func newSectionSpec(path, name string) *SectionSpec {
	return &SectionSpec{
		path:     path,
		name:     name,
		values:   make(map[string]*ValueSpec),
		sections: make(map[string]*SectionSpec),
	}
}

// Path returns the section's full dot path, or "" for the root.
func (s *SectionSpec) Path() string { return s.path }

// Name returns the section's last path segment, or "" for the root.
func (s *SectionSpec) Name() string { return s.name }

// Comment returns the comment lines attached at push time.
func (s *SectionSpec) Comment() []string {
	out := make([]string, len(s.comment))
	copy(out, s.comment)
	return out
}

// Values returns the section's direct child values in insertion order.
func (s *SectionSpec) Values() []*ValueSpec {
	out := make([]*ValueSpec, 0, len(s.values))
	for _, name := range s.order {
		if v, ok := s.values[name]; ok {
			out = append(out, v)
		}
	}
	return out
}

// Sections returns the section's direct child sections in insertion order.
func (s *SectionSpec) Sections() []*SectionSpec {
	out := make([]*SectionSpec, 0, len(s.sections))
	for _, name := range s.order {
		if sub, ok := s.sections[name]; ok {
			out = append(out, sub)
		}
	}
	return out
}

// hasChild reports whether a direct child (value or section) uses the name.
func (s *SectionSpec) hasChild(name string) bool {
	if _, ok := s.values[name]; ok {
		return true
	}
	_, ok := s.sections[name]
	return ok
}

func (s *SectionSpec) addValue(name string, v *ValueSpec) {
	s.values[name] = v
	s.order = append(s.order, name)
}

func (s *SectionSpec) addSection(name string, sub *SectionSpec) {
	s.sections[name] = sub
	s.order = append(s.order, name)
}
