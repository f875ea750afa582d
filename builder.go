// FILE: modconf/builder.go
package modconf

import (
	"fmt"
)

// Builder accumulates a configuration tree through Push/Pop section calls
// and Define variants, then freezes it with Build. Builders are single
// threaded by contract: definition happens before registration, never
// concurrently with loads.
//
// Errors are detected at the offending call and recorded first-error-wins;
// later calls become no-ops and Build returns the recorded error. Err
// exposes it immediately for callers that want to fail between calls.
type Builder struct {
	root  *SectionSpec
	stack []*SectionSpec

	values []*ValueSpec

	pendingComment     []string
	pendingTranslation string
	pendingRestart     bool

	err   error
	built bool
}

// NewBuilder creates an empty builder positioned at the root section.
func NewBuilder() *Builder {
	root := newSectionSpec("", "")
	return &Builder{
		root:  root,
		stack: []*SectionSpec{root},
	}
}

// fail records the first error; subsequent definition calls become no-ops.
func (b *Builder) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}

func (b *Builder) current() *SectionSpec {
	return b.stack[len(b.stack)-1]
}

// Err returns the first error recorded by a builder call, or nil.
func (b *Builder) Err() error {
	return b.err
}

// Comment attaches comment lines to the next definition or pushed section.
// Multiple calls accumulate lines.
func (b *Builder) Comment(lines ...string) *Builder {
	b.pendingComment = append(b.pendingComment, lines...)
	return b
}

// Translation attaches a translation key to the next defined value.
func (b *Builder) Translation(key string) *Builder {
	b.pendingTranslation = key
	return b
}

// WorldRestart flags the next defined value as requiring a world restart
// to take effect.
func (b *Builder) WorldRestart() *Builder {
	b.pendingRestart = true
	return b
}

// Push opens a named section; definitions until the matching Pop land
// under it. Pending comment lines attach to the section.
func (b *Builder) Push(name string) *Builder {
	if b.err != nil || b.built {
		return b
	}
	if !isValidKeySegment(name) {
		b.fail(&BuilderStateError{Op: "push", Detail: fmt.Sprintf("invalid section name %q", name)})
		return b
	}
	parent := b.current()
	if parent.hasChild(name) {
		b.fail(&DuplicatePathError{Path: joinPath(parent.path, name)})
		return b
	}

	sec := newSectionSpec(joinPath(parent.path, name), name)
	sec.comment = b.pendingComment
	b.pendingComment = nil

	parent.addSection(name, sec)
	b.stack = append(b.stack, sec)
	return b
}

// Pop closes the innermost open section. Popping at the root records a
// BuilderStateError.
func (b *Builder) Pop() *Builder {
	if b.err != nil || b.built {
		return b
	}
	if len(b.stack) == 1 {
		b.fail(&BuilderStateError{Op: "pop", Detail: "no open section"})
		return b
	}
	b.stack = b.stack[:len(b.stack)-1]
	return b
}

// define creates a ValueSpec under the current section. On any error the
// spec is left detached from the tree so the returned handle still serves
// the default, and the error is recorded for Build.
func (b *Builder) define(name string, kind ValueKind, def any, validate func(any) (any, *ValidationError), rangeNote string, allowed []string) *ValueSpec {
	parent := b.current()
	vs := &ValueSpec{
		path:           joinPath(parent.path, name),
		kind:           kind,
		def:            def,
		validate:       validate,
		comment:        b.pendingComment,
		translationKey: b.pendingTranslation,
		worldRestart:   b.pendingRestart,
		rangeNote:      rangeNote,
		allowed:        allowed,
	}
	b.pendingComment = nil
	b.pendingTranslation = ""
	b.pendingRestart = false

	if b.err != nil || b.built {
		return vs
	}
	if !isValidKeySegment(name) {
		b.fail(&BuilderStateError{Op: "define", Detail: fmt.Sprintf("invalid value name %q", name)})
		return vs
	}
	if parent.hasChild(name) {
		b.fail(&DuplicatePathError{Path: vs.path})
		return vs
	}

	// The default must pass its own validator, in normalized form.
	normalized, ve := validate(def)
	if ve != nil {
		ve.Path = vs.path
		b.fail(fmt.Errorf("invalid default for %q: %w", vs.path, ve))
		return vs
	}
	vs.def = normalized

	parent.addValue(name, vs)
	b.values = append(b.values, vs)
	return vs
}

// Define declares a value whose kind is inferred from the default's type.
// The validator accepts any candidate of the matching data type. Supported
// default types: bool, int, int64, float64, string, []string.
func (b *Builder) Define(name string, def any) Value[any] {
	var vs *ValueSpec
	switch d := def.(type) {
	case bool:
		vs = b.define(name, KindBool, d, boolValidator(), "", nil)
	case int:
		vs = b.define(name, KindInt, d, intValidator(nil), "", nil)
	case int64:
		vs = b.define(name, KindInt, int(d), intValidator(nil), "", nil)
	case float64:
		vs = b.define(name, KindFloat, d, floatValidator(nil), "", nil)
	case string:
		vs = b.define(name, KindString, d, stringValidator(nil), "", nil)
	case []string:
		vs = b.define(name, KindList, d, listValidator(nil, true), "", nil)
	default:
		b.fail(&BuilderStateError{Op: "define", Detail: fmt.Sprintf("unsupported default type %T for %q", def, name)})
		vs = &ValueSpec{path: joinPath(b.current().path, name), kind: KindString, def: def, validate: stringValidator(nil)}
	}
	return Value[any]{spec: vs}
}

// DefineBool declares a boolean value.
func (b *Builder) DefineBool(name string, def bool) Value[bool] {
	vs := b.define(name, KindBool, def, boolValidator(), "", nil)
	return Value[bool]{spec: vs}
}

// DefineString declares a string value with optional custom validators.
func (b *Builder) DefineString(name, def string, valid ...func(string) bool) Value[string] {
	vs := b.define(name, KindString, def, stringValidator(valid), "", nil)
	return Value[string]{spec: vs}
}

// DefineInt declares an integer value with optional custom validators.
func (b *Builder) DefineInt(name string, def int, valid ...func(int) bool) Value[int] {
	vs := b.define(name, KindInt, def, intValidator(valid), "", nil)
	return Value[int]{spec: vs}
}

// DefineFloat declares a float value with optional custom validators.
func (b *Builder) DefineFloat(name string, def float64, valid ...func(float64) bool) Value[float64] {
	vs := b.define(name, KindFloat, def, floatValidator(valid), "", nil)
	return Value[float64]{spec: vs}
}

// DefineInRange declares an integer bounded to [min, max] inclusive. The
// default must satisfy the bounds or Build fails.
func (b *Builder) DefineInRange(name string, def, min, max int) Value[int] {
	if min > max {
		b.fail(&BuilderStateError{Op: "define", Detail: fmt.Sprintf("range bounds inverted for %q: %d > %d", name, min, max)})
	}
	vs := b.define(name, KindInt, def, intRangeValidator(min, max), fmt.Sprintf("%d ~ %d", min, max), nil)
	return Value[int]{spec: vs}
}

// DefineFloatInRange declares a float bounded to [min, max] inclusive.
func (b *Builder) DefineFloatInRange(name string, def, min, max float64) Value[float64] {
	if min > max {
		b.fail(&BuilderStateError{Op: "define", Detail: fmt.Sprintf("range bounds inverted for %q: %v > %v", name, min, max)})
	}
	vs := b.define(name, KindFloat, def, floatRangeValidator(min, max), fmt.Sprintf("%v ~ %v", min, max), nil)
	return Value[float64]{spec: vs}
}

// DefineInList declares a string restricted to a whitelist. The default
// must be a member.
func (b *Builder) DefineInList(name, def string, allowed []string) Value[string] {
	members := make([]string, len(allowed))
	copy(members, allowed)
	vs := b.define(name, KindStringInList, def, whitelistValidator(members), "", members)
	return Value[string]{spec: vs}
}

// DefineList declares a string list whose elements are validated
// independently. Empty lists are rejected; use DefineListAllowEmpty to
// permit them. A nil element validator accepts every element.
func (b *Builder) DefineList(name string, def []string, elem func(string) bool) Value[[]string] {
	vs := b.define(name, KindList, def, listValidator(elem, false), "", nil)
	return Value[[]string]{spec: vs}
}

// DefineListAllowEmpty declares a string list that may be empty.
func (b *Builder) DefineListAllowEmpty(name string, def []string, elem func(string) bool) Value[[]string] {
	vs := b.define(name, KindList, def, listValidator(elem, true), "", nil)
	return Value[[]string]{spec: vs}
}

// DefineEnum declares a value constrained to a fixed universe of member
// names. Candidates resolve case-insensitively by name, or by ordinal
// index into the universe; the cached value is always the canonical name.
func (b *Builder) DefineEnum(name, def string, universe []string) Value[string] {
	return b.DefineEnumIn(name, def, universe, universe)
}

// DefineEnumIn declares an enum value restricted to a subset of its
// universe. Candidates outside the subset are rejected even when they
// resolve to a member of the universe.
func (b *Builder) DefineEnumIn(name, def string, universe, allowed []string) Value[string] {
	members := make([]string, len(universe))
	copy(members, universe)
	subset := make([]string, len(allowed))
	copy(subset, allowed)
	vs := b.define(name, KindEnum, def, enumValidator(members, subset), "", subset)
	return Value[string]{spec: vs}
}

// Build freezes the accumulated tree into an immutable ConfigSpec. It
// returns the first recorded definition error, or an
// UnbalancedSectionError when sections remain open.
func (b *Builder) Build() (*ConfigSpec, error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.built {
		return nil, &BuilderStateError{Op: "build", Detail: "builder already built"}
	}
	if len(b.stack) > 1 {
		open := make([]string, 0, len(b.stack)-1)
		for _, sec := range b.stack[1:] {
			open = append(open, sec.path)
		}
		return nil, &UnbalancedSectionError{Open: open}
	}

	spec := newConfigSpec(b.root, b.values)
	for _, vs := range b.values {
		vs.owner = spec
	}
	b.built = true
	return spec, nil
}

// MustBuild is like Build but panics on error.
func (b *Builder) MustBuild() *ConfigSpec {
	spec, err := b.Build()
	if err != nil {
		panic(fmt.Sprintf("spec build failed: %v", err))
	}
	return spec
}

// Configure runs a constructor function against a fresh builder and
// returns both the constructed holder and the built spec. The factory is
// invoked exactly once; it typically stores the returned value handles on
// the holder.
func Configure[T any](factory func(*Builder) T) (T, *ConfigSpec, error) {
	b := NewBuilder()
	holder := factory(b)
	spec, err := b.Build()
	if err != nil {
		return holder, nil, err
	}
	return holder, spec, nil
}

// MustConfigure is like Configure but panics on error.
func MustConfigure[T any](factory func(*Builder) T) (T, *ConfigSpec) {
	holder, spec, err := Configure(factory)
	if err != nil {
		panic(fmt.Sprintf("spec build failed: %v", err))
	}
	return holder, spec
}
