// FILE: modconf/toml_test.go
package modconf

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	t.Run("CommentsAndConstraintNotes", func(t *testing.T) {
		_, _, spec := buildGeneralSpec(t)

		want := `[general]

# Maximum number of tracked items.
# Range: 1 ~ 1000
max_items = 10

greeting = "hello"
`
		assert.Equal(t, want, string(spec.Render()))
	})

	t.Run("AllowedValuesAndWorldRestart", func(t *testing.T) {
		b := NewBuilder()
		b.WorldRestart().DefineEnum("mode", "fast", []string{"fast", "slow"})
		spec, err := b.Build()
		require.NoError(t, err)

		out := string(spec.Render())
		assert.Contains(t, out, "# Allowed Values: fast, slow\n")
		assert.Contains(t, out, "# Requires world restart\n")
		assert.Contains(t, out, "mode = \"fast\"\n")
	})

	t.Run("SectionCommentAboveHeader", func(t *testing.T) {
		b := NewBuilder()
		b.Comment("Overall settings.").Push("general")
		b.DefineInt("x", 1)
		b.Pop()
		spec, err := b.Build()
		require.NoError(t, err)

		assert.Contains(t, string(spec.Render()), "# Overall settings.\n[general]\n")
	})

	t.Run("ValuesRenderBeforeSubsections", func(t *testing.T) {
		b := NewBuilder()
		b.Push("s")
		b.DefineInt("in", 1)
		b.Pop()
		b.DefineInt("top", 2)
		spec, err := b.Build()
		require.NoError(t, err)

		out := string(spec.Render())
		topAt := strings.Index(out, "top = 2")
		secAt := strings.Index(out, "[s]")
		require.GreaterOrEqual(t, topAt, 0)
		require.GreaterOrEqual(t, secAt, 0)
		assert.Less(t, topAt, secAt, "a root value after [s] would belong to the table")
	})

	t.Run("RendersEffectiveValues", func(t *testing.T) {
		maxItems, _, spec := buildGeneralSpec(t)
		require.NoError(t, maxItems.Set(321))

		assert.Contains(t, string(spec.Render()), "max_items = 321\n")
	})

	t.Run("FloatAlwaysFloatSyntax", func(t *testing.T) {
		b := NewBuilder()
		b.DefineFloat("whole", 2.0)
		b.DefineFloat("frac", 2.5)
		b.DefineFloat("tiny", 0.0001)
		spec, err := b.Build()
		require.NoError(t, err)

		out := string(spec.Render())
		assert.Contains(t, out, "whole = 2.0\n")
		assert.Contains(t, out, "frac = 2.5\n")
		assert.Contains(t, out, "tiny = 0.0001\n")
	})

	t.Run("StringEscaping", func(t *testing.T) {
		b := NewBuilder()
		b.DefineString("s", "say \"hi\"\nback\\slash\ttab")
		spec, err := b.Build()
		require.NoError(t, err)

		assert.Contains(t, string(spec.Render()), `s = "say \"hi\"\nback\\slash\ttab"`)
	})

	t.Run("Lists", func(t *testing.T) {
		b := NewBuilder()
		b.DefineList("items", []string{"a", "b"}, nil)
		b.DefineListAllowEmpty("none", nil, nil)
		spec, err := b.Build()
		require.NoError(t, err)

		out := string(spec.Render())
		assert.Contains(t, out, `items = ["a", "b"]`)
		assert.Contains(t, out, "none = []\n")
	})

	t.Run("MultilineCommentBlankLine", func(t *testing.T) {
		b := NewBuilder()
		b.Comment("first", "", "third").DefineInt("x", 1)
		spec, err := b.Build()
		require.NoError(t, err)

		assert.Contains(t, string(spec.Render()), "# first\n#\n# third\n")
	})
}

func TestRenderRoundTrip(t *testing.T) {
	build := func() *ConfigSpec {
		b := NewBuilder()
		b.Comment("General gameplay settings.").Push("general")
		b.Comment("Maximum number of tracked items.").DefineInRange("max_items", 10, 1, 1000)
		b.DefineString("greeting", "say \"hi\"")
		b.DefineBool("enabled", true)
		b.Push("advanced")
		b.DefineFloatInRange("factor", 1.5, 0.0, 10.0)
		b.Pop()
		b.Pop()
		b.DefineList("tags", []string{"one", "two"}, nil)
		b.DefineEnum("mode", "BALANCED", []string{"FAST", "BALANCED"})
		return b.MustBuild()
	}

	source := build()
	rendered := source.Render()

	target := build()
	report := target.Apply(rendered)
	assert.Empty(t, report.Corrections)
	assert.Empty(t, report.Missing)
	assert.Empty(t, report.Unknown)
	assert.Nil(t, report.ParseErr)
	assert.False(t, target.IsDirty(), "a rendered document reloads without divergence")

	for _, vs := range source.Values() {
		got, ok := target.Get(vs.Path())
		require.True(t, ok)
		want, _ := source.Get(vs.Path())
		assert.Equal(t, want, got, vs.Path())
	}
}

func TestSaveTo(t *testing.T) {
	maxItems, _, spec := buildGeneralSpec(t)
	require.NoError(t, maxItems.Set(77))
	require.True(t, spec.IsDirty())

	path := filepath.Join(t.TempDir(), "nested", "dir", "test.toml")
	require.NoError(t, spec.SaveTo(path))
	assert.False(t, spec.IsDirty(), "saving settles the document")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "max_items = 77\n")

	_, _, other := buildGeneralSpec(t)
	report := other.Apply(data)
	assert.False(t, report.Dirty())
	val, _ := other.Get("general.max_items")
	assert.Equal(t, 77, val)
}
