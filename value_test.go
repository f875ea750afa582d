// FILE: modconf/value_test.go
package modconf

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueHandles(t *testing.T) {
	t.Run("GetBeforeLoadReturnsDefault", func(t *testing.T) {
		b := NewBuilder()
		v := b.DefineInRange("x", 7, 0, 100)
		_, err := b.Build()
		require.NoError(t, err)

		assert.Equal(t, 7, v.Get())
		assert.Equal(t, 7, v.Default())
	})

	t.Run("SetValidatesAndMarksDirty", func(t *testing.T) {
		b := NewBuilder()
		v := b.DefineInRange("x", 7, 0, 100)
		spec, err := b.Build()
		require.NoError(t, err)
		require.False(t, spec.IsDirty())

		require.NoError(t, v.Set(50))
		assert.Equal(t, 50, v.Get())
		assert.True(t, spec.IsDirty())

		err = v.Set(500)
		assert.ErrorIs(t, err, ErrValidationFailed)
		assert.Equal(t, 50, v.Get(), "rejected set must not change the value")
	})

	t.Run("SetBeforeBuild", func(t *testing.T) {
		b := NewBuilder()
		v := b.DefineInt("x", 1)

		err := v.Set(2)
		assert.ErrorIs(t, err, ErrSpecNotBuilt)
		assert.Equal(t, 1, v.Get())
	})

	t.Run("PathAndSpec", func(t *testing.T) {
		b := NewBuilder()
		b.Push("s")
		v := b.DefineBool("flag", false)
		b.Pop()
		_, err := b.Build()
		require.NoError(t, err)

		assert.Equal(t, "s.flag", v.Path())
		assert.Equal(t, KindBool, v.Spec().Kind())
	})
}

func TestValidateCandidates(t *testing.T) {
	b := NewBuilder()
	count := b.DefineInRange("count", 5, 1, 10)
	ratio := b.DefineFloatInRange("ratio", 0.5, 0.0, 1.0)
	color := b.DefineInList("color", "red", []string{"red", "green", "blue"})
	items := b.DefineList("items", []string{"a"}, nil)
	seed := b.DefineInt("seed", 1)
	_, err := b.Build()
	require.NoError(t, err)

	t.Run("IntFromTOMLTypes", func(t *testing.T) {
		// TOML deserialization yields int64
		got, err := count.Spec().Validate(int64(7))
		require.NoError(t, err)
		assert.Equal(t, 7, got)

		// integral float accepted
		got, err = count.Spec().Validate(float64(3))
		require.NoError(t, err)
		assert.Equal(t, 3, got)

		_, err = count.Spec().Validate(3.5)
		assert.ErrorIs(t, err, ErrValidationFailed)

		_, err = count.Spec().Validate("7")
		var ve *ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, CodeTypeMismatch, ve.Code)
		assert.Equal(t, "count", ve.Path)
	})

	t.Run("RangeBoundsInclusive", func(t *testing.T) {
		_, err := count.Spec().Validate(1)
		assert.NoError(t, err)
		_, err = count.Spec().Validate(10)
		assert.NoError(t, err)

		_, err = count.Spec().Validate(0)
		var ve *ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, CodeOutOfRange, ve.Code)

		_, err = count.Spec().Validate(11)
		assert.Error(t, err)
	})

	t.Run("FloatAcceptsInt", func(t *testing.T) {
		got, err := ratio.Spec().Validate(int64(1))
		require.NoError(t, err)
		assert.Equal(t, 1.0, got)

		_, err = ratio.Spec().Validate(1.5)
		assert.Error(t, err)
	})

	t.Run("HugeFloatRejected", func(t *testing.T) {
		// MaxInt64 written as a float parses to 2^63, which has no int value.
		_, err := seed.Spec().Validate(9223372036854775807.0)
		var ve *ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, CodeTypeMismatch, ve.Code)

		_, err = seed.Spec().Validate(1e19)
		assert.ErrorIs(t, err, ErrValidationFailed)
		_, err = seed.Spec().Validate(-1e19)
		assert.ErrorIs(t, err, ErrValidationFailed)

		// The largest float64 below 2^63 still converts exactly.
		got, err := seed.Spec().Validate(9223372036854774784.0)
		require.NoError(t, err)
		assert.Equal(t, 9223372036854774784, got)

		got, err = seed.Spec().Validate(float64(math.MinInt64))
		require.NoError(t, err)
		assert.Equal(t, math.MinInt64, got)
	})

	t.Run("Whitelist", func(t *testing.T) {
		assert.Equal(t, KindStringInList, color.Spec().Kind())

		got, err := color.Spec().Validate("green")
		require.NoError(t, err)
		assert.Equal(t, "green", got)

		_, err = color.Spec().Validate("purple")
		var ve *ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, CodeNotAllowed, ve.Code)

		assert.Equal(t, []string{"red", "green", "blue"}, color.Spec().AllowedValues())
	})

	t.Run("List", func(t *testing.T) {
		got, err := items.Spec().Validate([]any{"x", "y"})
		require.NoError(t, err)
		assert.Equal(t, []string{"x", "y"}, got)

		_, err = items.Spec().Validate([]any{})
		var ve *ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, CodeEmptyList, ve.Code)

		_, err = items.Spec().Validate([]any{"x", 3})
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, CodeTypeMismatch, ve.Code)
	})
}

func TestEnumResolution(t *testing.T) {
	universe := []string{"FAST", "BALANCED", "THOROUGH"}

	b := NewBuilder()
	mode := b.DefineEnum("mode", "BALANCED", universe)
	narrow := b.DefineEnumIn("narrow", "FAST", universe, []string{"FAST", "BALANCED"})
	_, err := b.Build()
	require.NoError(t, err)

	t.Run("CaseInsensitiveName", func(t *testing.T) {
		got, err := mode.Spec().Validate("fast")
		require.NoError(t, err)
		assert.Equal(t, "FAST", got, "cached value is the canonical member name")
	})

	t.Run("OrdinalIndex", func(t *testing.T) {
		got, err := mode.Spec().Validate(int64(2))
		require.NoError(t, err)
		assert.Equal(t, "THOROUGH", got)

		_, err = mode.Spec().Validate(int64(3))
		assert.ErrorIs(t, err, ErrValidationFailed)
		_, err = mode.Spec().Validate(int64(-1))
		assert.Error(t, err)
	})

	t.Run("NoMember", func(t *testing.T) {
		_, err := mode.Spec().Validate("warp")
		assert.ErrorIs(t, err, ErrValidationFailed)
	})

	t.Run("SubsetRestriction", func(t *testing.T) {
		_, err := narrow.Spec().Validate("BALANCED")
		assert.NoError(t, err)

		// Resolves in the universe but sits outside the allowed subset.
		_, err = narrow.Spec().Validate("THOROUGH")
		var ve *ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, CodeNotAllowed, ve.Code)
	})
}

func TestCustomValidators(t *testing.T) {
	even := func(n int) bool { return n%2 == 0 }
	nonEmpty := func(s string) bool { return s != "" }

	b := NewBuilder()
	n := b.DefineInt("n", 2, even)
	s := b.DefineString("s", "x", nonEmpty)
	_, err := b.Build()
	require.NoError(t, err)

	_, err = n.Spec().Validate(4)
	assert.NoError(t, err)
	_, err = n.Spec().Validate(3)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, CodeRejected, ve.Code)

	_, err = s.Spec().Validate("")
	assert.ErrorIs(t, err, ErrValidationFailed)
}

func TestTypedGetters(t *testing.T) {
	b := NewBuilder()
	b.Push("g")
	b.DefineBool("flag", true)
	b.DefineInt("count", 4)
	b.DefineFloat("ratio", 0.25)
	b.DefineString("name", "orange")
	b.DefineList("tags", []string{"a", "b"}, nil)
	b.Pop()
	spec, err := b.Build()
	require.NoError(t, err)

	flag, err := spec.GetBool("g.flag")
	require.NoError(t, err)
	assert.True(t, flag)

	count, err := spec.GetInt("g.count")
	require.NoError(t, err)
	assert.Equal(t, 4, count)

	ratio, err := spec.GetFloat("g.ratio")
	require.NoError(t, err)
	assert.Equal(t, 0.25, ratio)

	// ints convert to float
	asFloat, err := spec.GetFloat("g.count")
	require.NoError(t, err)
	assert.Equal(t, 4.0, asFloat)

	name, err := spec.GetString("g.name")
	require.NoError(t, err)
	assert.Equal(t, "orange", name)

	tags, err := spec.GetStringList("g.tags")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, tags)

	_, err = spec.GetBool("g.count")
	assert.Error(t, err)
	_, err = spec.GetInt("g.nothing")
	assert.Error(t, err)
}
