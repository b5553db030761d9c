package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "full error",
			err: &Error{
				Phase:  PhaseEncode,
				Kind:   KindShapeMismatch,
				Path:   []string{"boids", "3", "pos"},
				Detail: "expected 3 elements, got 2",
			},
			contains: []string{"[encode]", "shape_mismatch", "boids.3.pos", "expected 3 elements"},
		},
		{
			name: "minimal error",
			err: &Error{
				Phase: PhaseDecode,
				Kind:  KindTruncatedBuffer,
			},
			contains: []string{"[decode]", "truncated_buffer"},
		},
		{
			name: "error with cause",
			err: &Error{
				Phase:  PhaseConfig,
				Kind:   KindInvalidInput,
				Detail: "bad document",
				Cause:  errors.New("unexpected token"),
			},
			contains: []string{"[config]", "invalid_input", "bad document", "caused by", "unexpected token"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				assert.Contains(t, msg, s)
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := New(PhaseGPU, KindInvalidInput).Cause(cause).Build()

	assert.ErrorIs(t, err, cause)
}

func TestError_Is(t *testing.T) {
	err := ShapeMismatch(PhaseEncode, []string{"dud"}, 5, 4)

	assert.ErrorIs(t, err, ErrShapeMismatch)
	assert.ErrorIs(t, err, &Error{Phase: PhaseEncode, Kind: KindShapeMismatch})
	assert.NotErrorIs(t, err, &Error{Phase: PhaseDecode, Kind: KindShapeMismatch})
	assert.NotErrorIs(t, err, ErrTruncatedBuffer)
}

func TestError_IsThroughWrapping(t *testing.T) {
	inner := Configuration(PhaseProtocol, "record count %d is not a power of two", 100)
	outer := New(PhasePipeline, KindInvalidInput).Cause(inner).Build()

	assert.ErrorIs(t, outer, ErrConfiguration)

	var target *Error
	require.ErrorAs(t, outer, &target)
	assert.Equal(t, KindInvalidInput, target.Kind)
}

func TestBuilder(t *testing.T) {
	err := New(PhaseSchema, KindNotFound).
		Path("Boid", "pos").
		Value("vec5").
		Detail("unknown type %q", "vec5").
		Build()

	assert.Equal(t, PhaseSchema, err.Phase)
	assert.Equal(t, []string{"Boid", "pos"}, err.Path)
	assert.Equal(t, "vec5", err.Value)
	assert.Equal(t, `unknown type "vec5"`, err.Detail)
}

func TestAppendPath(t *testing.T) {
	base := make([]string, 1, 4)
	base[0] = "root"

	a := AppendPath(base, "a")
	b := AppendPath(base, "b")

	assert.Equal(t, []string{"root", "a"}, a)
	assert.Equal(t, []string{"root", "b"}, b)
}
