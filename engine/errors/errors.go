package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseAny      Phase = ""         // matches every phase, used by sentinels
	PhaseSchema   Phase = "schema"   // struct/buffer declaration and resolution
	PhaseLayout   Phase = "layout"   // offset and size computation
	PhaseEncode   Phase = "encode"   // host value to bytes
	PhaseDecode   Phase = "decode"   // bytes to host value
	PhaseProtocol Phase = "protocol" // spatial hash phases
	PhasePipeline Phase = "pipeline" // kernel generation and stage ordering
	PhaseShader   Phase = "shader"   // shader reflection and validation
	PhaseGPU      Phase = "gpu"      // device buffer allocation and readback
	PhaseConfig   Phase = "config"   // schema and simulation files
)

// Kind categorizes the error
type Kind string

const (
	KindShapeMismatch    Kind = "shape_mismatch"
	KindTruncatedBuffer  Kind = "truncated_buffer"
	KindCyclicDependency Kind = "cyclic_dependency"
	KindConfiguration    Kind = "configuration"
	KindNotFound         Kind = "not_found"
	KindDuplicateName    Kind = "duplicate_name"
	KindOutOfVolume      Kind = "out_of_volume"
	KindInvalidInput     Kind = "invalid_input"
)

// Sentinels for errors.Is checks that only care about the error kind.
var (
	ErrShapeMismatch    = &Error{Kind: KindShapeMismatch}
	ErrTruncatedBuffer  = &Error{Kind: KindTruncatedBuffer}
	ErrCyclicDependency = &Error{Kind: KindCyclicDependency}
	ErrConfiguration    = &Error{Kind: KindConfiguration}
	ErrNotFound         = &Error{Kind: KindNotFound}
	ErrDuplicateName    = &Error{Kind: KindDuplicateName}
	ErrOutOfVolume      = &Error{Kind: KindOutOfVolume}
	ErrInvalidInput     = &Error{Kind: KindInvalidInput}
)

// Error is the structured error type used throughout the module
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Detail string
	Path   []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error. A target with an empty Phase matches on
// Kind only.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Phase == PhaseAny {
		return e.Kind == t.Kind
	}
	return e.Phase == t.Phase && e.Kind == t.Kind
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the field path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// ShapeMismatch creates an error for a host value whose shape disagrees with the schema
func ShapeMismatch(phase Phase, path []string, expected, got int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindShapeMismatch,
		Path:   path,
		Detail: fmt.Sprintf("expected %d elements, got %d", expected, got),
	}
}

// TruncatedBuffer creates an error for a byte slice shorter than the declared size
func TruncatedBuffer(phase Phase, path []string, need, have uint64) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindTruncatedBuffer,
		Path:   path,
		Detail: fmt.Sprintf("need %d bytes, have %d", need, have),
	}
}

// NotFound creates an error for a lookup of an undeclared name
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Path:   []string{name},
		Detail: fmt.Sprintf("%s %q not declared", what, name),
	}
}

// Configuration creates a configuration error
func Configuration(phase Phase, format string, args ...any) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindConfiguration,
		Detail: fmt.Sprintf(format, args...),
	}
}

// AppendPath returns a copy of path with elems appended, so sibling paths never share a
// backing array.
func AppendPath(path []string, elems ...string) []string {
	out := make([]string, 0, len(path)+len(elems))
	out = append(out, path...)
	return append(out, elems...)
}
