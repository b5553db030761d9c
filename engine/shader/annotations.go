// annotations.go defines the annotation types and parser for the WGSL pre-processor.
// Annotations are single-line WGSL comments prefixed with @ssbo: that inject struct
// declarations rendered from a BufferSet and generate @group/@binding variable declarations
// for its buffers, so kernel sources never restate a layout by hand.
package shader

import (
	"slices"
	"strconv"
	"strings"

	"github.com/Carmen-Shannon/oxy-ssbo/engine/errors"
)

// annotationPrefix is the marker that identifies an annotation within a WGSL comment line.
// Every annotation must appear on a line beginning with "//" followed by this prefix.
const annotationPrefix = "@ssbo:"

// AnnotationType identifies the kind of annotation parsed from a WGSL comment line.
type AnnotationType string

const (
	// AnnotationTypeInclude injects the WGSL declaration of a struct from the BufferSet, preceded
	// by every struct it depends on. Structs already emitted earlier in the same source are
	// skipped.
	//
	// Syntax: //@ssbo:include <struct>
	//
	// Example: //@ssbo:include Boid
	AnnotationTypeInclude AnnotationType = "include"

	// AnnotationTypeBindingGroup generates a WGSL @group/@binding variable declaration and
	// records the binding in the pre-processor's declarations list. The type is a buffer name,
	// a struct name, or array<struct>. A buffer type emits the buffer's block struct and its
	// dependencies first; a struct type emits the struct and its dependencies.
	//
	// Syntax: //@ssbo:group <group> <binding> <address_space> <var_name> <type>
	//
	// Example: //@ssbo:group 0 0 storage_read_write data dataBuffer
	AnnotationTypeBindingGroup AnnotationType = "group"
)

// Annotation represents a single parsed @ssbo: annotation from a WGSL source line.
type Annotation struct {
	// Type identifies which annotation was parsed.
	Type AnnotationType

	// Args holds the annotation's arguments. The contents depend on Type:
	//   - include: [0] = struct name
	//   - group:   [0] = address space, [1] = var name, [2] = type
	Args []AnnotationArg

	// Line is the 1-based line number in the original WGSL source.
	Line int

	// Group is the @group index for group annotations. Nil for include annotations.
	Group *int

	// Binding is the @binding index for group annotations. Nil for include annotations.
	Binding *int
}

// AnnotationArg is a typed string used as an argument in annotations.
type AnnotationArg string

// Address space arguments map to WGSL var<> declarations in @ssbo:group annotations.
const (
	// AnnotationArgStorageTypeUniform maps to var<uniform> in WGSL.
	AnnotationArgStorageTypeUniform AnnotationArg = "storage_uniform"

	// AnnotationArgStorageTypeRead maps to var<storage, read> in WGSL.
	AnnotationArgStorageTypeRead AnnotationArg = "storage_read"

	// AnnotationArgStorageTypeReadWrite maps to var<storage, read_write> in WGSL.
	AnnotationArgStorageTypeReadWrite AnnotationArg = "storage_read_write"
)

// validAddressSpaces lists all AnnotationArg values accepted as address space arguments.
var validAddressSpaces = []AnnotationArg{
	AnnotationArgStorageTypeUniform,
	AnnotationArgStorageTypeRead,
	AnnotationArgStorageTypeReadWrite,
}

// ElementType returns the type argument of a group annotation with any array<> wrapper
// removed, and whether the wrapper was present.
func (a Annotation) ElementType() (string, bool) {
	if len(a.Args) < 3 {
		return "", false
	}
	typeArg := string(a.Args[2])
	if inner, ok := strings.CutPrefix(typeArg, "array<"); ok {
		return strings.TrimSuffix(inner, ">"), true
	}
	return typeArg, false
}

func annotationError(lineNum int, format string, args ...any) error {
	return errors.New(errors.PhaseShader, errors.KindInvalidInput).
		Path("line", strconv.Itoa(lineNum)).
		Detail(format, args...).
		Build()
}

// parseAnnotation attempts to parse a single line of WGSL source as an @ssbo: annotation.
// Returns nil with no error for lines that do not contain the annotation prefix. Struct and
// buffer names are resolved later by the pre-processor.
//
// Parameters:
//   - line: the raw WGSL source line to parse
//   - lineNum: the 1-based line number for error reporting
//
// Returns:
//   - *Annotation: the parsed annotation, or nil if the line is not an annotation
//   - error: an invalid input error if the annotation is malformed
func parseAnnotation(line string, lineNum int) (*Annotation, error) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "//") {
		return nil, nil
	}
	_, after, ok := strings.Cut(trimmed, annotationPrefix)
	if !ok {
		return nil, nil
	}

	args := strings.Fields(after)
	if len(args) == 0 {
		return nil, annotationError(lineNum, "empty annotation")
	}

	switch AnnotationType(args[0]) {
	case AnnotationTypeInclude:
		if len(args) != 2 {
			return nil, annotationError(lineNum, "include annotation requires exactly one argument")
		}
		return &Annotation{
			Type: AnnotationTypeInclude,
			Args: []AnnotationArg{AnnotationArg(args[1])},
			Line: lineNum,
		}, nil
	case AnnotationTypeBindingGroup:
		if len(args) != 6 {
			return nil, annotationError(lineNum,
				"group annotation requires exactly five arguments (group, binding, address space, var name, type)")
		}
		groupInt, err := strconv.Atoi(args[1])
		if err != nil || groupInt < 0 {
			return nil, annotationError(lineNum, "invalid group number %q", args[1])
		}
		bindingInt, err := strconv.Atoi(args[2])
		if err != nil || bindingInt < 0 {
			return nil, annotationError(lineNum, "invalid binding number %q", args[2])
		}
		if !slices.Contains(validAddressSpaces, AnnotationArg(args[3])) {
			return nil, annotationError(lineNum, "unknown address space %q", args[3])
		}
		return &Annotation{
			Type:    AnnotationTypeBindingGroup,
			Args:    []AnnotationArg{AnnotationArg(args[3]), AnnotationArg(args[4]), AnnotationArg(args[5])},
			Line:    lineNum,
			Group:   &groupInt,
			Binding: &bindingInt,
		}, nil
	default:
		return nil, annotationError(lineNum, "unknown annotation type %q", args[0])
	}
}
