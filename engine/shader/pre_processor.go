// pre_processor.go implements the WGSL pre-processor. It scans kernel source for @ssbo:
// annotations, replaces them with declarations rendered from a BufferSet, and collects the
// binding annotations so callers can wire buffers to bind groups without string lookups.
package shader

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Carmen-Shannon/oxy-ssbo/engine/errors"
	"github.com/Carmen-Shannon/oxy-ssbo/engine/ssbo"
)

// addressSpaceRegistry maps address space argument keys to WGSL var<> syntax strings.
var addressSpaceRegistry = map[AnnotationArg]string{
	AnnotationArgStorageTypeUniform:   "var<uniform>",
	AnnotationArgStorageTypeRead:      "var<storage, read>",
	AnnotationArgStorageTypeReadWrite: "var<storage, read_write>",
}

// preProcessor is the implementation of the PreProcessor interface.
type preProcessor struct {
	// set resolves struct and buffer names used by annotations.
	set *ssbo.BufferSet

	// declarations accumulates group annotations during a Process call.
	declarations []Annotation
}

// PreProcessor processes WGSL source containing @ssbo: annotations, replacing them with
// declarations rendered from a BufferSet while collecting the binding declarations.
type PreProcessor interface {
	// Process replaces every annotation in source with its WGSL output. Each struct is emitted
	// at most once per call, at the first annotation that needs it.
	//
	// Parameters:
	//   - source: the WGSL source containing annotations
	//
	// Returns:
	//   - string: the processed WGSL source
	//   - error: an invalid input error for a malformed annotation, or a not found error for an
	//     unknown struct or buffer name
	Process(source string) (string, error)

	// Declarations returns the group annotations collected during the most recent call to
	// Process, in source order.
	//
	// Returns:
	//   - []Annotation: the declarations collected during the last Process call
	Declarations() []Annotation
}

var _ PreProcessor = &preProcessor{}

// NewPreProcessor creates a PreProcessor that resolves names against set.
//
// Parameters:
//   - set: the buffer set providing struct and buffer declarations, may be nil for sources
//     without annotations
//
// Returns:
//   - PreProcessor: a ready-to-use pre-processor instance
func NewPreProcessor(set *ssbo.BufferSet) PreProcessor {
	return &preProcessor{set: set}
}

func (p *preProcessor) structDecls(name string, lineNum int) ([]ssbo.Declaration, error) {
	if p.set != nil {
		if st, err := p.set.Struct(name); err == nil {
			return st.Declarations(), nil
		}
	}
	return nil, errors.New(errors.PhaseShader, errors.KindNotFound).
		Path("line", strconv.Itoa(lineNum)).
		Detail("unknown struct %q", name).
		Build()
}

func (p *preProcessor) Process(source string) (string, error) {
	p.declarations = p.declarations[:0]
	emitted := make(map[string]bool)

	lines := strings.Split(source, "\n")
	out := make([]string, 0, len(lines))
	emit := func(decls []ssbo.Declaration) {
		for _, d := range decls {
			name := d.Name
			if d.Kind == ssbo.DeclarationBuffer {
				name = ssbo.BlockTypeName(d.Name)
			}
			if emitted[name] {
				continue
			}
			emitted[name] = true
			out = append(out, d.WGSLStruct(), "")
		}
	}

	for i, line := range lines {
		a, err := parseAnnotation(line, i+1)
		if err != nil {
			return "", err
		}
		if a == nil {
			out = append(out, line)
			continue
		}

		switch a.Type {
		case AnnotationTypeInclude:
			decls, err := p.structDecls(string(a.Args[0]), a.Line)
			if err != nil {
				return "", err
			}
			emit(decls)
		case AnnotationTypeBindingGroup:
			elem, isArray := a.ElementType()
			var wgslType string
			if buf, err := p.bufferOf(elem); err == nil && !isArray {
				emit(buf.Declarations())
				wgslType = ssbo.BlockTypeName(elem)
			} else {
				decls, err := p.structDecls(elem, a.Line)
				if err != nil {
					return "", err
				}
				emit(decls)
				wgslType = elem
				if isArray {
					wgslType = fmt.Sprintf("array<%s>", elem)
				}
			}

			out = append(out, fmt.Sprintf("@group(%d) @binding(%d) %s %s: %s;",
				*a.Group, *a.Binding, addressSpaceRegistry[a.Args[0]], a.Args[1], wgslType))
			p.declarations = append(p.declarations, *a)
		}
	}
	return strings.Join(out, "\n"), nil
}

func (p *preProcessor) bufferOf(name string) (*ssbo.Buffer, error) {
	if p.set == nil {
		return nil, errors.NotFound(errors.PhaseShader, "buffer", name)
	}
	return p.set.Buffer(name)
}

func (p *preProcessor) Declarations() []Annotation {
	return p.declarations
}
