package ssbo

import "github.com/Carmen-Shannon/oxy-ssbo/common"

// aggregateLayout is the folded layout of a field list.
type aggregateLayout struct {
	alignment   uint64
	elementSize uint64
	size        uint64
}

// computeSize fills in the field's alignment, per-dimension strides and total size.
// Dimensions fold from the innermost outwards: the element of an outer dimension is the whole
// inner aggregate, so its stride is that aggregate rounded up to the element alignment while
// the last element of every dimension stays unpadded.
func (f *Field) computeSize() {
	size, align := f.typ.elementLayout()
	f.alignment = align

	n := len(f.dims)
	f.elemSizes = make([]uint64, n)
	f.strides = make([]uint64, n)
	for i := n - 1; i >= 0; i-- {
		f.elemSizes[i] = size
		f.strides[i] = common.RoundUpAlign(align, size)
		size = f.strides[i]*(f.dims[i]-1) + size
	}
	f.size = size
}

// forcesTrailing reports whether the next sibling must start on this field's alignment.
// Arrays and struct instances impose it; plain primitives do not.
func (f *Field) forcesTrailing() bool {
	return f.IsArray() || f.typ.IsStruct()
}

// layoutFields assigns offsets left to right and returns the folded layout.
//
// Each field starts at max(own alignment, trailing requirement of the previous field). The raw
// element size is the end of the last field; the padded size rounds it up to
// max(aggregate alignment, trailing requirement of the last field).
func layoutFields(fields []*Field) aggregateLayout {
	var offset, trailing, maxAlign uint64
	for _, f := range fields {
		offset = common.RoundUpAlign(max(f.alignment, trailing), offset)
		f.offset = offset
		offset += f.size

		if f.forcesTrailing() {
			trailing = f.alignment
		} else {
			trailing = 0
		}
		maxAlign = max(maxAlign, f.alignment)
	}

	return aggregateLayout{
		alignment:   maxAlign,
		elementSize: offset,
		size:        common.RoundUpAlign(max(maxAlign, trailing), offset),
	}
}
