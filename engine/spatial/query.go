package spatial

import (
	"context"
	"strconv"

	"github.com/chewxy/math32"

	"github.com/Carmen-Shannon/oxy-ssbo/engine/errors"
)

// Query calls fn with the sorted index of every candidate neighbor of record i: each record in
// a cell within Reach(radius) of record i's cell, excluding i itself. Candidates are not
// distance filtered. Cells with no records contribute nothing.
//
// Parameters:
//   - i: the sorted index of the querying record
//   - radius: the interaction radius
//   - fn: called once per candidate
//
// Returns:
//   - error: a configuration error if the protocol is not queryable or the radius is NaN or
//     negative, or an invalid input error if i is out of range
func (p *Protocol) Query(i int, radius float32, fn func(j int)) error {
	if err := p.expect("query", StateQueryable); err != nil {
		return err
	}
	if err := checkRadius(radius); err != nil {
		return err
	}
	if i < 0 || i >= p.n {
		return errors.New(errors.PhaseProtocol, errors.KindInvalidInput).
			Path("query", strconv.Itoa(i)).
			Detail("record index %d outside [0, %d)", i, p.n).
			Build()
	}
	p.query(i, radius, fn)
	return nil
}

func checkRadius(radius float32) error {
	if math32.IsNaN(radius) || radius < 0 {
		return errors.Configuration(errors.PhaseProtocol, "query radius %v must be a non-negative number", radius)
	}
	return nil
}

func (p *Protocol) query(i int, radius float32, fn func(j int)) {
	center := p.grid.Unflatten(p.hashes[i])
	p.grid.NeighborCells(center, radius, func(cell uint32) {
		start, n := p.starts[cell], p.lens[cell]
		for j := start; j < start+n; j++ {
			if int(j) != i {
				fn(int(j))
			}
		}
	})
}

// QueryAll runs the neighbor scan for every record through the executor. fn may be called
// concurrently for different i and must only write state owned by i.
//
// Parameters:
//   - ctx: cancels the dispatch
//   - radius: the interaction radius
//   - fn: called once per (record, candidate) pair
//
// Returns:
//   - error: a configuration error if the protocol is not queryable or the radius is NaN or
//     negative, or the executor error
func (p *Protocol) QueryAll(ctx context.Context, radius float32, fn func(i, j int)) error {
	if err := p.expect("query", StateQueryable); err != nil {
		return err
	}
	if err := checkRadius(radius); err != nil {
		return err
	}
	return p.exec.Dispatch(ctx, "pairwise", p.n, func(i int) {
		p.query(i, radius, func(j int) { fn(i, j) })
	})
}

// Position returns the position of the record at sorted index i as last hashed.
func (p *Protocol) Position(i int) [3]float32 {
	return p.positions[i]
}
