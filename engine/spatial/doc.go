// Package spatial implements the spatial-hash pivot protocol on the host.
//
// Records are hashed to the flat index of the grid cell containing their position, sorted by
// that hash with a bitonic network, and summarised in a pivot table holding the start and
// length of every cell's run in the sorted array. Neighbor queries then visit only the runs of
// cells within reach of the querying record:
//
//	grid, _ := spatial.NewGrid([]float32{64, 64, 64}, []uint32{16, 16, 16})
//	p, _ := spatial.NewProtocol(buf, spatial.Target{Array: "boids", Position: "pos", Hash: "hashIdx"},
//		spatial.Table{Array: "pivot", Start: "start", Len: "len"}, grid)
//	_ = p.Run(ctx)
//	_ = p.Query(0, 4, func(j int) { ... })
//
// Phases run through an Executor. Sequential runs them on the calling goroutine; the dispatch
// package provides a worker pool executor.
package spatial
