// Package ssbo builds std430 storage-buffer layouts on the host.
//
// A Schema collects struct and buffer declarations; Build resolves struct references by name,
// rejects dependency cycles and lays out every field once. The resulting BufferSet is
// immutable: it answers size and field-offset queries, packs host Values into the exact byte
// image a GPU expects (Encode / InitialBytes) and unpacks readbacks (Decode).
//
//	set, err := ssbo.NewSchema().
//		Struct("Boid", ssbo.Prim("pos", ssbo.TypeVec3), ssbo.Prim("hashIdx", ssbo.TypeUint)).
//		Buffer("dataBuffer", ssbo.Inst("boids", "Boid", 4096)).
//		Build()
//
// Declarations returns a neutral, dependency-ordered description of every struct and buffer,
// which RenderGLSL and RenderWGSL turn into kernel source.
package ssbo
