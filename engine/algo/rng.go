package algo

import (
	"fmt"
	"math/bits"
	"strings"

	"github.com/Carmen-Shannon/oxy-ssbo/engine/errors"
	"github.com/Carmen-Shannon/oxy-ssbo/engine/ssbo"
)

// RNGMethod selects the generator of an RNG stage.
type RNGMethod int

const (
	// RNGMurmur3 mixes the previous output with the invocation index through one round of
	// 32-bit MurmurHash3.
	RNGMurmur3 RNGMethod = iota

	// RNGPCG chains the 32-bit PCG hash starting from seed + index.
	RNGPCG
)

// String returns the method name.
func (m RNGMethod) String() string {
	switch m {
	case RNGMurmur3:
		return "murmur3"
	case RNGPCG:
		return "pcg"
	}
	return fmt.Sprintf("RNGMethod(%d)", int(m))
}

// ParseRNGMethod resolves a method name as returned by String. The empty name selects
// RNGMurmur3.
func ParseRNGMethod(name string) (RNGMethod, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "murmur3", "murmur":
		return RNGMurmur3, nil
	case "pcg":
		return RNGPCG, nil
	}
	return 0, errors.NotFound(errors.PhasePipeline, "rng method", name)
}

// Generator is the host mirror of the per-invocation WGSL generator.
type Generator interface {
	// Next advances the generator and returns the new 32-bit state.
	Next() uint32

	// Float returns Next divided by 2^32, rounded to float32, in [0, 1].
	Float() float32
}

// NewGenerator returns the host mirror of method for one invocation.
//
// Parameters:
//   - method: the generator
//   - seed: the dispatch seed
//   - index: the invocation index
//
// Returns:
//   - Generator: a generator producing the same sequence as the kernel invocation
func NewGenerator(method RNGMethod, seed, index uint32) Generator {
	if method == RNGPCG {
		return &PCG{state: PCGHash(seed + index)}
	}
	return &Murmur3{state: seed, index: index}
}

// Murmur3 is the host mirror of the murmur3 kernel generator.
type Murmur3 struct {
	state uint32
	index uint32
}

func murmurScramble(k uint32) uint32 {
	k *= 0xcc9e2d51
	k = bits.RotateLeft32(k, 15)
	return k * 0x1b873593
}

// Murmur3Round runs one 32-bit MurmurHash3 round over a single key block, including the
// length xor and the final avalanche.
func Murmur3Round(h, k uint32) uint32 {
	h ^= murmurScramble(k)
	h = bits.RotateLeft32(h, 13)
	h = h*5 + 0xe6546b64
	h ^= 1
	h ^= h >> 16
	h *= 0x85ebca6b
	h ^= h >> 13
	h *= 0xc2b2ae35
	h ^= h >> 16
	return h
}

func (m *Murmur3) Next() uint32 {
	m.state = Murmur3Round(m.state, m.state^m.index)
	return m.state
}

func (m *Murmur3) Float() float32 {
	return float32(m.Next()) / 4294967296.0
}

// PCG is the host mirror of the pcg kernel generator.
type PCG struct {
	state uint32
}

// PCGHash is the 32-bit permuted congruential hash (RXS-M-XS output).
func PCGHash(x uint32) uint32 {
	state := x*747796405 + 2891336453
	word := ((state >> ((state >> 28) + 4)) ^ state) * 277803737
	return (word >> 22) ^ word
}

func (p *PCG) Next() uint32 {
	p.state = PCGHash(p.state)
	return p.state
}

func (p *PCG) Float() float32 {
	return float32(p.Next()) / 4294967296.0
}

// RNGTarget is a field filled with random values. Float fields and the components of float
// vectors receive values in [Min, Max], or [0, 1] when both are zero. Uint fields receive raw
// 32-bit outputs and take no range.
type RNGTarget struct {
	FieldRef
	Min float32
	Max float32
}

func (t RNGTarget) ranged() bool { return t.Min != 0 || t.Max != 0 }

// assignment renders the WGSL statement that fills the target.
func (t RNGTarget) assignment(r resolved) (string, error) {
	p := r.member.Type().Primitive()
	if t.ranged() && (!p.IsFloat() || !(t.Max > t.Min)) {
		return "", errors.Configuration(errors.PhasePipeline,
			"random range [%v, %v] is not valid for %s field %s", t.Min, t.Max, p, t.FieldRef)
	}
	if !p.IsFloat() {
		return fmt.Sprintf("%s = rng_next();", r.access()), nil
	}

	component := "rng_float()"
	if t.ranged() {
		component = fmt.Sprintf("%s + %s * rng_float()", wgslFloat(t.Min), wgslFloat(t.Max-t.Min))
	}
	if p.Components() == 1 {
		return fmt.Sprintf("%s = %s;", r.access(), component), nil
	}
	components := make([]string, p.Components())
	for i := range components {
		components[i] = component
	}
	return fmt.Sprintf("%s = %s(%s);", r.access(), p.WGSLName(), strings.Join(components, ", ")), nil
}

var rngTemplate = mustTemplate("rng", `{{.Params}}

//@ssbo:group 0 0 storage_read_write {{.Data}} {{.Buffer}}

var<private> rngState: u32;
var<private> rngIndex: u32;
{{if eq .Extra.Method "murmur3"}}
fn murmur_scramble(k: u32) -> u32 {
  var x = k * 0xcc9e2d51u;
  x = (x << 15u) | (x >> 17u);
  return x * 0x1b873593u;
}

fn rng_init(seed: u32, index: u32) {
  rngState = seed;
  rngIndex = index;
}

fn rng_next() -> u32 {
  var h = rngState ^ murmur_scramble(rngState ^ rngIndex);
  h = (h << 13u) | (h >> 19u);
  h = h * 5u + 0xe6546b64u;
  h = h ^ 1u;
  h = h ^ (h >> 16u);
  h = h * 0x85ebca6bu;
  h = h ^ (h >> 13u);
  h = h * 0xc2b2ae35u;
  h = h ^ (h >> 16u);
  rngState = h;
  return h;
}
{{else}}
fn pcg_hash(x: u32) -> u32 {
  let state = x * 747796405u + 2891336453u;
  let word = ((state >> ((state >> 28u) + 4u)) ^ state) * 277803737u;
  return (word >> 22u) ^ word;
}

fn rng_init(seed: u32, index: u32) {
  rngState = pcg_hash(seed + index);
  rngIndex = index;
}

fn rng_next() -> u32 {
  rngState = pcg_hash(rngState);
  return rngState;
}
{{end}}
fn rng_float() -> f32 {
  return f32(rng_next()) / 4294967296.0;
}

@compute @workgroup_size({{.WorkgroupSize}})
fn main(@builtin(global_invocation_id) id: vec3<u32>) {
  let i = id.x;
  if (i >= {{.Extra.Count}}u) {
    return;
  }
  rng_init(params.seed, i);
{{range .Extra.Assignments}}  {{.}}
{{end}}}
`)

// RNG builds a stage that fills the target fields with random values. Targets are filled in
// order, drawing from one generator per array index.
//
// Parameters:
//   - buf: the buffer holding the target arrays
//   - method: the generator
//   - seed: the dispatch seed, change it to draw a new sequence
//   - targets: the fields to fill, all in arrays of the same length
//
// Returns:
//   - Stage: the generated stage
//   - error: a configuration error for an empty target list, mismatched array lengths or an
//     invalid range, or a not found error for an unknown field
func RNG(buf *ssbo.Buffer, method RNGMethod, seed uint32, targets ...RNGTarget) (Stage, error) {
	if len(targets) == 0 {
		return Stage{}, errors.Configuration(errors.PhasePipeline, "rng needs at least one target")
	}
	fields := make([]resolved, len(targets))
	assignments := make([]string, len(targets))
	for i, t := range targets {
		r, err := resolve(buf, t.FieldRef)
		if err != nil {
			return Stage{}, err
		}
		if assignments[i], err = t.assignment(r); err != nil {
			return Stage{}, err
		}
		fields[i] = r
	}
	n, err := sameCount(fields)
	if err != nil {
		return Stage{}, err
	}

	params, err := RNGParams{Seed: seed}.Encode()
	if err != nil {
		return Stage{}, err
	}
	extra := struct {
		Method      string
		Count       uint64
		Assignments []string
	}{method.String(), n, assignments}
	return newStage("rng_"+method.String(), buf, rngTemplate, paramBuffer("RNGParams"), extra, linear(n, params))
}
