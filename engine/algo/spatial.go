package algo

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-ssbo/engine/errors"
	"github.com/Carmen-Shannon/oxy-ssbo/engine/spatial"
	"github.com/Carmen-Shannon/oxy-ssbo/engine/ssbo"
)

// gridArgs are the grid constants shared by the hash and pairwise kernels.
type gridArgs struct {
	Resolution [3]uint32
	CellSize   [3]string
}

func newGridArgs(g spatial.Grid) gridArgs {
	cs := g.CellSize()
	return gridArgs{
		Resolution: g.Resolution(),
		CellSize:   [3]string{wgslFloat(cs[0]), wgslFloat(cs[1]), wgslFloat(cs[2])},
	}
}

// position returns the WGSL vec3<f32> expression of the record position for record expr.
func position(record string, b spatial.Binding) string {
	access := record + "." + b.Position.Name()
	if b.Position.Type().Primitive() == ssbo.TypeVec2 {
		return fmt.Sprintf("vec3<f32>(%s, 0.0)", access)
	}
	return access
}

var spatialHashTemplate = mustTemplate("spatial_hash", `//@ssbo:group 0 0 storage_read_write {{.Data}} {{.Buffer}}

const resolution = vec3<u32>({{index .Extra.Grid.Resolution 0}}u, {{index .Extra.Grid.Resolution 1}}u, {{index .Extra.Grid.Resolution 2}}u);
const cellSize = vec3<f32>({{index .Extra.Grid.CellSize 0}}, {{index .Extra.Grid.CellSize 1}}, {{index .Extra.Grid.CellSize 2}});

// pos must lie inside the grid volume, it is not clamped.
fn spatial_hash(pos: vec3<f32>) -> u32 {
  let cell = vec3<u32>(floor(pos / cellSize));
  return cell.x + cell.y * resolution.x + cell.z * resolution.x * resolution.y;
}

@compute @workgroup_size({{.WorkgroupSize}})
fn main(@builtin(global_invocation_id) id: vec3<u32>) {
  let i = id.x;
  if (i >= {{.Extra.Count}}u) {
    return;
  }
  {{.Data}}.{{.Extra.Array}}[i].{{.Extra.Hash}} = spatial_hash({{.Extra.Position}});
}
`)

// SpatialHash builds the stage that writes the flat cell index of every record into its hash
// field.
//
// Parameters:
//   - buf: the buffer holding the record array
//   - target: the record array, position and hash fields
//   - grid: the grid records are hashed into
//
// Returns:
//   - Stage: the generated stage
//   - error: a configuration or not found error for a bad binding
func SpatialHash(buf *ssbo.Buffer, target spatial.Target, grid spatial.Grid) (Stage, error) {
	b, err := spatial.BindTarget(buf, target, grid)
	if err != nil {
		return Stage{}, err
	}
	extra := struct {
		Grid     gridArgs
		Count    uint64
		Array    string
		Hash     string
		Position string
	}{newGridArgs(grid), b.Count(), target.Array, target.Hash, position(fmt.Sprintf("%s.%s[i]", dataVarName, target.Array), b)}
	return newStage("spatial_hash", buf, spatialHashTemplate, nil, extra, linear(b.Count(), nil))
}

var bitonicSortTemplate = mustTemplate("bitonic_sort", `{{.Params}}

//@ssbo:group 0 0 storage_read_write {{.Data}} {{.Buffer}}

@compute @workgroup_size({{.WorkgroupSize}})
fn main(@builtin(global_invocation_id) id: vec3<u32>) {
  let i = id.x;
  if (i >= {{.Extra.Pairs}}u) {
    return;
  }
  let span = params.span;
  let group = i / span;
  let low = group * span * 2u + i % span;
  let high = low + span;
  let descending = (group / params.reverseSpan) % 2u == 1u;

  let a = {{.Data}}.{{.Extra.Array}}[low];
  let b = {{.Data}}.{{.Extra.Array}}[high];
  let outOfOrder = select(a.{{.Extra.Key}} > b.{{.Extra.Key}}, a.{{.Extra.Key}} < b.{{.Extra.Key}}, descending);
  if (outOfOrder) {
    {{.Data}}.{{.Extra.Array}}[low] = b;
    {{.Data}}.{{.Extra.Array}}[high] = a;
  }
}
`)

// BitonicSort builds the stage that sorts a record array ascending by a uint key. The stage
// issues one dispatch of n/2 invocations per step of spatial.BitonicSchedule, each with its
// own SortParams uniform. Records with equal keys may be reordered; the host protocol breaks
// ties by original index.
//
// Parameters:
//   - buf: the buffer holding the record array
//   - array: the record array, a power of two of at least spatial.MinSortCount records
//   - key: the uint field sorted on
//
// Returns:
//   - Stage: the generated stage
//   - error: a configuration or not found error for a bad binding or record count
func BitonicSort(buf *ssbo.Buffer, array, key string) (Stage, error) {
	records, record, err := spatial.RecordArray(buf, array)
	if err != nil {
		return Stage{}, err
	}
	if _, err := spatial.Member(record, key, ssbo.TypeUint); err != nil {
		return Stage{}, err
	}
	n := records.Count()
	steps, err := spatial.BitonicSchedule(n)
	if err != nil {
		return Stage{}, err
	}

	dispatches := make([]Dispatch, 0, len(steps))
	for _, step := range steps {
		params, err := SortParams{Span: step.Span, ReverseSpan: step.ReverseSpan}.Encode()
		if err != nil {
			return Stage{}, err
		}
		dispatches = append(dispatches, linear(n/2, params)...)
	}
	extra := struct {
		Pairs uint64
		Array string
		Key   string
	}{n / 2, array, key}
	return newStage("bitonic_sort", buf, bitonicSortTemplate, paramBuffer("SortParams"), extra, dispatches)
}

var pivotStartTemplate = mustTemplate("pivot_start", `//@ssbo:group 0 0 storage_read_write {{.Data}} {{.Buffer}}

@compute @workgroup_size({{.WorkgroupSize}})
fn main(@builtin(global_invocation_id) id: vec3<u32>) {
  let i = id.x;
  if (i >= {{.Extra.Count}}u) {
    return;
  }
  let key = {{.Data}}.{{.Extra.Array}}[i].{{.Extra.Hash}};
  var first = 0u;
  if (i > 0u) {
    first = {{.Data}}.{{.Extra.Array}}[i - 1u].{{.Extra.Hash}} + 1u;
  }
  for (var c = first; c <= key; c++) {
    {{.Data}}.{{.Extra.Table}}[c].{{.Extra.Start}} = i;
  }
  if (i == {{.Extra.Count}}u - 1u) {
    for (var c = key + 1u; c < {{.Extra.Cells}}u; c++) {
      {{.Data}}.{{.Extra.Table}}[c].{{.Extra.Start}} = {{.Extra.Count}}u;
    }
  }
}
`)

var pivotLengthTemplate = mustTemplate("pivot_length", `//@ssbo:group 0 0 storage_read_write {{.Data}} {{.Buffer}}

@compute @workgroup_size({{.WorkgroupSize}})
fn main(@builtin(global_invocation_id) id: vec3<u32>) {
  let c = id.x;
  if (c >= {{.Extra.Cells}}u) {
    return;
  }
  var end = {{.Extra.Count}}u;
  if (c < {{.Extra.Cells}}u - 1u) {
    end = {{.Data}}.{{.Extra.Table}}[c + 1u].{{.Extra.Start}};
  }
  {{.Data}}.{{.Extra.Table}}[c].{{.Extra.Len}} = end - {{.Data}}.{{.Extra.Table}}[c].{{.Extra.Start}};
}
`)

type pivotArgs struct {
	Count uint64
	Cells uint32
	Array string
	Hash  string
	Table string
	Start string
	Len   string
}

func newPivotArgs(b spatial.Binding, target spatial.Target, table spatial.Table, grid spatial.Grid) pivotArgs {
	return pivotArgs{
		Count: b.Count(),
		Cells: grid.NumCells(),
		Array: target.Array,
		Hash:  target.Hash,
		Table: table.Array,
		Start: table.Start,
		Len:   table.Len,
	}
}

// PivotStart builds the stage that fills the start field of the pivot table from records
// sorted by hash. It runs one invocation per record.
//
// Parameters:
//   - buf: the buffer holding the record array and the pivot table
//   - target: the record array binding
//   - table: the pivot table binding
//   - grid: the grid the records were hashed into
//
// Returns:
//   - Stage: the generated stage
//   - error: a configuration or not found error for a bad binding
func PivotStart(buf *ssbo.Buffer, target spatial.Target, table spatial.Table, grid spatial.Grid) (Stage, error) {
	b, err := spatial.Bind(buf, target, table, grid)
	if err != nil {
		return Stage{}, err
	}
	return newStage("pivot_start", buf, pivotStartTemplate, nil, newPivotArgs(b, target, table, grid), linear(b.Count(), nil))
}

// PivotLength builds the stage that fills the length field of the pivot table once the start
// fields are written. It runs one invocation per grid cell.
func PivotLength(buf *ssbo.Buffer, target spatial.Target, table spatial.Table, grid spatial.Grid) (Stage, error) {
	b, err := spatial.Bind(buf, target, table, grid)
	if err != nil {
		return Stage{}, err
	}
	return newStage("pivot_length", buf, pivotLengthTemplate, nil, newPivotArgs(b, target, table, grid), linear(uint64(grid.NumCells()), nil))
}

// PairwiseAction holds the caller's WGSL for a neighbor scan.
type PairwiseAction struct {
	// Radius is the interaction radius; it decides how many cells around a record's cell are
	// scanned.
	Radius float32

	// Declarations is module scope WGSL, e.g. private accumulators and helper functions.
	Declarations string

	// Body runs once per neighbor pair. In scope: i and a, the record's index and value, and
	// j and b, the neighbor's index and value.
	Body string

	// Post runs after the scan with i and a in scope, e.g. to write accumulated results back.
	Post string
}

var pairwiseTemplate = mustTemplate("pairwise", `//@ssbo:group 0 0 storage_read_write {{.Data}} {{.Buffer}}

const resolution = vec3<i32>({{index .Extra.Grid.Resolution 0}}, {{index .Extra.Grid.Resolution 1}}, {{index .Extra.Grid.Resolution 2}});
const cellSize = vec3<f32>({{index .Extra.Grid.CellSize 0}}, {{index .Extra.Grid.CellSize 1}}, {{index .Extra.Grid.CellSize 2}});
const radius = {{.Extra.Radius}};

{{.Extra.Action.Declarations}}

@compute @workgroup_size({{.WorkgroupSize}})
fn main(@builtin(global_invocation_id) id: vec3<u32>) {
  let i = id.x;
  if (i >= {{.Extra.Pivot.Count}}u) {
    return;
  }
  let a = {{.Data}}.{{.Extra.Pivot.Array}}[i];
  let cellIdx = i32(a.{{.Extra.Pivot.Hash}});
  let cell = vec3<i32>(
    cellIdx % resolution.x,
    (cellIdx / resolution.x) % resolution.y,
    cellIdx / (resolution.x * resolution.y));
  let reach = vec3<i32>(ceil(vec3<f32>(radius) / cellSize));
  let lower = max(cell - reach, vec3<i32>(0));
  let upper = min(cell + reach, resolution - vec3<i32>(1));

  for (var z = lower.z; z <= upper.z; z++) {
    for (var y = lower.y; y <= upper.y; y++) {
      for (var x = lower.x; x <= upper.x; x++) {
        let scan = u32(x + y * resolution.x + z * resolution.x * resolution.y);
        let run = {{.Data}}.{{.Extra.Pivot.Table}}[scan];
        for (var j = run.{{.Extra.Pivot.Start}}; j < run.{{.Extra.Pivot.Start}} + run.{{.Extra.Pivot.Len}}; j++) {
          if (j == i) {
            continue;
          }
          let b = {{.Data}}.{{.Extra.Pivot.Array}}[j];
{{.Extra.Action.Body}}
        }
      }
    }
  }

{{.Extra.Action.Post}}
}
`)

// Pairwise builds the stage that runs action for every pair of records within the scanned
// neighbor cells of each other. It requires a queryable pivot table, i.e. it runs after
// PivotLength.
//
// Parameters:
//   - buf: the buffer holding the record array and the pivot table
//   - target: the record array binding
//   - table: the pivot table binding
//   - grid: the grid the records were hashed into
//   - action: the caller's WGSL snippets
//
// Returns:
//   - Stage: the generated stage
//   - error: a configuration error for a bad binding or a non-positive radius
func Pairwise(buf *ssbo.Buffer, target spatial.Target, table spatial.Table, grid spatial.Grid, action PairwiseAction) (Stage, error) {
	b, err := spatial.Bind(buf, target, table, grid)
	if err != nil {
		return Stage{}, err
	}
	if !(action.Radius > 0) {
		return Stage{}, errors.Configuration(errors.PhasePipeline, "pairwise radius must be positive, got %v", action.Radius)
	}
	extra := struct {
		Grid   gridArgs
		Radius string
		Pivot  pivotArgs
		Action PairwiseAction
	}{newGridArgs(grid), wgslFloat(action.Radius), newPivotArgs(b, target, table, grid), action}
	return newStage("pairwise", buf, pairwiseTemplate, nil, extra, linear(b.Count(), nil))
}

// SpatialPipeline returns the four protocol stages in order: hash, sort, pivot start and
// pivot length, followed by a pairwise stage when action is not nil.
//
// Parameters:
//   - buf: the buffer holding the record array and the pivot table
//   - target: the record array binding
//   - table: the pivot table binding
//   - grid: the grid records are hashed into
//   - action: an optional neighbor action
//
// Returns:
//   - *Pipeline: the stages in execution order
//   - error: the first stage builder error
func SpatialPipeline(buf *ssbo.Buffer, target spatial.Target, table spatial.Table, grid spatial.Grid, action *PairwiseAction) (*Pipeline, error) {
	if _, err := spatial.Bind(buf, target, table, grid); err != nil {
		return nil, err
	}
	hash, err := SpatialHash(buf, target, grid)
	if err != nil {
		return nil, err
	}
	sort, err := BitonicSort(buf, target.Array, target.Hash)
	if err != nil {
		return nil, err
	}
	start, err := PivotStart(buf, target, table, grid)
	if err != nil {
		return nil, err
	}
	length, err := PivotLength(buf, target, table, grid)
	if err != nil {
		return nil, err
	}

	p := NewPipeline(hash, sort, start, length)
	if action != nil {
		pairwise, err := Pairwise(buf, target, table, grid, *action)
		if err != nil {
			return nil, err
		}
		p.Append(pairwise)
	}
	return p, nil
}
