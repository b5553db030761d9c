// Command ssbogen reads a schema document and prints its shader declarations, its std430
// layout, or the compute pipeline of its simulation section.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"text/tabwriter"

	"go.uber.org/zap"

	"github.com/Carmen-Shannon/oxy-ssbo/engine/config"
	"github.com/Carmen-Shannon/oxy-ssbo/engine/errors"
	"github.com/Carmen-Shannon/oxy-ssbo/engine/logger"
	"github.com/Carmen-Shannon/oxy-ssbo/engine/profiler"
	"github.com/Carmen-Shannon/oxy-ssbo/engine/shader"
	"github.com/Carmen-Shannon/oxy-ssbo/engine/ssbo"
)

const usage = `ssbogen generates std430 buffer declarations and compute kernels.

Usage:
  ssbogen -schema world.toml [flags]

Flags:
`

// checkEntry gives a declaration-only module an entry point so it can be validated.
const checkEntry = "\n\n@compute @workgroup_size(1)\nfn main() {}\n"

var (
	schemaPath = flag.String("schema", "", "Schema document (.toml, .yaml or .yml)")
	lang       = flag.String("lang", "wgsl", "Output language: glsl or wgsl")
	group      = flag.Int("group", 0, "WGSL @group index of the buffer variables")
	layout     = flag.Bool("layout", false, "Print the offset table instead of declarations")
	pipeline   = flag.Bool("pipeline", false, "Print the kernels of the simulation section")
	simulate   = flag.Bool("simulate", false, "Run the spatial hash on the CPU and report cell occupancy")
	check      = flag.Bool("check", false, "Validate the generated WGSL")
	verbose    = flag.Bool("v", false, "Verbose logging")
)

func main() {
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	log := zap.NewNop()
	if *verbose {
		l, err := zap.NewDevelopment()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		log = l
	}
	defer log.Sync()
	logger.SetLogger(log)

	if *schemaPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Stdout, log); err != nil {
		log.Error("ssbogen failed", zap.Error(err))
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, w io.Writer, log *zap.Logger) error {
	doc, err := config.Load(*schemaPath)
	if err != nil {
		return err
	}
	set, err := doc.Build()
	if err != nil {
		return err
	}
	log.Info("schema built",
		zap.Int("structs", len(set.Structs())),
		zap.Int("buffers", len(set.Buffers())),
	)

	switch {
	case *layout:
		return printLayout(w, set)
	case *pipeline:
		return printPipeline(w, doc, set)
	case *simulate:
		return runSimulation(ctx, w, doc, set, log)
	}

	g, err := bindGroup(*group)
	if err != nil {
		return err
	}
	wgsl := ssbo.RenderWGSL(set.Declarations(), g)
	if *check {
		if err := shader.Validate(wgsl + checkEntry); err != nil {
			return err
		}
		log.Info("declarations validated")
	}
	switch strings.ToLower(*lang) {
	case "wgsl":
		fmt.Fprintln(w, wgsl)
	case "glsl":
		fmt.Fprintln(w, ssbo.RenderGLSL(set.Declarations()))
	default:
		return fmt.Errorf("unknown language %q, want glsl or wgsl", *lang)
	}
	return nil
}

// bindGroup checks the -group flag against the range of a WGSL @group index.
func bindGroup(v int) (uint32, error) {
	if v < 0 || uint64(v) > math.MaxUint32 {
		return 0, errors.Configuration(errors.PhaseConfig, "group %d is outside 0..%d", v, uint32(math.MaxUint32))
	}
	return uint32(v), nil
}

// printLayout writes one row per field of every struct and buffer.
func printLayout(w io.Writer, set *ssbo.BufferSet) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	row := func(owner string, fields []*ssbo.Field, info func(string) (ssbo.FieldInfo, error)) error {
		for _, f := range fields {
			fi, err := info(f.Name())
			if err != nil {
				return err
			}
			dims := ""
			for _, d := range fi.Dims {
				dims += fmt.Sprintf("[%d]", d)
			}
			if fi.Unbounded {
				dims += " unbounded"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s%s\t%d\t%d\t%d\t%d\n",
				owner, fi.Name, fi.TypeName, dims, fi.Offset, fi.Size, fi.Stride, fi.Alignment)
		}
		return nil
	}

	fmt.Fprintln(tw, "OWNER\tFIELD\tTYPE\tOFFSET\tSIZE\tSTRIDE\tALIGN")
	for _, s := range set.Structs() {
		if err := row(s.Name(), s.Fields(), s.Field); err != nil {
			return err
		}
	}
	for _, b := range set.Buffers() {
		if err := row(b.Name(), b.Fields(), b.Field); err != nil {
			return err
		}
		fmt.Fprintf(tw, "%s\t\t\t\t%d\t\t%d\n", b.Name(), b.Size(), b.Alignment())
	}
	return tw.Flush()
}

// printPipeline writes every stage of the simulation pipeline, translated to GLSL when asked.
func printPipeline(w io.Writer, doc *config.Document, set *ssbo.BufferSet) error {
	if doc.Simulation == nil {
		return fmt.Errorf("%s has no simulation section", *schemaPath)
	}
	p, err := doc.Simulation.Pipeline(set, nil)
	if err != nil {
		return err
	}
	if *check {
		if err := p.Validate(); err != nil {
			return err
		}
	}
	for _, stage := range p.Stages() {
		source := stage.Source
		if strings.EqualFold(*lang, "glsl") {
			if source, err = shader.TranslateGLSL(stage.Source, stage.EntryPoint); err != nil {
				return err
			}
		}
		fmt.Fprintf(w, "// stage %s: %d dispatches of %v workgroups\n%s\n\n",
			stage.Name, len(stage.Dispatches), stage.Dispatches[0].Workgroups, source)
	}
	return nil
}

// runSimulation hashes the initial buffer value on the CPU and reports cell occupancy and
// neighbor candidates.
func runSimulation(ctx context.Context, w io.Writer, doc *config.Document, set *ssbo.BufferSet, log *zap.Logger) error {
	sim := doc.Simulation
	if sim == nil {
		return fmt.Errorf("%s has no simulation section", *schemaPath)
	}
	initial, err := doc.InitialValue(set, sim.Buffer)
	if err != nil {
		return err
	}

	prof := profiler.NewProfiler()
	prof.SetInterval(0)
	pool := sim.Pool()
	defer pool.Close()

	proto, err := sim.Protocol(set, initial, pool)
	if err != nil {
		return err
	}
	done := prof.Time("protocol")
	if err := proto.Run(ctx); err != nil {
		return err
	}
	done()

	pivots, err := proto.Pivots()
	if err != nil {
		return err
	}
	occupied, largest := 0, uint32(0)
	for _, pv := range pivots {
		if pv.Len > 0 {
			occupied++
			largest = max(largest, pv.Len)
		}
	}

	var candidates atomic.Int64
	if sim.Radius > 0 {
		done = prof.Time("query")
		if err := proto.QueryAll(ctx, sim.Radius, func(_, _ int) { candidates.Add(1) }); err != nil {
			return err
		}
		done()
	}

	if *verbose {
		prof.Tick()
	}
	log.Debug("simulation finished", zap.Stringer("pool", pool))
	fmt.Fprintf(w, "records %d\ncells %d\noccupied %d\nlargest %d\ncandidates %d\n",
		proto.Len(), len(pivots), occupied, largest, candidates.Load())
	return nil
}
