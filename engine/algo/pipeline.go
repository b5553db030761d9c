package algo

import (
	"slices"

	"go.uber.org/zap"

	"github.com/Carmen-Shannon/oxy-ssbo/engine/errors"
	"github.com/Carmen-Shannon/oxy-ssbo/engine/logger"
	"github.com/Carmen-Shannon/oxy-ssbo/engine/shader"
)

// Pipeline is an ordered list of stages. Stages run in order and every dispatch of a stage
// completes before the next dispatch starts.
type Pipeline struct {
	stages []Stage
}

// NewPipeline creates a pipeline from stages in execution order.
func NewPipeline(stages ...Stage) *Pipeline {
	return &Pipeline{stages: stages}
}

// Append adds stages to the end of the pipeline.
//
// Parameters:
//   - stages: the stages to run after the existing ones
//
// Returns:
//   - *Pipeline: the pipeline, for chaining
func (p *Pipeline) Append(stages ...Stage) *Pipeline {
	p.stages = append(p.stages, stages...)
	return p
}

// Stages returns a copy of the stage list.
func (p *Pipeline) Stages() []Stage {
	return slices.Clone(p.stages)
}

// Len returns the number of stages.
func (p *Pipeline) Len() int {
	return len(p.stages)
}

// Dispatches returns the total number of dispatches across all stages.
func (p *Pipeline) Dispatches() int {
	total := 0
	for _, s := range p.stages {
		total += len(s.Dispatches)
	}
	return total
}

// Validate compiles every stage's WGSL with the shader validator.
//
// Returns:
//   - error: the first validation error, with the stage name in its path
func (p *Pipeline) Validate() error {
	log := logger.Named("pipeline")
	for _, s := range p.stages {
		if err := shader.Validate(s.Source); err != nil {
			return errors.New(errors.PhasePipeline, errors.KindInvalidInput).
				Path(s.Name).
				Cause(err).
				Detail("stage does not compile").
				Build()
		}
		log.Debug("stage validated", zap.String("stage", s.Name), zap.Int("dispatches", len(s.Dispatches)))
	}
	return nil
}
