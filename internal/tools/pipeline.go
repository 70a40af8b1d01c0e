package tools

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
)

// BaggagePipeline orchestrates the execution of baggage processors in dependency order
type BaggagePipeline struct {
	processors map[string]BaggageProcessor
	order      []string
	logger     zerolog.Logger
}

// NewBaggagePipeline creates a new baggage pipeline
func NewBaggagePipeline(logger zerolog.Logger) *BaggagePipeline {
	return &BaggagePipeline{
		processors: make(map[string]BaggageProcessor),
		logger:     logger.With().Str("component", "pipeline").Logger(),
	}
}

// AddProcessor adds a processor to the pipeline
func (p *BaggagePipeline) AddProcessor(processor BaggageProcessor) error {
	name := processor.Name()
	if _, exists := p.processors[name]; exists {
		return fmt.Errorf("processor with name %s already exists", name)
	}

	p.processors[name] = processor

	// Dependencies may be added later, so a missing one is not an error yet
	if err := p.ValidateAllDependencies(); err != nil {
		p.order = nil
		return nil
	}
	return p.calculateOrder()
}

func (p *BaggagePipeline) calculateOrder() error {
	order, err := p.topologicalSort()
	if err != nil {
		return err
	}

	p.order = order
	return nil
}

// topologicalSort orders processors with Kahn's algorithm. Ties are broken by
// name so the order is stable across runs.
func (p *BaggagePipeline) topologicalSort() ([]string, error) {
	adjList := make(map[string][]string)
	inDegree := make(map[string]int)

	for name := range p.processors {
		adjList[name] = []string{}
		inDegree[name] = 0
	}

	for name, processor := range p.processors {
		for _, dep := range processor.Dependencies() {
			if _, exists := p.processors[dep]; !exists {
				return nil, fmt.Errorf("processor %s depends on %s, but %s is not registered", name, dep, dep)
			}
			adjList[dep] = append(adjList[dep], name)
			inDegree[name]++
		}
	}

	var queue []string
	for name, degree := range inDegree {
		if degree == 0 {
			queue = append(queue, name)
		}
	}
	sort.Strings(queue)

	var result []string
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		result = append(result, current)

		var ready []string
		for _, neighbor := range adjList[current] {
			inDegree[neighbor]--
			if inDegree[neighbor] == 0 {
				ready = append(ready, neighbor)
			}
		}
		sort.Strings(ready)
		queue = append(queue, ready...)
	}

	if len(result) != len(p.processors) {
		return nil, fmt.Errorf("circular dependency detected in processor chain")
	}

	return result, nil
}

// Execute runs all processors in dependency order
func (p *BaggagePipeline) Execute(ctx context.Context, baggage map[string]interface{}) error {
	if len(p.order) == 0 {
		if err := p.calculateOrder(); err != nil {
			return err
		}
		if len(p.order) == 0 {
			return fmt.Errorf("no processors registered or order not calculated")
		}
	}

	for _, name := range p.order {
		processor, exists := p.processors[name]
		if !exists {
			return fmt.Errorf("processor %s not found", name)
		}
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("pipeline cancelled before %s: %w", name, err)
		}

		start := time.Now()
		if err := processor.Process(ctx, baggage); err != nil {
			return fmt.Errorf("processor %s failed: %w", name, err)
		}
		p.logger.Debug().Str("processor", name).Dur("took", time.Since(start)).Msg("processor finished")
	}

	return nil
}

// GetExecutionOrder returns the current execution order
func (p *BaggagePipeline) GetExecutionOrder() []string {
	result := make([]string, len(p.order))
	copy(result, p.order)
	return result
}

// LogExecutionOrder writes the execution order at debug level
func (p *BaggagePipeline) LogExecutionOrder() {
	for i, name := range p.order {
		p.logger.Debug().
			Int("step", i+1).
			Str("processor", name).
			Strs("depends_on", p.processors[name].Dependencies()).
			Msg("pipeline step")
	}
}

// ValidateAllDependencies checks that all dependencies are satisfied
func (p *BaggagePipeline) ValidateAllDependencies() error {
	for name, processor := range p.processors {
		for _, dep := range processor.Dependencies() {
			if _, exists := p.processors[dep]; !exists {
				return fmt.Errorf("processor %s depends on %s, but %s is not registered", name, dep, dep)
			}
		}
	}
	return nil
}

// GetProcessorCount returns the number of registered processors
func (p *BaggagePipeline) GetProcessorCount() int {
	return len(p.processors)
}

// HasProcessor checks if a processor with the given name is registered
func (p *BaggagePipeline) HasProcessor(name string) bool {
	_, exists := p.processors[name]
	return exists
}

// GetProcessor returns a processor by name
func (p *BaggagePipeline) GetProcessor(name string) (BaggageProcessor, bool) {
	processor, exists := p.processors[name]
	return processor, exists
}
