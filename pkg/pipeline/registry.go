package pipeline

import (
	"fmt"

	"github.com/estategraph/estate-engine/pkg/models"
)

// Factory builds one entity's orchestrator over the run's dependencies.
type Factory func(deps Deps) Orchestrator

// Registry maps entities to orchestrator factories, so tests and future
// sources can swap an entity's walk without touching the runner.
type Registry map[models.Entity]Factory

// DefaultRegistry wires the three built-in entities.
func DefaultRegistry() Registry {
	return Registry{
		models.EntityProperty:     NewPropertyOrchestrator,
		models.EntityNeighborhood: NewNeighborhoodOrchestrator,
		models.EntityWikipedia:    NewWikipediaOrchestrator,
	}
}

// Build resolves an entity's orchestrator.
func (r Registry) Build(entity models.Entity, deps Deps) (Orchestrator, error) {
	factory, ok := r[entity]
	if !ok {
		return nil, fmt.Errorf("no orchestrator registered for entity %q", entity)
	}
	return factory(deps), nil
}
