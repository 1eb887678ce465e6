package engines

import (
	"fmt"

	"verity/internal/domain"
	"verity/internal/port"
)

// Spec describes one engine to construct: its identity, how it runs, and
// where to reach it when it runs as a sidecar.
type Spec struct {
	Name        domain.EngineName
	Kind        string // "pdftext" or "ocrhttp"
	Endpoint    string
	TimeoutSecs int
}

// Factory is a function that creates an ExtractionEngine from a Spec.
type Factory func(spec *Spec) (port.ExtractionEngine, error)

// registry of engine factories by kind, populated explicitly via Register.
var registry = map[string]Factory{}

// Register registers an engine factory by kind.
func Register(kind string, factory Factory) {
	registry[kind] = factory
}

// New creates an ExtractionEngine from a Spec using the registered factory.
func New(spec *Spec) (port.ExtractionEngine, error) {
	factory, ok := registry[spec.Kind]
	if !ok {
		return nil, fmt.Errorf("unknown engine kind: %s", spec.Kind)
	}
	return factory(spec)
}
