package engines

import (
	"fmt"

	"verity/internal/config"
	"verity/internal/domain"
	"verity/internal/port"
)

// KindPDFText is the embedded text-layer engine; KindOCRHTTP is an engine
// running as an HTTP sidecar.
const (
	KindPDFText = "pdftext"
	KindOCRHTTP = "ocrhttp"
)

// BuildFromConfig constructs every enabled engine from configuration. Sidecar
// engines with empty endpoints are skipped; configuring no engine at all is
// an error because the ensemble would have nothing to vote with.
func BuildFromConfig(cfg *config.EnginesConfig) ([]port.ExtractionEngine, error) {
	var specs []*Spec
	if cfg.PDFTextEnabled {
		specs = append(specs, &Spec{Name: domain.EnginePDFPlumber, Kind: KindPDFText})
	}

	sidecars := []struct {
		name     domain.EngineName
		endpoint string
	}{
		{domain.EnginePyMuPDF, cfg.PyMuPDFEndpoint},
		{domain.EngineCamelot, cfg.CamelotEndpoint},
		{domain.EngineLayoutLM, cfg.LayoutLMEndpoint},
		{domain.EngineEasyOCR, cfg.EasyOCREndpoint},
		{domain.EngineTesseract, cfg.TesseractEndpoint},
	}
	for _, sc := range sidecars {
		if sc.endpoint == "" {
			continue
		}
		specs = append(specs, &Spec{
			Name:        sc.name,
			Kind:        KindOCRHTTP,
			Endpoint:    sc.endpoint,
			TimeoutSecs: cfg.TimeoutSecs,
		})
	}

	if len(specs) == 0 {
		return nil, domain.ErrNoEnginesAvailable
	}

	built := make([]port.ExtractionEngine, 0, len(specs))
	for _, spec := range specs {
		eng, err := New(spec)
		if err != nil {
			return nil, fmt.Errorf("building engine %s: %w", spec.Name, err)
		}
		built = append(built, eng)
	}
	return built, nil
}
