package engines_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"verity/internal/config"
	"verity/internal/domain"
	"verity/internal/engines"
	"verity/internal/engines/ocrhttp"
	"verity/internal/engines/pdftext"
)

func init() {
	engines.Register(engines.KindPDFText, pdftext.Factory)
	engines.Register(engines.KindOCRHTTP, ocrhttp.Factory)
}

func TestBuildFromConfig_NoEnginesConfigured(t *testing.T) {
	_, err := engines.BuildFromConfig(&config.EnginesConfig{})

	assert.ErrorIs(t, err, domain.ErrNoEnginesAvailable)
}

func TestBuildFromConfig_EmbeddedAndSidecars(t *testing.T) {
	built, err := engines.BuildFromConfig(&config.EnginesConfig{
		PDFTextEnabled:  true,
		CamelotEndpoint: "http://camelot:9000/extract",
		PyMuPDFEndpoint: "http://pymupdf:9000/extract",
		TimeoutSecs:     60,
	})

	require.NoError(t, err)
	require.Len(t, built, 3)

	names := make([]domain.EngineName, 0, len(built))
	for _, eng := range built {
		names = append(names, eng.Name())
	}
	assert.ElementsMatch(t, []domain.EngineName{
		domain.EnginePDFPlumber, domain.EnginePyMuPDF, domain.EngineCamelot,
	}, names)
}

func TestBuildFromConfig_SkipsEmptyEndpoints(t *testing.T) {
	built, err := engines.BuildFromConfig(&config.EnginesConfig{
		PDFTextEnabled:    false,
		TesseractEndpoint: "http://tesseract:9000/extract",
	})

	require.NoError(t, err)
	require.Len(t, built, 1)
	assert.Equal(t, domain.EngineTesseract, built[0].Name())
}

func TestNew_UnknownKind(t *testing.T) {
	_, err := engines.New(&engines.Spec{Name: domain.EngineCamelot, Kind: "grpc"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown engine kind")
}
