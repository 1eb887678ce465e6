package ocrhttp_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"verity/internal/domain"
	"verity/internal/engines"
	"verity/internal/engines/ocrhttp"
)

func TestNewEngine_RequiresEndpoint(t *testing.T) {
	_, err := ocrhttp.NewEngine(&engines.Spec{
		Name: domain.EngineCamelot,
		Kind: engines.KindOCRHTTP,
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "endpoint is required")
}

func TestExtract_MapsSidecarResponse(t *testing.T) {
	pdfBytes := []byte("%PDF-1.7 test")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req struct {
			Engine    string `json:"engine"`
			PDFBase64 string `json:"pdf_base64"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "camelot", req.Engine)
		decoded, err := base64.StdEncoding.DecodeString(req.PDFBase64)
		require.NoError(t, err)
		assert.Equal(t, pdfBytes, decoded)

		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"success":            true,
			"overall_confidence": 0.91,
			"fields": map[string]interface{}{
				"total_assets": map[string]interface{}{
					"value":      "$1,000.00",
					"confidence": 0.93,
					"page":       2,
				},
			},
			"warnings": []string{"table spans pages"},
		})
	}))
	defer srv.Close()

	eng := ocrhttp.NewEngineWithEndpoint(domain.EngineCamelot, srv.URL)
	res, err := eng.Extract(context.Background(), pdfBytes)

	require.NoError(t, err)
	assert.Equal(t, domain.EngineCamelot, res.EngineName)
	assert.True(t, res.Success)
	assert.InDelta(t, 0.91, res.OverallConfidence, 1e-9)
	require.Contains(t, res.ExtractedData, "total_assets")
	assert.Equal(t, "$1,000.00", res.ExtractedData["total_assets"].Value)
	assert.InDelta(t, 0.93, res.ExtractedData["total_assets"].Confidence, 1e-9)
	assert.Equal(t, 2, res.ExtractedData["total_assets"].Page)
	assert.Equal(t, []string{"table spans pages"}, res.Warnings)
}

func TestExtract_SidecarErrorBecomesWarning(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"success": false,
			"error":   "model timed out on page 4",
		})
	}))
	defer srv.Close()

	eng := ocrhttp.NewEngineWithEndpoint(domain.EngineTesseract, srv.URL)
	res, err := eng.Extract(context.Background(), []byte("%PDF"))

	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.Warnings, "model timed out on page 4")
}

func TestExtract_Non200IsEngineError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "out of memory", http.StatusInternalServerError)
	}))
	defer srv.Close()

	eng := ocrhttp.NewEngineWithEndpoint(domain.EngineLayoutLM, srv.URL)
	_, err := eng.Extract(context.Background(), []byte("%PDF"))

	require.Error(t, err)
	var engErr *engines.EngineError
	require.True(t, errors.As(err, &engErr))
	assert.Equal(t, domain.EngineLayoutLM, engErr.Engine)
	assert.Contains(t, err.Error(), "status 500")
}

func TestExtract_TransportFailureIsEngineError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // nothing listening anymore

	eng := ocrhttp.NewEngineWithEndpoint(domain.EnginePyMuPDF, srv.URL)
	_, err := eng.Extract(context.Background(), []byte("%PDF"))

	require.Error(t, err)
	var engErr *engines.EngineError
	assert.True(t, errors.As(err, &engErr))
}

func TestExtract_MalformedResponseIsEngineError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>not json</html>"))
	}))
	defer srv.Close()

	eng := ocrhttp.NewEngineWithEndpoint(domain.EngineEasyOCR, srv.URL)
	_, err := eng.Extract(context.Background(), []byte("%PDF"))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "decoding response")
}
