// Package ocrhttp implements extraction engines backed by HTTP sidecar
// services. Each sidecar wraps one model (PyMuPDF, Camelot, LayoutLMv3,
// EasyOCR, Tesseract) behind a common /extract endpoint.
package ocrhttp

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"verity/internal/domain"
	"verity/internal/engines"
	"verity/internal/port"
)

const defaultTimeout = 120 * time.Second

// Engine calls a single extraction sidecar over HTTP.
type Engine struct {
	name     domain.EngineName
	endpoint string
	client   *http.Client
}

// NewEngine creates an engine from a registry Spec, which must name a
// reachable sidecar endpoint.
func NewEngine(spec *engines.Spec) (*Engine, error) {
	if spec.Endpoint == "" {
		return nil, fmt.Errorf("engine %s: endpoint is required", spec.Name)
	}
	return newEngine(spec.Name, spec.Endpoint, spec.TimeoutSecs), nil
}

// NewEngineWithEndpoint creates an engine pointing at a custom endpoint (for testing).
func NewEngineWithEndpoint(name domain.EngineName, endpoint string) *Engine {
	return newEngine(name, endpoint, 0)
}

func newEngine(name domain.EngineName, endpoint string, timeoutSecs int) *Engine {
	timeout := time.Duration(timeoutSecs) * time.Second
	if timeout == 0 {
		timeout = defaultTimeout
	}
	return &Engine{
		name:     name,
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

// Factory creates the engine from a Spec for the engine registry.
func Factory(spec *engines.Spec) (port.ExtractionEngine, error) {
	return NewEngine(spec)
}

func (e *Engine) Name() domain.EngineName {
	return e.name
}

// extractRequest is the sidecar wire format. The PDF travels base64-encoded
// so the body stays valid JSON regardless of content.
type extractRequest struct {
	Engine    string `json:"engine"`
	PDFBase64 string `json:"pdf_base64"`
}

type extractResponse struct {
	Success           bool                 `json:"success"`
	OverallConfidence float64              `json:"overall_confidence"`
	Fields            map[string]wireField `json:"fields"`
	Warnings          []string             `json:"warnings"`
	Error             string               `json:"error"`
}

type wireField struct {
	Value      string    `json:"value"`
	Confidence float64   `json:"confidence"`
	BBox       []float64 `json:"bbox,omitempty"`
	Page       int       `json:"page"`
}

// Extract posts the document to the sidecar and maps its response onto the
// engine result. Transport and non-200 failures are errors; a sidecar that
// answered but extracted nothing is an unsuccessful result.
func (e *Engine) Extract(ctx context.Context, pdfBytes []byte) (*port.ExtractionResult, error) {
	start := time.Now()

	reqBody := extractRequest{
		Engine:    string(e.name),
		PDFBase64: base64.StdEncoding.EncodeToString(pdfBytes),
	}
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, engines.NewEngineError(e.name, fmt.Errorf("marshaling request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, engines.NewEngineError(e.name, fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, engines.NewEngineError(e.name, fmt.Errorf("calling extraction sidecar: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, engines.NewEngineError(e.name, fmt.Errorf("reading response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		return nil, engines.NewEngineError(e.name,
			fmt.Errorf("sidecar error (status %d): %s", resp.StatusCode, string(respBody)))
	}

	var wire extractResponse
	if err := json.Unmarshal(respBody, &wire); err != nil {
		return nil, engines.NewEngineError(e.name, fmt.Errorf("decoding response: %w", err))
	}

	result := &port.ExtractionResult{
		EngineName:        e.name,
		Success:           wire.Success,
		OverallConfidence: wire.OverallConfidence,
		Warnings:          wire.Warnings,
		ProcessingTimeMS:  time.Since(start).Milliseconds(),
	}
	if wire.Error != "" {
		result.Warnings = append(result.Warnings, wire.Error)
	}
	if len(wire.Fields) > 0 {
		result.ExtractedData = make(map[string]port.FieldValue, len(wire.Fields))
		for name, f := range wire.Fields {
			result.ExtractedData[name] = port.FieldValue{
				Value:      f.Value,
				Confidence: f.Confidence,
				BBox:       f.BBox,
				Page:       f.Page,
			}
		}
	}
	return result, nil
}
