package handler_test

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"verity/internal/domain"
	"verity/internal/handler"
	"verity/internal/service"
	"verity/mocks"
)

func multipartUpload(t *testing.T, fields map[string]string, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if filename != "" {
		fw, err := w.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestDocumentUpload_QueuesExtraction(t *testing.T) {
	svc := new(mocks.MockExtractionService)
	h := handler.NewDocumentHandler(svc)

	propertyID := uuid.New()
	periodID := uuid.New()
	queued := &domain.Document{
		ID:               uuid.New(),
		PropertyID:       propertyID,
		PeriodID:         periodID,
		Name:             "balance.pdf",
		DocumentType:     domain.DocTypeBalanceSheet,
		ExtractionStatus: domain.ExtractionStatusQueued,
	}
	svc.On("CreateAndExtract", mock.Anything, mock.MatchedBy(func(in *service.CreateDocumentInput) bool {
		return in.PropertyID == propertyID &&
			in.PeriodID == periodID &&
			in.DocumentType == domain.DocTypeBalanceSheet &&
			in.QualityScore == 0.85 &&
			string(in.FileBytes) == "%PDF-1.7"
	})).Return(queued, nil)

	body, contentType := multipartUpload(t, map[string]string{
		"property_id":   propertyID.String(),
		"period_id":     periodID.String(),
		"document_type": "balance_sheet",
		"quality_score": "0.85",
	}, "balance.pdf", []byte("%PDF-1.7"))

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodPost, "/api/v1/documents", body)
	c.Request.Header.Set("Content-Type", contentType)

	h.Upload(c)

	assert.Equal(t, http.StatusAccepted, w.Code)

	var resp struct {
		Success bool            `json:"success"`
		Data    domain.Document `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, domain.ExtractionStatusQueued, resp.Data.ExtractionStatus)
	svc.AssertExpectations(t)
}

func TestDocumentUpload_InvalidPropertyID(t *testing.T) {
	svc := new(mocks.MockExtractionService)
	h := handler.NewDocumentHandler(svc)

	body, contentType := multipartUpload(t, map[string]string{
		"property_id":   "nope",
		"period_id":     uuid.New().String(),
		"document_type": "balance_sheet",
	}, "f.pdf", []byte("%PDF"))

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodPost, "/api/v1/documents", body)
	c.Request.Header.Set("Content-Type", contentType)

	h.Upload(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	svc.AssertNotCalled(t, "CreateAndExtract", mock.Anything, mock.Anything)
}

func TestDocumentUpload_UnsupportedType(t *testing.T) {
	svc := new(mocks.MockExtractionService)
	h := handler.NewDocumentHandler(svc)

	body, contentType := multipartUpload(t, map[string]string{
		"property_id":   uuid.New().String(),
		"period_id":     uuid.New().String(),
		"document_type": "tax_return",
	}, "f.pdf", []byte("%PDF"))

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodPost, "/api/v1/documents", body)
	c.Request.Header.Set("Content-Type", contentType)

	h.Upload(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var resp struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "UNSUPPORTED_DOCUMENT_TYPE", resp.Error.Code)
}

func TestDocumentUpload_QualityScoreOutOfRange(t *testing.T) {
	svc := new(mocks.MockExtractionService)
	h := handler.NewDocumentHandler(svc)

	body, contentType := multipartUpload(t, map[string]string{
		"property_id":   uuid.New().String(),
		"period_id":     uuid.New().String(),
		"document_type": "balance_sheet",
		"quality_score": "1.5",
	}, "f.pdf", []byte("%PDF"))

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodPost, "/api/v1/documents", body)
	c.Request.Header.Set("Content-Type", contentType)

	h.Upload(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDocumentUpload_MissingFile(t *testing.T) {
	svc := new(mocks.MockExtractionService)
	h := handler.NewDocumentHandler(svc)

	body, contentType := multipartUpload(t, map[string]string{
		"property_id":   uuid.New().String(),
		"period_id":     uuid.New().String(),
		"document_type": "balance_sheet",
	}, "", nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodPost, "/api/v1/documents", body)
	c.Request.Header.Set("Content-Type", contentType)

	h.Upload(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var resp struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "MISSING_FILE", resp.Error.Code)
}

func TestDocumentGetByID_NotFound(t *testing.T) {
	svc := new(mocks.MockExtractionService)
	h := handler.NewDocumentHandler(svc)

	docID := uuid.New()
	svc.On("GetByID", mock.Anything, docID).Return(nil, domain.ErrNotFound)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodGet, "/api/v1/documents/"+docID.String(), http.NoBody)
	c.Params = gin.Params{{Key: "id", Value: docID.String()}}

	h.GetByID(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDocumentList_ClampsPagination(t *testing.T) {
	svc := new(mocks.MockExtractionService)
	h := handler.NewDocumentHandler(svc)

	svc.On("List", mock.Anything, 0, 20).Return([]domain.Document{}, 0, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodGet, "/api/v1/documents?offset=-5&limit=500", http.NoBody)

	h.List(c)

	assert.Equal(t, http.StatusOK, w.Code)
	svc.AssertCalled(t, "List", mock.Anything, 0, 20)
}

func TestDocumentRetry(t *testing.T) {
	svc := new(mocks.MockExtractionService)
	h := handler.NewDocumentHandler(svc)

	docID := uuid.New()
	svc.On("RetryExtraction", mock.Anything, docID).Return(&domain.Document{
		ID:               docID,
		ExtractionStatus: domain.ExtractionStatusQueued,
	}, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodPost, "/api/v1/documents/"+docID.String()+"/retry", http.NoBody)
	c.Params = gin.Params{{Key: "id", Value: docID.String()}}

	h.Retry(c)

	assert.Equal(t, http.StatusAccepted, w.Code)
}
