package domain

import "errors"

var (
	ErrNotFound                = errors.New("resource not found")
	ErrUnsupportedDocumentType = errors.New("unsupported document type")
	ErrNoEnginesAvailable      = errors.New("no extraction engines available")
	ErrAllEnginesFailed        = errors.New("all extraction engines failed")
	ErrDownloadFailed          = errors.New("document download from storage failed")
	ErrDocumentNotExtracted    = errors.New("document has not been extracted")
)
