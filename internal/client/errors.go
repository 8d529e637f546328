package client

import "errors"

var (
	// ErrReferenceFetch indicates the reference catalog could not be loaded.
	ErrReferenceFetch = errors.New("reference data fetch failed")
	// ErrCatalogPush indicates the server rejected a catalog delta.
	ErrCatalogPush = errors.New("catalog push failed")
	// ErrSubmission indicates a report upload that did not return 2xx.
	ErrSubmission = errors.New("report submission failed")
	// ErrThreadFetch indicates the thread messages could not be downloaded.
	ErrThreadFetch = errors.New("thread download failed")
)
