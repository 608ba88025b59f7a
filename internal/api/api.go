// Package api defines the JSON bodies exchanged between the client and the
// backend.
package api

import "github.com/dyike/vsdocs/internal/library"

// Prefix is the versioned route prefix.
const Prefix = "/api/v1"

// ListingResponse is returned by GET /library.
type ListingResponse struct {
	Path    string                  `json:"path"`
	Entries []library.DocumentEntry `json:"entries"`
}

// CollectionsResponse is returned by GET /collections.
type CollectionsResponse struct {
	Collections []library.Collection `json:"collections"`
}

// MembersResponse is returned by GET /collections/{id}/documents.
type MembersResponse struct {
	Documents []library.CollectionMember `json:"documents"`
}

// SubmitResponse is returned by POST /collections/{id}/changes. JobID is empty
// when there was nothing to apply.
type SubmitResponse struct {
	JobID string `json:"job_id,omitempty"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}
