// Package httpapi carries the remote.Service contract over HTTP.
//
// Routes:
//
//	POST   /drilldown                                 drilldownRequest → remote.DrillResult
//	POST   /containers                                → idResponse (get or create)
//	GET    /containers/{containerID}/items            → []remote.ItemRef
//	POST   /containers/{containerID}/items            createRequest → idResponse
//	GET    /containers/{containerID}/items/{itemID}   → remote.Item
//	PUT    /containers/{containerID}/items/{itemID}   updateRequest
//	DELETE /containers/{containerID}/items/{itemID}
//	GET    /containers/{containerID}/items/{itemID}/metadata → map[string]string
//
// Errors are returned as errorResponse. 404 maps to remote.ErrNotFound and
// every 5xx to remote.ErrUnavailable.
package httpapi

import "github.com/roach88/calcsync/internal/remote"

type drilldownRequest struct {
	Category  string        `json:"category"`
	Selection []remote.Pair `json:"selection"`
}

type createRequest struct {
	Category string            `json:"category"`
	Key      []remote.Pair     `json:"key"`
	Values   map[string]string `json:"values"`
	Name     string            `json:"name,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type updateRequest struct {
	Values   map[string]string `json:"values"`
	Name     string            `json:"name,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type idResponse struct {
	ID string `json:"id"`
}

// Error codes carried in errorResponse.Code.
const (
	codeNotFound    = "not_found"
	codeUnavailable = "unavailable"
	codeBadRequest  = "bad_request"
	codeUnsupported = "unsupported"
	codeInternal    = "internal"
)

type errorResponse struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}
