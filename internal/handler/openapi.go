package handler

import (
	"net/http"

	"github.com/quotegate/quotegate/internal/openapi"
)

// OpenAPIHandler serves the generated API document.
type OpenAPIHandler struct {
	baseURL string
	version string
}

// NewOpenAPIHandler creates a new OpenAPIHandler.
func NewOpenAPIHandler(baseURL, version string) *OpenAPIHandler {
	return &OpenAPIHandler{baseURL: baseURL, version: version}
}

// ServeSpec returns the OpenAPI 3.1 document for the gateway.
// GET /openapi.json
func (h *OpenAPIHandler) ServeSpec(w http.ResponseWriter, r *http.Request) {
	doc := openapi.GenerateSpec(h.baseURL, h.version)
	writeJSON(w, http.StatusOK, doc)
}
