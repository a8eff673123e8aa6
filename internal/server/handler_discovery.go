package server

import "net/http"

type endpointInfo struct {
	Path        string   `json:"path"`
	Methods     []string `json:"methods"`
	Description string   `json:"description"`
}

type discoveryResponse struct {
	Name        string         `json:"name"`
	Version     string         `json:"version"`
	Description string         `json:"description"`
	Endpoints   []endpointInfo `json:"endpoints"`
}

func (s *Server) handleDiscovery(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	respond(w, http.StatusOK, reqID, discoveryResponse{
		Name:        "memsched API",
		Version:     "v1",
		Description: "Memory-aware operator scheduling for neural-network graphs",
		Endpoints: []endpointInfo{
			{"/api/v1/runs", []string{"GET", "POST"}, "List scheduling runs; POST a model document to schedule it"},
			{"/api/v1/runs/{id}", []string{"GET", "DELETE"}, "Single run detail with the full schedule"},
			{"/api/v1/health", []string{"GET"}, "Server health and version"},
		},
	})
}
