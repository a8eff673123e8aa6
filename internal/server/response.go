package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/me/memsched/pkg/model"
)

// respond writes a success envelope with the given status code.
func respond(w http.ResponseWriter, status int, reqID string, data any) {
	writeEnvelope(w, status, reqID, data, nil, nil)
}

// respondPage writes a success envelope carrying pagination metadata.
func respondPage(w http.ResponseWriter, reqID string, data any, pg *model.Pagination) {
	writeEnvelope(w, http.StatusOK, reqID, data, pg, nil)
}

// respondErr writes an error envelope.
func respondErr(w http.ResponseWriter, reqID string, status int, apiErr *model.APIError) {
	writeEnvelope(w, status, reqID, nil, nil, apiErr)
}

// writeEnvelope renders the standard memsched envelope. The envelope status
// mirrors whether an error is attached, never the HTTP code, so clients can
// switch on one field.
func writeEnvelope(w http.ResponseWriter, status int, reqID string, data any, pg *model.Pagination, apiErr *model.APIError) {
	state := "ok"
	if apiErr != nil {
		state = "error"
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(model.Response{
		Status:     state,
		RequestID:  reqID,
		Timestamp:  time.Now().UTC(),
		Data:       data,
		Pagination: pg,
		Error:      apiErr,
	})
}
