package model

import "time"

// Run records one scheduling run: the model it was computed for, the
// algorithm used, and the resulting schedule with its estimated peak.
type Run struct {
	ID          string    `json:"id"`
	ModelName   string    `json:"model_name"`
	ContentHash string    `json:"content_hash"`
	Algorithm   string    `json:"algorithm"`
	OpCount     int       `json:"op_count"`
	PeakBytes   uint64    `json:"peak_bytes"`
	Iterations  int       `json:"iterations"`
	Schedule    []string  `json:"schedule,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Algorithm names accepted by the scheduler commands and API.
const (
	AlgoHier   = "hier"
	AlgoRPO    = "rpo"
	AlgoRandom = "random"
)

// ValidAlgorithm reports whether s names a known scheduling algorithm.
func ValidAlgorithm(s string) bool {
	switch s {
	case AlgoHier, AlgoRPO, AlgoRandom:
		return true
	}
	return false
}
