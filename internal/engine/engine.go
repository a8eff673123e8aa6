// Package engine ties parsing, scheduling, and lifetime analysis together
// into one operation shared by the CLI and the REST server.
package engine

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/me/memsched/internal/lifetime"
	"github.com/me/memsched/internal/parser"
	"github.com/me/memsched/internal/sched"
	"github.com/me/memsched/pkg/model"
	"github.com/me/memsched/pkg/nn"
)

// Request selects what to schedule and how.
type Request struct {
	// Model is the raw YAML model document.
	Model []byte
	// Algorithm is one of model.AlgoHier, model.AlgoRPO, model.AlgoRandom.
	Algorithm string
	// Seed drives the random sampler; ignored by the other algorithms.
	Seed int64
}

// Result is a finished scheduling run plus the graph and order it came from.
type Result struct {
	Run   *model.Run
	Graph *nn.Graph
	Order []*nn.Op
}

// Execute parses the model document, computes a schedule with the requested
// algorithm, and assembles the run record.
func Execute(req Request, logger *slog.Logger) (*Result, error) {
	algo := req.Algorithm
	if algo == "" {
		algo = model.AlgoHier
	}
	if !model.ValidAlgorithm(algo) {
		return nil, fmt.Errorf("unknown algorithm %q", algo)
	}

	g, err := parser.New(logger).Parse(req.Model)
	if err != nil {
		return nil, err
	}

	var order []*nn.Op
	iterations := 0
	switch algo {
	case model.AlgoHier:
		res, err := sched.Schedule(g, sched.Options{Logger: logger})
		if err != nil {
			return nil, fmt.Errorf("schedule %s: %w", g.Name, err)
		}
		order = res.Order
		iterations = res.Iterations
	case model.AlgoRPO:
		order = nn.ReversePostOrder(g)
	case model.AlgoRandom:
		order = sched.RandomSample(g, rand.New(rand.NewSource(req.Seed)))
	}

	peak, err := lifetime.EstimatePeak(order, g)
	if err != nil {
		return nil, fmt.Errorf("analyze %s schedule: %w", algo, err)
	}

	hash := sha1.Sum(req.Model)
	schedule := make([]string, len(order))
	for i, op := range order {
		schedule[i] = op.Name
	}

	run := &model.Run{
		ID:          "run_" + uuid.New().String(),
		ModelName:   g.Name,
		ContentHash: hex.EncodeToString(hash[:]),
		Algorithm:   algo,
		OpCount:     len(order),
		PeakBytes:   peak,
		Iterations:  iterations,
		Schedule:    schedule,
		CreatedAt:   time.Now().UTC(),
	}
	return &Result{Run: run, Graph: g, Order: order}, nil
}
