package service

import "EventEdge/internal/domain/models"

// DecisionEngine turns a fully assembled input into a decision. Implementations
// must be deterministic and free of I/O.
type DecisionEngine interface {
	Build(in models.DecisionInput) models.DecisionResult
	ModelVersion() int
}
