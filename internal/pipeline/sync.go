package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"DocRelay/internal/models"
)

// DeliveredStatus is written to a candidate's project mapping once their
// documents have been forwarded to the client.
var DeliveredStatus = models.PipelineStatus{
	MainStatus: "client_submission",
	SubStatus:  "documents_forwarded",
}

type StatusWriter interface {
	UpdatePipelineStatus(ctx context.Context, candidateID, projectID string, status models.PipelineStatus) error
}

type Synchronizer struct {
	store StatusWriter
	log   *zap.Logger
}

func NewSynchronizer(store StatusWriter, log *zap.Logger) *Synchronizer {
	return &Synchronizer{store: store, log: log}
}

// Advance moves the candidate's pipeline status for the project to
// DeliveredStatus.
func (s *Synchronizer) Advance(ctx context.Context, candidateID, projectID string) error {
	if err := s.store.UpdatePipelineStatus(ctx, candidateID, projectID, DeliveredStatus); err != nil {
		return fmt.Errorf("advance pipeline status: %w", err)
	}

	s.log.Debug("pipeline status advanced",
		zap.String("candidate_id", candidateID),
		zap.String("project_id", projectID),
		zap.String("sub_status", DeliveredStatus.SubStatus),
	)
	return nil
}
