package delivery

import (
	"encoding/json"
	"fmt"
	"strings"

	"DocRelay/internal/models"
)

// Job is one of SingleForward, BulkForward or Unrecognized.
type Job interface {
	jobID() string
}

// SingleForward sends the delivery stored under HistoryID.
type SingleForward struct {
	JobID     string
	Attempt   int
	HistoryID string
	// Legacy is set when the job carried no known kind and was routed by
	// the shape of its payload.
	Legacy bool
}

// BulkForward delivers a batch of candidate selections for one project.
type BulkForward struct {
	JobID   string
	Attempt int
	Payload models.BulkForwardPayload
}

// Unrecognized jobs are dead-lettered, never retried.
type Unrecognized struct {
	JobID  string
	Kind   models.JobKind
	Reason string
}

func (j SingleForward) jobID() string { return j.JobID }
func (j BulkForward) jobID() string   { return j.JobID }
func (j Unrecognized) jobID() string  { return j.JobID }

// Decode turns a queue record into its variant. Records with an unknown kind
// whose payload carries a historyId decode as a legacy SingleForward.
func Decode(job models.DeliveryJob) Job {
	switch job.Kind {
	case models.KindSingleForward:
		historyID, err := decodeHistoryID(job.Payload)
		if err != nil {
			return Unrecognized{JobID: job.ID, Kind: job.Kind, Reason: err.Error()}
		}
		if historyID == "" {
			return Unrecognized{JobID: job.ID, Kind: job.Kind, Reason: "missing historyId"}
		}
		return SingleForward{JobID: job.ID, Attempt: job.Attempt, HistoryID: historyID}

	case models.KindBulkForward:
		var p models.BulkForwardPayload
		if err := json.Unmarshal(job.Payload, &p); err != nil {
			return Unrecognized{JobID: job.ID, Kind: job.Kind, Reason: fmt.Sprintf("decode payload: %v", err)}
		}
		if err := ValidateBulk(p); err != nil {
			return Unrecognized{JobID: job.ID, Kind: job.Kind, Reason: err.Error()}
		}
		return BulkForward{JobID: job.ID, Attempt: job.Attempt, Payload: p}
	}

	if historyID, err := decodeHistoryID(job.Payload); err == nil && historyID != "" {
		return SingleForward{JobID: job.ID, Attempt: job.Attempt, HistoryID: historyID, Legacy: true}
	}
	return Unrecognized{JobID: job.ID, Kind: job.Kind, Reason: "unknown job kind"}
}

func decodeHistoryID(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", fmt.Errorf("empty payload")
	}
	var p models.SingleForwardPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return "", fmt.Errorf("decode payload: %w", err)
	}
	return strings.TrimSpace(p.HistoryID), nil
}

// ValidateBulk reports the first structural problem with a bulk payload.
func ValidateBulk(p models.BulkForwardPayload) error {
	switch {
	case strings.TrimSpace(p.RecipientEmail) == "":
		return fmt.Errorf("missing recipientEmail")
	case strings.TrimSpace(p.ProjectID) == "":
		return fmt.Errorf("missing projectId")
	case !p.DeliveryMethod.Valid():
		return fmt.Errorf("invalid deliveryMethod %q", p.DeliveryMethod)
	}
	for i, sel := range p.Selections {
		if sel.SendType != models.SendMerged && sel.SendType != models.SendIndividual {
			return fmt.Errorf("selection %d: invalid sendType %q", i, sel.SendType)
		}
	}
	return nil
}

// NewSingleForwardJob builds a queue record for a single forward.
func NewSingleForwardJob(id, historyID string) (models.DeliveryJob, error) {
	payload, err := json.Marshal(models.SingleForwardPayload{HistoryID: historyID})
	if err != nil {
		return models.DeliveryJob{}, err
	}
	return models.DeliveryJob{ID: id, Kind: models.KindSingleForward, Payload: payload}, nil
}

// NewBulkForwardJob builds a queue record for a batch forward.
func NewBulkForwardJob(id string, p models.BulkForwardPayload) (models.DeliveryJob, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return models.DeliveryJob{}, err
	}
	return models.DeliveryJob{ID: id, Kind: models.KindBulkForward, Payload: payload}, nil
}
