package delivery

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"DocRelay/internal/email"
	"DocRelay/internal/metrics"
	"DocRelay/internal/models"
)

func (o *Orchestrator) forwardSingle(ctx context.Context, job SingleForward) error {
	log := o.log.With(
		zap.String("job_id", job.JobID),
		zap.String("history_id", job.HistoryID),
		zap.Int("attempt", job.Attempt),
	)

	rec, err := o.store.GetHistory(ctx, job.HistoryID)
	if errors.Is(err, models.ErrNotFound) {
		log.Warn("delivery history not found, dropping job")
		return nil
	}
	if err != nil {
		return fmt.Errorf("load delivery history %s: %w", job.HistoryID, err)
	}

	if rec.Status == models.HistorySent {
		log.Info("delivery already sent, skipping")
		return nil
	}

	key := "single:" + rec.ID
	if !o.claim(ctx, key, log) {
		if o.completed(ctx, key, log) {
			return o.recordSent(ctx, rec.ID, "", log)
		}
		log.Info("delivery already claimed by another attempt, skipping")
		return nil
	}

	// ----------------------------
	// Fetch every document
	// ----------------------------
	attachments := make([]email.Attachment, 0, len(rec.DocumentDetails))
	for _, doc := range rec.DocumentDetails {
		content, err := o.blobs.Fetch(ctx, doc.FileURL)
		if err != nil {
			metrics.DocumentFailures.WithLabelValues("fetch").Inc()
			return o.failSingle(ctx, rec, key, fmt.Errorf("fetch document %s: %w", doc.FileName, err), log)
		}
		attachments = append(attachments, email.Attachment{
			FileName: doc.FileName,
			MimeType: doc.MimeType,
			Content:  content,
		})
	}

	// ----------------------------
	// Send
	// ----------------------------
	candidateName, projectTitle := o.describeHistory(ctx, rec, log)

	messageID, err := o.composer.SendSingle(ctx,
		Recipients{To: rec.RecipientEmail, CC: rec.CCEmails, BCC: rec.BCCEmails},
		candidateName,
		projectTitle,
		deref(rec.Notes),
		attachments,
	)
	if err != nil {
		return o.failSingle(ctx, rec, key, fmt.Errorf("send email: %w", err), log)
	}
	metrics.DocumentsDelivered.WithLabelValues("email").Add(float64(len(attachments)))

	// ----------------------------
	// Mark as Sent
	// ----------------------------
	// The email is out, so the claim is completed even if the record write
	// fails; a redelivery must not send it again.
	o.complete(ctx, key, log)

	if err := o.recordSent(ctx, rec.ID, messageID, log); err != nil {
		return err
	}

	log.Info("delivery sent",
		zap.String("to", rec.RecipientEmail),
		zap.Int("documents", len(attachments)),
		zap.String("message_id", messageID),
	)
	return nil
}

// recordSent marks the history record sent. It is also the whole of a
// redelivered job whose email went out before the record write failed.
func (o *Orchestrator) recordSent(ctx context.Context, id, messageID string, log *zap.Logger) error {
	if messageID == "" {
		log.Info("email already sent by an earlier attempt, recording delivery")
	}
	if err := o.store.MarkHistorySent(ctx, id, o.now()); err != nil {
		log.Error("email sent but history update failed",
			zap.String("message_id", messageID),
			zap.Error(err),
		)
		return fmt.Errorf("mark delivery sent: %w", err)
	}
	return nil
}

// failSingle records cause on the history record, frees the claim for the
// next attempt and returns cause for the queue.
func (o *Orchestrator) failSingle(
	ctx context.Context,
	rec *models.DeliveryHistory,
	key string,
	cause error,
	log *zap.Logger,
) error {

	if dbErr := o.store.MarkHistoryFailed(ctx, rec.ID, cause.Error()); dbErr != nil {
		log.Error("failed to update failure status", zap.Error(dbErr))
	}
	o.release(ctx, key, log)

	log.Error("delivery failed", zap.Error(cause))
	return cause
}

// describeHistory looks up display names for the email body. Lookup
// failures fall back to the stored ids.
func (o *Orchestrator) describeHistory(ctx context.Context, rec *models.DeliveryHistory, log *zap.Logger) (string, string) {
	candidateName := rec.CandidateID
	if c, err := o.store.GetCandidate(ctx, rec.CandidateID); err == nil {
		if n := c.FullName(); n != "" {
			candidateName = n
		}
	} else {
		log.Debug("candidate lookup for email body failed", zap.Error(err))
	}

	projectTitle := ""
	if p, err := o.store.GetProject(ctx, rec.ProjectID); err == nil {
		projectTitle = p.Title
	} else {
		log.Debug("project lookup for email body failed", zap.Error(err))
	}

	return candidateName, projectTitle
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
