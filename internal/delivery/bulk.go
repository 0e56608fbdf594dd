package delivery

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"DocRelay/internal/csvparser"
	"DocRelay/internal/email"
	"DocRelay/internal/metrics"
	"DocRelay/internal/models"
)

const defaultRoleLabel = "Candidate"

// batchRun carries the per-job state shared by every selection of a batch.
type batchRun struct {
	payload     models.BulkForwardPayload
	project     *models.Project
	cloud       bool
	batchFolder string
	log         *zap.Logger
}

// candidateResult is what one processed selection contributes to the batch.
type candidateResult struct {
	summary     CandidateSummary
	attachments []email.Attachment
}

func (o *Orchestrator) forwardBulk(ctx context.Context, job BulkForward) error {
	p := job.Payload
	log := o.log.With(
		zap.String("job_id", job.JobID),
		zap.String("project_id", p.ProjectID),
		zap.String("method", string(p.DeliveryMethod)),
		zap.String("sender_id", p.SenderID),
		zap.Int("attempt", job.Attempt),
	)

	key := ""
	if job.JobID != "" {
		key = "bulk:" + job.JobID
	}
	if !o.claim(ctx, key, log) {
		log.Info("batch already claimed by another attempt, skipping")
		return nil
	}

	fail := func(err error) error {
		o.release(ctx, key, log)
		log.Error("batch delivery failed", zap.Error(err))
		return err
	}

	project, err := o.store.GetProject(ctx, p.ProjectID)
	if err != nil {
		return fail(fmt.Errorf("load project %s: %w", p.ProjectID, err))
	}

	run := &batchRun{
		payload: p,
		project: project,
		cloud:   p.DeliveryMethod == models.MethodGoogleDrive,
		log:     log,
	}

	// ----------------------------
	// CSV summary (optional)
	// ----------------------------
	csvAttachment := o.fetchSummaryCSV(ctx, p, log)

	// ----------------------------
	// Cloud batch folder
	// ----------------------------
	if run.cloud {
		if o.cloud == nil || !o.cloud.IsConfigured() {
			return fail(ErrCloudUnavailable)
		}

		run.batchFolder, err = o.folders.createBatch(ctx, project.Title, o.now())
		if err != nil {
			return fail(fmt.Errorf("create batch folder: %w", err))
		}

		if csvAttachment != nil {
			if _, err := o.cloud.UploadFile(ctx, run.batchFolder, csvAttachment.FileName, csvAttachment.MimeType, csvAttachment.Content); err != nil {
				log.Warn("csv summary upload failed", zap.Error(err))
			}
		}
	}

	// ----------------------------
	// Candidates
	// ----------------------------
	results := o.processSelections(ctx, run)

	summary := BatchSummary{ProjectTitle: project.Title, Notes: p.Notes}
	var attachments []email.Attachment
	for _, r := range results {
		if r == nil {
			continue
		}
		summary.Candidates = append(summary.Candidates, r.summary)
		attachments = append(attachments, r.attachments...)
	}
	if csvAttachment != nil && !run.cloud {
		attachments = append(attachments, *csvAttachment)
	}

	// ----------------------------
	// Share cloud folder
	// ----------------------------
	if run.cloud {
		link, err := o.folders.share(ctx, run.batchFolder, p.RecipientEmail)
		if err != nil {
			log.Error("batch folder share failed", zap.Error(err))
		}
		summary.FolderURL = link
	}

	// ----------------------------
	// Summary email
	// ----------------------------
	messageID, err := o.composer.SendBatchSummary(ctx,
		Recipients{To: p.RecipientEmail, CC: p.CC, BCC: p.BCC},
		summary,
		attachments,
	)
	if err != nil {
		return fail(fmt.Errorf("send batch summary: %w", err))
	}

	o.complete(ctx, key, log)

	log.Info("batch delivered",
		zap.String("to", p.RecipientEmail),
		zap.Int("selections", len(p.Selections)),
		zap.Int("candidates", len(summary.Candidates)),
		zap.Int("attachments", len(attachments)),
		zap.String("message_id", messageID),
	)
	return nil
}

// fetchSummaryCSV returns the batch's CSV attachment, or nil when there is
// none or it could not be fetched. Content is forwarded unchanged.
func (o *Orchestrator) fetchSummaryCSV(ctx context.Context, p models.BulkForwardPayload, log *zap.Logger) *email.Attachment {
	if p.CSVURL == "" {
		return nil
	}

	content, err := o.blobs.Fetch(ctx, p.CSVURL)
	if err != nil {
		log.Warn("csv summary fetch failed, continuing without it", zap.Error(err))
		return nil
	}

	if sum, err := csvparser.InspectSummaryBytes(content); err != nil {
		log.Warn("csv summary looks malformed, forwarding it as fetched", zap.Error(err))
	} else {
		log.Debug("csv summary fetched", zap.Int("rows", sum.Rows))
	}

	return &email.Attachment{
		FileName: csvparser.SummaryName(p.CSVName),
		MimeType: "text/csv",
		Content:  content,
	}
}

// processSelections handles every selection, at most bulkConcurrency at a
// time, and returns results in selection order. Skipped selections are nil.
func (o *Orchestrator) processSelections(ctx context.Context, run *batchRun) []*candidateResult {
	selections := run.payload.Selections
	results := make([]*candidateResult, len(selections))

	if o.bulkConcurrency <= 1 {
		for i, sel := range selections {
			results[i] = o.processCandidate(ctx, run, sel)
		}
		return results
	}

	sem := make(chan struct{}, o.bulkConcurrency)
	var wg sync.WaitGroup
	for i, sel := range selections {
		sem <- struct{}{}
		wg.Go(func() {
			defer func() { <-sem }()
			results[i] = o.processCandidate(ctx, run, sel)
		})
	}
	wg.Wait()

	return results
}

// processCandidate delivers one selection. Nothing in here aborts the batch:
// a missing candidate is skipped and every document or status failure is
// logged.
func (o *Orchestrator) processCandidate(ctx context.Context, run *batchRun, sel models.CandidateSelection) *candidateResult {
	log := run.log.With(zap.String("candidate_id", sel.CandidateID))
	method := run.payload.DeliveryMethod
	projectID := run.project.ID

	cand, err := o.store.GetCandidate(ctx, sel.CandidateID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			log.Warn("candidate not found, skipping selection")
		} else {
			log.Warn("candidate lookup failed, skipping selection", zap.Error(err))
		}
		metrics.CandidatesSkipped.Inc()
		return nil
	}

	role := o.roleLabel(ctx, sel, cand, log)
	result := &candidateResult{summary: CandidateSummary{
		CandidateID: cand.ID,
		Name:        cand.FullName(),
		Role:        role,
	}}

	docs, err := o.resolver.Resolve(ctx, sel, projectID)
	if err != nil {
		log.Warn("document resolution failed", zap.Error(err))
	}

	switch {
	case run.cloud:
		o.mirrorDocuments(ctx, run, cand, role, docs, result, log)

	case method == models.MethodEmailCombined || method == models.MethodEmailIndividual:
		for _, doc := range docs {
			content, err := o.blobs.Fetch(ctx, doc.FileURL)
			if err != nil {
				metrics.DocumentFailures.WithLabelValues("fetch").Inc()
				log.Warn("document fetch failed", zap.String("document_id", doc.ID), zap.Error(err))
				continue
			}
			result.attachments = append(result.attachments, email.Attachment{
				FileName: doc.FileName,
				MimeType: doc.MimeType,
				Content:  content,
			})
			result.summary.Documents = append(result.summary.Documents, doc.FileName)
		}

		if method == models.MethodEmailIndividual {
			o.sendCandidateEmail(ctx, run, result, log)
			result.attachments = nil
		} else {
			metrics.DocumentsDelivered.WithLabelValues("email").Add(float64(len(result.attachments)))
		}
	}

	if err := o.status.Advance(ctx, cand.ID, projectID); err != nil {
		log.Warn("pipeline status update failed", zap.Error(err))
	}

	return result
}

// mirrorDocuments uploads docs into a per-candidate folder under the batch
// folder.
func (o *Orchestrator) mirrorDocuments(
	ctx context.Context,
	run *batchRun,
	cand *models.Candidate,
	role string,
	docs []models.DocumentDescriptor,
	result *candidateResult,
	log *zap.Logger,
) {
	folderID, err := o.folders.createCandidate(ctx, run.batchFolder, *cand, role)
	if err != nil {
		metrics.DocumentFailures.WithLabelValues("folder").Add(float64(len(docs)))
		log.Warn("candidate folder creation failed", zap.Error(err))
		return
	}

	for _, doc := range docs {
		content, err := o.blobs.Fetch(ctx, doc.FileURL)
		if err != nil {
			metrics.DocumentFailures.WithLabelValues("fetch").Inc()
			log.Warn("document fetch failed", zap.String("document_id", doc.ID), zap.Error(err))
			continue
		}
		if _, err := o.cloud.UploadFile(ctx, folderID, doc.FileName, doc.MimeType, content); err != nil {
			metrics.DocumentFailures.WithLabelValues("upload").Inc()
			log.Warn("document upload failed", zap.String("document_id", doc.ID), zap.Error(err))
			continue
		}
		metrics.DocumentsDelivered.WithLabelValues("drive").Inc()
		result.summary.Documents = append(result.summary.Documents, doc.FileName)
	}
}

// sendCandidateEmail sends one candidate's documents on their own.
func (o *Orchestrator) sendCandidateEmail(ctx context.Context, run *batchRun, result *candidateResult, log *zap.Logger) {
	if len(result.attachments) == 0 {
		return
	}

	p := run.payload
	_, err := o.composer.SendCandidate(ctx,
		Recipients{To: p.RecipientEmail, CC: p.CC, BCC: p.BCC},
		run.project.Title,
		result.summary,
		result.attachments,
	)
	if err != nil {
		log.Warn("candidate email failed", zap.Error(err))
		return
	}
	metrics.DocumentsDelivered.WithLabelValues("email").Add(float64(len(result.attachments)))
}

// roleLabel prefers the selected role catalog entry, then the candidate's
// own designation.
func (o *Orchestrator) roleLabel(ctx context.Context, sel models.CandidateSelection, cand *models.Candidate, log *zap.Logger) string {
	if sel.RoleCatalogID != "" {
		title, err := o.store.GetRoleTitle(ctx, sel.RoleCatalogID)
		if err == nil && title != "" {
			return title
		}
		if err != nil {
			log.Debug("role lookup failed", zap.String("role_catalog_id", sel.RoleCatalogID), zap.Error(err))
		}
	}
	if cand.Designation != "" {
		return cand.Designation
	}
	return defaultRoleLabel
}
