package delivery

import (
	"context"
	"fmt"

	"DocRelay/internal/email"
	"DocRelay/internal/metrics"
)

type MailTransport interface {
	Send(ctx context.Context, msg email.Message) (string, error)
}

type Renderer interface {
	Render(name string, data any) (string, error)
}

type Recipients struct {
	To  string
	CC  []string
	BCC []string
}

// CandidateSummary is one line of the batch summary email.
type CandidateSummary struct {
	CandidateID string
	Name        string
	Role        string
	Documents   []string
}

type BatchSummary struct {
	ProjectTitle string
	Notes        string
	FolderURL    string
	Candidates   []CandidateSummary
}

// Composer turns resolved deliveries into exactly one mail call each. It
// never retries.
type Composer struct {
	mail   MailTransport
	render Renderer
}

func NewComposer(mail MailTransport, render Renderer) *Composer {
	return &Composer{mail: mail, render: render}
}

type singleForwardView struct {
	CandidateName string
	ProjectTitle  string
	Notes         string
	Documents     []string
}

func (c *Composer) SendSingle(
	ctx context.Context,
	to Recipients,
	candidateName, projectTitle, notes string,
	attachments []email.Attachment,
) (string, error) {

	subject := "Candidate documents: " + candidateName
	if projectTitle != "" {
		subject += " - " + projectTitle
	}

	return c.send(ctx, to, subject, email.TemplateSingleForward, singleForwardView{
		CandidateName: candidateName,
		ProjectTitle:  projectTitle,
		Notes:         notes,
		Documents:     attachmentNames(attachments),
	}, attachments)
}

type candidateView struct {
	CandidateName string
	Role          string
	ProjectTitle  string
	Documents     []string
}

// SendCandidate delivers one candidate's documents in their own email.
func (c *Composer) SendCandidate(
	ctx context.Context,
	to Recipients,
	projectTitle string,
	cand CandidateSummary,
	attachments []email.Attachment,
) (string, error) {

	subject := projectTitle + " - " + cand.Name + " documents"

	return c.send(ctx, to, subject, email.TemplateCandidate, candidateView{
		CandidateName: cand.Name,
		Role:          cand.Role,
		ProjectTitle:  projectTitle,
		Documents:     attachmentNames(attachments),
	}, attachments)
}

// SendBatchSummary sends the one combined email that closes a batch.
func (c *Composer) SendBatchSummary(
	ctx context.Context,
	to Recipients,
	summary BatchSummary,
	attachments []email.Attachment,
) (string, error) {

	subject := fmt.Sprintf("%s - %d candidate(s) forwarded", summary.ProjectTitle, len(summary.Candidates))
	return c.send(ctx, to, subject, email.TemplateBatchSummary, summary, attachments)
}

func (c *Composer) send(
	ctx context.Context,
	to Recipients,
	subject, template string,
	data any,
	attachments []email.Attachment,
) (string, error) {

	html, err := c.render.Render(template, data)
	if err != nil {
		return "", err
	}

	messageID, err := c.mail.Send(ctx, email.Message{
		To:          to.To,
		CC:          to.CC,
		BCC:         to.BCC,
		Subject:     subject,
		HTML:        html,
		Attachments: attachments,
	})
	if err != nil {
		metrics.EmailFailures.Inc()
		return "", err
	}

	metrics.EmailsSent.Inc()
	return messageID, nil
}

func attachmentNames(atts []email.Attachment) []string {
	names := make([]string, 0, len(atts))
	for _, a := range atts {
		names = append(names, a.FileName)
	}
	return names
}
