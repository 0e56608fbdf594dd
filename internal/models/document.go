package models

import "time"

type DocumentStatus string

const (
	DocumentPending  DocumentStatus = "pending"
	DocumentVerified DocumentStatus = "verified"
	DocumentRejected DocumentStatus = "rejected"
)

type DocumentDescriptor struct {
	ID       string         `json:"id"`
	FileName string         `json:"fileName"`
	FileURL  string         `json:"fileUrl"`
	MimeType string         `json:"mimeType"`
	Status   DocumentStatus `json:"status"`

	UpdatedAt time.Time `json:"updatedAt"`
}

type HistoryStatus string

const (
	HistoryPending HistoryStatus = "pending"
	HistorySent    HistoryStatus = "sent"
	HistoryFailed  HistoryStatus = "failed"
)

// DeliveryHistory is the receipt of a single-forward delivery.
type DeliveryHistory struct {
	ID              string               `json:"id"`
	RecipientEmail  string               `json:"recipientEmail"`
	CCEmails        []string             `json:"ccEmails"`
	BCCEmails       []string             `json:"bccEmails"`
	CandidateID     string               `json:"candidateId"`
	ProjectID       string               `json:"projectId"`
	RoleCatalogID   *string              `json:"roleCatalogId,omitempty"`
	Notes           *string              `json:"notes,omitempty"`
	DocumentDetails []DocumentDescriptor `json:"documentDetails"`

	Status HistoryStatus `json:"status"`
	SentAt *time.Time    `json:"sentAt,omitempty"`
	Error  *string       `json:"error,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
