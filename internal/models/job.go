package models

import (
	"encoding/json"
	"time"
)

type JobKind string

const (
	KindSingleForward JobKind = "single_forward"
	KindBulkForward   JobKind = "bulk_forward"
)

// DeliveryJob is the record carried by the job queue. Payload is decoded by
// the delivery package according to Kind.
type DeliveryJob struct {
	ID      string          `json:"id"`
	Kind    JobKind         `json:"kind"`
	Payload json.RawMessage `json:"payload"`
	Attempt int             `json:"attempt"`

	EnqueuedAt time.Time `json:"enqueued_at"`
}

type SingleForwardPayload struct {
	HistoryID string `json:"historyId"`
}

type DeliveryMethod string

const (
	MethodEmailIndividual DeliveryMethod = "email_individual"
	MethodEmailCombined   DeliveryMethod = "email_combined"
	MethodGoogleDrive     DeliveryMethod = "google_drive"
)

func (m DeliveryMethod) Valid() bool {
	switch m {
	case MethodEmailIndividual, MethodEmailCombined, MethodGoogleDrive:
		return true
	}
	return false
}

type SendType string

const (
	SendMerged     SendType = "merged"
	SendIndividual SendType = "individual"
)

type CandidateSelection struct {
	CandidateID   string   `json:"candidateId"`
	RoleCatalogID string   `json:"roleCatalogId,omitempty"`
	SendType      SendType `json:"sendType"`
	DocumentIDs   []string `json:"documentIds,omitempty"`
}

type BulkForwardPayload struct {
	RecipientEmail string               `json:"recipientEmail"`
	CC             []string             `json:"cc,omitempty"`
	BCC            []string             `json:"bcc,omitempty"`
	ProjectID      string               `json:"projectId"`
	Notes          string               `json:"notes,omitempty"`
	Selections     []CandidateSelection `json:"selections"`
	DeliveryMethod DeliveryMethod       `json:"deliveryMethod"`
	CSVURL         string               `json:"csvUrl,omitempty"`
	CSVName        string               `json:"csvName,omitempty"`
	// SenderID is the user who queued the batch. It is logged with the job,
	// never shown to the recipient.
	SenderID string `json:"senderId"`
}
