package models

import (
	"strings"
	"time"
)

type Candidate struct {
	ID          string `json:"id"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	Email       string `json:"email"`
	Designation string `json:"designation"`
}

func (c Candidate) FullName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

type Project struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	ClientName string `json:"clientName"`
}

type PipelineStatus struct {
	MainStatus string `json:"mainStatus"`
	SubStatus  string `json:"subStatus"`
}

// StatusEntry is one row of a candidate's status history within a project.
// Any of the name fields may be empty depending on where the entry came from.
type StatusEntry struct {
	SubStatus      string    `json:"subStatus,omitempty"`
	StatusSnapshot string    `json:"statusSnapshot,omitempty"`
	MainStatus     string    `json:"mainStatus,omitempty"`
	ExternalStatus string    `json:"externalStatus,omitempty"`
	ChangedAt      time.Time `json:"changedAt"`
}
