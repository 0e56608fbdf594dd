package delivery

import (
	"context"
	"time"

	"DocRelay/internal/models"
)

// Store is the pipeline persistence the orchestrator reads and writes.
type Store interface {
	GetHistory(ctx context.Context, id string) (*models.DeliveryHistory, error)
	MarkHistorySent(ctx context.Context, id string, sentAt time.Time) error
	MarkHistoryFailed(ctx context.Context, id string, errorMsg string) error

	GetProject(ctx context.Context, id string) (*models.Project, error)
	GetCandidate(ctx context.Context, id string) (*models.Candidate, error)
	GetRoleTitle(ctx context.Context, roleCatalogID string) (string, error)

	DocumentSource
}

type DocumentSource interface {
	LatestMergedDocument(ctx context.Context, candidateID, projectID string) (*models.DocumentDescriptor, error)
	DocumentsByIDs(ctx context.Context, ids []string) ([]models.DocumentDescriptor, error)
}

type BlobStore interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

type CloudFolders interface {
	IsConfigured() bool
	CreateFolder(ctx context.Context, name, parentID string) (string, error)
	UploadFile(ctx context.Context, folderID, fileName, mimeType string, content []byte) (string, error)
	ShareFolder(ctx context.Context, folderID, recipientEmail string) (string, error)
}

type StatusAdvancer interface {
	Advance(ctx context.Context, candidateID, projectID string) error
}

// Guard mirrors idempotency.Guard.
type Guard interface {
	Claim(ctx context.Context, key string) (bool, error)
	Complete(ctx context.Context, key string) error
	Release(ctx context.Context, key string) error
	Completed(ctx context.Context, key string) (bool, error)
}
