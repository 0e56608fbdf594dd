package delivery

import (
	"context"
	"strings"
	"time"

	"DocRelay/internal/models"
)

const dateStampLayout = "2006-01-02"

func cleanName(s string) string {
	s = strings.ReplaceAll(s, "/", "-")
	return strings.Join(strings.Fields(s), " ")
}

// BatchFolderName is "{Project Title} - {YYYY-MM-DD}".
func BatchFolderName(projectTitle string, at time.Time) string {
	title := cleanName(projectTitle)
	if title == "" {
		title = "Untitled Project"
	}
	return title + " - " + at.Format(dateStampLayout)
}

// CandidateFolderName is "{First} {Last} - {Role}".
func CandidateFolderName(c models.Candidate, role string) string {
	name := cleanName(c.FullName())
	if name == "" {
		name = c.ID
	}
	role = cleanName(role)
	if role == "" {
		return name
	}
	return name + " - " + role
}

// ShareTarget returns the address a folder is shared with. An empty result
// means anyone with the link.
func ShareTarget(recipientEmail string) string {
	return strings.TrimSpace(recipientEmail)
}

// folderBuilder names folders and delegates their creation. Every call can
// fail; callers apply the isolation policy.
type folderBuilder struct {
	cloud CloudFolders
}

func (b folderBuilder) createBatch(ctx context.Context, projectTitle string, at time.Time) (string, error) {
	return b.cloud.CreateFolder(ctx, BatchFolderName(projectTitle, at), "")
}

func (b folderBuilder) createCandidate(ctx context.Context, batchFolderID string, c models.Candidate, role string) (string, error) {
	return b.cloud.CreateFolder(ctx, CandidateFolderName(c, role), batchFolderID)
}

func (b folderBuilder) share(ctx context.Context, folderID, recipientEmail string) (string, error) {
	return b.cloud.ShareFolder(ctx, folderID, ShareTarget(recipientEmail))
}
