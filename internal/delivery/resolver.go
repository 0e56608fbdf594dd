package delivery

import (
	"context"
	"errors"
	"fmt"

	"DocRelay/internal/models"
)

// Resolver decides which documents are delivered for a candidate selection.
type Resolver struct {
	docs DocumentSource
}

func NewResolver(docs DocumentSource) *Resolver {
	return &Resolver{docs: docs}
}

// Resolve returns the latest merged artifact for a merged selection, or the
// verified subset of the requested documents in request order. Missing and
// unverified documents are dropped without error.
func (r *Resolver) Resolve(ctx context.Context, sel models.CandidateSelection, projectID string) ([]models.DocumentDescriptor, error) {
	if sel.SendType == models.SendMerged {
		doc, err := r.docs.LatestMergedDocument(ctx, sel.CandidateID, projectID)
		if errors.Is(err, models.ErrNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("merged document: %w", err)
		}
		return []models.DocumentDescriptor{*doc}, nil
	}

	if len(sel.DocumentIDs) == 0 {
		return nil, nil
	}

	found, err := r.docs.DocumentsByIDs(ctx, sel.DocumentIDs)
	if err != nil {
		return nil, fmt.Errorf("selected documents: %w", err)
	}

	byID := make(map[string]models.DocumentDescriptor, len(found))
	for _, d := range found {
		byID[d.ID] = d
	}

	out := make([]models.DocumentDescriptor, 0, len(sel.DocumentIDs))
	seen := make(map[string]struct{}, len(sel.DocumentIDs))
	for _, id := range sel.DocumentIDs {
		d, ok := byID[id]
		if !ok || d.Status != models.DocumentVerified {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, d)
	}
	return out, nil
}
