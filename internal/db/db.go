package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"DocRelay/internal/models"
)

type Store struct {
	Pool *pgxpool.Pool
}

func New(conn string) (*Store, error) {
	pool, err := pgxpool.New(context.Background(), conn)
	if err != nil {
		return nil, err
	}

	return &Store{Pool: pool}, nil
}

func (s *Store) Close() {
	s.Pool.Close()
}

func notFound(err error, what string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, models.ErrNotFound)
	}
	return err
}

// ------------------------------------------------
// Delivery history
// ------------------------------------------------

// InsertHistory stores rec as a pending delivery and fills in its ID and
// timestamps.
func (s *Store) InsertHistory(ctx context.Context, rec *models.DeliveryHistory) error {

	docsJSON, err := json.Marshal(rec.DocumentDetails)
	if err != nil {
		return err
	}

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CCEmails == nil {
		rec.CCEmails = []string{}
	}
	if rec.BCCEmails == nil {
		rec.BCCEmails = []string{}
	}
	rec.Status = models.HistoryPending

	return s.Pool.QueryRow(ctx,
		`INSERT INTO delivery_history
		 (id, recipient_email, cc_emails, bcc_emails, candidate_id, project_id,
		  role_catalog_id, notes, document_details, status, created_at, updated_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,NOW(),NOW())
		 RETURNING created_at, updated_at`,
		rec.ID,
		rec.RecipientEmail,
		rec.CCEmails,
		rec.BCCEmails,
		rec.CandidateID,
		rec.ProjectID,
		rec.RoleCatalogID,
		rec.Notes,
		docsJSON,
		models.HistoryPending,
	).Scan(&rec.CreatedAt, &rec.UpdatedAt)
}

func (s *Store) GetHistory(ctx context.Context, id string) (*models.DeliveryHistory, error) {
	var (
		rec      models.DeliveryHistory
		docsJSON []byte
	)

	err := s.Pool.QueryRow(ctx,
		`SELECT id, recipient_email, cc_emails, bcc_emails, candidate_id, project_id,
		        role_catalog_id, notes, document_details, status, sent_at, error,
		        created_at, updated_at
		 FROM delivery_history
		 WHERE id=$1`,
		id,
	).Scan(
		&rec.ID,
		&rec.RecipientEmail,
		&rec.CCEmails,
		&rec.BCCEmails,
		&rec.CandidateID,
		&rec.ProjectID,
		&rec.RoleCatalogID,
		&rec.Notes,
		&docsJSON,
		&rec.Status,
		&rec.SentAt,
		&rec.Error,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		return nil, notFound(err, "delivery history "+id)
	}

	if err := json.Unmarshal(docsJSON, &rec.DocumentDetails); err != nil {
		return nil, fmt.Errorf("decode document details: %w", err)
	}

	return &rec, nil
}

func (s *Store) MarkHistorySent(ctx context.Context, id string, sentAt time.Time) error {

	_, err := s.Pool.Exec(ctx,
		`UPDATE delivery_history
		 SET status=$1,
		     sent_at=$2,
		     error=NULL,
		     updated_at=NOW()
		 WHERE id=$3`,
		models.HistorySent,
		sentAt,
		id,
	)

	return err
}

func (s *Store) MarkHistoryFailed(ctx context.Context, id string, errorMsg string) error {

	_, err := s.Pool.Exec(ctx,
		`UPDATE delivery_history
		 SET status=$1,
		     error=$2,
		     updated_at=NOW()
		 WHERE id=$3`,
		models.HistoryFailed,
		errorMsg,
		id,
	)

	return err
}

// ------------------------------------------------
// Candidates, projects, roles
// ------------------------------------------------

func (s *Store) GetProject(ctx context.Context, id string) (*models.Project, error) {
	var p models.Project
	err := s.Pool.QueryRow(ctx,
		`SELECT id, title, client_name FROM projects WHERE id=$1`,
		id,
	).Scan(&p.ID, &p.Title, &p.ClientName)
	if err != nil {
		return nil, notFound(err, "project "+id)
	}
	return &p, nil
}

func (s *Store) GetCandidate(ctx context.Context, id string) (*models.Candidate, error) {
	var c models.Candidate
	err := s.Pool.QueryRow(ctx,
		`SELECT id, first_name, last_name, email, designation FROM candidates WHERE id=$1`,
		id,
	).Scan(&c.ID, &c.FirstName, &c.LastName, &c.Email, &c.Designation)
	if err != nil {
		return nil, notFound(err, "candidate "+id)
	}
	return &c, nil
}

func (s *Store) GetRoleTitle(ctx context.Context, roleCatalogID string) (string, error) {
	var title string
	err := s.Pool.QueryRow(ctx,
		`SELECT title FROM role_catalogs WHERE id=$1`,
		roleCatalogID,
	).Scan(&title)
	if err != nil {
		return "", notFound(err, "role catalog "+roleCatalogID)
	}
	return title, nil
}

// ------------------------------------------------
// Documents
// ------------------------------------------------

// LatestMergedDocument returns the most recently updated merged artifact for
// the candidate within the project.
func (s *Store) LatestMergedDocument(ctx context.Context, candidateID, projectID string) (*models.DocumentDescriptor, error) {
	d := models.DocumentDescriptor{Status: models.DocumentVerified}
	err := s.Pool.QueryRow(ctx,
		`SELECT id, file_name, file_url, mime_type, updated_at
		 FROM merged_documents
		 WHERE candidate_id=$1 AND project_id=$2
		 ORDER BY updated_at DESC
		 LIMIT 1`,
		candidateID,
		projectID,
	).Scan(&d.ID, &d.FileName, &d.FileURL, &d.MimeType, &d.UpdatedAt)
	if err != nil {
		return nil, notFound(err, "merged document")
	}
	return &d, nil
}

// DocumentsByIDs returns the documents that exist among ids, in no
// particular order.
func (s *Store) DocumentsByIDs(ctx context.Context, ids []string) ([]models.DocumentDescriptor, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := s.Pool.Query(ctx,
		`SELECT id, file_name, file_url, mime_type, status, updated_at
		 FROM candidate_documents
		 WHERE id = ANY($1)`,
		ids,
	)
	if err != nil {
		return nil, err
	}

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.DocumentDescriptor, error) {
		var d models.DocumentDescriptor
		err := row.Scan(&d.ID, &d.FileName, &d.FileURL, &d.MimeType, &d.Status, &d.UpdatedAt)
		return d, err
	})
}

// ------------------------------------------------
// Pipeline status
// ------------------------------------------------

// UpdatePipelineStatus sets the candidate-project mapping status and appends
// the change to the status history.
func (s *Store) UpdatePipelineStatus(
	ctx context.Context,
	candidateID, projectID string,
	status models.PipelineStatus,
) error {

	return pgx.BeginFunc(ctx, s.Pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE candidate_projects
			 SET main_status=$1,
			     sub_status=$2,
			     updated_at=NOW()
			 WHERE candidate_id=$3 AND project_id=$4`,
			status.MainStatus,
			status.SubStatus,
			candidateID,
			projectID,
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("candidate %s in project %s: %w", candidateID, projectID, models.ErrNotFound)
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO candidate_status_history
			 (candidate_id, project_id, main_status, sub_status, status_snapshot, changed_at)
			 VALUES ($1,$2,$3,$4,$5,NOW())`,
			candidateID,
			projectID,
			status.MainStatus,
			status.SubStatus,
			status.MainStatus+"/"+status.SubStatus,
		)
		return err
	})
}

func (s *Store) StatusHistory(ctx context.Context, candidateID, projectID string) ([]models.StatusEntry, error) {
	rows, err := s.Pool.Query(ctx,
		`SELECT sub_status, status_snapshot, main_status, external_status, changed_at
		 FROM candidate_status_history
		 WHERE candidate_id=$1 AND project_id=$2
		 ORDER BY changed_at`,
		candidateID,
		projectID,
	)
	if err != nil {
		return nil, err
	}

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.StatusEntry, error) {
		var e models.StatusEntry
		err := row.Scan(&e.SubStatus, &e.StatusSnapshot, &e.MainStatus, &e.ExternalStatus, &e.ChangedAt)
		return e, err
	})
}
