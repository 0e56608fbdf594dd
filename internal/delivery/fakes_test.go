package delivery

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"DocRelay/internal/email"
	"DocRelay/internal/idempotency"
	"DocRelay/internal/models"
)

var testNow = time.Date(2026, 10, 16, 9, 30, 0, 0, time.UTC)

// ------------------------------------------------
// Store
// ------------------------------------------------

type fakeStore struct {
	mu sync.Mutex

	history    map[string]*models.DeliveryHistory
	projects   map[string]*models.Project
	candidates map[string]*models.Candidate
	roles      map[string]string
	documents  map[string]models.DocumentDescriptor
	merged     map[string]models.DocumentDescriptor

	docsErr        error
	sentErrs       []error
	historyWrites  int
	candidateReads int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		history:    make(map[string]*models.DeliveryHistory),
		projects:   make(map[string]*models.Project),
		candidates: make(map[string]*models.Candidate),
		roles:      make(map[string]string),
		documents:  make(map[string]models.DocumentDescriptor),
		merged:     make(map[string]models.DocumentDescriptor),
	}
}

func (s *fakeStore) GetHistory(_ context.Context, id string) (*models.DeliveryHistory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.history[id]
	if !ok {
		return nil, fmt.Errorf("history %s: %w", id, models.ErrNotFound)
	}
	cp := *rec
	return &cp, nil
}

func (s *fakeStore) MarkHistorySent(_ context.Context, id string, sentAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.historyWrites++
	if len(s.sentErrs) > 0 {
		err := s.sentErrs[0]
		s.sentErrs = s.sentErrs[1:]
		if err != nil {
			return err
		}
	}
	rec := s.history[id]
	rec.Status = models.HistorySent
	rec.SentAt = &sentAt
	rec.Error = nil
	return nil
}

func (s *fakeStore) MarkHistoryFailed(_ context.Context, id string, msg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.historyWrites++
	rec := s.history[id]
	rec.Status = models.HistoryFailed
	rec.Error = &msg
	return nil
}

func (s *fakeStore) GetProject(_ context.Context, id string) (*models.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[id]
	if !ok {
		return nil, fmt.Errorf("project %s: %w", id, models.ErrNotFound)
	}
	cp := *p
	return &cp, nil
}

func (s *fakeStore) GetCandidate(_ context.Context, id string) (*models.Candidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.candidateReads++
	c, ok := s.candidates[id]
	if !ok {
		return nil, fmt.Errorf("candidate %s: %w", id, models.ErrNotFound)
	}
	cp := *c
	return &cp, nil
}

func (s *fakeStore) GetRoleTitle(_ context.Context, id string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	title, ok := s.roles[id]
	if !ok {
		return "", fmt.Errorf("role %s: %w", id, models.ErrNotFound)
	}
	return title, nil
}

func (s *fakeStore) LatestMergedDocument(_ context.Context, candidateID, projectID string) (*models.DocumentDescriptor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.merged[candidateID+"|"+projectID]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &d, nil
}

func (s *fakeStore) DocumentsByIDs(_ context.Context, ids []string) ([]models.DocumentDescriptor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.docsErr != nil {
		return nil, s.docsErr
	}
	var out []models.DocumentDescriptor
	for _, id := range ids {
		if d, ok := s.documents[id]; ok {
			out = append(out, d)
		}
	}
	return out, nil
}

func (s *fakeStore) addCandidate(id, first, last string) {
	s.candidates[id] = &models.Candidate{ID: id, FirstName: first, LastName: last}
}

func (s *fakeStore) addMerged(candidateID, projectID, fileName string) models.DocumentDescriptor {
	d := models.DocumentDescriptor{
		ID:       "merged-" + candidateID,
		FileName: fileName,
		FileURL:  "https://blob.test/" + fileName,
		MimeType: "application/pdf",
		Status:   models.DocumentVerified,
	}
	s.merged[candidateID+"|"+projectID] = d
	return d
}

// ------------------------------------------------
// Blob storage
// ------------------------------------------------

type fakeBlobs struct {
	mu     sync.Mutex
	fail   map[string]error
	bodies map[string][]byte
	calls  []string
}

func newFakeBlobs() *fakeBlobs {
	return &fakeBlobs{fail: make(map[string]error), bodies: make(map[string][]byte)}
}

func (b *fakeBlobs) Fetch(_ context.Context, url string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, url)
	if err, ok := b.fail[url]; ok {
		return nil, err
	}
	if body, ok := b.bodies[url]; ok {
		return body, nil
	}
	if len(url) > 4 && url[len(url)-4:] == ".csv" {
		return []byte("Name,Role\nAda Lovelace,Engineer\n"), nil
	}
	return []byte("content of " + url), nil
}

// ------------------------------------------------
// Cloud folders
// ------------------------------------------------

type folderCall struct {
	ID     string
	Name   string
	Parent string
}

type uploadCall struct {
	Folder   string
	FileName string
}

type fakeCloud struct {
	mu         sync.Mutex
	configured bool
	failUpload map[string]error
	folders    []folderCall
	uploads    []uploadCall
	shares     []string
}

func newFakeCloud(configured bool) *fakeCloud {
	return &fakeCloud{configured: configured, failUpload: make(map[string]error)}
}

func (c *fakeCloud) IsConfigured() bool { return c.configured }

func (c *fakeCloud) CreateFolder(_ context.Context, name, parentID string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := fmt.Sprintf("folder-%d", len(c.folders)+1)
	c.folders = append(c.folders, folderCall{ID: id, Name: name, Parent: parentID})
	return id, nil
}

func (c *fakeCloud) UploadFile(_ context.Context, folderID, fileName, _ string, _ []byte) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err, ok := c.failUpload[fileName]; ok {
		return "", err
	}
	c.uploads = append(c.uploads, uploadCall{Folder: folderID, FileName: fileName})
	return "https://drive.test/file/" + fileName, nil
}

func (c *fakeCloud) ShareFolder(_ context.Context, folderID, recipientEmail string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.shares = append(c.shares, recipientEmail)
	return "https://drive.test/folders/" + folderID, nil
}

// ------------------------------------------------
// Mail
// ------------------------------------------------

type fakeMail struct {
	mu   sync.Mutex
	err  error
	sent []email.Message
}

func (m *fakeMail) Send(_ context.Context, msg email.Message) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	m.sent = append(m.sent, msg)
	return fmt.Sprintf("<msg-%d@test>", len(m.sent)), nil
}

// ------------------------------------------------
// Status
// ------------------------------------------------

type fakeStatus struct {
	mu       sync.Mutex
	fail     map[string]error
	advanced []string
}

func (s *fakeStatus) Advance(_ context.Context, candidateID, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.fail[candidateID]; ok {
		return err
	}
	s.advanced = append(s.advanced, candidateID)
	return nil
}

// ------------------------------------------------
// Harness
// ------------------------------------------------

type harness struct {
	store  *fakeStore
	blobs  *fakeBlobs
	cloud  *fakeCloud
	mail   *fakeMail
	status *fakeStatus
	logs   *observer.ObservedLogs
	orch   *Orchestrator
}

func newHarness(t *testing.T, cloudConfigured bool, concurrency int) *harness {
	t.Helper()

	render, err := email.NewRenderer()
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}

	core, logs := observer.New(zapcore.DebugLevel)

	h := &harness{
		store:  newFakeStore(),
		blobs:  newFakeBlobs(),
		cloud:  newFakeCloud(cloudConfigured),
		mail:   &fakeMail{},
		status: &fakeStatus{fail: make(map[string]error)},
		logs:   logs,
	}
	h.orch = New(Deps{
		Store:           h.store,
		Blobs:           h.blobs,
		Cloud:           h.cloud,
		Mail:            h.mail,
		Render:          render,
		Status:          h.status,
		Guard:           idempotency.NewMemoryGuard(time.Hour, time.Hour),
		Log:             zap.New(core),
		BulkConcurrency: concurrency,
		Now:             func() time.Time { return testNow },
	})
	return h
}
