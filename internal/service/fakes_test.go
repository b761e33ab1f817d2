package service

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/RubachokBoss/evalmate/internal/models"
	"github.com/RubachokBoss/evalmate/internal/repository"
	"github.com/RubachokBoss/evalmate/pkg/hash"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// fakeRasterizer treats the PDF as pages separated by form feeds.
type fakeRasterizer struct {
	err error
}

func (f *fakeRasterizer) Rasterize(_ context.Context, pdf []byte) ([][]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	if !strings.HasPrefix(string(pdf), "%PDF") {
		return nil, errors.New("not a pdf")
	}
	var pages [][]byte
	for _, p := range strings.Split(strings.TrimPrefix(string(pdf), "%PDF"), "\f") {
		pages = append(pages, []byte(p))
	}
	return pages, nil
}

// fakeDetector echoes the page content; pages listed in failures fail that many times.
type fakeDetector struct {
	mu       sync.Mutex
	failures map[string]int
	calls    map[string]int
}

func (f *fakeDetector) DetectDocumentText(_ context.Context, image []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	page := string(image)
	f.calls[page]++
	if f.failures[page] > 0 {
		f.failures[page]--
		return "", errors.New("vision api error")
	}
	return page, nil
}

// fakeMath reads pages like "t:Let x|f:<b64 latex>" and recognizes a crop by returning its bytes.
type fakeMath struct{}

func (fakeMath) Segment(_ context.Context, image []byte) ([]models.Fragment, error) {
	var fragments []models.Fragment
	for _, part := range strings.Split(string(image), "|") {
		switch {
		case strings.HasPrefix(part, "t:"):
			fragments = append(fragments, models.Fragment{Type: models.FragmentText, Text: part[2:]})
		case strings.HasPrefix(part, "f:"):
			fragments = append(fragments, models.Fragment{Type: models.FragmentFormula, Image: part[2:]})
		}
	}
	return fragments, nil
}

func (fakeMath) RecognizeFormula(_ context.Context, image []byte) (string, error) {
	return " " + string(image) + " ", nil
}

func b64(s string) string {
	return base64.StdEncoding.EncodeToString([]byte(s))
}

type fakeGrader struct {
	mu       sync.Mutex
	reply    string
	err      error
	requests [][]models.ChatMessage
}

func (f *fakeGrader) Grade(_ context.Context, messages []models.ChatMessage) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, messages)
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

type fakePublisher struct {
	mu        sync.Mutex
	recorded  []models.SubmissionRecordedEvent
	finalized []models.FeedbackFinalizedEvent
	requested []models.ExtractionRequestedEvent
}

func (p *fakePublisher) PublishSubmissionRecorded(_ context.Context, e *models.SubmissionRecordedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.recorded = append(p.recorded, *e)
	return nil
}

func (p *fakePublisher) PublishFeedbackFinalized(_ context.Context, e *models.FeedbackFinalizedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.finalized = append(p.finalized, *e)
	return nil
}

func (p *fakePublisher) PublishExtractionRequested(_ context.Context, e *models.ExtractionRequestedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requested = append(p.requested, *e)
	return nil
}

// flakyBlobStore fails Put for paths in failPut and can hold Get callers at a rendezvous.
type flakyBlobStore struct {
	*repository.MemoryBlobStore
	mu      sync.Mutex
	failPut map[string]bool
	gate    *rendezvous
	// afterGet runs once, after the next read of its path has been served
	afterGet     func()
	afterGetPath string
}

func (s *flakyBlobStore) Get(ctx context.Context, path string) ([]byte, error) {
	after := s.beforeRead(path)
	data, err := s.MemoryBlobStore.Get(ctx, path)
	after()
	return data, err
}

func (s *flakyBlobStore) GetVersion(ctx context.Context, path string) ([]byte, string, error) {
	after := s.beforeRead(path)
	data, version, err := s.MemoryBlobStore.GetVersion(ctx, path)
	after()
	return data, version, err
}

// beforeRead waits at the gate and returns the hook to run once the read is served.
func (s *flakyBlobStore) beforeRead(path string) func() {
	s.mu.Lock()
	gate := s.gate
	after := func() {}
	if s.afterGet != nil && s.afterGetPath == path {
		after, s.afterGet = s.afterGet, nil
	}
	s.mu.Unlock()

	if gate != nil && gate.path == path {
		gate.arrive()
	}
	return after
}

func (s *flakyBlobStore) onceAfterGet(path string, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.afterGet, s.afterGetPath = fn, path
}

// holdGets blocks reads of path until parties callers are waiting, then releases them all.
func (s *flakyBlobStore) holdGets(path string, parties int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gate = &rendezvous{path: path, parties: parties, release: make(chan struct{})}
}

type rendezvous struct {
	path    string
	parties int

	mu      sync.Mutex
	waiting int
	release chan struct{}
}

func (r *rendezvous) arrive() {
	r.mu.Lock()
	if r.waiting < r.parties {
		r.waiting++
		if r.waiting == r.parties {
			close(r.release)
		}
	}
	r.mu.Unlock()
	<-r.release
}

func (s *flakyBlobStore) Put(ctx context.Context, path string, data []byte, contentType string) error {
	if err := s.putErr(path); err != nil {
		return err
	}
	return s.MemoryBlobStore.Put(ctx, path, data, contentType)
}

func (s *flakyBlobStore) PutIfVersion(ctx context.Context, path string, data []byte, contentType, version string) error {
	if err := s.putErr(path); err != nil {
		return err
	}
	return s.MemoryBlobStore.PutIfVersion(ctx, path, data, contentType, version)
}

func (s *flakyBlobStore) putErr(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failPut[path] {
		return &repository.StoreError{Op: "put", Path: path, Err: errors.New("disk full")}
	}
	return nil
}

func (s *flakyBlobStore) failOn(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failPut == nil {
		s.failPut = make(map[string]bool)
	}
	s.failPut[path] = true
}

type testEnv struct {
	blobs       *flakyBlobStore
	assignments repository.AssignmentRepository
	subs        repository.SubmissionRepository
	jobs        repository.JobRepository
	drafts      *DraftStore
	publisher   *fakePublisher
	grader      *fakeGrader
	detector    *fakeDetector

	assignmentSvc *assignmentService
	submissionSvc *submissionService
	gradingSvc    *gradingService
	dashboardSvc  *dashboardService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := zerolog.Nop()
	blobs := &flakyBlobStore{MemoryBlobStore: repository.NewMemoryBlobStore()}

	env := &testEnv{
		blobs:       blobs,
		assignments: repository.NewAssignmentRepository(blobs, log),
		subs:        repository.NewSubmissionRepository(blobs, log),
		jobs:        repository.NewJobRepository(blobs, log),
		drafts:      NewDraftStore(),
		publisher:   &fakePublisher{},
		grader:      &fakeGrader{reply: "  Correct, well explained.  "},
		detector:    &fakeDetector{},
	}

	extraction := NewExtractionService(&fakeRasterizer{}, env.detector, fakeMath{}, time.Second, 1, log)

	env.assignmentSvc = NewAssignmentService(env.assignments, env.subs, blobs, env.drafts, time.UTC, log).(*assignmentService)
	env.submissionSvc = NewSubmissionService(env.assignments, env.subs, blobs, extraction, hash.NewDocumentHasher(hash.SHA256), env.drafts, env.publisher, log).(*submissionService)
	env.gradingSvc = NewGradingService(env.assignments, blobs, env.submissionSvc, env.grader, env.drafts, env.publisher, log).(*gradingService)
	env.dashboardSvc = NewDashboardService(env.assignments, blobs, time.UTC, log).(*dashboardService)
	return env
}

func (e *testEnv) create(t *testing.T, title, subject string, deadline time.Time) {
	t.Helper()
	_, err := e.assignmentSvc.CreateAssignment(context.Background(), &models.CreateAssignmentRequest{
		Title:       title,
		Subject:     subject,
		Deadline:    deadline.Format(models.DeadlineLayout),
		ModelAnswer: "2+2=4",
	})
	require.NoError(t, err)
}

func (e *testEnv) assignment(t *testing.T, title string) *models.Assignment {
	t.Helper()
	a, err := e.assignmentSvc.GetAssignment(context.Background(), title)
	require.NoError(t, err)
	return a
}
