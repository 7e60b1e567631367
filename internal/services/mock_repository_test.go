package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/SAP-F-2025/test-attempt-service/internal/events"
	"github.com/SAP-F-2025/test-attempt-service/internal/models"
	"github.com/SAP-F-2025/test-attempt-service/internal/repositories"
	"github.com/SAP-F-2025/test-attempt-service/internal/utils"
	"github.com/SAP-F-2025/test-attempt-service/internal/validator"
)

type defKey struct{ seriesID, testID uint }

type memState struct {
	nextID   uint
	attempts map[uint]*models.TestAttempt
	answers  map[uint]map[uint]models.AnswerEntry
	scores   map[uint]models.ScoreBreakdown
	cutoffs  map[defKey]models.CutoffRecord
}

func (s memState) clone() memState {
	c := memState{
		nextID:   s.nextID,
		attempts: make(map[uint]*models.TestAttempt, len(s.attempts)),
		answers:  make(map[uint]map[uint]models.AnswerEntry, len(s.answers)),
		scores:   make(map[uint]models.ScoreBreakdown, len(s.scores)),
		cutoffs:  make(map[defKey]models.CutoffRecord, len(s.cutoffs)),
	}
	for id, a := range s.attempts {
		cp := *a
		c.attempts[id] = &cp
	}
	for id, entries := range s.answers {
		m := make(map[uint]models.AnswerEntry, len(entries))
		for q, e := range entries {
			m[q] = e
		}
		c.answers[id] = m
	}
	for id, sc := range s.scores {
		c.scores[id] = sc
	}
	for k, co := range s.cutoffs {
		c.cutoffs[k] = co
	}
	return c
}

// MockRepository is an in-memory Repository. Transactions are serialized and rolled
// back on error.
type MockRepository struct {
	mu    sync.Mutex
	txMu  sync.Mutex
	state memState

	definitions map[defKey]*models.TestDefinition
	denied      map[string]bool // user ids the access gate refuses
	users       map[string]*models.User

	definitionErr  error
	upsertFailures []error

	scoreCreates int
}

func NewMockRepository() *MockRepository {
	return &MockRepository{
		state: memState{
			attempts: make(map[uint]*models.TestAttempt),
			answers:  make(map[uint]map[uint]models.AnswerEntry),
			scores:   make(map[uint]models.ScoreBreakdown),
			cutoffs:  make(map[defKey]models.CutoffRecord),
		},
		definitions: make(map[defKey]*models.TestDefinition),
		denied:      make(map[string]bool),
		users:       make(map[string]*models.User),
	}
}

func (m *MockRepository) AddDefinition(def *models.TestDefinition) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.definitions[defKey{def.SeriesID, def.TestID}] = def
}

func (m *MockRepository) AddUser(user *models.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[user.ID] = user
}

func (m *MockRepository) ScoreCreates() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.scoreCreates
}

func (m *MockRepository) TestDefinition() repositories.TestDefinitionRepository {
	return mockDefinitions{m}
}
func (m *MockRepository) Access() repositories.AccessRepository   { return mockAccess{m} }
func (m *MockRepository) Attempt() repositories.AttemptRepository { return mockAttempts{m} }
func (m *MockRepository) Answer() repositories.AnswerRepository   { return mockAnswers{m} }
func (m *MockRepository) Score() repositories.ScoreRepository     { return mockScores{m} }
func (m *MockRepository) Cutoff() repositories.CutoffRepository   { return mockCutoffs{m} }
func (m *MockRepository) User() repositories.UserRepository       { return mockUsers{m} }

func (m *MockRepository) WithTransaction(ctx context.Context, fn func(repositories.Repository) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.Lock()
	snapshot := m.state.clone()
	m.mu.Unlock()

	if err := fn(m); err != nil {
		m.mu.Lock()
		m.state = snapshot
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *MockRepository) Ping(ctx context.Context) error { return nil }
func (m *MockRepository) Close() error                   { return nil }

// ===== SUB-REPOSITORIES =====

type mockDefinitions struct{ m *MockRepository }

func (r mockDefinitions) GetDefinition(ctx context.Context, seriesID, testID uint) (*models.TestDefinition, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if r.m.definitionErr != nil {
		return nil, r.m.definitionErr
	}
	def, ok := r.m.definitions[defKey{seriesID, testID}]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return def, nil
}

func (r mockDefinitions) InvalidateDefinition(ctx context.Context, seriesID, testID uint) error {
	return nil
}

type mockAccess struct{ m *MockRepository }

func (r mockAccess) HasEligibleAccess(ctx context.Context, userID string, seriesID, testID uint) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.definitions[defKey{seriesID, testID}]; !ok {
		return false, gorm.ErrRecordNotFound
	}
	return !r.m.denied[userID], nil
}

type mockAttempts struct{ m *MockRepository }

func (r mockAttempts) CreateOrGet(ctx context.Context, tx *gorm.DB, attempt *models.TestAttempt) (*models.TestAttempt, bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	for _, a := range r.m.state.attempts {
		if a.UserID == attempt.UserID && a.SeriesID == attempt.SeriesID && a.TestID == attempt.TestID {
			cp := *a
			return &cp, false, nil
		}
	}

	r.m.state.nextID++
	stored := *attempt
	stored.ID = r.m.state.nextID
	r.m.state.attempts[stored.ID] = &stored

	cp := stored
	return &cp, true, nil
}

func (r mockAttempts) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.TestAttempt, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	a, ok := r.m.state.attempts[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *a
	return &cp, nil
}

func (r mockAttempts) GetByUserAndTest(ctx context.Context, tx *gorm.DB, userID string, seriesID, testID uint) (*models.TestAttempt, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, a := range r.m.state.attempts {
		if a.UserID == userID && a.SeriesID == seriesID && a.TestID == testID {
			cp := *a
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

// Transactions are already serialized, so locks are plain reads
func (r mockAttempts) LockForUpdate(ctx context.Context, tx *gorm.DB, id uint) (*models.TestAttempt, error) {
	return r.GetByID(ctx, tx, id)
}

func (r mockAttempts) LockForShare(ctx context.Context, tx *gorm.DB, id uint) (*models.TestAttempt, error) {
	return r.GetByID(ctx, tx, id)
}

func (r mockAttempts) MarkSubmitted(ctx context.Context, tx *gorm.DB, id uint, submittedAt time.Time, auto bool) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	a, ok := r.m.state.attempts[id]
	if !ok || a.Status != models.AttemptInProgress {
		return false, nil
	}
	a.Status = models.AttemptSubmitted
	a.SubmittedAt = &submittedAt
	a.AutoSubmitted = auto
	return true, nil
}

func (r mockAttempts) ListSubmitted(ctx context.Context, tx *gorm.DB, seriesID, testID uint) ([]*models.TestAttempt, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	var out []*models.TestAttempt
	for _, a := range r.m.state.attempts {
		if a.SeriesID != seriesID || a.TestID != testID || a.Status != models.AttemptSubmitted {
			continue
		}
		cp := *a
		if sc, ok := r.m.state.scores[a.ID]; ok {
			cp.Score = &sc
		}
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].SubmittedAt.Equal(*out[j].SubmittedAt) {
			return out[i].SubmittedAt.Before(*out[j].SubmittedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r mockAttempts) ListExpired(ctx context.Context, tx *gorm.DB, cutoff time.Time, grace time.Duration, afterID uint, limit int) ([]uint, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	var ids []uint
	for id, a := range r.m.state.attempts {
		if id > afterID && a.Status == models.AttemptInProgress && !a.Deadline(grace).After(cutoff) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

type mockAnswers struct{ m *MockRepository }

func (r mockAnswers) Upsert(ctx context.Context, tx *gorm.DB, entry *models.AnswerEntry) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	if len(r.m.upsertFailures) > 0 {
		err := r.m.upsertFailures[0]
		r.m.upsertFailures = r.m.upsertFailures[1:]
		return err
	}

	entries, ok := r.m.state.answers[entry.AttemptID]
	if !ok {
		entries = make(map[uint]models.AnswerEntry)
		r.m.state.answers[entry.AttemptID] = entries
	}
	entries[entry.QuestionID] = *entry
	return nil
}

func (r mockAnswers) GetByAttempt(ctx context.Context, tx *gorm.DB, attemptID uint) ([]*models.AnswerEntry, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	var out []*models.AnswerEntry
	for _, e := range r.m.state.answers[attemptID] {
		cp := e
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].QuestionID < out[j].QuestionID })
	return out, nil
}

type mockScores struct{ m *MockRepository }

func (r mockScores) Create(ctx context.Context, tx *gorm.DB, score *models.ScoreBreakdown) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, exists := r.m.state.scores[score.AttemptID]; exists {
		return gorm.ErrDuplicatedKey
	}
	r.m.state.scores[score.AttemptID] = *score
	r.m.scoreCreates++
	return nil
}

func (r mockScores) GetByAttempt(ctx context.Context, tx *gorm.DB, attemptID uint) (*models.ScoreBreakdown, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	sc, ok := r.m.state.scores[attemptID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &sc, nil
}

type mockCutoffs struct{ m *MockRepository }

func (r mockCutoffs) Create(ctx context.Context, tx *gorm.DB, cutoff *models.CutoffRecord) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	key := defKey{cutoff.SeriesID, cutoff.TestID}
	if _, exists := r.m.state.cutoffs[key]; exists {
		return gorm.ErrDuplicatedKey
	}
	r.m.state.nextID++
	cutoff.ID = r.m.state.nextID
	r.m.state.cutoffs[key] = *cutoff
	return nil
}

func (r mockCutoffs) GetByTest(ctx context.Context, tx *gorm.DB, seriesID, testID uint) (*models.CutoffRecord, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	co, ok := r.m.state.cutoffs[defKey{seriesID, testID}]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &co, nil
}

func (r mockCutoffs) Update(ctx context.Context, tx *gorm.DB, cutoff *models.CutoffRecord) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	key := defKey{cutoff.SeriesID, cutoff.TestID}
	if _, ok := r.m.state.cutoffs[key]; !ok {
		return gorm.ErrRecordNotFound
	}
	r.m.state.cutoffs[key] = *cutoff
	return nil
}

func (r mockCutoffs) Delete(ctx context.Context, tx *gorm.DB, seriesID, testID uint) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	key := defKey{seriesID, testID}
	if _, ok := r.m.state.cutoffs[key]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(r.m.state.cutoffs, key)
	return nil
}

type mockUsers struct{ m *MockRepository }

func (r mockUsers) GetByID(ctx context.Context, id string) (*models.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	u, ok := r.m.users[id]
	if !ok {
		return nil, fmt.Errorf("user not found with ID %s", id)
	}
	return u, nil
}

func (r mockUsers) GetByIDs(ctx context.Context, ids []string) ([]*models.User, error) {
	var out []*models.User
	for _, id := range ids {
		if u, err := r.GetByID(ctx, id); err == nil {
			out = append(out, u)
		}
	}
	return out, nil
}

// ===== FIXTURES =====

const (
	testSeriesID = uint(1)
	testTestID   = uint(10)
)

var testStart = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

var errSerialization = &pgconn.PgError{Code: "40001", Message: "could not serialize access"}

func intPtr(i int) *int { return &i }

func floatPtr(f float64) *float64 { return &f }

// sampleDefinition has one section of three questions worth 2 marks with 0.5 negative
// marking; the correct options are 0, 1 and 2.
func sampleDefinition() *models.TestDefinition {
	options := []string{"A", "B", "C", "D"}
	return &models.TestDefinition{
		SeriesID:     testSeriesID,
		TestID:       testTestID,
		Name:         "Mock Test 1",
		AccessType:   models.AccessFree,
		SeriesActive: true,
		Duration:     30 * time.Minute,
		Sections: []models.SectionDefinition{{
			ID:            1,
			Title:         "Quantitative Aptitude",
			DeclaredCount: 3,
			Questions: []models.QuestionDefinition{
				{ID: 101, Number: 1, Text: "Q1", Options: options, CorrectOption: intPtr(0), Marks: 2, NegativeMarks: 0.5},
				{ID: 102, Number: 2, Text: "Q2", Options: options, CorrectOption: intPtr(1), Marks: 2, NegativeMarks: 0.5},
				{ID: 103, Number: 3, Text: "Q3", Options: options, CorrectOption: intPtr(2), Marks: 2, NegativeMarks: 0.5},
			},
		}},
	}
}

type testEnv struct {
	repo      *MockRepository
	clock     *utils.FakeClock
	publisher *events.MockEventPublisher
	manager   ServiceManager
}

func newTestEnv(def *models.TestDefinition) *testEnv {
	return newTestEnvWithConfig(def, AttemptConfig{
		Retry: RetryPolicy{Attempts: 3, Backoff: time.Millisecond},
	})
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEnvWithConfig(def *models.TestDefinition, config AttemptConfig) *testEnv {
	logger := testLogger()

	repo := NewMockRepository()
	if def != nil {
		repo.AddDefinition(def)
	}

	clock := utils.NewFakeClock(testStart)
	publisher := events.NewMockEventPublisher(logger)

	manager := NewServiceManager(nil, repo, logger, validator.New(), ServiceManagerConfig{
		Attempt:   config,
		Clock:     clock,
		Publisher: publisher,
	})
	if err := manager.Initialize(context.Background()); err != nil {
		panic(err)
	}

	return &testEnv{
		repo:      repo,
		clock:     clock,
		publisher: publisher,
		manager:   manager,
	}
}

func (e *testEnv) answer(attemptID uint, userID string, questionID uint, option int) error {
	_, err := e.manager.Attempt().SubmitAnswer(context.Background(), attemptID, userID, &SubmitAnswerRequest{
		QuestionID:     questionID,
		SelectedOption: intPtr(option),
	})
	return err
}

// submitWith starts an attempt for userID, records answers and submits it
func (e *testEnv) submitWith(t *testing.T, userID string, answers map[uint]int) uint {
	t.Helper()
	ctx := context.Background()

	attempt, err := e.manager.Attempt().Start(ctx, userID, testSeriesID, testTestID)
	if err != nil {
		t.Fatalf("start for %s: %v", userID, err)
	}
	for questionID, option := range answers {
		if err := e.answer(attempt.ID, userID, questionID, option); err != nil {
			t.Fatalf("answer for %s: %v", userID, err)
		}
	}

	e.clock.Advance(time.Minute)
	if _, err := e.manager.Attempt().SubmitTest(ctx, attempt.ID, userID); err != nil {
		t.Fatalf("submit for %s: %v", userID, err)
	}
	return attempt.ID
}

var errBoom = errors.New("boom")
