package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/casdoor/casdoor-go-sdk/casdoorsdk"
	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/test-attempt-service/internal/models"
	"github.com/SAP-F-2025/test-attempt-service/internal/services"
	"github.com/SAP-F-2025/test-attempt-service/internal/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testLogger() utils.Logger {
	return utils.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// fakeParser accepts a token equal to a known user id
type fakeParser struct{}

func (fakeParser) ParseJwtToken(token string) (*casdoorsdk.Claims, error) {
	if token == "bad" {
		return nil, errors.New("signature is invalid")
	}
	return &casdoorsdk.Claims{User: casdoorsdk.User{Id: token, DisplayName: token}}, nil
}

type fakeUsers struct {
	users map[string]*models.User
}

func (f fakeUsers) GetByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := f.users[id]; ok {
		return u, nil
	}
	return nil, errors.New("user not found")
}

func (f fakeUsers) GetByIDs(ctx context.Context, ids []string) ([]*models.User, error) {
	var out []*models.User
	for _, id := range ids {
		if u, ok := f.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

type fakeAttemptService struct {
	start       func(userID string, seriesID, testID uint) (*services.AttemptResponse, error)
	answer      func(userID string, req *services.SubmitAnswerRequest) (*services.AnswerAck, error)
	submit      func(userID string) (*models.ScoreBreakdown, error)
	lastAttempt uint
}

func (f *fakeAttemptService) Start(ctx context.Context, userID string, seriesID, testID uint) (*services.AttemptResponse, error) {
	return f.start(userID, seriesID, testID)
}

func (f *fakeAttemptService) GetAttempt(ctx context.Context, userID string, seriesID, testID uint) (*services.AttemptResponse, error) {
	return &services.AttemptResponse{UserID: userID, SeriesID: seriesID, TestID: testID, Status: models.AttemptNotStarted}, nil
}

func (f *fakeAttemptService) SubmitAnswer(ctx context.Context, attemptID uint, userID string, req *services.SubmitAnswerRequest) (*services.AnswerAck, error) {
	f.lastAttempt = attemptID
	return f.answer(userID, req)
}

func (f *fakeAttemptService) SubmitAnswerForTest(ctx context.Context, userID string, seriesID, testID uint, req *services.SubmitAnswerRequest) (*services.AnswerAck, error) {
	return f.answer(userID, req)
}

func (f *fakeAttemptService) SubmitTest(ctx context.Context, attemptID uint, userID string) (*models.ScoreBreakdown, error) {
	f.lastAttempt = attemptID
	return f.submit(userID)
}

func (f *fakeAttemptService) SubmitTestForTest(ctx context.Context, userID string, seriesID, testID uint) (*models.ScoreBreakdown, error) {
	return f.submit(userID)
}

func (f *fakeAttemptService) FinalizeIfExpired(ctx context.Context, attemptID uint) (bool, error) {
	return false, nil
}

type fakeResultService struct {
	err error
}

func (f fakeResultService) GetResult(ctx context.Context, attemptID uint, userID string) (*services.ResultAnalysis, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &services.ResultAnalysis{AttemptID: attemptID, Rank: 1, Verdict: services.VerdictQualified}, nil
}

type fakeCutoffService struct {
	cutoff *models.CutoffRecord
}

func (f *fakeCutoffService) Create(ctx context.Context, seriesID, testID uint, req *services.CutoffRequest, adminID string) (*models.CutoffRecord, error) {
	if f.cutoff != nil {
		return nil, services.ErrCutoffExists
	}
	f.cutoff = &models.CutoffRecord{ID: 1, SeriesID: seriesID, TestID: testID, Score: req.Score, UpdatedBy: adminID}
	return f.cutoff, nil
}

func (f *fakeCutoffService) Get(ctx context.Context, seriesID, testID uint) (*models.CutoffRecord, error) {
	if f.cutoff == nil {
		return nil, services.ErrCutoffNotFound
	}
	return f.cutoff, nil
}

func (f *fakeCutoffService) Update(ctx context.Context, seriesID, testID uint, req *services.CutoffRequest, adminID string) (*models.CutoffRecord, error) {
	if f.cutoff == nil {
		return nil, services.ErrCutoffNotFound
	}
	f.cutoff.Score = req.Score
	return f.cutoff, nil
}

func (f *fakeCutoffService) Delete(ctx context.Context, seriesID, testID uint, adminID string) error {
	if f.cutoff == nil {
		return services.ErrCutoffNotFound
	}
	f.cutoff = nil
	return nil
}

type fakeParticipantService struct{}

func (fakeParticipantService) List(ctx context.Context, seriesID, testID uint) ([]*services.RankEntry, error) {
	return []*services.RankEntry{{Rank: 1, AttemptID: 7, UserID: "u1", NetScore: 4}}, nil
}

func (fakeParticipantService) Export(ctx context.Context, seriesID, testID uint) ([]byte, error) {
	return []byte("xlsx"), nil
}

type fakeDefinitionService struct {
	invalidated int
}

func (f *fakeDefinitionService) Get(ctx context.Context, seriesID, testID uint) (*models.TestDefinition, error) {
	return nil, services.ErrTestNotFound
}

func (f *fakeDefinitionService) Invalidate(ctx context.Context, seriesID, testID uint) error {
	f.invalidated++
	return nil
}

type fakeServiceManager struct {
	attempts    *fakeAttemptService
	results     fakeResultService
	cutoffs     *fakeCutoffService
	definitions *fakeDefinitionService
	healthErr   error
	storage     *fakeStorage
}

// fakeStorage stands in for the repository manager behind /health/db
type fakeStorage struct{ err error }

func (s *fakeStorage) HealthCheck(ctx context.Context) error { return s.err }

func (m *fakeServiceManager) Attempt() services.AttemptService         { return m.attempts }
func (m *fakeServiceManager) Result() services.ResultService           { return m.results }
func (m *fakeServiceManager) Cutoff() services.CutoffService           { return m.cutoffs }
func (m *fakeServiceManager) Participant() services.ParticipantService { return fakeParticipantService{} }
func (m *fakeServiceManager) Definition() services.DefinitionService   { return m.definitions }
func (m *fakeServiceManager) Sweeper() *services.ExpirySweeper         { return nil }
func (m *fakeServiceManager) Initialize(ctx context.Context) error     { return nil }
func (m *fakeServiceManager) HealthCheck(ctx context.Context) error    { return m.healthErr }
func (m *fakeServiceManager) Shutdown(ctx context.Context) error       { return nil }

func newFakeServiceManager() *fakeServiceManager {
	return &fakeServiceManager{
		attempts: &fakeAttemptService{
			start: func(userID string, seriesID, testID uint) (*services.AttemptResponse, error) {
				return &services.AttemptResponse{ID: 1, UserID: userID, SeriesID: seriesID, TestID: testID, Status: models.AttemptInProgress, Created: true}, nil
			},
			answer: func(userID string, req *services.SubmitAnswerRequest) (*services.AnswerAck, error) {
				return &services.AnswerAck{AttemptID: 1, QuestionID: req.QuestionID, SelectedOption: *req.SelectedOption}, nil
			},
			submit: func(userID string) (*models.ScoreBreakdown, error) {
				return &models.ScoreBreakdown{AttemptID: 1, Tally: models.Tally{Correct: 1, Earned: 2, Net: 2}}, nil
			},
		},
		cutoffs:     &fakeCutoffService{},
		definitions: &fakeDefinitionService{},
		storage:     &fakeStorage{},
	}
}

// newTestRouter wires the real routes and middleware over fake services. Tokens are
// user ids; "admin" resolves to an admin.
func newTestRouter(sm *fakeServiceManager) *gin.Engine {
	logger := testLogger()
	users := fakeUsers{users: map[string]*models.User{
		"admin": {ID: "admin", FullName: "Admin", Role: models.RoleAdmin},
		"u1":    {ID: "u1", FullName: "Asha", Role: models.RoleStudent, Category: "OBC"},
	}}

	router := gin.New()
	SetupMiddleware(router, logger, []string{"*"})
	NewHandlerManager(sm, sm.storage, logger, newCasdoorAuthMiddleware(fakeParser{}, users, logger)).SetupRoutes(router)
	return router
}
