package services

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"gorm.io/gorm"

	"github.com/edulearn/quiz-service/internal/cache"
	"github.com/edulearn/quiz-service/internal/events"
	"github.com/edulearn/quiz-service/internal/models"
	"github.com/edulearn/quiz-service/internal/repositories"
	"github.com/edulearn/quiz-service/internal/utils"
	"github.com/edulearn/quiz-service/internal/validator"
)

// ===== MOCKS =====

type MockQuizRepository struct {
	mock.Mock
}

func (m *MockQuizRepository) GetByID(ctx context.Context, id uint) (*models.Quiz, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Quiz), args.Error(1)
}

func (m *MockQuizRepository) GetByIDWithQuestions(ctx context.Context, id uint) (*models.Quiz, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Quiz), args.Error(1)
}

type MockAttemptRepository struct {
	mock.Mock
}

func (m *MockAttemptRepository) Create(ctx context.Context, attempt *models.QuizAttempt) error {
	args := m.Called(ctx, attempt)
	if args.Error(0) == nil && attempt.ID == 0 {
		attempt.ID = 1
	}
	return args.Error(0)
}

func (m *MockAttemptRepository) GetByID(ctx context.Context, id uint) (*models.QuizAttempt, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.QuizAttempt), args.Error(1)
}

func (m *MockAttemptRepository) GetByIDWithAnswers(ctx context.Context, id uint) (*models.QuizAttempt, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.QuizAttempt), args.Error(1)
}

func (m *MockAttemptRepository) Update(ctx context.Context, attempt *models.QuizAttempt) error {
	args := m.Called(ctx, attempt)
	return args.Error(0)
}

func (m *MockAttemptRepository) GetActiveAttempt(ctx context.Context, userID string, quizID uint) (*models.QuizAttempt, error) {
	args := m.Called(ctx, userID, quizID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.QuizAttempt), args.Error(1)
}

func (m *MockAttemptRepository) CountByStatus(ctx context.Context, userID string, quizID uint, status models.AttemptStatus) (int64, error) {
	args := m.Called(ctx, userID, quizID, status)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockAttemptRepository) List(ctx context.Context, filters repositories.AttemptFilters) ([]*models.QuizAttempt, int64, error) {
	args := m.Called(ctx, filters)
	return args.Get(0).([]*models.QuizAttempt), args.Get(1).(int64), args.Error(2)
}

func (m *MockAttemptRepository) GetStats(ctx context.Context, userID string, quizID *uint) (*repositories.AttemptStats, error) {
	args := m.Called(ctx, userID, quizID)
	return args.Get(0).(*repositories.AttemptStats), args.Error(1)
}

type MockAnswerRepository struct {
	mock.Mock
}

func (m *MockAnswerRepository) CreateBatch(ctx context.Context, answers []*models.AttemptAnswer) error {
	args := m.Called(ctx, answers)
	return args.Error(0)
}

func (m *MockAnswerRepository) DeleteByAttempt(ctx context.Context, attemptID uint) error {
	args := m.Called(ctx, attemptID)
	return args.Error(0)
}

func (m *MockAnswerRepository) GetByAttempt(ctx context.Context, attemptID uint) ([]*models.AttemptAnswer, error) {
	args := m.Called(ctx, attemptID)
	return args.Get(0).([]*models.AttemptAnswer), args.Error(1)
}

type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

type MockEnrollmentRepository struct {
	mock.Mock
}

func (m *MockEnrollmentRepository) HasActiveEnrollment(ctx context.Context, userID string, quizID uint) (bool, error) {
	args := m.Called(ctx, userID, quizID)
	return args.Bool(0), args.Error(1)
}

// mockRepository aggregates the mocks; WithTransaction runs the callback
// against the same mocks so per-call expectations cover the transaction too.
type mockRepository struct {
	quiz       *MockQuizRepository
	attempt    *MockAttemptRepository
	answer     *MockAnswerRepository
	user       *MockUserRepository
	enrollment *MockEnrollmentRepository
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		quiz:       new(MockQuizRepository),
		attempt:    new(MockAttemptRepository),
		answer:     new(MockAnswerRepository),
		user:       new(MockUserRepository),
		enrollment: new(MockEnrollmentRepository),
	}
}

func (m *mockRepository) Quiz() repositories.QuizRepository             { return m.quiz }
func (m *mockRepository) Attempt() repositories.AttemptRepository       { return m.attempt }
func (m *mockRepository) Answer() repositories.AnswerRepository         { return m.answer }
func (m *mockRepository) User() repositories.UserRepository             { return m.user }
func (m *mockRepository) Enrollment() repositories.EnrollmentRepository { return m.enrollment }

func (m *mockRepository) WithTransaction(ctx context.Context, fn func(repositories.Repository) error) error {
	return fn(m)
}

type MockAuthorizer struct {
	mock.Mock
}

func (m *MockAuthorizer) CanAccessQuiz(ctx context.Context, userID string, quiz *models.Quiz) (bool, error) {
	args := m.Called(ctx, userID, quiz)
	return args.Bool(0), args.Error(1)
}

func (m *MockAuthorizer) CanBypassAvailability(ctx context.Context, userID string, quiz *models.Quiz) (bool, error) {
	args := m.Called(ctx, userID, quiz)
	return args.Bool(0), args.Error(1)
}

// ===== FIXTURES =====

const testUserID = "user-123"

func publishedQuiz() *models.Quiz {
	return &models.Quiz{
		ID:      10,
		Title:   "Networking basics",
		Status:  models.QuizPublished,
		OwnerID: "instructor-1",
		Questions: []models.Question{
			{
				ID:         1,
				QuizID:     10,
				Type:       models.QuestionMCQ,
				OrderIndex: 0,
				Points:     2,
				Options: []models.QuestionOption{
					{ID: 100, QuestionID: 1, OrderIndex: 0, IsCorrect: false},
					{ID: 101, QuestionID: 1, OrderIndex: 1, IsCorrect: true},
				},
			},
			{
				ID:             2,
				QuizID:         10,
				Type:           models.QuestionTrueFalse,
				OrderIndex:     1,
				Points:         1,
				CorrectBoolean: boolPtr(true),
			},
		},
	}
}

func boolPtr(v bool) *bool { return &v }

func inProgressAttempt(quiz *models.Quiz) *models.QuizAttempt {
	attempt := &models.QuizAttempt{
		ID:             77,
		UserID:         testUserID,
		QuizID:         quiz.ID,
		Status:         models.AttemptInProgress,
		TotalQuestions: len(quiz.Questions),
	}
	_ = attempt.SetProgressSnapshot(models.NewProgressSnapshot(len(quiz.Questions)))
	return attempt
}

type serviceFixture struct {
	service   AttemptService
	repo      *mockRepository
	authz     *MockAuthorizer
	publisher *events.MockEventPublisher
}

func newServiceFixture() *serviceFixture {
	repo := newMockRepository()
	authz := new(MockAuthorizer)
	publisher := events.NewMockEventPublisher(slog.Default())
	logger := utils.NewDevelopmentLogger()

	service := NewAttemptService(repo, authz, publisher, cache.NoopCache{}, logger, validator.New())
	return &serviceFixture{service: service, repo: repo, authz: authz, publisher: publisher}
}

func eventTypes(publisher *events.MockEventPublisher) []events.EventType {
	published := publisher.GetPublishedEvents()
	types := make([]events.EventType, len(published))
	for i, e := range published {
		types[i] = e.Type
	}
	return types
}

// ===== BEGIN =====

func TestBeginCreatesAttempt(t *testing.T) {
	f := newServiceFixture()
	quiz := publishedQuiz()

	f.repo.quiz.On("GetByIDWithQuestions", mock.Anything, quiz.ID).Return(quiz, nil)
	f.authz.On("CanAccessQuiz", mock.Anything, testUserID, quiz).Return(true, nil)
	f.authz.On("CanBypassAvailability", mock.Anything, testUserID, quiz).Return(false, nil)
	f.repo.attempt.On("GetActiveAttempt", mock.Anything, testUserID, quiz.ID).Return(nil, nil)
	f.repo.attempt.On("CountByStatus", mock.Anything, testUserID, quiz.ID, models.AttemptCompleted).Return(int64(0), nil)
	f.repo.attempt.On("Create", mock.Anything, mock.AnythingOfType("*models.QuizAttempt")).Return(nil)

	resp, err := f.service.Begin(context.Background(), &BeginAttemptRequest{QuizID: quiz.ID}, testUserID)

	assert.NoError(t, err)
	assert.Equal(t, AttemptModeCreated, resp.Mode)
	assert.Equal(t, models.AttemptInProgress, resp.Status)
	assert.Equal(t, 2, resp.TotalQuestions)
	assert.Len(t, resp.Questions, 2)
	assert.Contains(t, eventTypes(f.publisher), events.EventAttemptStarted)

	// In-progress learners never see option correctness.
	for _, q := range resp.Questions {
		for _, opt := range q.Options {
			assert.Nil(t, opt.IsCorrect)
		}
	}
	f.repo.attempt.AssertExpectations(t)
}

func TestBeginResumesActiveAttempt(t *testing.T) {
	f := newServiceFixture()
	quiz := publishedQuiz()
	active := inProgressAttempt(quiz)

	f.repo.quiz.On("GetByIDWithQuestions", mock.Anything, quiz.ID).Return(quiz, nil)
	f.authz.On("CanAccessQuiz", mock.Anything, testUserID, quiz).Return(true, nil)
	f.authz.On("CanBypassAvailability", mock.Anything, testUserID, quiz).Return(false, nil)
	f.repo.attempt.On("GetActiveAttempt", mock.Anything, testUserID, quiz.ID).Return(active, nil)

	resp, err := f.service.Begin(context.Background(), &BeginAttemptRequest{QuizID: quiz.ID}, testUserID)

	assert.NoError(t, err)
	assert.Equal(t, AttemptModeResumed, resp.Mode)
	assert.Equal(t, active.ID, resp.ID)
	assert.Empty(t, f.publisher.GetPublishedEvents(), "resume publishes nothing")
	f.repo.attempt.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestBeginIsIdempotentForRetries(t *testing.T) {
	f := newServiceFixture()
	quiz := publishedQuiz()
	active := inProgressAttempt(quiz)

	f.repo.quiz.On("GetByIDWithQuestions", mock.Anything, quiz.ID).Return(quiz, nil)
	f.authz.On("CanAccessQuiz", mock.Anything, testUserID, quiz).Return(true, nil)
	f.authz.On("CanBypassAvailability", mock.Anything, testUserID, quiz).Return(false, nil)
	f.repo.attempt.On("GetActiveAttempt", mock.Anything, testUserID, quiz.ID).Return(active, nil)

	first, err := f.service.Begin(context.Background(), &BeginAttemptRequest{QuizID: quiz.ID}, testUserID)
	assert.NoError(t, err)
	second, err := f.service.Begin(context.Background(), &BeginAttemptRequest{QuizID: quiz.ID}, testUserID)
	assert.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
}

func TestBeginForceNewAbandonsActive(t *testing.T) {
	f := newServiceFixture()
	quiz := publishedQuiz()
	quiz.AllowMultipleAttempts = true
	active := inProgressAttempt(quiz)

	f.repo.quiz.On("GetByIDWithQuestions", mock.Anything, quiz.ID).Return(quiz, nil)
	f.authz.On("CanAccessQuiz", mock.Anything, testUserID, quiz).Return(true, nil)
	f.authz.On("CanBypassAvailability", mock.Anything, testUserID, quiz).Return(false, nil)
	f.repo.attempt.On("GetActiveAttempt", mock.Anything, testUserID, quiz.ID).Return(active, nil)
	f.repo.attempt.On("Update", mock.Anything, active).Return(nil)
	f.repo.attempt.On("CountByStatus", mock.Anything, testUserID, quiz.ID, models.AttemptCompleted).Return(int64(1), nil)
	f.repo.attempt.On("Create", mock.Anything, mock.AnythingOfType("*models.QuizAttempt")).Return(nil)

	resp, err := f.service.Begin(context.Background(), &BeginAttemptRequest{QuizID: quiz.ID, ForceNew: true}, testUserID)

	assert.NoError(t, err)
	assert.Equal(t, AttemptModeCreated, resp.Mode)
	assert.Equal(t, models.AttemptAbandoned, active.Status)
	types := eventTypes(f.publisher)
	assert.Contains(t, types, events.EventAttemptAbandoned)
	assert.Contains(t, types, events.EventAttemptStarted)
}

func TestBeginSingleAttemptQuota(t *testing.T) {
	f := newServiceFixture()
	quiz := publishedQuiz() // AllowMultipleAttempts false by default

	f.repo.quiz.On("GetByIDWithQuestions", mock.Anything, quiz.ID).Return(quiz, nil)
	f.authz.On("CanAccessQuiz", mock.Anything, testUserID, quiz).Return(true, nil)
	f.authz.On("CanBypassAvailability", mock.Anything, testUserID, quiz).Return(false, nil)
	f.repo.attempt.On("GetActiveAttempt", mock.Anything, testUserID, quiz.ID).Return(nil, nil)
	f.repo.attempt.On("CountByStatus", mock.Anything, testUserID, quiz.ID, models.AttemptCompleted).Return(int64(1), nil)

	_, err := f.service.Begin(context.Background(), &BeginAttemptRequest{QuizID: quiz.ID}, testUserID)

	assert.ErrorIs(t, err, ErrAttemptQuotaExceeded)
	f.repo.attempt.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestBeginMaxAttemptsCapHoldsDespiteForceNew(t *testing.T) {
	f := newServiceFixture()
	quiz := publishedQuiz()
	quiz.AllowMultipleAttempts = true
	maxAttempts := 3
	quiz.MaxAttempts = &maxAttempts

	f.repo.quiz.On("GetByIDWithQuestions", mock.Anything, quiz.ID).Return(quiz, nil)
	f.authz.On("CanAccessQuiz", mock.Anything, testUserID, quiz).Return(true, nil)
	f.authz.On("CanBypassAvailability", mock.Anything, testUserID, quiz).Return(false, nil)
	f.repo.attempt.On("GetActiveAttempt", mock.Anything, testUserID, quiz.ID).Return(nil, nil)
	f.repo.attempt.On("CountByStatus", mock.Anything, testUserID, quiz.ID, models.AttemptCompleted).Return(int64(3), nil)

	_, err := f.service.Begin(context.Background(), &BeginAttemptRequest{QuizID: quiz.ID, ForceNew: true}, testUserID)

	assert.ErrorIs(t, err, ErrAttemptQuotaExceeded)
}

func TestBeginRejectsUnenrolled(t *testing.T) {
	f := newServiceFixture()
	quiz := publishedQuiz()

	f.repo.quiz.On("GetByIDWithQuestions", mock.Anything, quiz.ID).Return(quiz, nil)
	f.authz.On("CanAccessQuiz", mock.Anything, testUserID, quiz).Return(false, nil)

	_, err := f.service.Begin(context.Background(), &BeginAttemptRequest{QuizID: quiz.ID}, testUserID)

	assert.ErrorIs(t, err, ErrNotEnrolled)
}

func TestBeginUnpublishedQuizVisibleOnlyToBypass(t *testing.T) {
	f := newServiceFixture()
	quiz := publishedQuiz()
	quiz.Status = models.QuizDraft

	f.repo.quiz.On("GetByIDWithQuestions", mock.Anything, quiz.ID).Return(quiz, nil)
	f.authz.On("CanAccessQuiz", mock.Anything, testUserID, quiz).Return(true, nil)
	f.authz.On("CanBypassAvailability", mock.Anything, testUserID, quiz).Return(false, nil)

	_, err := f.service.Begin(context.Background(), &BeginAttemptRequest{QuizID: quiz.ID}, testUserID)
	assert.ErrorIs(t, err, ErrQuizNotAvailable)

	// Owner sails through, quota skipped.
	owner := newServiceFixture()
	owner.repo.quiz.On("GetByIDWithQuestions", mock.Anything, quiz.ID).Return(quiz, nil)
	owner.authz.On("CanAccessQuiz", mock.Anything, quiz.OwnerID, quiz).Return(true, nil)
	owner.authz.On("CanBypassAvailability", mock.Anything, quiz.OwnerID, quiz).Return(true, nil)
	owner.repo.attempt.On("GetActiveAttempt", mock.Anything, quiz.OwnerID, quiz.ID).Return(nil, nil)
	owner.repo.attempt.On("Create", mock.Anything, mock.AnythingOfType("*models.QuizAttempt")).Return(nil)

	resp, err := owner.service.Begin(context.Background(), &BeginAttemptRequest{QuizID: quiz.ID}, quiz.OwnerID)
	assert.NoError(t, err)
	assert.Equal(t, AttemptModeCreated, resp.Mode)
	owner.repo.attempt.AssertNotCalled(t, "CountByStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestBeginDuplicateKeyRaceResumesWinner(t *testing.T) {
	f := newServiceFixture()
	quiz := publishedQuiz()
	winner := inProgressAttempt(quiz)

	f.repo.quiz.On("GetByIDWithQuestions", mock.Anything, quiz.ID).Return(quiz, nil)
	f.authz.On("CanAccessQuiz", mock.Anything, testUserID, quiz).Return(true, nil)
	f.authz.On("CanBypassAvailability", mock.Anything, testUserID, quiz).Return(false, nil)
	f.repo.attempt.On("GetActiveAttempt", mock.Anything, testUserID, quiz.ID).Return(nil, nil).Once()
	f.repo.attempt.On("CountByStatus", mock.Anything, testUserID, quiz.ID, models.AttemptCompleted).Return(int64(0), nil)
	f.repo.attempt.On("Create", mock.Anything, mock.AnythingOfType("*models.QuizAttempt")).Return(gorm.ErrDuplicatedKey)
	f.repo.attempt.On("GetActiveAttempt", mock.Anything, testUserID, quiz.ID).Return(winner, nil).Once()

	resp, err := f.service.Begin(context.Background(), &BeginAttemptRequest{QuizID: quiz.ID}, testUserID)

	assert.NoError(t, err)
	assert.Equal(t, AttemptModeResumed, resp.Mode)
	assert.Equal(t, winner.ID, resp.ID)
}

// ===== RESUME / ABANDON =====

func TestResumeForeignAttemptReportsNotFound(t *testing.T) {
	f := newServiceFixture()
	quiz := publishedQuiz()
	foreign := inProgressAttempt(quiz)
	foreign.UserID = "someone-else"

	f.repo.attempt.On("GetByID", mock.Anything, foreign.ID).Return(foreign, nil)

	_, err := f.service.Resume(context.Background(), foreign.ID, testUserID)

	assert.ErrorIs(t, err, ErrAttemptNotFound)
}

func TestResumeCompletedAttemptRejected(t *testing.T) {
	f := newServiceFixture()
	quiz := publishedQuiz()
	attempt := inProgressAttempt(quiz)
	attempt.Status = models.AttemptCompleted

	f.repo.attempt.On("GetByID", mock.Anything, attempt.ID).Return(attempt, nil)

	_, err := f.service.Resume(context.Background(), attempt.ID, testUserID)

	assert.ErrorIs(t, err, ErrAttemptNotActive)
}

func TestAbandonTerminalAttemptIsNoop(t *testing.T) {
	f := newServiceFixture()
	quiz := publishedQuiz()
	attempt := inProgressAttempt(quiz)
	attempt.Status = models.AttemptAbandoned

	f.repo.attempt.On("GetByID", mock.Anything, attempt.ID).Return(attempt, nil)

	err := f.service.Abandon(context.Background(), attempt.ID, testUserID)

	assert.NoError(t, err)
	assert.Empty(t, f.publisher.GetPublishedEvents())
	f.repo.attempt.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

// ===== SAVE PROGRESS =====

func TestSaveProgressMergesAndProjects(t *testing.T) {
	f := newServiceFixture()
	quiz := publishedQuiz()
	attempt := inProgressAttempt(quiz)

	f.repo.attempt.On("GetByID", mock.Anything, attempt.ID).Return(attempt, nil)
	f.repo.attempt.On("Update", mock.Anything, attempt).Return(nil)

	idx := 1
	resp, err := f.service.SaveProgress(context.Background(), attempt.ID, &SaveProgressRequest{
		CurrentQuestionIndex: &idx,
		Answers:              map[string]any{"1": float64(1)},
	}, testUserID)

	assert.NoError(t, err)
	assert.Equal(t, 1, resp.CurrentQuestionIndex)

	snapshot, err := resp.QuizAttempt.ProgressSnapshot()
	assert.NoError(t, err)
	assert.Equal(t, 1, snapshot.AnsweredQuestions)
	assert.Equal(t, 50.0, snapshot.CompletionPercentage)
}

func TestSaveProgressOnCompletedAttempt(t *testing.T) {
	f := newServiceFixture()
	quiz := publishedQuiz()
	attempt := inProgressAttempt(quiz)
	attempt.Status = models.AttemptCompleted

	f.repo.attempt.On("GetByID", mock.Anything, attempt.ID).Return(attempt, nil)

	_, err := f.service.SaveProgress(context.Background(), attempt.ID, &SaveProgressRequest{
		Answers: map[string]any{"1": float64(0)},
	}, testUserID)

	assert.ErrorIs(t, err, ErrAttemptNotActive)
}

// ===== SUBMIT =====

func TestSubmitGradesAndFinalizes(t *testing.T) {
	f := newServiceFixture()
	quiz := publishedQuiz()
	attempt := inProgressAttempt(quiz)

	f.repo.attempt.On("GetByID", mock.Anything, attempt.ID).Return(attempt, nil)
	f.repo.quiz.On("GetByIDWithQuestions", mock.Anything, quiz.ID).Return(quiz, nil)
	f.repo.answer.On("DeleteByAttempt", mock.Anything, attempt.ID).Return(nil)
	f.repo.answer.On("CreateBatch", mock.Anything, mock.AnythingOfType("[]*models.AttemptAnswer")).Return(nil)
	f.repo.attempt.On("Update", mock.Anything, attempt).Return(nil)

	timeSpent := 300
	resp, err := f.service.Submit(context.Background(), attempt.ID, &SubmitAttemptRequest{
		Answers:          map[string]any{"1": float64(1), "2": true},
		TimeSpentSeconds: &timeSpent,
	}, testUserID)

	assert.NoError(t, err)
	assert.Equal(t, models.AttemptCompleted, resp.Status)
	assert.NotNil(t, resp.CompletedAt)
	assert.NotNil(t, resp.Results)
	assert.Equal(t, 100.0, resp.Results.Score)
	assert.Equal(t, 3, resp.Results.MaxScore)
	assert.Equal(t, 3, resp.Results.EarnedPoints)
	assert.Equal(t, 2, resp.Results.CorrectAnswers)
	assert.Equal(t, 0, resp.Results.IncorrectAnswers)
	assert.Equal(t, 300, resp.Results.TimeSpent)

	// Completed attempts reveal option correctness.
	assert.NotEmpty(t, resp.Questions)
	assert.NotNil(t, resp.Questions[0].Options[0].IsCorrect)

	types := eventTypes(f.publisher)
	assert.Contains(t, types, events.EventAttemptCompleted)
	assert.NotContains(t, types, events.EventManualGradingRequired)

	f.repo.answer.AssertExpectations(t)
	f.repo.attempt.AssertExpectations(t)
}

func TestSubmitMergesSavedProgressAnswers(t *testing.T) {
	f := newServiceFixture()
	quiz := publishedQuiz()
	attempt := inProgressAttempt(quiz)

	// Q1 answered during the attempt, only Q2 in the submit payload.
	snapshot := models.NewProgressSnapshot(2)
	snapshot.Answers = map[string]any{"1": float64(1)}
	_ = attempt.SetProgressSnapshot(snapshot)

	f.repo.attempt.On("GetByID", mock.Anything, attempt.ID).Return(attempt, nil)
	f.repo.quiz.On("GetByIDWithQuestions", mock.Anything, quiz.ID).Return(quiz, nil)
	f.repo.answer.On("DeleteByAttempt", mock.Anything, attempt.ID).Return(nil)
	f.repo.answer.On("CreateBatch", mock.Anything, mock.AnythingOfType("[]*models.AttemptAnswer")).Return(nil)
	f.repo.attempt.On("Update", mock.Anything, attempt).Return(nil)

	resp, err := f.service.Submit(context.Background(), attempt.ID, &SubmitAttemptRequest{
		Answers: map[string]any{"2": true},
	}, testUserID)

	assert.NoError(t, err)
	assert.Equal(t, 2, resp.Results.CorrectAnswers, "saved answer for Q1 still graded")
	assert.Equal(t, 100.0, resp.Results.Score)
}

func TestSubmitWithManualGradingPublishesEvent(t *testing.T) {
	f := newServiceFixture()
	quiz := publishedQuiz()
	quiz.Questions = append(quiz.Questions, models.Question{
		ID:         3,
		QuizID:     quiz.ID,
		Type:       models.QuestionShortDesc,
		OrderIndex: 2,
		Points:     5,
	})
	attempt := inProgressAttempt(quiz)

	f.repo.attempt.On("GetByID", mock.Anything, attempt.ID).Return(attempt, nil)
	f.repo.quiz.On("GetByIDWithQuestions", mock.Anything, quiz.ID).Return(quiz, nil)
	f.repo.answer.On("DeleteByAttempt", mock.Anything, attempt.ID).Return(nil)
	f.repo.answer.On("CreateBatch", mock.Anything, mock.AnythingOfType("[]*models.AttemptAnswer")).Return(nil)
	f.repo.attempt.On("Update", mock.Anything, attempt).Return(nil)

	resp, err := f.service.Submit(context.Background(), attempt.ID, &SubmitAttemptRequest{
		Answers: map[string]any{"1": float64(1), "2": true, "3": "free text answer"},
	}, testUserID)

	assert.NoError(t, err)
	assert.Equal(t, 1, resp.Results.PendingAnswers)
	// 3 of 8 points earned while the essay awaits grading.
	assert.Equal(t, 37.5, resp.Results.Score)
	assert.Contains(t, eventTypes(f.publisher), events.EventManualGradingRequired)
}

func TestSubmitTransactionFailureSurfaces(t *testing.T) {
	f := newServiceFixture()
	quiz := publishedQuiz()
	attempt := inProgressAttempt(quiz)

	f.repo.attempt.On("GetByID", mock.Anything, attempt.ID).Return(attempt, nil)
	f.repo.quiz.On("GetByIDWithQuestions", mock.Anything, quiz.ID).Return(quiz, nil)
	f.repo.answer.On("DeleteByAttempt", mock.Anything, attempt.ID).Return(nil)
	f.repo.answer.On("CreateBatch", mock.Anything, mock.AnythingOfType("[]*models.AttemptAnswer")).Return(errors.New("connection reset"))

	_, err := f.service.Submit(context.Background(), attempt.ID, &SubmitAttemptRequest{
		Answers: map[string]any{"1": float64(1)},
	}, testUserID)

	assert.ErrorIs(t, err, ErrInternalError)
	assert.NotContains(t, eventTypes(f.publisher), events.EventAttemptCompleted)
	f.repo.attempt.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestSubmitCompletedAttemptRejected(t *testing.T) {
	f := newServiceFixture()
	quiz := publishedQuiz()
	attempt := inProgressAttempt(quiz)
	attempt.Status = models.AttemptCompleted

	f.repo.attempt.On("GetByID", mock.Anything, attempt.ID).Return(attempt, nil)

	_, err := f.service.Submit(context.Background(), attempt.ID, &SubmitAttemptRequest{
		Answers: map[string]any{"1": float64(1)},
	}, testUserID)

	assert.ErrorIs(t, err, ErrAttemptNotActive)
}

// ===== GET / LIST =====

func TestGetByIDHidesForeignAttempts(t *testing.T) {
	f := newServiceFixture()
	quiz := publishedQuiz()
	attempt := inProgressAttempt(quiz)
	attempt.UserID = "someone-else"

	f.repo.attempt.On("GetByIDWithAnswers", mock.Anything, attempt.ID).Return(attempt, nil)
	f.repo.quiz.On("GetByIDWithQuestions", mock.Anything, quiz.ID).Return(quiz, nil)
	f.authz.On("CanBypassAvailability", mock.Anything, testUserID, quiz).Return(false, nil)

	_, err := f.service.GetByID(context.Background(), attempt.ID, testUserID)

	assert.ErrorIs(t, err, ErrAttemptNotFound)
}

func TestListScopesNonElevatedCallersToSelf(t *testing.T) {
	f := newServiceFixture()

	f.repo.user.On("GetByID", mock.Anything, testUserID).Return(&models.User{
		ID:   testUserID,
		Role: models.RoleStudent,
	}, nil)
	f.repo.attempt.On("List", mock.Anything, mock.MatchedBy(func(filters repositories.AttemptFilters) bool {
		return filters.UserID != nil && *filters.UserID == testUserID
	})).Return([]*models.QuizAttempt{}, int64(0), nil)

	_, _, err := f.service.List(context.Background(), repositories.AttemptFilters{}, testUserID)

	assert.NoError(t, err)
	f.repo.attempt.AssertExpectations(t)
}
