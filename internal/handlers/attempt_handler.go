package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/edulearn/quiz-service/internal/models"
	"github.com/edulearn/quiz-service/internal/repositories"
	"github.com/edulearn/quiz-service/internal/services"
	"github.com/edulearn/quiz-service/internal/utils"
)

type AttemptHandler struct {
	BaseHandler
	attemptService services.AttemptService
	exportService  services.ExportService
}

func NewAttemptHandler(
	attemptService services.AttemptService,
	exportService services.ExportService,
	logger utils.Logger,
) *AttemptHandler {
	return &AttemptHandler{
		BaseHandler:    NewBaseHandler(logger),
		attemptService: attemptService,
		exportService:  exportService,
	}
}

// StartAttempt starts a new attempt or resumes an active one
// @Summary Start attempt
// @Description Starts a quiz attempt; returns the active attempt when one exists unless force_new is set
// @Tags attempts
// @Accept json
// @Produce json
// @Param attempt body services.BeginAttemptRequest true "Attempt data"
// @Success 201 {object} services.AttemptResponse
// @Success 200 {object} services.AttemptResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /attempts/start [post]
func (h *AttemptHandler) StartAttempt(c *gin.Context) {
	var req services.BeginAttemptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	userID, ok := getUserID(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Starting attempt", "quiz_id", req.QuizID, "force_new", req.ForceNew)

	attempt, err := h.attemptService.Begin(c.Request.Context(), &req, userID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	status := http.StatusCreated
	if attempt.Mode == services.AttemptModeResumed {
		status = http.StatusOK
	}
	c.JSON(status, attempt)
}

// GetAttempt retrieves an attempt by ID
// @Summary Get attempt
// @Description Retrieves an attempt; results are attached once completed
// @Tags attempts
// @Produce json
// @Param id path uint true "Attempt ID"
// @Success 200 {object} services.AttemptResponse
// @Failure 404 {object} ErrorResponse
// @Router /attempts/{id} [get]
func (h *AttemptHandler) GetAttempt(c *gin.Context) {
	id := parseIDParam(c, "id")
	if id == 0 {
		return
	}

	userID, ok := getUserID(c)
	if !ok {
		return
	}

	attempt, err := h.attemptService.GetByID(c.Request.Context(), id, userID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, attempt)
}

// ResumeAttempt resumes an in-progress attempt
// @Summary Resume attempt
// @Description Returns the attempt with its saved progress and renderable questions
// @Tags attempts
// @Produce json
// @Param id path uint true "Attempt ID"
// @Success 200 {object} services.AttemptResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /attempts/{id}/resume [post]
func (h *AttemptHandler) ResumeAttempt(c *gin.Context) {
	id := parseIDParam(c, "id")
	if id == 0 {
		return
	}

	userID, ok := getUserID(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Resuming attempt", "attempt_id", id)

	attempt, err := h.attemptService.Resume(c.Request.Context(), id, userID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, attempt)
}

// AbandonAttempt abandons an in-progress attempt
// @Summary Abandon attempt
// @Description Marks the attempt abandoned; already-terminal attempts are left unchanged
// @Tags attempts
// @Produce json
// @Param id path uint true "Attempt ID"
// @Success 200 {object} SuccessResponse
// @Failure 404 {object} ErrorResponse
// @Router /attempts/{id}/abandon [post]
func (h *AttemptHandler) AbandonAttempt(c *gin.Context) {
	id := parseIDParam(c, "id")
	if id == 0 {
		return
	}

	userID, ok := getUserID(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Abandoning attempt", "attempt_id", id)

	if err := h.attemptService.Abandon(c.Request.Context(), id, userID); err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Attempt abandoned"})
}

// SaveProgress saves partial progress for an in-progress attempt
// @Summary Save attempt progress
// @Description Merges the submitted answers and position into the stored progress
// @Tags attempts
// @Accept json
// @Produce json
// @Param id path uint true "Attempt ID"
// @Param progress body services.SaveProgressRequest true "Progress data"
// @Success 200 {object} services.AttemptResponse
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /attempts/{id}/progress [put]
func (h *AttemptHandler) SaveProgress(c *gin.Context) {
	id := parseIDParam(c, "id")
	if id == 0 {
		return
	}

	var req services.SaveProgressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	userID, ok := getUserID(c)
	if !ok {
		return
	}

	attempt, err := h.attemptService.SaveProgress(c.Request.Context(), id, &req, userID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, attempt)
}

// SubmitAttempt submits an attempt for grading
// @Summary Submit attempt
// @Description Grades the attempt and finalizes it in a single transaction
// @Tags attempts
// @Accept json
// @Produce json
// @Param id path uint true "Attempt ID"
// @Param submission body services.SubmitAttemptRequest true "Submission data"
// @Success 200 {object} services.AttemptResponse
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /attempts/{id}/submit [post]
func (h *AttemptHandler) SubmitAttempt(c *gin.Context) {
	id := parseIDParam(c, "id")
	if id == 0 {
		return
	}

	var req services.SubmitAttemptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	userID, ok := getUserID(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Submitting attempt", "attempt_id", id, "answers", len(req.Answers))

	attempt, err := h.attemptService.Submit(c.Request.Context(), id, &req, userID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, attempt)
}

// ListAttempts lists attempts with filters
// @Summary List attempts
// @Description Lists attempts; non-elevated callers only see their own
// @Tags attempts
// @Produce json
// @Param quiz_id query uint false "Filter by quiz"
// @Param status query string false "Filter by status"
// @Param page query int false "Page number"
// @Param size query int false "Page size"
// @Success 200 {object} SuccessResponse
// @Router /attempts [get]
func (h *AttemptHandler) ListAttempts(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}

	filters := h.parseAttemptFilters(c)

	attempts, total, err := h.attemptService.List(c.Request.Context(), filters, userID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"attempts": attempts,
		"total":    total,
		"limit":    filters.Limit,
		"offset":   filters.Offset,
	})
}

// GetAttemptStats returns aggregate attempt statistics for the caller
// @Summary Get attempt statistics
// @Description Aggregates the caller's attempts, optionally scoped to one quiz
// @Tags attempts
// @Produce json
// @Param quiz_id query uint false "Scope to quiz"
// @Success 200 {object} repositories.AttemptStats
// @Router /attempts/stats [get]
func (h *AttemptHandler) GetAttemptStats(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}

	var quizID *uint
	if quizIDStr := c.Query("quiz_id"); quizIDStr != "" {
		parsed, err := strconv.ParseUint(quizIDStr, 10, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Message: "Invalid quiz_id",
				Details: err.Error(),
			})
			return
		}
		id := uint(parsed)
		quizID = &id
	}

	stats, err := h.attemptService.GetStats(c.Request.Context(), userID, quizID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// ExportQuizAttempts downloads a quiz's attempt results as a file
// @Summary Export quiz attempts
// @Description Exports all attempts of a quiz as xlsx or csv; quiz owner only
// @Tags attempts
// @Produce application/octet-stream
// @Param quiz_id path uint true "Quiz ID"
// @Param format query string false "xlsx or csv" default(xlsx)
// @Success 200 {file} binary
// @Failure 403 {object} ErrorResponse
// @Router /quizzes/{quiz_id}/attempts/export [get]
func (h *AttemptHandler) ExportQuizAttempts(c *gin.Context) {
	quizID := parseIDParam(c, "quiz_id")
	if quizID == 0 {
		return
	}

	userID, ok := getUserID(c)
	if !ok {
		return
	}

	format := services.ExportFormat(c.DefaultQuery("format", string(services.ExportFormatXLSX)))

	h.LogRequest(c, "Exporting quiz attempts", "quiz_id", quizID, "format", format)

	data, filename, err := h.exportService.ExportQuizAttempts(c.Request.Context(), quizID, format, userID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	contentType := "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	if format == services.ExportFormatCSV {
		contentType = "text/csv"
	}

	c.Header("Content-Disposition", "attachment; filename="+filename)
	c.Data(http.StatusOK, contentType, data)
}

func (h *AttemptHandler) parseAttemptFilters(c *gin.Context) repositories.AttemptFilters {
	page := parseIntQuery(c, "page", 1)
	size := parseIntQuery(c, "size", 10)

	filters := repositories.AttemptFilters{
		Limit:     size,
		Offset:    (page - 1) * size,
		SortBy:    c.DefaultQuery("sort_by", "started_at"),
		SortOrder: c.DefaultQuery("sort_order", "desc"),
	}

	if status := c.Query("status"); status != "" {
		attemptStatus := models.AttemptStatus(status)
		filters.Status = &attemptStatus
	}

	if quizIDStr := c.Query("quiz_id"); quizIDStr != "" {
		if quizID, err := strconv.ParseUint(quizIDStr, 10, 32); err == nil {
			id := uint(quizID)
			filters.QuizID = &id
		}
	}

	if targetUser := c.Query("user_id"); targetUser != "" {
		filters.UserID = &targetUser
	}

	return filters
}
