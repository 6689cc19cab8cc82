package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/entitlement-engine/internal/domain/learning"
	"github.com/yungbote/entitlement-engine/internal/http/response"
	"github.com/yungbote/entitlement-engine/internal/platform/logger"
	"github.com/yungbote/entitlement-engine/internal/services"
)

type QuizHandler struct {
	log  *logger.Logger
	quiz services.QuizService
}

func NewQuizHandler(log *logger.Logger, quiz services.QuizService) *QuizHandler {
	return &QuizHandler{log: log.With("handler", "QuizHandler"), quiz: quiz}
}

type submitQuizRequest struct {
	Answers learning.AnswerSheet `json:"answers"`
}

// POST /api/lessons/:id/quiz
func (h *QuizHandler) Start(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	lessonID, ok := pathID(c, "id", "invalid_lesson_id")
	if !ok {
		return
	}
	session, err := h.quiz.StartQuiz(c.Request.Context(), userID, lessonID)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	status := http.StatusCreated
	if session.Resumed {
		status = http.StatusOK
	}
	c.JSON(status, session)
}

// POST /api/lessons/:id/quiz/submit
func (h *QuizHandler) SubmitLesson(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	lessonID, ok := pathID(c, "id", "invalid_lesson_id")
	if !ok {
		return
	}
	var req submitQuizRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	res, err := h.quiz.SubmitLessonQuiz(c.Request.Context(), userID, lessonID, req.Answers)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, res)
}

// POST /api/quiz-attempts/:id/submit
func (h *QuizHandler) Submit(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	attemptID, ok := pathID(c, "id", "invalid_attempt_id")
	if !ok {
		return
	}
	var req submitQuizRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	res, err := h.quiz.SubmitAttempt(c.Request.Context(), userID, attemptID, req.Answers)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, res)
}
