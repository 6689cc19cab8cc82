package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/entitlement-engine/internal/http/response"
	"github.com/yungbote/entitlement-engine/internal/platform/logger"
	"github.com/yungbote/entitlement-engine/internal/services"
)

type ProgressHandler struct {
	log      *logger.Logger
	progress services.ProgressService
}

func NewProgressHandler(log *logger.Logger, progress services.ProgressService) *ProgressHandler {
	return &ProgressHandler{log: log.With("handler", "ProgressHandler"), progress: progress}
}

// GET /api/courses/:id/lessons
func (h *ProgressHandler) ListLessons(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	courseID, ok := pathID(c, "id", "invalid_course_id")
	if !ok {
		return
	}
	lessons, err := h.progress.ListCourseLessons(c.Request.Context(), userID, courseID)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"lessons": lessons})
}

type heartbeatRequest struct {
	Second *int `json:"second" binding:"required"`
}

// POST /api/lessons/:id/progress
func (h *ProgressHandler) Heartbeat(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	lessonID, ok := pathID(c, "id", "invalid_lesson_id")
	if !ok {
		return
	}
	var req heartbeatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	if err := h.progress.Heartbeat(c.Request.Context(), userID, lessonID, *req.Second); err != nil {
		response.RespondErr(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// POST /api/lessons/:id/complete
func (h *ProgressHandler) Complete(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	lessonID, ok := pathID(c, "id", "invalid_lesson_id")
	if !ok {
		return
	}
	if err := h.progress.CompleteLesson(c.Request.Context(), userID, lessonID); err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"lesson_id": lessonID, "completed": true})
}
