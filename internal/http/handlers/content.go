package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/entitlement-engine/internal/http/response"
	"github.com/yungbote/entitlement-engine/internal/services"
)

type ContentHandler struct {
	content services.ContentService
}

func NewContentHandler(content services.ContentService) *ContentHandler {
	return &ContentHandler{content: content}
}

// GET /api/lessons/:id/content-url
func (h *ContentHandler) SignedURL(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	lessonID, ok := pathID(c, "id", "invalid_lesson_id")
	if !ok {
		return
	}
	out, err := h.content.LessonURL(c.Request.Context(), userID, lessonID)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	c.Header("Cache-Control", "no-store")
	response.RespondOK(c, out)
}
