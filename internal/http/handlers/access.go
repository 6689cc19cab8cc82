package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/entitlement-engine/internal/http/response"
	"github.com/yungbote/entitlement-engine/internal/services"
)

type AccessHandler struct {
	access services.AccessService
}

func NewAccessHandler(access services.AccessService) *AccessHandler {
	return &AccessHandler{access: access}
}

// GET /api/courses/:id/access
//
// A denial is a normal 200 answer; the body says which gate refused.
func (h *AccessHandler) CheckCourse(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	courseID, ok := pathID(c, "id", "invalid_course_id")
	if !ok {
		return
	}
	decision, err := h.access.CheckCourseAccess(c.Request.Context(), userID, courseID)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, decision)
}
