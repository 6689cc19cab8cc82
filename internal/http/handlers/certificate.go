package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/entitlement-engine/internal/http/response"
	"github.com/yungbote/entitlement-engine/internal/services"
)

type CertificateHandler struct {
	certificates services.CertificateService
}

func NewCertificateHandler(certificates services.CertificateService) *CertificateHandler {
	return &CertificateHandler{certificates: certificates}
}

// POST /api/courses/:id/certificate
func (h *CertificateHandler) Issue(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	courseID, ok := pathID(c, "id", "invalid_course_id")
	if !ok {
		return
	}
	cert, err := h.certificates.IssueCertificate(c.Request.Context(), userID, courseID)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"certificate": cert})
}
