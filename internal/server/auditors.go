package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

type addAuditorRequest struct {
	Principal string `json:"principal"`
}

func (s *Server) ListAuditors(c *gin.Context) {
	auditors, err := s.authzSvc.ListAuditors(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": auditors})
}

func (s *Server) AddAuditor(c *gin.Context) {
	var req addAuditorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	actor := strings.TrimSpace(c.GetHeader("X-Actor"))
	if err := s.authzSvc.AddAuditor(c.Request.Context(), actor, req.Principal); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"principal": strings.TrimSpace(req.Principal)})
}

func (s *Server) RemoveAuditor(c *gin.Context) {
	actor := strings.TrimSpace(c.GetHeader("X-Actor"))
	principal := strings.TrimSpace(c.Param("principal"))

	if err := s.authzSvc.RemoveAuditor(c.Request.Context(), actor, principal); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
