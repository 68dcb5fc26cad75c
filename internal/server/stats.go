package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) GetImpact(c *gin.Context) {
	report, err := s.statsSvc.Impact(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}
