package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	creditdomain "github.com/verdantgrid/h2ledger/internal/credit/domain"
)

type issueCreditRequest struct {
	Producer string  `json:"producer"`
	Amount   float64 `json:"amount"`
}

type transferCreditRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type retireCreditRequest struct {
	Owner string `json:"owner"`
}

type verifyCreditRequest struct {
	Auditor string `json:"auditor"`
}

type listCreditsQuery struct {
	Owner    string `form:"owner"`
	Status   string `form:"status"`
	Verified string `form:"verified"`
}

func (s *Server) IssueCredit(c *gin.Context) {
	var req issueCreditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	credit, err := s.ledgerSvc.Issue(c.Request.Context(), req.Producer, req.Amount)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, credit)
}

func (s *Server) ListCredits(c *gin.Context) {
	var query listCreditsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	filter := creditdomain.ListFilter{
		Owner: strings.TrimSpace(query.Owner),
	}

	switch status := strings.TrimSpace(query.Status); status {
	case "":
	case string(creditdomain.StatusActive):
		filter.Status = creditdomain.StatusActive
	case string(creditdomain.StatusRetired):
		filter.Status = creditdomain.StatusRetired
	default:
		AbortWithError(c, newValidationError("status", "invalid_status", "invalid status"))
		return
	}

	if verified := strings.TrimSpace(query.Verified); verified != "" {
		parsed, err := strconv.ParseBool(verified)
		if err != nil {
			AbortWithError(c, newValidationError("verified", "invalid_verified", "invalid verified"))
			return
		}
		filter.Verified = &parsed
	}

	credits, err := s.ledgerSvc.List(c.Request.Context(), filter)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": credits})
}

// ListFlaggedCredits returns unverified credits above the review
// threshold. Flags are derived, never stored.
func (s *Server) ListFlaggedCredits(c *gin.Context) {
	unverified := false
	credits, err := s.ledgerSvc.List(c.Request.Context(), creditdomain.ListFilter{
		Verified: &unverified,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	flagged := make([]*creditdomain.Credit, 0)
	for _, credit := range credits {
		if s.fraud.Flagged(credit) {
			flagged = append(flagged, credit)
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"data":      flagged,
		"threshold": s.fraud.Threshold(),
	})
}

func (s *Server) GetCredit(c *gin.Context) {
	id, ok := creditID(c)
	if !ok {
		return
	}

	credit, err := s.ledgerSvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, credit)
}

func (s *Server) GetCreditHistory(c *gin.Context) {
	id, ok := creditID(c)
	if !ok {
		return
	}

	history, err := s.ledgerSvc.History(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": history})
}

func (s *Server) TransferCredit(c *gin.Context) {
	id, ok := creditID(c)
	if !ok {
		return
	}

	var req transferCreditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	credit, err := s.ledgerSvc.Transfer(c.Request.Context(), req.From, id, req.To)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, credit)
}

func (s *Server) RetireCredit(c *gin.Context) {
	id, ok := creditID(c)
	if !ok {
		return
	}

	var req retireCreditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	credit, err := s.ledgerSvc.Retire(c.Request.Context(), req.Owner, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, credit)
}

func (s *Server) VerifyCredit(c *gin.Context) {
	id, ok := creditID(c)
	if !ok {
		return
	}

	var req verifyCreditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	auditor := strings.TrimSpace(req.Auditor)
	if auditor == "" {
		auditor = strings.TrimSpace(c.GetHeader("X-Actor"))
	}

	credit, err := s.ledgerSvc.Verify(c.Request.Context(), auditor, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, credit)
}

func creditID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(c.Param("id")), 10, 64)
	if err != nil || id < 1 {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid credit id"))
		return 0, false
	}
	return id, true
}
