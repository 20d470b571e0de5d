package report

import (
	"encoding/csv"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/openclose/ledger/internal/authz"
)

// HTTPHandler handles report HTTP requests.
type HTTPHandler struct {
	svc      Service
	authzSvc *authz.Service
	subjects authz.SubjectProvider
	logger   *zap.Logger
}

// NewHTTPHandler creates a new report HTTP handler.
func NewHTTPHandler(svc Service, authzSvc *authz.Service, subjects authz.SubjectProvider, logger *zap.Logger) *HTTPHandler {
	return &HTTPHandler{svc: svc, authzSvc: authzSvc, subjects: subjects, logger: logger}
}

// RegisterRoutes registers report routes.
func (h *HTTPHandler) RegisterRoutes(rg *gin.RouterGroup) {
	reports := rg.Group("/reports")
	{
		reports.GET("/trial-balance", h.trialBalance)
		reports.GET("/trial-balance/export", h.exportTrialBalance)
		reports.GET("/account-activity/:accountId", h.accountActivity)
	}
}

func (h *HTTPHandler) guard(c *gin.Context, action authz.Action) (authz.Subject, bool) {
	subject, ok := authz.SubjectFromRequest(c, h.subjects)
	if !ok {
		return authz.Subject{}, false
	}
	err := h.authzSvc.CheckPermission(c.Request.Context(), subject, authz.EnvironmentFromRequest(c), action, nil)
	if err != nil {
		authz.WriteError(c, h.logger, err)
		return authz.Subject{}, false
	}
	return subject, true
}

func (h *HTTPHandler) trialBalance(c *gin.Context) {
	subject, ok := h.guard(c, authz.ActionReportView)
	if !ok {
		return
	}
	periodID := c.Query("period_id")
	if periodID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "period_id is required"})
		return
	}

	tb, err := h.svc.TrialBalance(c.Request.Context(), subject.OrganizationID, periodID)
	if err != nil {
		h.logger.Error("failed to build trial balance", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, tb)
}

func (h *HTTPHandler) exportTrialBalance(c *gin.Context) {
	subject, ok := h.guard(c, authz.ActionReportExport)
	if !ok {
		return
	}
	periodID := c.Query("period_id")
	if periodID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "period_id is required"})
		return
	}

	tb, err := h.svc.TrialBalance(c.Request.Context(), subject.OrganizationID, periodID)
	if err != nil {
		h.logger.Error("failed to build trial balance", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", `attachment; filename="trial-balance.csv"`)
	w := csv.NewWriter(c.Writer)
	w.Write([]string{"account_code", "account_name", "account_type", "total_debit", "total_credit"})
	for _, r := range tb.Rows {
		w.Write([]string{
			r.AccountCode, r.AccountName, r.AccountType,
			strconv.FormatInt(r.TotalDebit, 10), strconv.FormatInt(r.TotalCredit, 10),
		})
	}
	w.Flush()
}

func (h *HTTPHandler) accountActivity(c *gin.Context) {
	subject, ok := h.guard(c, authz.ActionReportView)
	if !ok {
		return
	}

	rows, err := h.svc.AccountActivity(c.Request.Context(), subject.OrganizationID, c.Param("accountId"))
	if err != nil {
		h.logger.Error("failed to build account activity", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"activity": rows})
}
