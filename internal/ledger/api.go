package ledger

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/openclose/ledger/internal/authz"
	"github.com/openclose/ledger/internal/period"
)

// HTTPHandler handles ledger HTTP requests.
type HTTPHandler struct {
	svc      Service
	authzSvc *authz.Service
	subjects authz.SubjectProvider
	logger   *zap.Logger
}

// NewHTTPHandler creates a new ledger HTTP handler.
func NewHTTPHandler(svc Service, authzSvc *authz.Service, subjects authz.SubjectProvider, logger *zap.Logger) *HTTPHandler {
	return &HTTPHandler{svc: svc, authzSvc: authzSvc, subjects: subjects, logger: logger}
}

// RegisterRoutes registers chart of accounts, journal entry and intercompany
// routes.
func (h *HTTPHandler) RegisterRoutes(rg *gin.RouterGroup) {
	accounts := rg.Group("/accounts")
	{
		accounts.POST("", h.createAccount)
		accounts.GET("", h.listAccounts)
		accounts.GET("/:id", h.getAccount)
		accounts.PUT("/:id", h.updateAccount)
		accounts.DELETE("/:id", h.deleteAccount)
	}

	entries := rg.Group("/journal-entries")
	{
		entries.POST("", h.createEntry)
		entries.GET("", h.listEntries)
		entries.GET("/:id", h.getEntry)
		entries.PUT("/:id", h.updateEntry)
		entries.DELETE("/:id", h.deleteEntry)
		entries.POST("/:id/post", h.postEntry)
		entries.POST("/:id/void", h.voidEntry)
	}

	intercompany := rg.Group("/intercompany")
	{
		intercompany.POST("", h.createIntercompany)
		intercompany.GET("", h.listIntercompany)
		intercompany.POST("/:id/approve", h.approveIntercompany)
		intercompany.POST("/:id/reject", h.rejectIntercompany)
	}
}

// guard checks the action, optionally against a specific entry's attributes
// so deny policies on periodStatus apply to post and void.
func (h *HTTPHandler) guard(c *gin.Context, action authz.Action, entryID string) (authz.Subject, bool) {
	subject, ok := authz.SubjectFromRequest(c, h.subjects)
	if !ok {
		return authz.Subject{}, false
	}

	var resource *authz.ResourceContext
	if entryID != "" {
		rc, err := h.svc.EntryResource(c.Request.Context(), subject.OrganizationID, entryID)
		if errors.Is(err, ErrEntryNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "journal entry not found"})
			return authz.Subject{}, false
		}
		if err != nil {
			h.logger.Error("failed to load entry attributes", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
			return authz.Subject{}, false
		}
		resource = &rc
	}

	err := h.authzSvc.CheckPermission(c.Request.Context(), subject, authz.EnvironmentFromRequest(c), action, resource)
	if err != nil {
		authz.WriteError(c, h.logger, err)
		return authz.Subject{}, false
	}
	return subject, true
}

type accountRequest struct {
	Code string `json:"code" binding:"required"`
	Name string `json:"name" binding:"required"`
	Type string `json:"type" binding:"required,oneof=asset liability equity revenue expense"`
}

func (h *HTTPHandler) createAccount(c *gin.Context) {
	subject, ok := h.guard(c, authz.ActionAccountCreate, "")
	if !ok {
		return
	}

	var req accountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	a, err := h.svc.CreateAccount(c.Request.Context(), Account{
		OrganizationID: subject.OrganizationID,
		Code:           req.Code,
		Name:           req.Name,
		Type:           req.Type,
	})
	if err != nil {
		h.logger.Error("failed to create account", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, a)
}

func (h *HTTPHandler) listAccounts(c *gin.Context) {
	subject, ok := h.guard(c, authz.ActionAccountRead, "")
	if !ok {
		return
	}

	accounts, err := h.svc.ListAccounts(c.Request.Context(), subject.OrganizationID)
	if err != nil {
		h.logger.Error("failed to list accounts", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"accounts": accounts})
}

func (h *HTTPHandler) getAccount(c *gin.Context) {
	subject, ok := h.guard(c, authz.ActionAccountRead, "")
	if !ok {
		return
	}

	a, err := h.svc.GetAccount(c.Request.Context(), subject.OrganizationID, c.Param("id"))
	if errors.Is(err, ErrAccountNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "account not found"})
		return
	}
	if err != nil {
		h.logger.Error("failed to get account", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, a)
}

type accountUpdateRequest struct {
	Code     string `json:"code" binding:"required"`
	Name     string `json:"name" binding:"required"`
	Type     string `json:"type" binding:"required,oneof=asset liability equity revenue expense"`
	IsActive *bool  `json:"is_active" binding:"required"`
}

func (h *HTTPHandler) updateAccount(c *gin.Context) {
	subject, ok := h.guard(c, authz.ActionAccountUpdate, "")
	if !ok {
		return
	}

	var req accountUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.svc.UpdateAccount(c.Request.Context(), Account{
		ID:             c.Param("id"),
		OrganizationID: subject.OrganizationID,
		Code:           req.Code,
		Name:           req.Name,
		Type:           req.Type,
		IsActive:       *req.IsActive,
	})
	if errors.Is(err, ErrAccountNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "account not found"})
		return
	}
	if err != nil {
		h.logger.Error("failed to update account", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *HTTPHandler) deleteAccount(c *gin.Context) {
	subject, ok := h.guard(c, authz.ActionAccountDelete, "")
	if !ok {
		return
	}

	if err := h.svc.DeleteAccount(c.Request.Context(), subject.OrganizationID, c.Param("id")); err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type lineRequest struct {
	AccountID   string `json:"account_id" binding:"required"`
	Debit       int64  `json:"debit" binding:"min=0"`
	Credit      int64  `json:"credit" binding:"min=0"`
	Description string `json:"description"`
}

type entryRequest struct {
	PeriodID  string        `json:"period_id" binding:"required"`
	EntryDate time.Time     `json:"entry_date" binding:"required"`
	Memo      string        `json:"memo"`
	Lines     []lineRequest `json:"lines" binding:"required,min=2,dive"`
}

func (r entryRequest) lines() []JournalLine {
	lines := make([]JournalLine, len(r.Lines))
	for i, l := range r.Lines {
		lines[i] = JournalLine{
			AccountID:   l.AccountID,
			Debit:       l.Debit,
			Credit:      l.Credit,
			Description: l.Description,
		}
	}
	return lines
}

func (h *HTTPHandler) createEntry(c *gin.Context) {
	subject, ok := h.guard(c, authz.ActionJournalCreate, "")
	if !ok {
		return
	}

	var req entryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	e, err := h.svc.CreateEntry(c.Request.Context(), JournalEntry{
		OrganizationID: subject.OrganizationID,
		PeriodID:       req.PeriodID,
		EntryDate:      req.EntryDate,
		Memo:           req.Memo,
		CreatedBy:      subject.UserID,
		Lines:          req.lines(),
	})
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, e)
}

func (h *HTTPHandler) listEntries(c *gin.Context) {
	subject, ok := h.guard(c, authz.ActionJournalRead, "")
	if !ok {
		return
	}

	entries, err := h.svc.ListEntries(c.Request.Context(), subject.OrganizationID, c.Query("period_id"))
	if err != nil {
		h.logger.Error("failed to list journal entries", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

func (h *HTTPHandler) getEntry(c *gin.Context) {
	subject, ok := h.guard(c, authz.ActionJournalRead, "")
	if !ok {
		return
	}

	e, err := h.svc.GetEntry(c.Request.Context(), subject.OrganizationID, c.Param("id"))
	if errors.Is(err, ErrEntryNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "journal entry not found"})
		return
	}
	if err != nil {
		h.logger.Error("failed to get journal entry", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, e)
}

func (h *HTTPHandler) updateEntry(c *gin.Context) {
	id := c.Param("id")
	subject, ok := h.guard(c, authz.ActionJournalUpdate, id)
	if !ok {
		return
	}

	var req entryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.svc.UpdateEntry(c.Request.Context(), JournalEntry{
		ID:             id,
		OrganizationID: subject.OrganizationID,
		PeriodID:       req.PeriodID,
		EntryDate:      req.EntryDate,
		Memo:           req.Memo,
		Lines:          req.lines(),
	})
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *HTTPHandler) deleteEntry(c *gin.Context) {
	id := c.Param("id")
	subject, ok := h.guard(c, authz.ActionJournalDelete, id)
	if !ok {
		return
	}

	if err := h.svc.DeleteEntry(c.Request.Context(), subject.OrganizationID, id); err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *HTTPHandler) postEntry(c *gin.Context) {
	id := c.Param("id")
	subject, ok := h.guard(c, authz.ActionJournalPost, id)
	if !ok {
		return
	}

	if err := h.svc.PostEntry(c.Request.Context(), subject.OrganizationID, id); err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "posted"})
}

func (h *HTTPHandler) voidEntry(c *gin.Context) {
	id := c.Param("id")
	subject, ok := h.guard(c, authz.ActionJournalVoid, id)
	if !ok {
		return
	}

	if err := h.svc.VoidEntry(c.Request.Context(), subject.OrganizationID, id); err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "void"})
}

type intercompanyRequest struct {
	TargetOrgID string `json:"target_org_id" binding:"required,uuid"`
	Amount      int64  `json:"amount" binding:"required,gt=0"`
	Currency    string `json:"currency" binding:"required,len=3"`
	Memo        string `json:"memo"`
}

func (h *HTTPHandler) createIntercompany(c *gin.Context) {
	subject, ok := h.guard(c, authz.ActionIntercompanyCreate, "")
	if !ok {
		return
	}

	var req intercompanyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	t, err := h.svc.CreateIntercompany(c.Request.Context(), IntercompanyTransaction{
		SourceOrgID: subject.OrganizationID,
		TargetOrgID: req.TargetOrgID,
		Amount:      req.Amount,
		Currency:    req.Currency,
		Memo:        req.Memo,
		CreatedBy:   subject.UserID,
	})
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, t)
}

func (h *HTTPHandler) listIntercompany(c *gin.Context) {
	subject, ok := h.guard(c, authz.ActionIntercompanyRead, "")
	if !ok {
		return
	}

	txns, err := h.svc.ListIntercompany(c.Request.Context(), subject.OrganizationID)
	if err != nil {
		h.logger.Error("failed to list intercompany transactions", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": txns})
}

// Approval is scoped to the target organization: the caller's X-Org-ID must
// be the transaction's target org.
func (h *HTTPHandler) approveIntercompany(c *gin.Context) {
	subject, ok := h.guard(c, authz.ActionIntercompanyApprove, "")
	if !ok {
		return
	}

	err := h.svc.ApproveIntercompany(c.Request.Context(), subject.OrganizationID, c.Param("id"), subject.UserID)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "approved"})
}

func (h *HTTPHandler) rejectIntercompany(c *gin.Context) {
	subject, ok := h.guard(c, authz.ActionIntercompanyApprove, "")
	if !ok {
		return
	}

	err := h.svc.RejectIntercompany(c.Request.Context(), subject.OrganizationID, c.Param("id"), subject.UserID)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "rejected"})
}

func (h *HTTPHandler) writeServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrAccountNotFound), errors.Is(err, ErrEntryNotFound),
		errors.Is(err, ErrTxnNotFound), errors.Is(err, period.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, ErrUnbalancedEntry), errors.Is(err, ErrEmptyEntry):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, ErrEntryNotDraft), errors.Is(err, ErrEntryNotPosted),
		errors.Is(err, ErrPeriodNotOpen), errors.Is(err, ErrTxnAlreadyDecided),
		errors.Is(err, ErrAccountInUse):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		h.logger.Error("ledger operation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
