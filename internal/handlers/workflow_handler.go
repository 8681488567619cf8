package handlers

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"leadflow/internal/logging"
	"leadflow/internal/models"
	"leadflow/internal/pdf"
	"leadflow/internal/workflow"
)

// LeadCreator registers new leads in the NEW stage.
type LeadCreator interface {
	Create(ctx context.Context, title string, ownerID int64) (*models.Leads, error)
}

type WorkflowHandler struct {
	Engine *workflow.Engine
	Leads  LeadCreator
	PDF    pdf.Generator
	logger *slog.Logger
}

func NewWorkflowHandler(engine *workflow.Engine, leads LeadCreator, gen pdf.Generator, logger *slog.Logger) *WorkflowHandler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &WorkflowHandler{Engine: engine, Leads: leads, PDF: gen, logger: logger}
}

// CreateLeadRequest: тело POST /workflow/leads
type CreateLeadRequest struct {
	Title string `json:"title" binding:"required" example:"Acme Corp"`
}

// @Summary      Создать лид
// @Description  Registers a lead in the NEW stage owned by the caller.
// @Tags         Workflow
// @Accept       json
// @Produce      json
// @Param        body  body      CreateLeadRequest  true  "Lead"
// @Success      201   {object}  models.Leads
// @Failure      400   {object}  map[string]string
// @Security     BearerAuth
// @Router       /workflow/leads [post]
func (h *WorkflowHandler) CreateLead(c *gin.Context) {
	var req CreateLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	// владелец из токена
	userID, _ := getUserAndRole(c)
	lead, err := h.Leads.Create(c.Request.Context(), strings.TrimSpace(req.Title), userID)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, lead)
}

// TransitionRequest: тело POST /transition и /reactivate
type TransitionRequest struct {
	Stage  string  `json:"stage" binding:"required" example:"QUALIFYING"`
	Reason *string `json:"reason,omitempty" example:"budget confirmed"`
}

type TransitionsResponse struct {
	Transitions []models.TransitionRecord `json:"transitions"`
}

type AvailableResponse struct {
	LeadID       int64          `json:"lead_id"`
	CurrentStage models.Stage   `json:"current_stage"`
	Transitions  []models.Stage `json:"transitions"`
}

type StageInfo struct {
	Stage        models.Stage   `json:"stage"`
	Label        string         `json:"label"`
	Terminal     bool           `json:"terminal"`
	Transitions  []models.Stage `json:"transitions"`
	Reactivation []models.Stage `json:"reactivation,omitempty"`
}

// @Summary      История стадий лида
// @Description  Committed transitions of a lead, newest first. Pass the last occurred_at as before to page.
// @Tags         Workflow
// @Produce      json
// @Param        id      path      int     true   "Lead ID"
// @Param        limit   query     int     false  "Page size (1..500, default 50)"
// @Param        before  query     string  false  "RFC3339 timestamp cursor"
// @Success      200     {object}  TransitionsResponse
// @Failure      400     {object}  map[string]string
// @Failure      404     {object}  map[string]string
// @Security     BearerAuth
// @Router       /workflow/leads/{id}/history [get]
func (h *WorkflowHandler) History(c *gin.Context) {
	leadID, ok := parseLeadID(c)
	if !ok {
		return
	}

	limit := 0
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = n
	}
	var before *time.Time
	if s := c.Query("before"); s != "" {
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid before, want RFC3339"})
			return
		}
		before = &t
	}

	records, err := h.Engine.GetStageHistory(c.Request.Context(), leadID, limit, before)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	if records == nil {
		records = []models.TransitionRecord{}
	}
	c.JSON(http.StatusOK, TransitionsResponse{Transitions: records})
}

// @Summary      Доступные переходы
// @Description  Stages the lead can move to from its current stage.
// @Tags         Workflow
// @Produce      json
// @Param        id   path      int  true  "Lead ID"
// @Success      200  {object}  AvailableResponse
// @Failure      404  {object}  map[string]string
// @Security     BearerAuth
// @Router       /workflow/leads/{id}/transitions [get]
func (h *WorkflowHandler) Available(c *gin.Context) {
	leadID, ok := parseLeadID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	current, err := h.Engine.GetCurrentStage(ctx, leadID)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	stages, err := h.Engine.GetAvailableTransitions(ctx, leadID)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, AvailableResponse{LeadID: leadID, CurrentStage: current.Stage, Transitions: stages})
}

// @Summary      Сменить стадию лида
// @Tags         Workflow
// @Accept       json
// @Produce      json
// @Param        id    path      int                true  "Lead ID"
// @Param        body  body      TransitionRequest  true  "Target stage"
// @Success      200   {object}  models.TransitionRecord
// @Failure      400   {object}  map[string]interface{}
// @Failure      404   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Security     BearerAuth
// @Router       /workflow/leads/{id}/transition [post]
func (h *WorkflowHandler) Transition(c *gin.Context) {
	h.move(c, h.Engine.TransitionStage)
}

// @Summary      Переоткрыть закрытый лид
// @Description  Reactivation of CLOSED_LOST / DISQUALIFIED leads; elevated roles only.
// @Tags         Workflow
// @Accept       json
// @Produce      json
// @Param        id    path      int                true  "Lead ID"
// @Param        body  body      TransitionRequest  true  "Target stage"
// @Success      200   {object}  models.TransitionRecord
// @Failure      400   {object}  map[string]interface{}
// @Failure      403   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Security     BearerAuth
// @Router       /workflow/leads/{id}/reactivate [post]
func (h *WorkflowHandler) Reactivate(c *gin.Context) {
	h.move(c, h.Engine.Reactivate)
}

type transitionFunc func(context.Context, workflow.TransitionInput) (models.TransitionRecord, error)

func (h *WorkflowHandler) move(c *gin.Context, do transitionFunc) {
	leadID, ok := parseLeadID(c)
	if !ok {
		return
	}
	var req TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	to, err := models.ParseStage(req.Stage)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	actor, automated := actorFromCtx(c)
	rec, err := do(c.Request.Context(), workflow.TransitionInput{
		LeadID:    leadID,
		To:        to,
		Reason:    req.Reason,
		Actor:     actor,
		Automated: automated,
	})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// @Summary      Выгрузка истории в PDF
// @Tags         Workflow
// @Produce      application/pdf
// @Param        id   path  int  true  "Lead ID"
// @Success      200  {file}    file
// @Failure      404  {object}  map[string]string
// @Security     BearerAuth
// @Router       /workflow/leads/{id}/history.pdf [get]
func (h *WorkflowHandler) HistoryPDF(c *gin.Context) {
	leadID, ok := parseLeadID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	current, err := h.Engine.GetCurrentStage(ctx, leadID)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	records, err := h.Engine.GetStageHistory(ctx, leadID, workflow.MaxHistoryLimit, nil)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	var buf bytes.Buffer
	err = h.PDF.StageHistory(&buf, pdf.HistoryReport{
		LeadID:       leadID,
		CurrentStage: current.Stage,
		Transitions:  records,
		GeneratedAt:  time.Now(),
	})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="lead_%d_history.pdf"`, leadID))
	c.Data(http.StatusOK, "application/pdf", buf.Bytes())
}

// @Summary      Граф стадий
// @Tags         Workflow
// @Produce      json
// @Success      200  {object}  map[string][]StageInfo
// @Security     BearerAuth
// @Router       /workflow/stages [get]
func (h *WorkflowHandler) Stages(c *gin.Context) {
	reg := h.Engine.Registry()
	out := make([]StageInfo, 0, len(reg.AllStages()))
	for _, st := range reg.AllStages() {
		nexts, _ := reg.AllowedTransitions(st)
		info := StageInfo{Stage: st, Label: st.Label(), Terminal: reg.IsTerminal(st), Transitions: nexts}
		if reg.ReactivationEnabled() {
			info.Reactivation, _ = reg.ReactivationTargets(st)
		}
		out = append(out, info)
	}
	c.JSON(http.StatusOK, gin.H{"stages": out})
}
