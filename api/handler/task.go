package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/obeyhq/backend/api/transport"
	"github.com/obeyhq/backend/domain"
	"github.com/obeyhq/backend/pkg/httpcontext"
	lifecycleUC "github.com/obeyhq/backend/usecase/lifecycle"
)

type TaskHandler struct {
	baseHandler
	uc *lifecycleUC.Service
}

func NewTaskHandler(uc *lifecycleUC.Service, adapter *httpcontext.Adapter, logger *zap.Logger) *TaskHandler {
	return &TaskHandler{
		baseHandler: newBaseHandler(adapter, logger),
		uc:          uc,
	}
}

// @Summary Propose a task
// @Tags tasks
// @Router /api/v1/tasks/propose [post]
func (h *TaskHandler) Propose(ctx *fasthttp.RequestCtx) {
	var req transport.ProposeRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		h.respondInvalid(ctx, "invalid payload")
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	proposal, err := h.uc.Propose(stdCtx, h.userID(ctx), req.Text)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, proposal)
}

// @Summary Accept a proposal
// @Tags tasks
// @Router /api/v1/tasks/accept [post]
func (h *TaskHandler) Accept(ctx *fasthttp.RequestCtx) {
	var req transport.AcceptRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		h.respondInvalid(ctx, "invalid payload")
		return
	}

	deadline, err := time.Parse(time.RFC3339, req.DeadlineAt)
	if err != nil {
		h.respondInvalid(ctx, "deadline_at must be RFC3339")
		return
	}

	proposal := &domain.Proposal{
		Title:           req.Title,
		EstimateMinutes: req.EstimateMinutes,
		DeadlineAt:      deadline,
		Weight:          req.Weight,
		Comment:         req.AiComment,
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	task, err := h.uc.Accept(stdCtx, h.userID(ctx), proposal)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusCreated, task)
}

// @Summary Extend a task deadline
// @Tags tasks
// @Router /api/v1/tasks/extend [post]
func (h *TaskHandler) Extend(ctx *fasthttp.RequestCtx) {
	var req transport.ExtendRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		h.respondInvalid(ctx, "invalid payload")
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	task, err := h.uc.Extend(stdCtx, h.userID(ctx), req.TaskID, req.ExtraMinutes)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, task)
}

// @Summary Complete a task
// @Tags tasks
// @Router /api/v1/tasks/complete [post]
func (h *TaskHandler) Complete(ctx *fasthttp.RequestCtx) {
	var req transport.CompleteRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		h.respondInvalid(ctx, "invalid payload")
		return
	}

	var completedAt *time.Time
	if req.CompletedAt != "" {
		parsed, err := time.Parse(time.RFC3339, req.CompletedAt)
		if err != nil {
			h.respondInvalid(ctx, "completed_at must be RFC3339")
			return
		}
		completedAt = &parsed
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	task, err := h.uc.Complete(stdCtx, h.userID(ctx), req.TaskID, req.SelfReport, completedAt)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, task)
}

// @Summary Withdraw from a task
// @Tags tasks
// @Router /api/v1/tasks/withdraw [post]
func (h *TaskHandler) Withdraw(ctx *fasthttp.RequestCtx) {
	var req transport.WithdrawRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		h.respondInvalid(ctx, "invalid payload")
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	task, err := h.uc.Withdraw(stdCtx, h.userID(ctx), req.TaskID)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, task)
}

// @Summary List current active tasks
// @Tags tasks
// @Router /api/v1/tasks/current [get]
func (h *TaskHandler) Current(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	tasks, err := h.uc.CurrentTasks(stdCtx, h.userID(ctx))
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, tasks)
}
