package handler

import (
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/obeyhq/backend/pkg/httpcontext"
	lifecycleUC "github.com/obeyhq/backend/usecase/lifecycle"
)

type StatusHandler struct {
	baseHandler
	uc *lifecycleUC.Service
}

func NewStatusHandler(uc *lifecycleUC.Service, adapter *httpcontext.Adapter, logger *zap.Logger) *StatusHandler {
	return &StatusHandler{
		baseHandler: newBaseHandler(adapter, logger),
		uc:          uc,
	}
}

// @Summary Full game status
// @Tags status
// @Router /api/v1/status [get]
func (h *StatusHandler) GetStatus(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	status, err := h.uc.GetStatus(stdCtx, h.userID(ctx))
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, status)
}

// @Summary Acknowledge game over and purge all data
// @Tags status
// @Router /api/v1/gameover/ack [post]
func (h *StatusHandler) AckGameOver(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	if err := h.uc.Reset(stdCtx, h.userID(ctx)); err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, map[string]bool{"ok": true})
}
