package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/obeyhq/backend/api/transport"
	"github.com/obeyhq/backend/domain"
	"github.com/obeyhq/backend/pkg/httpcontext"
)

// defaultUserID keeps the single-user local mode working without headers.
const defaultUserID = "local"

type baseHandler struct {
	adapter *httpcontext.Adapter
	logger  *zap.Logger
}

func newBaseHandler(adapter *httpcontext.Adapter, logger *zap.Logger) baseHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return baseHandler{adapter: adapter, logger: logger}
}

func (h baseHandler) requestContext(ctx *fasthttp.RequestCtx) (context.Context, context.CancelFunc) {
	if h.adapter != nil {
		return h.adapter.Attach(ctx)
	}
	return context.WithCancel(context.Background())
}

// userID resolves the caller identity from the X-User-ID header.
func (h baseHandler) userID(ctx *fasthttp.RequestCtx) string {
	if id := string(ctx.Request.Header.Peek("X-User-ID")); id != "" {
		return id
	}
	return defaultUserID
}

func (h baseHandler) respondJSON(ctx *fasthttp.RequestCtx, status int, payload transport.Envelope) {
	ctx.Response.Header.SetContentType("application/json")
	ctx.SetStatusCode(status)
	body, _ := json.Marshal(payload)
	ctx.SetBody(body)
}

func (h baseHandler) respondSuccess(ctx *fasthttp.RequestCtx, status int, data interface{}) {
	h.respondJSON(ctx, status, transport.NewSuccess(data, nil))
}

func (h baseHandler) respondError(ctx *fasthttp.RequestCtx, err error) {
	status, code := mapError(err)
	h.respondJSON(ctx, status, transport.NewError(code, err.Error(), nil))
}

func (h baseHandler) respondInvalid(ctx *fasthttp.RequestCtx, message string) {
	h.respondJSON(ctx, http.StatusBadRequest, transport.NewInvalid(message))
}

func mapError(err error) (int, string) {
	switch {
	case domain.IsDomainError(err, domain.ErrCodeInvalid):
		return http.StatusBadRequest, string(domain.ErrCodeInvalid)
	case domain.IsDomainError(err, domain.ErrCodeNotFound):
		return http.StatusNotFound, string(domain.ErrCodeNotFound)
	case domain.IsDomainError(err, domain.ErrCodeCapacity):
		return http.StatusConflict, string(domain.ErrCodeCapacity)
	case domain.IsDomainError(err, domain.ErrCodeLockedOut):
		return http.StatusConflict, string(domain.ErrCodeLockedOut)
	case domain.IsDomainError(err, domain.ErrCodeCollaborator):
		return http.StatusServiceUnavailable, string(domain.ErrCodeCollaborator)
	default:
		return http.StatusInternalServerError, string(domain.ErrCodeInternal)
	}
}
