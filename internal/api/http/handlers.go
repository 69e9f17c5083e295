package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/GriffinCanCode/cookiefetch/internal/domain/session"
	"github.com/GriffinCanCode/cookiefetch/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/cookiefetch/internal/providers/http/client"
	"github.com/GriffinCanCode/cookiefetch/internal/providers/http/fetch"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Version is reported by Root.
const Version = "1.0.0"

// FetchRequest is the body of POST /fetch.
type FetchRequest struct {
	URL     string         `json:"url"`
	Options *fetch.Options `json:"options,omitempty"`
}

// ConnectResponse is the body answered by POST /connect.
type ConnectResponse struct {
	ID int `json:"id"`
}

// ErrorResponse wraps every command error.
type ErrorResponse struct {
	Error fetch.ErrorBody `json:"error"`
}

// Handlers contains the command handlers
type Handlers struct {
	broker  *session.Broker
	fetcher *fetch.Fetcher
	pool    *client.Pool
	tracer  *tracing.Tracer
	logger  *zap.Logger
}

// NewHandlers creates a new handler set. tracer may be nil.
func NewHandlers(broker *session.Broker, fetcher *fetch.Fetcher, pool *client.Pool, tracer *tracing.Tracer, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{
		broker:  broker,
		fetcher: fetcher,
		pool:    pool,
		tracer:  tracer,
		logger:  logger,
	}
}

// Register mounts the command routes on r.
func (h *Handlers) Register(r gin.IRouter) {
	r.GET("/", h.Root)
	r.GET("/health", h.Health)
	r.POST("/connect", h.Connect)
	r.POST("/fetch", h.Fetch)
}

// Root handles the service banner
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "cookiefetch",
		"version": Version,
	})
}

// Health reports pool and broker occupancy
func (h *Handlers) Health(c *gin.Context) {
	stats := h.pool.Stats()
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"pool": gin.H{
			"capacity": stats.Capacity,
			"created":  stats.Created,
			"idle":     stats.Idle,
			"in_use":   stats.InUse,
		},
		"sessions": h.broker.Len(),
	})
}

// Connect reserves a streaming session
func (h *Handlers) Connect(c *gin.Context) {
	id := h.broker.Reserve()
	writeJSON(c, http.StatusOK, ConnectResponse{ID: id})
}

// Fetch performs one outbound request
func (h *Handlers) Fetch(c *gin.Context) {
	var req FetchRequest
	if err := decodeJSON(c, &req); err != nil {
		writeJSON(c, http.StatusBadRequest, ErrorResponse{Error: fetch.ErrorBody{
			Kind:    "InvalidRequest",
			Message: err.Error(),
		}})
		return
	}

	ctx := c.Request.Context()
	var span *tracing.Span
	if h.tracer != nil {
		span, ctx = h.tracer.StartSpan(ctx, "fetch")
		span.SetTag("url", req.URL)
		if req.Options != nil && req.Options.Session != nil {
			span.SetTag("session", strconv.Itoa(*req.Options.Session))
		}
	}

	resp, err := h.fetcher.Fetch(ctx, req.URL, req.Options)

	if span != nil {
		if err != nil {
			span.SetError(err)
		} else {
			span.SetStatus(resp.Status)
		}
		span.Finish()
		h.tracer.Submit(span)
	}

	if err != nil {
		var ferr *fetch.Error
		if !errors.As(err, &ferr) {
			ferr = &fetch.Error{Kind: fetch.KindTransport, URL: req.URL, Err: err}
		}
		_ = c.Error(err)
		writeJSON(c, StatusFor(ferr.Kind), ErrorResponse{Error: ferr.Body()})
		return
	}

	writeJSON(c, http.StatusOK, resp)
}

// StatusFor maps a fetch error kind to the status it is answered with.
func StatusFor(kind fetch.Kind) int {
	switch kind {
	case fetch.KindNotAllowed:
		return http.StatusForbidden
	case fetch.KindSessionConsumed:
		return http.StatusConflict
	case fetch.KindSessionUnestablished:
		return http.StatusNotFound
	case fetch.KindTransport:
		return http.StatusBadGateway
	default:
		return http.StatusBadRequest
	}
}
