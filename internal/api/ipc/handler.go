package ipc

import (
	"errors"
	"net/http"

	"github.com/GriffinCanCode/cookiefetch/internal/api/middleware"
	"github.com/GriffinCanCode/cookiefetch/internal/domain/session"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// DefaultMaxChunk bounds the size of one pushed chunk.
const DefaultMaxChunk = 16 << 20

// Recorder receives one call per handled operation.
type Recorder interface {
	RecordIPC(op string, status int)
}

// Handler serves the boundary protocol over a session broker.
type Handler struct {
	broker   *session.Broker
	logger   *zap.Logger
	recorder Recorder
	maxChunk int64
}

// NewHandler creates a handler. recorder may be nil.
func NewHandler(broker *session.Broker, logger *zap.Logger, recorder Recorder) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		broker:   broker,
		logger:   logger,
		recorder: recorder,
		maxChunk: DefaultMaxChunk,
	}
}

// Register mounts the protocol under /ipc.
func (h *Handler) Register(r gin.IRouter) {
	g := r.Group("/ipc", middleware.AllowAnyOrigin())
	g.Any("/*path", h.Dispatch)
}

// Dispatch routes one boundary call.
func (h *Handler) Dispatch(c *gin.Context) {
	switch c.Request.Method {
	case http.MethodPost:
	case http.MethodOptions:
		c.Header("Access-Control-Allow-Methods", http.MethodPost)
		c.Header("Access-Control-Allow-Headers", "*")
		c.Status(http.StatusNoContent)
		return
	default:
		c.Header("Allow", http.MethodPost)
		c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "method not allowed"})
		return
	}

	op, id, err := ParsePath(c.Param("path"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var status int
	switch op {
	case OpPush:
		status = h.push(c, id)
	case OpPop:
		status = h.pop(c, id)
	case OpCloseUpstream:
		status = h.close(c, id, h.broker.CloseUpstream)
	case OpCloseDownstream:
		status = h.close(c, id, h.broker.CloseDownstream)
	}

	if h.recorder != nil {
		h.recorder.RecordIPC(op.String(), status)
	}
	if ce := h.logger.Check(zap.DebugLevel, "ipc call"); ce != nil {
		ce.Write(zap.String("op", op.String()), zap.Int("session", id), zap.Int("status", status))
	}
}

func (h *Handler) push(c *gin.Context, id int) int {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxChunk)
	chunk, err := c.GetRawData()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return h.fail(c, http.StatusRequestEntityTooLarge, err)
		}
		return h.fail(c, http.StatusBadRequest, err)
	}

	if err := h.broker.Push(c.Request.Context(), id, chunk); err != nil {
		return h.fail(c, statusFor(err), err)
	}
	c.Status(http.StatusAccepted)
	return http.StatusAccepted
}

func (h *Handler) pop(c *gin.Context, id int) int {
	chunk, status, err := h.broker.Pop(id)
	if err != nil {
		return h.fail(c, statusFor(err), err)
	}

	switch status {
	case session.PopChunk:
		c.Data(http.StatusOK, "application/octet-stream", chunk)
		return http.StatusOK
	case session.PopEmpty:
		c.Status(http.StatusNoContent)
		return http.StatusNoContent
	case session.PopPending:
		c.Status(http.StatusAccepted)
		return http.StatusAccepted
	default:
		c.Status(http.StatusGone)
		return http.StatusGone
	}
}

func (h *Handler) close(c *gin.Context, id int, closeFn func(int) error) int {
	if err := closeFn(id); err != nil {
		return h.fail(c, statusFor(err), err)
	}
	c.Status(http.StatusOK)
	return http.StatusOK
}

func (h *Handler) fail(c *gin.Context, status int, err error) int {
	c.JSON(status, gin.H{"error": err.Error()})
	return status
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrUnestablished):
		return http.StatusNotFound
	case errors.Is(err, session.ErrInvalidSessionID):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrClosed):
		return http.StatusConflict
	default:
		return http.StatusServiceUnavailable
	}
}
