package smilepay

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"

	"github.com/kevin07696/smilepay-service/internal/domain"
	serviceports "github.com/kevin07696/smilepay-service/internal/services/ports"
)

// Routes served by Handler
const (
	CallbackPath       = "/payment/smilepay/callback"
	CallbackMethodPath = CallbackPath + "/:method"
	InstructionPath    = "/api/v1/smilepay/transactions/:reference/instruction"
	TransactionPath    = "/api/v1/smilepay/transactions/:reference"
	NotificationsPath  = "/api/v1/smilepay/transactions/:reference/notifications"
)

// maxCallbackBody bounds the gateway's form post
const maxCallbackBody = 64 << 10

// Handler serves the gateway callback and the host-facing instruction API
type Handler struct {
	instructions  serviceports.InstructionService
	notifications serviceports.NotificationService
	logger        *zap.Logger
	now           func() time.Time
}

// NewHandler creates a new SmilePay handler
func NewHandler(
	instructions serviceports.InstructionService,
	notifications serviceports.NotificationService,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		instructions:  instructions,
		notifications: notifications,
		logger:        logger,
		now:           time.Now,
	}
}

// Register mounts the handler's routes on router
func (h *Handler) Register(router *httprouter.Router) {
	router.POST(CallbackPath, h.HandleCallback)
	router.GET(CallbackPath, h.HandleCallback)
	router.POST(CallbackMethodPath, h.HandleCallback)
	router.GET(CallbackMethodPath, h.HandleCallback)

	router.POST(InstructionPath, h.EnsureInstruction)
	router.GET(TransactionPath, h.GetTransaction)
	router.GET(NotificationsPath, h.ListNotifications)
}

// HandleCallback receives the gateway's payment notification. The gateway only
// reads the body, so the status is always 200.
func (h *Handler) HandleCallback(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	r.Body = http.MaxBytesReader(w, r.Body, maxCallbackBody)
	if err := r.ParseForm(); err != nil {
		h.logger.Warn("Failed to parse SmilePay callback form", zap.Error(err))
		writeAck(w, domain.AckFailure)
		return
	}

	var method domain.MethodVariant
	if code := ps.ByName("method"); code != "" {
		variant, ok := domain.ParseMethodCode(code)
		if !ok {
			h.logger.Warn("SmilePay callback for unknown payment method",
				zap.String("method", code),
			)
			writeAck(w, domain.AckFailure)
			return
		}
		method = variant
	}

	h.logger.Debug("Received SmilePay callback",
		zap.String("http_method", r.Method),
		zap.String("method", string(method)),
		zap.Int("form_values", len(r.Form)),
	)

	notification := domain.NewNotification(r.Form, method, h.now())
	result := h.notifications.Process(r.Context(), notification)
	writeAck(w, result.Ack)
}

// EnsureInstruction issues the gateway instruction for a transaction and returns
// its rendering values
func (h *Handler) EnsureInstruction(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	reference := ps.ByName("reference")

	if _, err := h.instructions.EnsureInstruction(r.Context(), reference); err != nil {
		h.writeError(w, reference, err)
		return
	}

	values, err := h.instructions.RenderingValues(r.Context(), reference)
	if err != nil {
		h.writeError(w, reference, err)
		return
	}
	writeJSON(w, http.StatusOK, values)
}

// GetTransaction returns the rendering values of a transaction without calling the gateway
func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	reference := ps.ByName("reference")

	values, err := h.instructions.RenderingValues(r.Context(), reference)
	if err != nil {
		h.writeError(w, reference, err)
		return
	}
	writeJSON(w, http.StatusOK, values)
}

type notificationsResponse struct {
	Reference     string                         `json:"reference"`
	Notifications []*domain.NotificationLogEntry `json:"notifications"`
}

// ListNotifications returns the audit log of gateway callbacks for a reference.
// An optional limit query parameter caps the number of entries.
func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	reference := ps.ByName("reference")

	var limit int32
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 32)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{
				Code:    domain.ErrorCodeInvalidRequest,
				Message: "limit must be a non-negative integer",
			})
			return
		}
		limit = int32(n)
	}

	entries, err := h.notifications.History(r.Context(), reference, limit)
	if err != nil {
		h.writeError(w, reference, err)
		return
	}
	if entries == nil {
		entries = []*domain.NotificationLogEntry{}
	}
	writeJSON(w, http.StatusOK, notificationsResponse{Reference: reference, Notifications: entries})
}

type errorResponse struct {
	Code    domain.ErrorCode `json:"code"`
	Message string           `json:"message"`
}

func (h *Handler) writeError(w http.ResponseWriter, reference string, err error) {
	status := statusForError(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("SmilePay request failed", zap.String("reference", reference), zap.Error(err))
	}
	writeJSON(w, status, errorBody(err, status))
}

// errorBody hides the message of internal errors
func errorBody(err error, status int) errorResponse {
	code := domain.GetErrorCode(err)
	if code == "" {
		code = domain.ErrorCodeInternalError
	}

	message := err.Error()
	var domainErr *domain.DomainError
	if errors.As(err, &domainErr) {
		message = domainErr.Message
	}
	if status == http.StatusInternalServerError {
		message = "internal server error"
	}
	return errorResponse{Code: code, Message: message}
}

// statusForError maps domain error codes to HTTP status codes
func statusForError(err error) int {
	if domain.IsNotFoundError(err) {
		return http.StatusNotFound
	}
	switch domain.GetErrorCode(err) {
	case domain.ErrorCodeConfigIncomplete:
		return http.StatusBadRequest
	case domain.ErrorCodeTxnInvalidState, domain.ErrorCodeProviderVariantLocked:
		return http.StatusConflict
	case domain.ErrorCodeGatewayError:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func writeAck(w http.ResponseWriter, ack string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(ack))
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
