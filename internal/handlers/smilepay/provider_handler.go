package smilepay

import (
	"encoding/json"
	"net/http"

	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"

	"github.com/kevin07696/smilepay-service/internal/domain"
	serviceports "github.com/kevin07696/smilepay-service/internal/services/ports"
)

// Provider administration routes
const (
	ProvidersPath      = "/api/v1/smilepay/providers"
	ProviderPath       = ProvidersPath + "/:id"
	ProviderMethodPath = ProviderPath + "/method"
)

// maxProviderBody bounds provider registration requests
const maxProviderBody = 16 << 10

// ProviderHandler serves the host-facing provider configuration API
type ProviderHandler struct {
	providers serviceports.ProviderService
	logger    *zap.Logger
}

// NewProviderHandler creates a provider configuration handler
func NewProviderHandler(providers serviceports.ProviderService, logger *zap.Logger) *ProviderHandler {
	return &ProviderHandler{providers: providers, logger: logger}
}

// Register mounts the handler's routes on router
func (h *ProviderHandler) Register(router *httprouter.Router) {
	router.POST(ProvidersPath, h.CreateProvider)
	router.GET(ProviderPath, h.GetProvider)
	router.PUT(ProviderMethodPath, h.ChangeMethod)
}

// registerProviderRequest carries the credentials that domain.Provider hides from JSON
type registerProviderRequest struct {
	Name             string               `json:"name"`
	MerchantID       string               `json:"merchant_id"`
	ParameterCode    string               `json:"parameter_code"`
	VerifyKey        string               `json:"verify_key"`
	VerificationSeed string               `json:"verification_seed"`
	MethodVariant    domain.MethodVariant `json:"method_variant"`
	Environment      domain.Environment   `json:"environment"`
	EndpointOverride string               `json:"endpoint_override"`
	SecretPath       string               `json:"secret_path"`
}

// CreateProvider registers a provider and returns it without credentials
func (h *ProviderHandler) CreateProvider(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req registerProviderRequest
	if !decodeBody(w, r, maxProviderBody, &req) {
		return
	}

	provider := &domain.Provider{
		Name:             req.Name,
		MerchantID:       req.MerchantID,
		ParameterCode:    req.ParameterCode,
		VerifyKey:        req.VerifyKey,
		VerificationSeed: req.VerificationSeed,
		MethodVariant:    req.MethodVariant,
		Environment:      req.Environment,
		EndpointOverride: req.EndpointOverride,
		SecretPath:       req.SecretPath,
	}
	if err := h.providers.Register(r.Context(), provider); err != nil {
		h.writeError(w, provider.ID, err)
		return
	}
	writeJSON(w, http.StatusCreated, provider)
}

// GetProvider returns a provider configuration. Credentials are never serialized.
func (h *ProviderHandler) GetProvider(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")

	provider, err := h.providers.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, id, err)
		return
	}
	writeJSON(w, http.StatusOK, provider)
}

type changeMethodRequest struct {
	MethodVariant domain.MethodVariant `json:"method_variant"`
}

// ChangeMethod switches the provider's payment method
func (h *ProviderHandler) ChangeMethod(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")

	var req changeMethodRequest
	if !decodeBody(w, r, maxProviderBody, &req) {
		return
	}

	if err := h.providers.ChangeMethodVariant(r.Context(), id, req.MethodVariant); err != nil {
		h.writeError(w, id, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ProviderHandler) writeError(w http.ResponseWriter, providerID string, err error) {
	status := statusForError(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("Provider request failed", zap.String("provider_id", providerID), zap.Error(err))
	}
	writeJSON(w, status, errorBody(err, status))
}

// decodeBody writes a 400 and returns false when the body is not valid JSON for v
func decodeBody(w http.ResponseWriter, r *http.Request, limit int64, v interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, limit))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Code:    domain.ErrorCodeInvalidRequest,
			Message: "request body is not valid JSON: " + err.Error(),
		})
		return false
	}
	return true
}
