package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"harshuu/pkg/logger"
	"harshuu/pkg/models"
	"harshuu/service"
	"harshuu/storage"

	"github.com/go-chi/chi/v5"
)

// Handler exposes the order, payment, assignment and wallet flows over
// HTTP. Authentication is handled upstream; the caller identity arrives in
// the X-User-ID header.
type Handler struct {
	svc      service.IServiceManager
	partners storage.IPartnerStorage
	log      logger.ILogger
}

func NewHandler(svc service.IServiceManager, partners storage.IPartnerStorage, log logger.ILogger) *Handler {
	return &Handler{svc: svc, partners: partners, log: log}
}

func userID(r *http.Request) string {
	return r.Header.Get("X-User-ID")
}

func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req service.CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	req.CustomerID = userID(r)
	if req.CustomerID == "" || req.RestaurantID == "" || len(req.Items) == 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "customer, restaurant and items are required")
		return
	}

	order, err := h.svc.Order().Create(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	uid := userID(r)

	var (
		order *models.Order
		err   error
	)
	switch r.URL.Query().Get("role") {
	case "restaurant":
		order, err = h.svc.Order().GetForRestaurant(r.Context(), orderID, uid)
	case "partner":
		order, err = h.svc.Order().GetForPartner(r.Context(), orderID, uid)
	default:
		order, err = h.svc.Order().GetForCustomer(r.Context(), orderID, uid)
	}
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *Handler) PayOnline(w http.ResponseWriter, r *http.Request) {
	checkout, err := h.svc.Payment().CreateProviderOrder(r.Context(), chi.URLParam(r, "id"), userID(r))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, checkout)
}

type callbackRequest struct {
	ProviderOrderRef   string `json:"provider_order_ref"`
	ProviderPaymentRef string `json:"provider_payment_ref"`
	Signature          string `json:"signature"`
}

func (h *Handler) PaymentCallback(w http.ResponseWriter, r *http.Request) {
	var req callbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	order, err := h.svc.Payment().ConfirmCallback(r.Context(), req.ProviderOrderRef, req.ProviderPaymentRef, req.Signature)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *Handler) PayCOD(w http.ResponseWriter, r *http.Request) {
	order, err := h.svc.Payment().PayCOD(r.Context(), chi.URLParam(r, "id"), userID(r))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *Handler) PayWallet(w http.ResponseWriter, r *http.Request) {
	order, err := h.svc.Payment().PayWallet(r.Context(), chi.URLParam(r, "id"), userID(r))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

func decodeReason(r *http.Request) string {
	var req reasonRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	return req.Reason
}

func (h *Handler) RestaurantAccept(w http.ResponseWriter, r *http.Request) {
	order, err := h.svc.Order().Accept(r.Context(), chi.URLParam(r, "id"), userID(r))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *Handler) RestaurantReject(w http.ResponseWriter, r *http.Request) {
	order, err := h.svc.Order().RejectByRestaurant(r.Context(), chi.URLParam(r, "id"), userID(r), decodeReason(r))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *Handler) RestaurantPreparing(w http.ResponseWriter, r *http.Request) {
	order, err := h.svc.Order().MarkPreparing(r.Context(), chi.URLParam(r, "id"), userID(r))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *Handler) RestaurantReady(w http.ResponseWriter, r *http.Request) {
	order, err := h.svc.Order().MarkReady(r.Context(), chi.URLParam(r, "id"), userID(r))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *Handler) CustomerCancel(w http.ResponseWriter, r *http.Request) {
	order, err := h.svc.Order().CancelByCustomer(r.Context(), chi.URLParam(r, "id"), userID(r), decodeReason(r))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *Handler) PartnerPickup(w http.ResponseWriter, r *http.Request) {
	order, err := h.svc.Assignment().Accept(r.Context(), chi.URLParam(r, "id"), userID(r))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *Handler) PartnerDelivered(w http.ResponseWriter, r *http.Request) {
	order, err := h.svc.Order().MarkDelivered(r.Context(), chi.URLParam(r, "id"), userID(r))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *Handler) PartnerComplete(w http.ResponseWriter, r *http.Request) {
	order, err := h.svc.Order().Complete(r.Context(), chi.URLParam(r, "id"), userID(r))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *Handler) AdminCancel(w http.ResponseWriter, r *http.Request) {
	order, err := h.svc.Order().AdminCancel(r.Context(), chi.URLParam(r, "id"), decodeReason(r))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

type overrideRequest struct {
	Status models.OrderStatus `json:"status"`
	Reason string             `json:"reason"`
}

func (h *Handler) AdminOverride(w http.ResponseWriter, r *http.Request) {
	var req overrideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	order, err := h.svc.Order().AdminOverride(r.Context(), chi.URLParam(r, "id"), req.Status, req.Reason)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

type onlineRequest struct {
	Online bool `json:"online"`
}

func (h *Handler) PartnerOnline(w http.ResponseWriter, r *http.Request) {
	var req onlineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	if err := h.partners.SetOnline(r.Context(), chi.URLParam(r, "id"), req.Online); err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"online": req.Online})
}

type locationRequest struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func (h *Handler) PartnerLocation(w http.ResponseWriter, r *http.Request) {
	var req locationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	if err := h.partners.UpdateLocation(r.Context(), chi.URLParam(r, "id"), req.Lat, req.Lng); err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]float64{"lat": req.Lat, "lng": req.Lng})
}

func (h *Handler) GetWallet(w http.ResponseWriter, r *http.Request) {
	role := r.URL.Query().Get("role")
	if role == "" {
		role = models.RoleCustomer
	}

	wallet, err := h.svc.Wallet().GetOrCreate(r.Context(), chi.URLParam(r, "owner"), role)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	ledger, err := h.svc.Wallet().Ledger(r.Context(), wallet.ID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"wallet": wallet,
		"ledger": ledger,
	})
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, service.ErrUnauthorized):
		writeError(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, service.ErrSignatureMismatch):
		writeError(w, http.StatusUnauthorized, "signature_mismatch", err.Error())
	case errors.Is(err, service.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid_transition", err.Error())
	case errors.Is(err, service.ErrBelowMinimumOrder),
		errors.Is(err, service.ErrOutOfDeliveryRadius),
		errors.Is(err, service.ErrInvalidLineItem),
		errors.Is(err, service.ErrInsufficientBalance),
		errors.Is(err, service.ErrInvalidAmount):
		writeError(w, http.StatusUnprocessableEntity, "rejected", err.Error())
	case errors.Is(err, service.ErrNoPartnerAvailable):
		writeError(w, http.StatusAccepted, "no_partner_available", err.Error())
	default:
		h.log.Error("request failed", logger.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", "something went wrong")
	}
}
