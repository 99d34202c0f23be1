package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kimspro130/promode/internal/order/domain"
	"github.com/kimspro130/promode/internal/order/repository"
	"github.com/kimspro130/promode/internal/payment"
	"github.com/kimspro130/promode/internal/payment/pesapal"
	"github.com/kimspro130/promode/pkg/logging"
	"github.com/kimspro130/promode/pkg/metrics"
)

// HostedCheckout is the slice of the gateway client the handler needs.
// Satisfied by *pesapal.Client.
type HostedCheckout interface {
	SubmitOrderRequest(ctx context.Context, req pesapal.OrderRequest) (*pesapal.OrderResponse, error)
}

// PaymentsHandler initiates hosted-checkout sessions and terminates the
// two gateway callbacks: the browser redirect and the server-to-server
// IPN.
type PaymentsHandler struct {
	gateway     HostedCheckout
	callbacks   *payment.CallbackService
	metrics     *metrics.ServerMetrics
	callbackURL string // where the gateway sends the shopper back
	ipnID       string // notification id from IPN registration
	appBaseURL  string // storefront origin for post-payment redirects
	timeout     time.Duration
}

func NewPaymentsHandler(gateway HostedCheckout, callbacks *payment.CallbackService, m *metrics.ServerMetrics, callbackURL, ipnID, appBaseURL string, timeout time.Duration) *PaymentsHandler {
	return &PaymentsHandler{
		gateway:     gateway,
		callbacks:   callbacks,
		metrics:     m,
		callbackURL: callbackURL,
		ipnID:       ipnID,
		appBaseURL:  appBaseURL,
		timeout:     timeout,
	}
}

type InitiatePaymentRequestDTO struct {
	Amount        float64 `json:"amount"`
	Currency      string  `json:"currency"`
	Description   string  `json:"description"`
	CustomerEmail string  `json:"customerEmail"`
	CustomerPhone string  `json:"customerPhone"`
	CustomerName  string  `json:"customerName"`
	OrderID       string  `json:"orderId"`
}

type InitiatePaymentResponseDTO struct {
	Success           bool   `json:"success"`
	OrderTrackingID   string `json:"order_tracking_id"`
	RedirectURL       string `json:"redirect_url"`
	MerchantReference string `json:"merchant_reference"`
}

func (h *PaymentsHandler) Initiate(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	var req InitiatePaymentRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if req.OrderID == "" {
		respondError(w, http.StatusBadRequest, "invalid_order_id", "orderId is required")
		return
	}
	if req.Amount <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_amount", "amount must be positive")
		return
	}
	if req.CustomerEmail == "" {
		respondError(w, http.StatusBadRequest, "invalid_email", "customerEmail is required")
		return
	}
	if req.Currency == "" {
		req.Currency = "UGX"
	}

	firstName, lastName := splitName(req.CustomerName)

	resp, err := h.gateway.SubmitOrderRequest(ctx, pesapal.OrderRequest{
		ID:             req.OrderID,
		Currency:       req.Currency,
		Amount:         req.Amount,
		Description:    req.Description,
		CallbackURL:    h.callbackURL,
		NotificationID: h.ipnID,
		BillingAddress: pesapal.BillingAddress{
			EmailAddress: req.CustomerEmail,
			PhoneNumber:  domain.FormatUgandanPhone(req.CustomerPhone),
			CountryCode:  "UG",
			FirstName:    firstName,
			LastName:     lastName,
		},
	})
	if err != nil {
		logging.Log(logging.Fields{
			Service: "payments",
			OrderID: req.OrderID,
			UserID:  userID,
			Step:    "initiate",
			Status:  "gateway_error",
			Message: err.Error(),
		})
		respondError(w, http.StatusBadGateway, "gateway_error", "payment gateway unavailable, please try again")
		return
	}

	respondJSON(w, http.StatusOK, InitiatePaymentResponseDTO{
		Success:           true,
		OrderTrackingID:   resp.OrderTrackingID,
		RedirectURL:       resp.RedirectURL,
		MerchantReference: resp.MerchantReference,
	})
}

// CallbackRedirect handles the browser coming back from the hosted
// payment page. The query carries no trusted state; the gateway is
// re-queried and the shopper is sent to the matching storefront page.
func (h *PaymentsHandler) CallbackRedirect(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	trackingID := r.URL.Query().Get("OrderTrackingId")
	merchantRef := r.URL.Query().Get("OrderMerchantReference")

	out, err := h.callbacks.Handle(ctx, trackingID, merchantRef)
	if err != nil {
		h.logCallback(trackingID, merchantRef, "redirect", err.Error())
		switch {
		case errors.Is(err, payment.ErrMissingTrackingID), errors.Is(err, payment.ErrBadMerchantRef):
			h.redirect(w, r, "/checkout/failed", url.Values{"error": {"invalid_callback"}})
		case errors.Is(err, repository.ErrOrderNotFound):
			h.redirect(w, r, "/checkout/failed", url.Values{"error": {"order_not_found"}})
		case errors.Is(err, payment.ErrGatewayUnavailable):
			// status unknown, not failed; shopper can refresh
			h.redirect(w, r, "/checkout/pending", url.Values{"order": {merchantRef}})
		default:
			h.redirect(w, r, "/checkout/failed", url.Values{"error": {"payment_status_check_failed"}})
		}
		return
	}

	h.countCallback(out)
	switch out.Result.PaymentStatus {
	case domain.PaymentStatusPaid:
		h.redirect(w, r, "/checkout/success", url.Values{"order": {out.OrderID.String()}})
	case domain.PaymentStatusFailed:
		h.redirect(w, r, "/checkout/failed", url.Values{"error": {"payment_failed"}, "order": {out.OrderID.String()}})
	default:
		h.redirect(w, r, "/checkout/pending", url.Values{"order": {out.OrderID.String()}})
	}
}

type ipnRequestDTO struct {
	OrderTrackingID        string `json:"OrderTrackingId"`
	OrderMerchantReference string `json:"OrderMerchantReference"`
}

// CallbackIPN handles the server-to-server notification. The gateway
// retries until it sees a 2xx, so an order that no longer exists is
// acknowledged (and logged) rather than erroring forever.
func (h *PaymentsHandler) CallbackIPN(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req ipnRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	out, err := h.callbacks.Handle(ctx, req.OrderTrackingID, req.OrderMerchantReference)
	if err != nil {
		h.logCallback(req.OrderTrackingID, req.OrderMerchantReference, "ipn", err.Error())
		switch {
		case errors.Is(err, payment.ErrMissingTrackingID), errors.Is(err, payment.ErrBadMerchantRef):
			respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		case errors.Is(err, repository.ErrOrderNotFound):
			// ack so the gateway stops retrying a reference we will
			// never resolve
			respondJSON(w, http.StatusOK, map[string]bool{"success": true})
		default:
			respondError(w, http.StatusInternalServerError, "internal_error", "failed to process notification")
		}
		return
	}

	h.countCallback(out)
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *PaymentsHandler) redirect(w http.ResponseWriter, r *http.Request, path string, q url.Values) {
	http.Redirect(w, r, h.appBaseURL+path+"?"+q.Encode(), http.StatusFound)
}

func (h *PaymentsHandler) countCallback(out *payment.Outcome) {
	if h.metrics != nil {
		h.metrics.PaymentStates.WithLabelValues(string(out.Result.PaymentStatus)).Inc()
	}
}

func (h *PaymentsHandler) logCallback(trackingID, merchantRef, step, msg string) {
	logging.Log(logging.Fields{
		Service:    "payments",
		OrderID:    merchantRef,
		TrackingID: trackingID,
		Step:       step,
		Status:     "error",
		Message:    msg,
	})
}

// splitName turns a free-form customer name into the first/last pair
// the gateway requires.
func splitName(name string) (string, string) {
	parts := strings.Fields(name)
	switch len(parts) {
	case 0:
		return "Customer", ""
	case 1:
		return parts[0], ""
	default:
		return parts[0], strings.Join(parts[1:], " ")
	}
}
