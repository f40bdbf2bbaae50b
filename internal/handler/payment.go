package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"travel/internal/domain"
	"travel/internal/service"
)

// PaymentHandler handles HTTP requests for payments.
type PaymentHandler struct {
	paymentService *service.PaymentService
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(paymentService *service.PaymentService) *PaymentHandler {
	return &PaymentHandler{paymentService: paymentService}
}

// CreatePaymentRequest is the HTTP request body for creating a payment.
type CreatePaymentRequest struct {
	BookingID string          `json:"booking_id" binding:"required"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency" binding:"omitempty,len=3"`
}

// PaymentResponse is the HTTP response for payment operations.
type PaymentResponse struct {
	ID            string     `json:"id"`
	BookingID     string     `json:"booking_id"`
	Amount        string     `json:"amount"`
	Currency      string     `json:"currency"`
	Status        string     `json:"status"`
	TransactionID string     `json:"transaction_id"`
	PaymentMethod string     `json:"payment_method,omitempty"`
	CheckoutURL   string     `json:"checkout_url,omitempty"`
	Reference     string     `json:"reference,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	VerifiedAt    *time.Time `json:"verified_at,omitempty"`
}

// InitializePaymentResponse is returned once a checkout has been opened.
type InitializePaymentResponse struct {
	CheckoutURL    string          `json:"checkout_url"`
	TransactionRef string          `json:"transaction_ref"`
	Message        string          `json:"message"`
	Payment        PaymentResponse `json:"payment"`
}

// CreatePayment handles POST /v1/payments
func (h *PaymentHandler) CreatePayment(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}

	var req CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	payment, err := h.paymentService.CreatePayment(c.Request.Context(), caller, service.CreatePaymentRequest{
		BookingID: req.BookingID,
		Amount:    req.Amount,
		Currency:  req.Currency,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, toPaymentResponse(payment))
}

// GetPayment handles GET /v1/payments/:id and the gateway's return
// redirect on GET /v1/payments/:id/complete.
func (h *PaymentHandler) GetPayment(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}

	payment, err := h.paymentService.GetPayment(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toPaymentResponse(payment))
}

// InitializePayment handles POST /v1/payments/:id/initialize
func (h *PaymentHandler) InitializePayment(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}

	payment, err := h.paymentService.InitializePayment(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, InitializePaymentResponse{
		CheckoutURL:    payment.Gateway.CheckoutURL,
		TransactionRef: payment.TransactionID,
		Message:        "Payment checkout url has been sent to your mail",
		Payment:        toPaymentResponse(payment),
	})
}

// VerifyPayment handles POST and GET /v1/payments/:id/verify
func (h *PaymentHandler) VerifyPayment(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}

	payment, err := h.paymentService.VerifyPayment(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toPaymentResponse(payment))
}

func toPaymentResponse(p *domain.Payment) PaymentResponse {
	resp := PaymentResponse{
		ID:            p.ID,
		BookingID:     p.BookingID,
		Amount:        p.Amount.StringFixed(domain.MoneyPlaces),
		Currency:      p.Currency,
		Status:        string(p.Status),
		TransactionID: p.TransactionID,
		PaymentMethod: p.PaymentMethod,
		CheckoutURL:   p.Gateway.CheckoutURL,
		Reference:     p.Gateway.Reference,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
	if !p.Gateway.VerifiedAt.IsZero() {
		verified := p.Gateway.VerifiedAt
		resp.VerifiedAt = &verified
	}
	return resp
}
