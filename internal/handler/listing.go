package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"travel/internal/domain"
	"travel/internal/service"
)

// ListingHandler handles HTTP requests for listings and their reviews.
type ListingHandler struct {
	listingService *service.ListingService
	reviewService  *service.ReviewService
}

// NewListingHandler creates a new ListingHandler.
func NewListingHandler(listingService *service.ListingService, reviewService *service.ReviewService) *ListingHandler {
	return &ListingHandler{
		listingService: listingService,
		reviewService:  reviewService,
	}
}

// ListingRequest is the HTTP request body for creating or updating a listing.
type ListingRequest struct {
	Name          string          `json:"name" binding:"required,max=255"`
	Description   string          `json:"description"`
	Location      string          `json:"location" binding:"required,max=255"`
	PricePerNight decimal.Decimal `json:"price_per_night"`
}

// ListingResponse is the HTTP response for listing data.
type ListingResponse struct {
	ID            string    `json:"id"`
	HostID        string    `json:"host_id"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	Location      string    `json:"location"`
	PricePerNight string    `json:"price_per_night"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ReviewRequest is the HTTP request body for reviewing a listing.
type ReviewRequest struct {
	Rating  int    `json:"rating" binding:"required,min=1,max=5"`
	Comment string `json:"comment" binding:"max=2000"`
}

// ReviewResponse is the HTTP response for review data.
type ReviewResponse struct {
	ID        string    `json:"id"`
	ListingID string    `json:"listing_id"`
	UserID    string    `json:"user_id"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"created_at"`
}

func (r ListingRequest) input() service.ListingInput {
	return service.ListingInput{
		Name:          r.Name,
		Description:   r.Description,
		Location:      r.Location,
		PricePerNight: r.PricePerNight,
	}
}

// Create handles POST /v1/listings
func (h *ListingHandler) Create(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}

	var req ListingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	listing, err := h.listingService.Create(c.Request.Context(), caller, req.input())
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, toListingResponse(listing))
}

// GetAll handles GET /v1/listings?limit=&offset=
func (h *ListingHandler) GetAll(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	offset, _ := strconv.Atoi(c.Query("offset"))

	listings, err := h.listingService.List(c.Request.Context(), limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]ListingResponse, 0, len(listings))
	for _, l := range listings {
		response = append(response, toListingResponse(l))
	}
	respondJSON(c, http.StatusOK, response)
}

// Get handles GET /v1/listings/:id
func (h *ListingHandler) Get(c *gin.Context) {
	listing, err := h.listingService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toListingResponse(listing))
}

// Update handles PUT /v1/listings/:id
func (h *ListingHandler) Update(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}

	var req ListingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	listing, err := h.listingService.Update(c.Request.Context(), caller, c.Param("id"), req.input())
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toListingResponse(listing))
}

// Delete handles DELETE /v1/listings/:id
func (h *ListingHandler) Delete(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}

	if err := h.listingService.Delete(c.Request.Context(), caller, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// CreateReview handles POST /v1/listings/:id/reviews
func (h *ListingHandler) CreateReview(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}

	var req ReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	review, err := h.reviewService.Create(c.Request.Context(), caller, c.Param("id"), req.Rating, req.Comment)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusCreated, toReviewResponse(review))
}

// GetReviews handles GET /v1/listings/:id/reviews
func (h *ListingHandler) GetReviews(c *gin.Context) {
	reviews, err := h.reviewService.List(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]ReviewResponse, 0, len(reviews))
	for _, r := range reviews {
		response = append(response, toReviewResponse(r))
	}
	respondJSON(c, http.StatusOK, response)
}

func toListingResponse(l *domain.Listing) ListingResponse {
	return ListingResponse{
		ID:            l.ID,
		HostID:        l.HostID,
		Name:          l.Name,
		Description:   l.Description,
		Location:      l.Location,
		PricePerNight: l.PricePerNight.StringFixed(domain.MoneyPlaces),
		CreatedAt:     l.CreatedAt,
		UpdatedAt:     l.UpdatedAt,
	}
}

func toReviewResponse(r *domain.Review) ReviewResponse {
	return ReviewResponse{
		ID:        r.ID,
		ListingID: r.ListingID,
		UserID:    r.UserID,
		Rating:    r.Rating,
		Comment:   r.Comment,
		CreatedAt: r.CreatedAt,
	}
}
