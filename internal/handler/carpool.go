package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"carpool/internal/domain"
	"carpool/internal/middleware"
	"carpool/internal/service"
)

// CarpoolHandler handles HTTP requests for carpools and their lifecycle.
type CarpoolHandler struct {
	carpoolService *service.CarpoolService
	logger         *zap.Logger
}

// NewCarpoolHandler creates a new CarpoolHandler.
func NewCarpoolHandler(carpoolService *service.CarpoolService, logger *zap.Logger) *CarpoolHandler {
	return &CarpoolHandler{carpoolService: carpoolService, logger: logger}
}

// CreateCarpoolRequest is the HTTP request body for publishing a carpool.
type CreateCarpoolRequest struct {
	DepartureCity     string `json:"departure_city"`
	ArrivalCity       string `json:"arrival_city"`
	DepartureLocation string `json:"departure_location"`
	ArrivalLocation   string `json:"arrival_location"`
	DepartureDate     string `json:"departure_date"`
	DepartureTime     string `json:"departure_time"`
	ArrivalDate       string `json:"arrival_date"`
	ArrivalTime       string `json:"arrival_time"`
	EstimatedDuration *int   `json:"estimated_duration"`
	TotalSeats        int    `json:"total_seats"`
	PricePerPerson    int    `json:"price_per_person"`
}

// ValidateTripRequest is the HTTP request body for judging a trip.
type ValidateTripRequest struct {
	TripOK         *bool  `json:"trip_ok"`
	ProblemComment string `json:"problem_comment"`
}

// CarpoolResponse is the HTTP response for carpool data.
type CarpoolResponse struct {
	ID                string `json:"id"`
	DriverID          string `json:"driver_id"`
	DepartureCity     string `json:"departure_city"`
	ArrivalCity       string `json:"arrival_city"`
	DepartureLocation string `json:"departure_location,omitempty"`
	ArrivalLocation   string `json:"arrival_location,omitempty"`
	DepartureDate     string `json:"departure_date,omitempty"`
	DepartureTime     string `json:"departure_time,omitempty"`
	ArrivalDate       string `json:"arrival_date,omitempty"`
	ArrivalTime       string `json:"arrival_time,omitempty"`
	EstimatedDuration *int   `json:"estimated_duration,omitempty"`
	TotalSeats        int    `json:"total_seats"`
	AvailableSeats    int    `json:"available_seats"`
	PricePerPerson    int    `json:"price_per_person"`
	Status            string `json:"status"`
	CreatedAt         string `json:"created_at"`
}

// ParticipationResponse is the HTTP response for participation data.
type ParticipationResponse struct {
	ID             string `json:"id"`
	UserID         string `json:"user_id"`
	Status         string `json:"status"`
	CreditsUsed    int    `json:"credits_used"`
	TripValidated  *bool  `json:"trip_validated"`
	ProblemComment string `json:"problem_comment,omitempty"`
	CreatedAt      string `json:"created_at"`
}

func toCarpoolResponse(c *domain.Carpool) CarpoolResponse {
	return CarpoolResponse{
		ID:                c.ID,
		DriverID:          c.DriverID,
		DepartureCity:     c.DepartureCity,
		ArrivalCity:       c.ArrivalCity,
		DepartureLocation: c.DepartureLocation,
		ArrivalLocation:   c.ArrivalLocation,
		DepartureDate:     c.DepartureDate,
		DepartureTime:     c.DepartureTime,
		ArrivalDate:       c.ArrivalDate,
		ArrivalTime:       c.ArrivalTime,
		EstimatedDuration: c.EstimatedDuration,
		TotalSeats:        c.TotalSeats,
		AvailableSeats:    c.AvailableSeats,
		PricePerPerson:    c.PricePerPerson,
		Status:            string(c.Status),
		CreatedAt:         c.CreatedAt.Format(time.RFC3339),
	}
}

// Create handles POST /v1/carpools
func (h *CarpoolHandler) Create(c *gin.Context) {
	var req CreateCarpoolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	driverID := middleware.ActingUserID(c)
	annotate(c, map[string]string{"user_id": driverID})

	carpool, err := h.carpoolService.CreateCarpool(c.Request.Context(), service.CreateCarpoolRequest{
		DriverID:          driverID,
		DepartureCity:     req.DepartureCity,
		ArrivalCity:       req.ArrivalCity,
		DepartureLocation: req.DepartureLocation,
		ArrivalLocation:   req.ArrivalLocation,
		DepartureDate:     req.DepartureDate,
		DepartureTime:     req.DepartureTime,
		ArrivalDate:       req.ArrivalDate,
		ArrivalTime:       req.ArrivalTime,
		EstimatedDuration: req.EstimatedDuration,
		TotalSeats:        req.TotalSeats,
		PricePerPerson:    req.PricePerPerson,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respondJSON(c, http.StatusCreated, toCarpoolResponse(carpool))
}

// Get handles GET /v1/carpools/:id
func (h *CarpoolHandler) Get(c *gin.Context) {
	carpool, err := h.carpoolService.GetCarpool(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respondJSON(c, http.StatusOK, toCarpoolResponse(carpool))
}

// ListOpen handles GET /v1/carpools
func (h *CarpoolHandler) ListOpen(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))

	carpools, err := h.carpoolService.ListOpenCarpools(c.Request.Context(), limit)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	response := make([]CarpoolResponse, 0, len(carpools))
	for _, cp := range carpools {
		response = append(response, toCarpoolResponse(cp))
	}

	respondJSON(c, http.StatusOK, response)
}

// ListParticipations handles GET /v1/carpools/:id/participations
func (h *CarpoolHandler) ListParticipations(c *gin.Context) {
	participations, err := h.carpoolService.ListParticipations(c.Request.Context(), c.Param("id"), middleware.ActingUserID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	response := make([]ParticipationResponse, 0, len(participations))
	for _, p := range participations {
		response = append(response, ParticipationResponse{
			ID:             p.ID,
			UserID:         p.UserID,
			Status:         string(p.Status),
			CreditsUsed:    p.CreditsUsed,
			TripValidated:  p.TripValidated,
			ProblemComment: p.ProblemComment,
			CreatedAt:      p.CreatedAt.Format(time.RFC3339),
		})
	}

	respondJSON(c, http.StatusOK, response)
}

// Join handles POST /v1/carpools/:id/join
func (h *CarpoolHandler) Join(c *gin.Context) {
	h.run(c, h.carpoolService.Join)
}

// Leave handles POST /v1/carpools/:id/leave
func (h *CarpoolHandler) Leave(c *gin.Context) {
	h.run(c, h.carpoolService.CancelParticipation)
}

// Cancel handles POST /v1/carpools/:id/cancel
func (h *CarpoolHandler) Cancel(c *gin.Context) {
	h.run(c, h.carpoolService.CancelCarpool)
}

// Start handles POST /v1/carpools/:id/start
func (h *CarpoolHandler) Start(c *gin.Context) {
	h.run(c, h.carpoolService.StartCarpool)
}

// Complete handles POST /v1/carpools/:id/complete
func (h *CarpoolHandler) Complete(c *gin.Context) {
	h.run(c, h.carpoolService.CompleteCarpool)
}

// Validate handles POST /v1/carpools/:id/validate
func (h *CarpoolHandler) Validate(c *gin.Context) {
	var req ValidateTripRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	if req.TripOK == nil {
		respondBadRequest(c, "trip_ok is required")
		return
	}

	carpoolID := c.Param("id")
	userID := middleware.ActingUserID(c)
	annotate(c, map[string]string{"carpool_id": carpoolID, "user_id": userID})

	result, err := h.carpoolService.ValidateTrip(c.Request.Context(), service.ValidateTripRequest{
		CarpoolID:      carpoolID,
		UserID:         userID,
		TripOK:         *req.TripOK,
		ProblemComment: req.ProblemComment,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respondResult(c, result)
}

type lifecycleOp func(ctx context.Context, carpoolID, userID string) (*service.Result, error)

func (h *CarpoolHandler) run(c *gin.Context, op lifecycleOp) {
	carpoolID := c.Param("id")
	userID := middleware.ActingUserID(c)
	annotate(c, map[string]string{"carpool_id": carpoolID, "user_id": userID})

	result, err := op(c.Request.Context(), carpoolID, userID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respondResult(c, result)
}
