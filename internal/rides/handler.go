package rides

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/hiveride/dispatch/internal/dispatch"
	"github.com/hiveride/dispatch/pkg/common"
	"github.com/hiveride/dispatch/pkg/middleware"
)

// Handler handles HTTP requests for ride dispatch
type Handler struct {
	service *Service
}

// NewHandler creates a new rides handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func requestIDParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "invalid request ID")
		return uuid.Nil, false
	}
	return id, true
}

func respondServiceError(c *gin.Context, err error, fallback string) {
	if appErr, ok := err.(*common.AppError); ok {
		common.AppErrorResponse(c, appErr)
		return
	}
	common.ErrorResponse(c, http.StatusInternalServerError, fallback)
}

// CreateRequest handles creating a ride request and starting dispatch
func (h *Handler) CreateRequest(c *gin.Context) {
	passengerID, err := middleware.GetUserID(c)
	if err != nil {
		common.ErrorResponse(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req CreateRideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	ride, err := h.service.CreateAndDispatch(c.Request.Context(), passengerID, &req)
	if err != nil {
		respondServiceError(c, err, "failed to create ride request")
		return
	}

	common.CreatedResponse(c, ride)
}

// GetStatus handles polling the dispatch status of a request
func (h *Handler) GetStatus(c *gin.Context) {
	requestID, ok := requestIDParam(c)
	if !ok {
		return
	}

	view, err := h.service.Status(c.Request.Context(), requestID)
	if err != nil {
		respondServiceError(c, err, "failed to get ride status")
		return
	}

	common.SuccessResponse(c, view)
}

// Accept handles a driver accepting an open offer
func (h *Handler) Accept(c *gin.Context) {
	driverID, err := middleware.GetUserID(c)
	if err != nil {
		common.ErrorResponse(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	requestID, ok := requestIDParam(c)
	if !ok {
		return
	}

	var req AcceptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.service.Respond(c.Request.Context(), requestID, driverID, dispatch.VerdictAccept, req.EtaMinutes); err != nil {
		respondServiceError(c, err, "failed to accept ride")
		return
	}

	ride, err := h.service.Get(c.Request.Context(), requestID)
	if err != nil {
		common.SuccessResponse(c, gin.H{"message": "ride accepted"})
		return
	}
	common.SuccessResponse(c, ride)
}

// Decline handles a driver declining an open offer
func (h *Handler) Decline(c *gin.Context) {
	driverID, err := middleware.GetUserID(c)
	if err != nil {
		common.ErrorResponse(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	requestID, ok := requestIDParam(c)
	if !ok {
		return
	}

	// Reason is accepted but only logged; it does not alter the cascade.
	var req DeclineRequest
	_ = c.ShouldBindJSON(&req)

	if err := h.service.Respond(c.Request.Context(), requestID, driverID, dispatch.VerdictDecline, 0); err != nil {
		respondServiceError(c, err, "failed to decline ride")
		return
	}

	common.SuccessResponse(c, gin.H{"applied": true})
}

// Cancel handles a passenger withdrawing a pending request
func (h *Handler) Cancel(c *gin.Context) {
	passengerID, err := middleware.GetUserID(c)
	if err != nil {
		common.ErrorResponse(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	requestID, ok := requestIDParam(c)
	if !ok {
		return
	}

	if err := h.service.Cancel(c.Request.Context(), requestID, passengerID); err != nil {
		respondServiceError(c, err, "failed to cancel ride")
		return
	}

	common.SuccessResponse(c, gin.H{"message": "ride cancelled"})
}

// Arrived handles the assigned driver reporting arrival at pickup
func (h *Handler) Arrived(c *gin.Context) {
	driverID, err := middleware.GetUserID(c)
	if err != nil {
		common.ErrorResponse(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	requestID, ok := requestIDParam(c)
	if !ok {
		return
	}

	if err := h.service.Arrived(c.Request.Context(), requestID, driverID); err != nil {
		respondServiceError(c, err, "failed to mark arrival")
		return
	}

	common.SuccessResponse(c, gin.H{"message": "arrival recorded"})
}

// Start handles the assigned driver starting the trip
func (h *Handler) Start(c *gin.Context) {
	driverID, err := middleware.GetUserID(c)
	if err != nil {
		common.ErrorResponse(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	requestID, ok := requestIDParam(c)
	if !ok {
		return
	}

	if err := h.service.Start(c.Request.Context(), requestID, driverID); err != nil {
		respondServiceError(c, err, "failed to start trip")
		return
	}

	common.SuccessResponse(c, gin.H{"message": "trip started"})
}

// Complete handles the assigned driver completing the trip
func (h *Handler) Complete(c *gin.Context) {
	driverID, err := middleware.GetUserID(c)
	if err != nil {
		common.ErrorResponse(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	requestID, ok := requestIDParam(c)
	if !ok {
		return
	}

	var req CompleteRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		common.ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.service.Complete(c.Request.Context(), requestID, driverID, req.FinalFare); err != nil {
		respondServiceError(c, err, "failed to complete trip")
		return
	}

	common.SuccessResponse(c, gin.H{"message": "trip completed"})
}

// RequestPayment handles the assigned driver requesting fare settlement
func (h *Handler) RequestPayment(c *gin.Context) {
	driverID, err := middleware.GetUserID(c)
	if err != nil {
		common.ErrorResponse(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	requestID, ok := requestIDParam(c)
	if !ok {
		return
	}

	var req PaymentRequestBody
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.service.RequestPayment(c.Request.Context(), requestID, driverID, &req); err != nil {
		respondServiceError(c, err, "failed to request payment")
		return
	}

	common.SuccessResponse(c, gin.H{"message": "payment requested"})
}

// RegisterRoutes registers ride dispatch routes
func (h *Handler) RegisterRoutes(r *gin.Engine, jwtSecret string) {
	api := r.Group("/api/v1")
	api.Use(middleware.AuthMiddleware(jwtSecret))

	requests := api.Group("/rides/requests")
	{
		requests.POST("", middleware.RequireRole(middleware.RolePassenger), h.CreateRequest)
		requests.GET("/:id/status", h.GetStatus)
		requests.POST("/:id/accept", middleware.RequireRole(middleware.RoleDriver), h.Accept)
		requests.POST("/:id/decline", middleware.RequireRole(middleware.RoleDriver), h.Decline)
		requests.POST("/:id/cancel", middleware.RequireRole(middleware.RolePassenger), h.Cancel)
		requests.POST("/:id/arrived", middleware.RequireRole(middleware.RoleDriver), h.Arrived)
		requests.POST("/:id/start", middleware.RequireRole(middleware.RoleDriver), h.Start)
		requests.POST("/:id/complete", middleware.RequireRole(middleware.RoleDriver), h.Complete)
		requests.POST(":id/payment-request", middleware.RequireRole(middleware.RoleDriver), h.RequestPayment)
	}
}
