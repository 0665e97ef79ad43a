package presence

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/hiveride/dispatch/pkg/common"
	"github.com/hiveride/dispatch/pkg/config"
	"github.com/hiveride/dispatch/pkg/middleware"
	"github.com/hiveride/dispatch/pkg/validation"
)

// Handler handles HTTP requests for driver presence
type Handler struct {
	service *Service
	cfg     config.DispatchConfig
}

// NewHandler creates a new presence handler
func NewHandler(service *Service, cfg config.DispatchConfig) *Handler {
	return &Handler{service: service, cfg: cfg}
}

// UpdateLocation handles a driver location heartbeat
func (h *Handler) UpdateLocation(c *gin.Context) {
	driverID, err := middleware.GetUserID(c)
	if err != nil {
		common.ErrorResponse(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req HeartbeatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.service.Heartbeat(c.Request.Context(), driverID, req.Latitude, req.Longitude); err != nil {
		if appErr, ok := err.(*common.AppError); ok {
			common.AppErrorResponse(c, appErr)
			return
		}
		common.ErrorResponse(c, http.StatusInternalServerError, "failed to update location")
		return
	}

	common.SuccessResponse(c, gin.H{"message": "location updated"})
}

// UpdateStatus handles a driver going online or offline. Going online without
// a location only arms liveness on the next heartbeat, so online=true is a
// no-op here; online=false removes the driver from the index immediately.
func (h *Handler) UpdateStatus(c *gin.Context) {
	driverID, err := middleware.GetUserID(c)
	if err != nil {
		common.ErrorResponse(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	if !req.IsOnline {
		if err := h.service.MarkOffline(c.Request.Context(), driverID); err != nil {
			if appErr, ok := err.(*common.AppError); ok {
				common.AppErrorResponse(c, appErr)
				return
			}
			common.ErrorResponse(c, http.StatusInternalServerError, "failed to update status")
			return
		}
	}

	common.SuccessResponse(c, gin.H{"online": req.IsOnline})
}

// FindNearbyDrivers handles searching for live drivers around a point
func (h *Handler) FindNearbyDrivers(c *gin.Context) {
	lat, err := strconv.ParseFloat(c.Query("latitude"), 64)
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "invalid latitude")
		return
	}
	lng, err := strconv.ParseFloat(c.Query("longitude"), 64)
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "invalid longitude")
		return
	}
	if err := validation.ValidateCoordinates(lat, lng); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	radiusKm := h.cfg.SearchRadiusKm
	if r := c.Query("radius_km"); r != "" {
		if parsed, err := strconv.ParseFloat(r, 64); err == nil && parsed > 0 {
			radiusKm = parsed
		}
	}

	limit := h.cfg.SearchLimit
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 50 {
			limit = parsed
		}
	}

	drivers, err := h.service.Nearest(c.Request.Context(), lat, lng, radiusKm, limit)
	if err != nil {
		if appErr, ok := err.(*common.AppError); ok {
			common.AppErrorResponse(c, appErr)
			return
		}
		common.ErrorResponse(c, http.StatusInternalServerError, "failed to find nearby drivers")
		return
	}

	common.SuccessResponse(c, gin.H{"drivers": drivers})
}

// RegisterRoutes registers presence routes
func (h *Handler) RegisterRoutes(r *gin.Engine, jwtSecret string) {
	api := r.Group("/api/v1")
	api.Use(middleware.AuthMiddleware(jwtSecret))

	drivers := api.Group("/drivers")
	{
		drivers.POST("/location", middleware.RequireRole(middleware.RoleDriver), h.UpdateLocation)
		drivers.PUT("/status", middleware.RequireRole(middleware.RoleDriver), h.UpdateStatus)
		drivers.GET("/nearby", h.FindNearbyDrivers)
	}
}
