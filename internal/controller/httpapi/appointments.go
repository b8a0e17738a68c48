package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Freeeeeet/booking_api/internal/model"
)

type createBookingRequest struct {
	ServiceID int64  `json:"service_id" binding:"required,min=1"`
	StartTime string `json:"start_time" binding:"required"`
}

type updateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

type changeTechnicianRequest struct {
	NewTechnicianID int64 `json:"new_technician_id" binding:"required,min=1"`
}

// CreateBooking POST /api/bookings
func (h *Handler) CreateBooking(c *gin.Context) {
	var req createBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortValidation(c, err)
		return
	}

	user := currentUser(c)
	appt, err := h.appointments.CreateAppointment(c.Request.Context(), user.ID, req.ServiceID, req.StartTime)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":     "Booking created successfully!",
		"appointment": appt,
	})
}

// UserBookings GET /api/user/bookings
func (h *Handler) UserBookings(c *gin.Context) {
	bookings, err := h.queries.UserBookings(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":  "Bookings retrieved successfully!",
		"bookings": bookings,
	})
}

// AllAppointments GET /api/appointments
func (h *Handler) AllAppointments(c *gin.Context) {
	appointments, err := h.queries.AllAppointments(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":      "Appointments retrieved successfully!",
		"appointments": appointments,
	})
}

// UpdateStatus POST /api/appointments/:id/update-status
func (h *Handler) UpdateStatus(c *gin.Context) {
	id, ok := pathID(c, "Appointment not found.")
	if !ok {
		return
	}

	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortValidation(c, err)
		return
	}

	details, err := h.appointments.UpdateStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":     "Appointment status updated successfully.",
		"appointment": details,
	})
}

// ChangeTechnician POST /api/appointments/:id/change-technician
func (h *Handler) ChangeTechnician(c *gin.Context) {
	id, ok := pathID(c, "Appointment not found.")
	if !ok {
		return
	}

	var req changeTechnicianRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortValidation(c, err)
		return
	}

	details, err := h.appointments.ChangeTechnician(c.Request.Context(), id, req.NewTechnicianID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":     "Technician changed successfully.",
		"appointment": details,
	})
}

// TechnicianAppointments GET /api/technicians/:id/appointments?date=YYYY-MM-DD
// Доступно администратору и самому технику.
func (h *Handler) TechnicianAppointments(c *gin.Context) {
	id, ok := pathID(c, "Technician not found.")
	if !ok {
		return
	}

	user := currentUser(c)
	if !user.HasRole(model.RoleAdmin) && !(user.IsTechnician() && user.ID == id) {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": "You do not have permission to perform this action."})
		return
	}

	appointments, err := h.queries.TechnicianAppointments(c.Request.Context(), id, c.Query("date"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":      "Technician appointments retrieved successfully!",
		"appointments": appointments,
	})
}

// ListTechnicians GET /api/technicians
func (h *Handler) ListTechnicians(c *gin.Context) {
	technicians, err := h.queries.Technicians(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":     "Technicians retrieved successfully.",
		"technicians": technicians,
	})
}

// ListServices GET /api/services
func (h *Handler) ListServices(c *gin.Context) {
	services, err := h.queries.Services(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":  "Services retrieved successfully.",
		"services": services,
	})
}

func pathID(c *gin.Context, notFound string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"message": notFound})
		return 0, false
	}
	return id, true
}
