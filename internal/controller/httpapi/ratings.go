package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type createRatingRequest struct {
	AppointmentID int64   `json:"appointment_id" binding:"required,min=1"`
	Rating        int     `json:"rating" binding:"required"`
	Comment       *string `json:"comment"`
}

// ListRatings GET /api/ratings
func (h *Handler) ListRatings(c *gin.Context) {
	ratings, err := h.ratings.ListRatings(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Ratings retrieved successfully.",
		"ratings": ratings,
	})
}

// CreateRating POST /api/ratings
func (h *Handler) CreateRating(c *gin.Context) {
	var req createRatingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortValidation(c, err)
		return
	}

	rating, err := h.ratings.CreateRating(c.Request.Context(), currentUser(c).ID, req.AppointmentID, req.Rating, req.Comment)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Rating created successfully.",
		"rating":  rating,
	})
}
