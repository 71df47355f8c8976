package httpapi

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/shineum/contact-relay/internal/contact"
)

type handler struct {
	sender Sender
}

// submit accepts a JSON or form-encoded submission and relays it.
// Transport details never reach the response body.
func (h *handler) submit(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)

	var sub contact.Submission
	if err := c.ShouldBind(&sub); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	err := h.sender.Send(c.Request.Context(), sub)

	var vErr *contact.ValidationError
	var dErr *contact.DeliveryError
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"success": true})
	case errors.As(err, &vErr):
		msg := "Missing required fields"
		if vErr.Kind == contact.InvalidEmail {
			msg = "Invalid email address"
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": msg, "field": vErr.Field})
	case errors.As(err, &dErr):
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to send email"})
	default:
		slog.Error("unexpected relay error", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

func (h *handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
