package utils

import (
	"time"

	"github.com/Ayash-Bera/calypso/backend/internal/models"
	"github.com/gin-gonic/gin"
)

// Respond writes the standard search envelope.
func Respond(c *gin.Context, code int, action string, result any) {
	c.JSON(code, models.Envelope{
		Success:   true,
		Action:    action,
		Result:    result,
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

// RespondError writes a failed envelope. result may carry structured
// detail (e.g. rate-limit state) alongside the message.
func RespondError(c *gin.Context, code int, action, message string, result any) {
	c.JSON(code, models.Envelope{
		Success:   false,
		Action:    action,
		Result:    result,
		Error:     message,
		Timestamp: time.Now().Format(time.RFC3339),
	})
}
