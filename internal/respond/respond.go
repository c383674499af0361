// Package respond writes the API's JSON envelope:
//
//	{"success": true,  "data": ...}
//	{"success": false, "error": "<code>", "message": "..."}
package respond

import (
	"github.com/gin-gonic/gin"

	"github.com/mbd888/moodguard/internal/validation"
)

// OK writes a success envelope.
func OK(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{"success": true, "data": data})
}

// Error writes a failure envelope and aborts the handler chain.
func Error(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"error":   code,
		"message": message,
	})
}

// Invalid writes a 400 listing every failed field.
func Invalid(c *gin.Context, errs validation.ValidationErrors) {
	c.AbortWithStatusJSON(400, gin.H{
		"success": false,
		"error":   "validation_failed",
		"message": errs.Error(),
		"fields":  errs,
	})
}
