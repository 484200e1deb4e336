package controllers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// Plain-text bodies of the relay endpoints. Meta only looks at the status.
const (
	BodyOK                 = "OK"
	BodyForbidden          = "Forbidden"
	BodyNotFound           = "Not Found"
	BodyInvalidPayload     = "Invalid payload"
	BodyMissingMessage     = "Missing message"
	BodyUserNotMessageable = "User not messageable"
	BodyFailedToSend       = "Failed to send message"
	BodyInternalError      = "Internal server error"
)

func RespondError(c *gin.Context, msg string, code int) {
	c.JSON(code, gin.H{"error": msg})
}

func RespondSuccess(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

func RespondText(c *gin.Context, code int, body string) {
	c.Data(code, "text/plain; charset=utf-8", []byte(body))
}

// RespondPassthrough writes an upstream status and body unchanged.
func RespondPassthrough(c *gin.Context, code int, body []byte) {
	contentType := "text/plain; charset=utf-8"
	if json.Valid(body) {
		contentType = "application/json"
	}
	c.Data(code, contentType, body)
}

// NotFound answers every unknown path or method.
func NotFound(c *gin.Context) {
	RespondText(c, http.StatusNotFound, BodyNotFound)
}

var sensitiveHeaders = map[string]bool{
	"authorization":       true,
	"cookie":              true,
	"x-hub-signature":     true,
	"x-hub-signature-256": true,
}

func redactHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		if sensitiveHeaders[strings.ToLower(k)] {
			out[k] = "[redacted]"
			continue
		}
		out[k] = strings.Join(v, ",")
	}
	return out
}
