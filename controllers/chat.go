package controllers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"olafo/relay"
)

const chatInstructions = `Send a POST request with { message: "your text" }`

// ChatController is the minimal variant: the reply goes back in the HTTP
// response instead of through the platform send API.
type ChatController struct {
	relay *relay.Service
	log   zerolog.Logger
}

func NewChatController(svc *relay.Service, logger zerolog.Logger) *ChatController {
	return &ChatController{
		relay: svc,
		log:   logger.With().Str("component", "chat").Logger(),
	}
}

type chatRequest struct {
	Message string `json:"message"`
}

// GET /chat
func (ch *ChatController) Instructions(c *gin.Context) {
	RespondText(c, http.StatusOK, chatInstructions)
}

// POST /chat
func (ch *ChatController) Reply(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		ch.log.Error().Err(err).Msg("failed to read body")
		RespondText(c, http.StatusInternalServerError, BodyInternalError)
		return
	}

	var req chatRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		ch.log.Warn().Err(err).Msg("invalid payload")
		RespondText(c, http.StatusBadRequest, BodyInvalidPayload)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		ch.log.Warn().Msg("missing message field")
		RespondText(c, http.StatusBadRequest, BodyMissingMessage)
		return
	}

	reply, err := ch.relay.Reply(c.Request.Context(), req.Message)
	if err != nil {
		var upstream *relay.UpstreamCompletionError
		if errors.As(err, &upstream) {
			ch.log.Error().Err(err).Int("status", upstream.StatusCode).Msg("completion provider error")
			RespondPassthrough(c, upstream.StatusCode, upstream.Body)
			return
		}
		ch.log.Error().Err(err).Msg("completion failed")
		RespondText(c, http.StatusInternalServerError, BodyInternalError)
		return
	}

	c.JSON(http.StatusOK, gin.H{"reply": reply})
}
