package controllers

import (
	"crypto/subtle"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"olafo/metrics"
	"olafo/relay"
)

const webhookInstructions = "Olafo relay webhook. Verify with GET ?hub.mode=subscribe&hub.verify_token=...&hub.challenge=..., then POST message events."

// WebhookController serves the Meta webhook: subscription handshake on GET,
// message relay on POST.
type WebhookController struct {
	verifyToken string
	appSecret   string
	relay       *relay.Service
	log         zerolog.Logger
}

// NewWebhookController builds the controller. An empty appSecret disables
// X-Hub-Signature-256 verification.
func NewWebhookController(verifyToken, appSecret string, svc *relay.Service, logger zerolog.Logger) *WebhookController {
	return &WebhookController{
		verifyToken: verifyToken,
		appSecret:   appSecret,
		relay:       svc,
		log:         logger.With().Str("component", "webhook").Logger(),
	}
}

// GET /webhook
func (w *WebhookController) Verify(c *gin.Context) {
	q := c.Request.URL.Query()
	if !q.Has("hub.mode") && !q.Has("hub.verify_token") && !q.Has("hub.challenge") {
		RespondText(c, http.StatusOK, webhookInstructions)
		return
	}

	mode := q.Get("hub.mode")
	token := q.Get("hub.verify_token")
	challenge := q.Get("hub.challenge")

	tokenOK := subtle.ConstantTimeCompare([]byte(token), []byte(w.verifyToken)) == 1
	w.log.Info().
		Str("mode", mode).
		Bool("token_ok", tokenOK).
		Msg("webhook verification")

	if mode == "subscribe" && tokenOK {
		c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(challenge))
		return
	}
	RespondText(c, http.StatusForbidden, BodyForbidden)
}

// POST /webhook
func (w *WebhookController) Update(c *gin.Context) {
	w.log.Debug().
		Str("method", c.Request.Method).
		Interface("headers", redactHeaders(c.Request.Header)).
		Msg("webhook delivery")

	raw, err := c.GetRawData()
	if err != nil {
		w.log.Warn().Err(err).Msg("failed to read body")
		metrics.RelayOutcomes.WithLabelValues("malformed").Inc()
		RespondText(c, http.StatusBadRequest, BodyInvalidPayload)
		return
	}

	if w.appSecret != "" {
		if ok, reason := verifyMetaSignature(c.GetHeader(signatureHeader), raw, w.appSecret); !ok {
			w.log.Warn().Str("reason", reason).Msg("rejected webhook delivery")
			metrics.RelayOutcomes.WithLabelValues("forbidden").Inc()
			RespondText(c, http.StatusForbidden, BodyForbidden)
			return
		}
	}

	ev, err := relay.DecodeEvent(raw)
	if err != nil {
		w.log.Warn().Err(err).Int("body_len", len(raw)).Msg("invalid payload")
		metrics.RelayOutcomes.WithLabelValues("malformed").Inc()
		RespondText(c, http.StatusBadRequest, BodyInvalidPayload)
		return
	}

	outcome, err := w.relay.Relay(c.Request.Context(), ev)
	if err == nil {
		if outcome == relay.OutcomeUserUnreachable {
			RespondText(c, http.StatusOK, BodyUserNotMessageable)
			return
		}
		RespondText(c, http.StatusOK, BodyOK)
		return
	}

	var upstream *relay.UpstreamCompletionError
	var delivery *relay.RelayDeliveryError
	switch {
	case errors.As(err, &upstream):
		RespondPassthrough(c, upstream.StatusCode, upstream.Body)
	case errors.As(err, &delivery):
		RespondText(c, http.StatusInternalServerError, BodyFailedToSend)
	default:
		RespondText(c, http.StatusInternalServerError, BodyInternalError)
	}
}
