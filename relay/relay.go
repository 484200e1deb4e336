// Package relay forwards an inbound message to the completion provider and
// sends the generated reply back to the sender.
package relay

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"olafo/metrics"
	"olafo/models"
	"olafo/persona"
	"olafo/tools"
)

// Completer produces a reply for text under the given instruction.
// "" with a nil error means the provider returned no choice.
type Completer interface {
	Complete(ctx context.Context, instruction, text string) (string, error)
}

// Sender delivers text to a platform user.
type Sender interface {
	Send(ctx context.Context, recipientID, text string) error
}

// Recorder keeps a trace of every relayed event.
type Recorder interface {
	Record(ctx context.Context, e Entry) error
}

type Outcome string

const (
	OutcomeDelivered        Outcome = models.EVENT_OUTCOME_DELIVERED
	OutcomeUserUnreachable  Outcome = models.EVENT_OUTCOME_USER_UNREACHABLE
	OutcomeEchoIgnored      Outcome = models.EVENT_OUTCOME_ECHO_IGNORED
	OutcomeStatusIgnored    Outcome = models.EVENT_OUTCOME_STATUS_IGNORED
	OutcomeCompletionFailed Outcome = models.EVENT_OUTCOME_COMPLETION_FAILED
	OutcomeDeliveryFailed   Outcome = models.EVENT_OUTCOME_DELIVERY_FAILED
	OutcomeInternalError    Outcome = models.EVENT_OUTCOME_INTERNAL_ERROR
)

// Entry is what a Recorder receives once a relay has finished.
type Entry struct {
	RelayID        string
	Event          Event
	Reply          string
	Outcome        Outcome
	UpstreamStatus int
	CreatedAt      time.Time
}

const recordTimeout = 5 * time.Second

type Options struct {
	Completer Completer
	Sender    Sender
	Persona   persona.Persona
	Recorder  Recorder // optional
	Logger    zerolog.Logger
}

type Service struct {
	completer Completer
	sender    Sender
	persona   persona.Persona
	recorder  Recorder
	log       zerolog.Logger
	now       func() time.Time
}

func NewService(opts Options) *Service {
	return &Service{
		completer: opts.Completer,
		sender:    opts.Sender,
		persona:   opts.Persona,
		recorder:  opts.Recorder,
		log:       opts.Logger,
		now:       time.Now,
	}
}

// Relay runs complete-then-send for one event. The returned error is one of
// *UpstreamCompletionError, *RelayDeliveryError or an internal error. An
// unreachable recipient is not an error: it yields OutcomeUserUnreachable.
// Nothing is deduplicated; relaying the same event twice sends twice.
func (s *Service) Relay(ctx context.Context, ev Event) (Outcome, error) {
	entry := Entry{
		RelayID:   uuid.NewString(),
		Event:     ev,
		CreatedAt: s.now(),
	}
	log := s.log.With().
		Str("relay_id", entry.RelayID).
		Str("platform", ev.Platform).
		Str("sender_id", ev.SenderID).
		Logger()

	outcome, err := s.relay(ctx, log, ev, &entry)
	entry.Outcome = outcome
	metrics.RelayOutcomes.WithLabelValues(string(outcome)).Inc()
	s.record(ctx, log, entry)
	return outcome, err
}

func (s *Service) relay(ctx context.Context, log zerolog.Logger, ev Event, entry *Entry) (Outcome, error) {
	if ev.Echo {
		log.Debug().Str("message_id", ev.MessageID).Msg("echo of our own message, ignoring")
		return OutcomeEchoIgnored, nil
	}
	if ev.Status {
		log.Debug().Str("message_id", ev.MessageID).Msg("delivery status, ignoring")
		return OutcomeStatusIgnored, nil
	}

	log.Info().Int("text_len", len(ev.Text)).Msg("relaying message")

	reply, err := s.Reply(ctx, ev.Text)
	if err != nil {
		var upstream *UpstreamCompletionError
		if errors.As(err, &upstream) {
			entry.UpstreamStatus = upstream.StatusCode
			log.Error().Err(err).Int("status", upstream.StatusCode).Msg("completion provider error")
			return OutcomeCompletionFailed, err
		}
		log.Error().Err(err).Msg("completion failed")
		return OutcomeInternalError, err
	}
	entry.Reply = reply

	start := time.Now()
	err = s.sender.Send(ctx, ev.SenderID, reply)
	metrics.UpstreamDuration.WithLabelValues("send").Observe(time.Since(start).Seconds())
	if err == nil {
		log.Info().Int("reply_len", len(reply)).Msg("reply delivered")
		return OutcomeDelivered, nil
	}

	var apiErr *tools.APIError
	if errors.As(err, &apiErr) {
		entry.UpstreamStatus = apiErr.StatusCode
		ge, perr := tools.ParseGraphError(apiErr.Body)
		if perr != nil {
			log.Error().Err(perr).Int("status", apiErr.StatusCode).Msg("could not parse send error body")
		} else if ge.UserUnreachable() {
			log.Warn().
				Int64("code", ge.Code).
				Int64("subcode", ge.Subcode).
				Str("fbtrace_id", ge.FBTraceID).
				Msg("recipient is not messageable, acknowledging")
			return OutcomeUserUnreachable, nil
		}
	}

	log.Error().Err(err).Msg("send failed")
	return OutcomeDeliveryFailed, &RelayDeliveryError{Err: err}
}

// Reply asks the completion provider for an answer to text. An empty answer
// is replaced by the persona's fallback reply.
func (s *Service) Reply(ctx context.Context, text string) (string, error) {
	start := time.Now()
	reply, err := s.completer.Complete(ctx, s.persona.SystemInstruction, text)
	metrics.UpstreamDuration.WithLabelValues("completion").Observe(time.Since(start).Seconds())
	if err != nil {
		return "", completionError(err)
	}
	if strings.TrimSpace(reply) == "" {
		return s.persona.FallbackReply, nil
	}
	return reply, nil
}

func completionError(err error) error {
	var apiErr *tools.APIError
	if errors.As(err, &apiErr) {
		return &UpstreamCompletionError{StatusCode: apiErr.StatusCode, Body: apiErr.Body, Err: err}
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &UpstreamCompletionError{StatusCode: http.StatusGatewayTimeout, Body: []byte("Upstream timeout"), Err: err}
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return &UpstreamCompletionError{StatusCode: http.StatusBadGateway, Body: []byte("Bad Gateway"), Err: err}
	}
	return err
}

func (s *Service) record(ctx context.Context, log zerolog.Logger, e Entry) {
	if s.recorder == nil {
		return
	}
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()
	if err := s.recorder.Record(rctx, e); err != nil {
		log.Error().Err(err).Msg("journal record failed")
	}
}
