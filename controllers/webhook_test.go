package controllers

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"olafo/persona"
	"olafo/relay"
	"olafo/tools"
)

const (
	testVerifyToken = "verify-me"
	testFallback    = "no pude generar una respuesta"
)

type stubCompleter struct {
	reply string
	err   error
	calls int
}

func (s *stubCompleter) Complete(ctx context.Context, instruction, text string) (string, error) {
	s.calls++
	return s.reply, s.err
}

type stubSender struct {
	err   error
	to    []string
	texts []string
}

func (s *stubSender) Send(ctx context.Context, recipientID, text string) error {
	s.to = append(s.to, recipientID)
	s.texts = append(s.texts, text)
	return s.err
}

func newService(c relay.Completer, s relay.Sender) *relay.Service {
	return relay.NewService(relay.Options{
		Completer: c,
		Sender:    s,
		Persona:   persona.Persona{SystemInstruction: "instr", FallbackReply: testFallback},
		Logger:    zerolog.Nop(),
	})
}

func webhookEngine(svc *relay.Service, appSecret string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	w := NewWebhookController(testVerifyToken, appSecret, svc, zerolog.Nop())
	r.GET("/webhook", w.Verify)
	r.POST("/webhook", w.Update)
	r.NoRoute(NotFound)
	return r
}

func do(r http.Handler, method, target, body string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	for k, v := range header {
		req.Header[k] = v
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func verifyURL(mode, token, challenge string) string {
	q := url.Values{}
	if mode != "" {
		q.Set("hub.mode", mode)
	}
	if token != "" {
		q.Set("hub.verify_token", token)
	}
	if challenge != "" {
		q.Set("hub.challenge", challenge)
	}
	return "/webhook?" + q.Encode()
}

func TestVerifyHandshake(t *testing.T) {
	r := webhookEngine(newService(&stubCompleter{}, &stubSender{}), "")

	tests := []struct {
		name     string
		target   string
		wantCode int
		wantBody string
	}{
		{
			name:     "matching token echoes challenge",
			target:   verifyURL("subscribe", testVerifyToken, "1158201444 & más"),
			wantCode: http.StatusOK,
			wantBody: "1158201444 & más",
		},
		{
			name:     "matching token without challenge",
			target:   verifyURL("subscribe", testVerifyToken, ""),
			wantCode: http.StatusOK,
			wantBody: "",
		},
		{
			name:     "wrong token",
			target:   verifyURL("subscribe", "nope", "123"),
			wantCode: http.StatusForbidden,
			wantBody: BodyForbidden,
		},
		{
			name:     "missing token",
			target:   verifyURL("subscribe", "", "123"),
			wantCode: http.StatusForbidden,
			wantBody: BodyForbidden,
		},
		{
			name:     "wrong mode",
			target:   verifyURL("unsubscribe", testVerifyToken, "123"),
			wantCode: http.StatusForbidden,
			wantBody: BodyForbidden,
		},
		{
			name:     "no handshake params",
			target:   "/webhook",
			wantCode: http.StatusOK,
			wantBody: webhookInstructions,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(r, http.MethodGet, tt.target, "", nil)
			if w.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", w.Code, tt.wantCode)
			}
			if w.Body.String() != tt.wantBody {
				t.Errorf("body = %q, want %q", w.Body.String(), tt.wantBody)
			}
		})
	}
}

const validEvent = `{"object":"instagram","entry":[{"id":"p1","time":1,"messaging":[{"sender":{"id":"u1"},"recipient":{"id":"p1"},"timestamp":1700000000000,"message":{"mid":"m1","text":"hola"}}]}]}`

func TestUpdateDelivered(t *testing.T) {
	c := &stubCompleter{reply: "¡Hola!"}
	s := &stubSender{}
	r := webhookEngine(newService(c, s), "")

	w := do(r, http.MethodPost, "/webhook", validEvent, nil)
	if w.Code != http.StatusOK || w.Body.String() != BodyOK {
		t.Fatalf("got %d %q", w.Code, w.Body.String())
	}
	if len(s.to) != 1 || s.to[0] != "u1" || s.texts[0] != "¡Hola!" {
		t.Errorf("sent to=%v texts=%v", s.to, s.texts)
	}
}

func TestUpdateMalformedMakesNoCalls(t *testing.T) {
	bodies := map[string]string{
		"not json":        `{"entry":`,
		"missing message": `{"entry":[{"messaging":[{"sender":{"id":"u1"}}]}]}`,
		"missing text":    `{"entry":[{"messaging":[{"sender":{"id":"u1"},"message":{}}]}]}`,
		"missing sender":  `{"entry":[{"messaging":[{"message":{"text":"hola"}}]}]}`,
	}

	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			c := &stubCompleter{reply: "x"}
			s := &stubSender{}
			r := webhookEngine(newService(c, s), "")

			w := do(r, http.MethodPost, "/webhook", body, nil)
			if w.Code != http.StatusBadRequest || w.Body.String() != BodyInvalidPayload {
				t.Errorf("got %d %q", w.Code, w.Body.String())
			}
			if c.calls != 0 || len(s.to) != 0 {
				t.Error("no outbound call may be made for a malformed payload")
			}
		})
	}
}

func TestUpdateCompletionErrorPassthrough(t *testing.T) {
	const upstreamBody = `{"error":"rate limited"}`
	c := &stubCompleter{err: &tools.APIError{Provider: "openai", StatusCode: http.StatusTooManyRequests, Body: []byte(upstreamBody)}}
	s := &stubSender{}
	r := webhookEngine(newService(c, s), "")

	w := do(r, http.MethodPost, "/webhook", validEvent, nil)
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d", w.Code)
	}
	if w.Body.String() != upstreamBody {
		t.Errorf("body = %q, want byte-for-byte %q", w.Body.String(), upstreamBody)
	}
	if len(s.to) != 0 {
		t.Error("send must not be attempted")
	}
}

func TestUpdateNoChoiceSendsFallback(t *testing.T) {
	c := &stubCompleter{reply: ""}
	s := &stubSender{}
	r := webhookEngine(newService(c, s), "")

	w := do(r, http.MethodPost, "/webhook", validEvent, nil)
	if w.Code != http.StatusOK || w.Body.String() != BodyOK {
		t.Fatalf("got %d %q", w.Code, w.Body.String())
	}
	if len(s.texts) != 1 || s.texts[0] != testFallback {
		t.Errorf("texts = %v, want fallback", s.texts)
	}
}

func TestUpdateSendErrors(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode int
		wantBody string
	}{
		{
			name:     "user not reachable",
			body:     `{"error":{"code":100,"error_subcode":2534014}}`,
			wantCode: http.StatusOK,
			wantBody: BodyUserNotMessageable,
		},
		{
			name:     "other subcode",
			body:     `{"error":{"code":100,"error_subcode":1}}`,
			wantCode: http.StatusInternalServerError,
			wantBody: BodyFailedToSend,
		},
		{
			name:     "other code",
			body:     `{"error":{"code":190,"error_subcode":2534014}}`,
			wantCode: http.StatusInternalServerError,
			wantBody: BodyFailedToSend,
		},
		{
			name:     "unparseable error body",
			body:     `upstream exploded`,
			wantCode: http.StatusInternalServerError,
			wantBody: BodyFailedToSend,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &stubSender{err: &tools.APIError{Provider: "graph", StatusCode: http.StatusBadRequest, Body: []byte(tt.body)}}
			r := webhookEngine(newService(&stubCompleter{reply: "hola"}, s), "")

			w := do(r, http.MethodPost, "/webhook", validEvent, nil)
			if w.Code != tt.wantCode || w.Body.String() != tt.wantBody {
				t.Errorf("got %d %q, want %d %q", w.Code, w.Body.String(), tt.wantCode, tt.wantBody)
			}
		})
	}
}

func TestUpdateInternalError(t *testing.T) {
	c := &stubCompleter{err: context.Canceled}
	r := webhookEngine(newService(c, &stubSender{}), "")

	w := do(r, http.MethodPost, "/webhook", validEvent, nil)
	if w.Code != http.StatusInternalServerError || w.Body.String() != BodyInternalError {
		t.Errorf("got %d %q", w.Code, w.Body.String())
	}
}

func TestUpdateReplayIsNotDeduplicated(t *testing.T) {
	s := &stubSender{}
	r := webhookEngine(newService(&stubCompleter{reply: "hola"}, s), "")

	for i := 0; i < 2; i++ {
		if w := do(r, http.MethodPost, "/webhook", validEvent, nil); w.Code != http.StatusOK {
			t.Fatalf("attempt %d: status %d", i+1, w.Code)
		}
	}
	if len(s.to) != 2 {
		t.Errorf("sends = %d, want 2", len(s.to))
	}
}

func TestUpdateEchoIsAcknowledged(t *testing.T) {
	c := &stubCompleter{reply: "x"}
	s := &stubSender{}
	r := webhookEngine(newService(c, s), "")

	echo := `{"object":"instagram","entry":[{"messaging":[{"sender":{"id":"p1"},"recipient":{"id":"u1"},"message":{"mid":"m9","text":"respuesta","is_echo":true}}]}]}`
	w := do(r, http.MethodPost, "/webhook", echo, nil)
	if w.Code != http.StatusOK || w.Body.String() != BodyOK {
		t.Fatalf("got %d %q", w.Code, w.Body.String())
	}
	if c.calls != 0 || len(s.to) != 0 {
		t.Error("echo must not reach the providers")
	}
}

func TestUpdateWhatsAppStatusIsAcknowledged(t *testing.T) {
	c := &stubCompleter{reply: "x"}
	s := &stubSender{}
	r := webhookEngine(newService(c, s), "")

	status := `{"object":"whatsapp_business_account","entry":[{"id":"w1","changes":[{"field":"messages","value":{"messaging_product":"whatsapp","metadata":{"phone_number_id":"555"},"statuses":[{"id":"wamid.X","status":"read","timestamp":"1700000000","recipient_id":"573120000000"}]}}]}]}`
	w := do(r, http.MethodPost, "/webhook", status, nil)
	if w.Code != http.StatusOK || w.Body.String() != BodyOK {
		t.Fatalf("got %d %q", w.Code, w.Body.String())
	}
	if c.calls != 0 || len(s.to) != 0 {
		t.Error("status receipts must not reach the providers")
	}
}

func sign(body, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(body))
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func TestUpdateSignature(t *testing.T) {
	const secret = "app-secret"

	tests := []struct {
		name     string
		header   string
		wantCode int
		wantSent int
	}{
		{name: "valid", header: sign(validEvent, secret), wantCode: http.StatusOK, wantSent: 1},
		{name: "missing", header: "", wantCode: http.StatusForbidden},
		{name: "wrong secret", header: sign(validEvent, "other"), wantCode: http.StatusForbidden},
		{name: "bad format", header: "sha1=abc", wantCode: http.StatusForbidden},
		{name: "bad hex", header: "sha256=zz", wantCode: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &stubSender{}
			r := webhookEngine(newService(&stubCompleter{reply: "hola"}, s), secret)

			h := http.Header{}
			if tt.header != "" {
				h.Set(signatureHeader, tt.header)
			}
			w := do(r, http.MethodPost, "/webhook", validEvent, h)
			if w.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", w.Code, tt.wantCode)
			}
			if len(s.to) != tt.wantSent {
				t.Errorf("sends = %d, want %d", len(s.to), tt.wantSent)
			}
		})
	}
}

func TestUnsupportedMethodIsNotFound(t *testing.T) {
	r := webhookEngine(newService(&stubCompleter{}, &stubSender{}), "")

	for _, m := range []string{http.MethodPut, http.MethodDelete, http.MethodPatch} {
		w := do(r, m, "/webhook", "", nil)
		if w.Code != http.StatusNotFound || w.Body.String() != BodyNotFound {
			t.Errorf("%s: got %d %q", m, w.Code, w.Body.String())
		}
	}
}

func TestRedactHeaders(t *testing.T) {
	h := http.Header{}
	h.Set("Authorization", "Bearer secret")
	h.Set("X-Hub-Signature-256", "sha256=abc")
	h.Set("Content-Type", "application/json")

	out := redactHeaders(h)
	if out["Authorization"] != "[redacted]" || out["X-Hub-Signature-256"] != "[redacted]" {
		t.Errorf("sensitive headers leaked: %v", out)
	}
	if out["Content-Type"] != "application/json" {
		t.Errorf("content-type = %q", out["Content-Type"])
	}
}
