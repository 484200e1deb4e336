package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"
)

const (
	GRAPH_CODE_INVALID_PARAMETER = 100
	GRAPH_SUBCODE_NO_MATCHING    = 2534014 // destinatário sem janela de conversa aberta
)

// GraphOptions configures the send-message client.
type GraphOptions struct {
	BaseURL       string
	ApiVersion    string // e.g. v20.0
	AccessToken   string
	Platform      string // instagram | whatsapp
	PhoneNumberID string // whatsapp only
	Timeout       time.Duration
}

// GraphClient is a thin client for the Graph API send-message endpoints.
type GraphClient struct {
	rest          *resty.Client
	apiVersion    string
	platform      string
	phoneNumberID string
	timeout       time.Duration
}

func NewGraphClient(opts GraphOptions) *GraphClient {
	apiVersion := strings.TrimSpace(opts.ApiVersion)
	if apiVersion == "" {
		apiVersion = "v20.0"
	}
	return &GraphClient{
		rest:          newBearerClient(opts.BaseURL, opts.AccessToken),
		apiVersion:    apiVersion,
		platform:      strings.ToLower(strings.TrimSpace(opts.Platform)),
		phoneNumberID: strings.TrimSpace(opts.PhoneNumberID),
		timeout:       opts.Timeout,
	}
}

// Send delivers text to recipientID. A non-2xx answer is returned as *APIError.
func (c *GraphClient) Send(ctx context.Context, recipientID, text string) error {
	path, body := c.request(recipientID, text)

	b, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("graph encode: %w", err)
	}

	ctx, cancel := withTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.rest.R().
		SetContext(ctx).
		SetBody(b).
		Post(path)
	if err != nil {
		return fmt.Errorf("graph request: %w", err)
	}
	if !isSuccess(resp) {
		return &APIError{Provider: "graph", StatusCode: resp.StatusCode(), Body: resp.Body()}
	}
	return nil
}

func (c *GraphClient) request(recipientID, text string) (string, map[string]any) {
	if c.platform == "whatsapp" {
		return fmt.Sprintf("/%s/%s/messages", c.apiVersion, c.phoneNumberID), map[string]any{
			"messaging_product": "whatsapp",
			"to":                recipientID,
			"type":              "text",
			"text": map[string]any{
				"body": text,
			},
		}
	}

	return fmt.Sprintf("/%s/me/messages", c.apiVersion), map[string]any{
		"recipient": map[string]any{"id": recipientID},
		"message":   map[string]any{"text": text},
	}
}

// GraphError is the "error" object of a Graph API error response.
type GraphError struct {
	Code      int64
	Subcode   int64
	Type      string
	Message   string
	FBTraceID string
}

// UserUnreachable reports the "no matching user found" condition: the
// recipient has no open messaging window and the send can never succeed.
func (e GraphError) UserUnreachable() bool {
	return e.Code == GRAPH_CODE_INVALID_PARAMETER && e.Subcode == GRAPH_SUBCODE_NO_MATCHING
}

// ParseGraphError reads {"error":{"code":..,"error_subcode":..}} from body.
func ParseGraphError(body []byte) (GraphError, error) {
	if !gjson.ValidBytes(body) {
		return GraphError{}, fmt.Errorf("graph error body is not valid json")
	}
	e := gjson.GetBytes(body, "error")
	if !e.IsObject() {
		return GraphError{}, fmt.Errorf("graph error body has no error object")
	}
	return GraphError{
		Code:      e.Get("code").Int(),
		Subcode:   e.Get("error_subcode").Int(),
		Type:      e.Get("type").String(),
		Message:   e.Get("message").String(),
		FBTraceID: e.Get("fbtrace_id").String(),
	}, nil
}
