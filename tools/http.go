package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/oauth2"
)

// APIError carries the raw response of an upstream call that did not return 2xx.
type APIError struct {
	Provider   string
	StatusCode int
	Body       []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s api error: status=%d body=%s", e.Provider, e.StatusCode, string(e.Body))
}

// newBearerClient returns a resty client whose transport adds
// "Authorization: Bearer <token>" to every request. The http.Client keeps no
// Timeout: oauth2.Transport cannot cancel requests that way, so callers bound
// each call with withTimeout instead.
func newBearerClient(baseURL, token string) *resty.Client {
	hc := oauth2.NewClient(context.Background(), oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: strings.TrimSpace(token),
	}))

	return resty.NewWithClient(hc).
		SetBaseURL(strings.TrimRight(strings.TrimSpace(baseURL), "/")).
		SetHeader("Content-Type", "application/json")
}

// withTimeout bounds one upstream call. A zero timeout leaves ctx as is.
func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

func isSuccess(resp *resty.Response) bool {
	return resp.StatusCode() >= 200 && resp.StatusCode() < 300
}
