package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	defaultAPIURL = "http://localhost:8000"
	userAgent     = "jobswipe/jobswipe-cli"
	// Default timeout for a single round trip.
	defaultTimeout = 10 * time.Second
)

// TokenSource supplies the bearer token for authenticated requests and
// renews it when the backend rejects it.
type TokenSource interface {
	AccessToken() string
	// Refresh returns a usable access token. stale is the token that was just
	// rejected, so implementations can skip the network call when another
	// caller already replaced it.
	Refresh(ctx context.Context, stale string) (string, error)
}

type Client struct {
	logger     *zap.Logger
	HTTPClient *http.Client
	UserAgent  string
	APIURL     string
	// Auth is consulted for every authenticated request. A nil Auth sends
	// requests without the Authorization header.
	Auth TokenSource
}

func New(logger *zap.Logger, apiURL string) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}

	apiURL = strings.TrimRight(strings.TrimSpace(apiURL), "/")
	if apiURL == "" {
		apiURL = defaultAPIURL
	}

	return &Client{
		APIURL: apiURL,
		HTTPClient: &http.Client{
			Timeout: defaultTimeout,
		},
		logger:    logger,
		UserAgent: userAgent,
	}
}

func (c *Client) accessToken() string {
	if c.Auth == nil {
		return ""
	}
	return c.Auth.AccessToken()
}
