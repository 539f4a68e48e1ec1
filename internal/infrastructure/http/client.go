package httpinfra

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultUserAgent identifies the CLI to remote hosts
const DefaultUserAgent = "mini-wiki-plugin-manager/1.0"

// ClientConfig configures the download client
type ClientConfig struct {
	UserAgent string
	// APIBaseURL is the hosted-repository API root, e.g. https://api.github.com
	APIBaseURL string
	// Token is sent as a bearer token to APIBaseURL and the archive host when set
	Token string
	// TokenHosts limits which hosts receive Token
	TokenHosts []string
	// Timeout of zero leaves the transport default in place
	Timeout time.Duration
}

// Client downloads plugin archives and queries repository metadata
type Client struct {
	apiBaseURL string
	client     *http.Client
	log        *logrus.Logger
}

// NewClient creates a new download client
func NewClient(cfg ClientConfig, log *logrus.Logger) *Client {
	if log == nil {
		log = logrus.New()
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}

	return &Client{
		apiBaseURL: strings.TrimRight(cfg.APIBaseURL, "/"),
		client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: NewRoundTripperWithAuth(http.DefaultTransport, cfg.UserAgent, cfg.Token, cfg.TokenHosts),
		},
		log: log,
	}
}

// Download streams the body of rawURL into w. Any non-2xx status is an error.
func (c *Client) Download(ctx context.Context, rawURL string, w io.Writer) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("download failed: status %d", resp.StatusCode)
	}

	written, err := io.Copy(w, resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	c.log.WithFields(logrus.Fields{"url": redact(rawURL), "bytes": written}).Debug("Downloaded archive")
	return nil
}

// DefaultBranch asks the repository API for the default branch of owner/name
func (c *Client) DefaultBranch(ctx context.Context, owner, name string) (string, error) {
	if c.apiBaseURL == "" {
		return "", fmt.Errorf("repository API is not configured")
	}

	endpoint := fmt.Sprintf("%s/repos/%s/%s", c.apiBaseURL, url.PathEscape(owner), url.PathEscape(name))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("repository lookup failed: status %d", resp.StatusCode)
	}

	var repo struct {
		DefaultBranch string `json:"default_branch"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&repo); err != nil {
		return "", fmt.Errorf("failed to decode repository response: %w", err)
	}
	if repo.DefaultBranch == "" {
		return "", fmt.Errorf("repository %s/%s reports no default branch", owner, name)
	}
	return repo.DefaultBranch, nil
}

// redact drops credentials and query strings from a URL before logging
func redact(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	u.User = nil
	u.RawQuery = ""
	return u.String()
}
