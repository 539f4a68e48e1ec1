package httpinfra

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, cfg ClientConfig) *Client {
	t.Helper()
	logger, _ := test.NewNullLogger()
	return NewClient(cfg, logger)
}

func TestClient_DownloadSendsUserAgent(t *testing.T) {
	var gotAgent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAgent = r.Header.Get("User-Agent")
		w.Write([]byte("archive-bytes"))
	}))
	defer server.Close()

	client := newTestClient(t, ClientConfig{})
	var buf bytes.Buffer

	require.NoError(t, client.Download(context.Background(), server.URL+"/p.zip", &buf))

	assert.Equal(t, "archive-bytes", buf.String())
	assert.Equal(t, DefaultUserAgent, gotAgent)
}

func TestClient_DownloadCustomUserAgent(t *testing.T) {
	var gotAgent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAgent = r.Header.Get("User-Agent")
	}))
	defer server.Close()

	client := newTestClient(t, ClientConfig{UserAgent: "docs-ci/3"})

	require.NoError(t, client.Download(context.Background(), server.URL, &bytes.Buffer{}))
	assert.Equal(t, "docs-ci/3", gotAgent)
}

func TestClient_DownloadNon2xxFails(t *testing.T) {
	for _, status := range []int{http.StatusNotFound, http.StatusInternalServerError, http.StatusMovedPermanently} {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if status == http.StatusMovedPermanently {
				w.WriteHeader(status)
				return
			}
			http.Error(w, "nope", status)
		}))

		client := newTestClient(t, ClientConfig{})
		err := client.Download(context.Background(), server.URL, &bytes.Buffer{})
		server.Close()

		require.Error(t, err, "status %d", status)
		assert.Contains(t, err.Error(), strconv.Itoa(status))
	}
}

func TestClient_DownloadHonorsContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := newTestClient(t, ClientConfig{})
	assert.Error(t, client.Download(ctx, server.URL, &bytes.Buffer{}))
}

func TestClient_DefaultBranch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/repos/acme/tools":
			assert.Equal(t, "application/vnd.github+json", r.Header.Get("Accept"))
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"name":"tools","default_branch":"trunk"}`))
		case "/repos/acme/empty":
			w.Write([]byte(`{"name":"empty"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := newTestClient(t, ClientConfig{APIBaseURL: server.URL + "/"})
	ctx := context.Background()

	branch, err := client.DefaultBranch(ctx, "acme", "tools")
	require.NoError(t, err)
	assert.Equal(t, "trunk", branch)

	_, err = client.DefaultBranch(ctx, "acme", "empty")
	assert.Error(t, err)

	_, err = client.DefaultBranch(ctx, "acme", "missing")
	assert.Error(t, err)
}

func TestClient_DefaultBranchWithoutAPI(t *testing.T) {
	client := newTestClient(t, ClientConfig{})
	_, err := client.DefaultBranch(context.Background(), "acme", "tools")
	assert.Error(t, err)
}

func TestRoundTripperWithAuth_TokenOnlyForTrustedHosts(t *testing.T) {
	var gotAuth []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = append(gotAuth, r.Header.Get("Authorization"))
	}))
	defer server.Close()

	serverURL, err := url.Parse(server.URL)
	require.NoError(t, err)

	trusted := newTestClient(t, ClientConfig{Token: "s3cret", TokenHosts: []string{serverURL.Hostname()}})
	untrusted := newTestClient(t, ClientConfig{Token: "s3cret", TokenHosts: []string{"api.github.com"}})

	require.NoError(t, trusted.Download(context.Background(), server.URL, &bytes.Buffer{}))
	require.NoError(t, untrusted.Download(context.Background(), server.URL, &bytes.Buffer{}))

	assert.Equal(t, []string{"Bearer s3cret", ""}, gotAuth)
}

func TestRedact(t *testing.T) {
	assert.Equal(t, "https://example.com/p.zip", redact("https://user:pw@example.com/p.zip?sig=abc"))
	assert.Equal(t, "://bad", redact("://bad"))
}
