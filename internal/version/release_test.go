package version

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient_Options(t *testing.T) {
	t.Parallel()
	custom := &http.Client{}
	c := NewClient(WithBaseURL("https://example.test/"), WithHTTPClient(custom))

	assert.Equal(t, "https://example.test", c.baseURL)
	assert.Same(t, custom, c.httpClient)
	assert.True(t, strings.HasPrefix(c.userAgent, "mns/"))
}

func TestLatestRelease(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/mrz1836/mns/releases/latest", r.URL.Path)
		assert.Equal(t, "application/vnd.github.v3+json", r.Header.Get("Accept"))
		_, _ = w.Write([]byte(`{"tag_name":"v9.9.9","name":"big","html_url":"https://example.test/r"}`))
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	release, err := c.LatestRelease(context.Background(), DefaultOwner, DefaultRepo)
	require.NoError(t, err)
	assert.Equal(t, "v9.9.9", release.TagName)

	check, err := c.CheckLatest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "v9.9.9", check.Latest)
	assert.Equal(t, "https://example.test/r", check.URL)
	assert.True(t, check.IsNewer)
}

func TestLatestRelease_Errors(t *testing.T) {
	t.Parallel()

	t.Run("invalid owner", func(t *testing.T) {
		t.Parallel()
		_, err := NewClient().LatestRelease(context.Background(), "", "mns")
		require.ErrorIs(t, err, ErrInvalidOwnerRepo)
	})

	t.Run("bad status", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(strings.Repeat("x", 4096)))
		}))
		defer srv.Close()

		_, err := NewClient(WithBaseURL(srv.URL)).LatestRelease(context.Background(), "a", "b")
		require.ErrorIs(t, err, ErrReleaseLookupFailed)
		assert.Less(t, len(err.Error()), 2048)
	})

	t.Run("bad json", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{`))
		}))
		defer srv.Close()

		_, err := NewClient(WithBaseURL(srv.URL)).LatestRelease(context.Background(), "a", "b")
		require.Error(t, err)
	})

	t.Run("canceled", func(t *testing.T) {
		t.Parallel()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := NewClient(WithBaseURL("http://127.0.0.1:1")).LatestRelease(ctx, "a", "b")
		require.Error(t, err)
	})
}
