package firecrawl

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScrape_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/scrape", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req ScrapeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "https://tastytacos.example.com", req.URL)
		assert.Equal(t, []string{"markdown"}, req.Formats)

		json.NewEncoder(w).Encode(ScrapeResponse{ //nolint:errcheck
			Success: true,
			Data: PageData{
				URL:        req.URL,
				Markdown:   "# Tasty Tacos\n\nMenu...",
				Title:      "Tasty Tacos",
				StatusCode: 200,
			},
		})
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL))
	resp, err := c.Scrape(context.Background(), ScrapeRequest{URL: "https://tastytacos.example.com"})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Contains(t, resp.Data.Markdown, "Tasty Tacos")
}

func TestScrape_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":"rate limited"}`)) //nolint:errcheck
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL))
	_, err := c.Scrape(context.Background(), ScrapeRequest{URL: "https://x.example.com"})
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
	assert.Contains(t, apiErr.Body, "rate limited")
}

func TestScrape_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewClient("test-key", WithBaseURL(srv.URL))
	_, err := c.Scrape(ctx, ScrapeRequest{URL: "https://x.example.com"})
	require.Error(t, err)
}
