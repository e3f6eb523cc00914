package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const lrclibBaseURL = "https://lrclib.net/api/get"

// LrclibProvider fetches lyrics from LRCLIB, preferring synced lyrics over
// plain text.
type LrclibProvider struct {
	httpClient *http.Client
	userAgent  string
	baseURL    string
}

// NewLrclibProvider creates an LRCLIB lyrics provider.
func NewLrclibProvider() *LrclibProvider {
	return &LrclibProvider{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		userAgent: "melisma",
		baseURL:   lrclibBaseURL,
	}
}

func (p *LrclibProvider) Name() string {
	return "lrclib"
}

type lrclibResponse struct {
	SyncedLyrics string `json:"syncedLyrics"`
	PlainLyrics  string `json:"plainLyrics"`
	Instrumental bool   `json:"instrumental"`
}

func (p *LrclibProvider) Lookup(ctx context.Context, artist, title string) (string, Status) {
	query := url.Values{}
	query.Set("artist_name", artist)
	query.Set("track_name", title)

	body, status := fetch(ctx, p.httpClient, p.userAgent, fmt.Sprintf("%s?%s", p.baseURL, query.Encode()))
	if status != StatusSuccess {
		return "", status
	}

	var response lrclibResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return "", StatusTemporaryError
	}
	if response.Instrumental {
		return "", StatusNotFound
	}
	if response.SyncedLyrics != "" {
		return response.SyncedLyrics, StatusSuccess
	}
	if response.PlainLyrics != "" {
		return response.PlainLyrics, StatusSuccess
	}
	return "", StatusNotFound
}

// fetch performs a GET and maps the outcome onto provider status codes. A
// 404 is an authoritative miss; client errors indicate the provider will
// never work this session.
func fetch(ctx context.Context, client *http.Client, userAgent, requestURL string) ([]byte, Status) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, StatusPermanentError
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, StatusTemporaryError
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound:
		return nil, StatusNotFound
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return nil, StatusTemporaryError
	default:
		return nil, StatusPermanentError
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, StatusTemporaryError
	}
	return body, StatusSuccess
}
