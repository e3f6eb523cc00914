package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

const deezerSearchURL = "https://api.deezer.com/search/artist"

// DeezerProvider fetches artist portraits from the Deezer search API.
type DeezerProvider struct {
	httpClient *http.Client
	userAgent  string
	baseURL    string
}

// NewDeezerProvider creates a Deezer artist image provider.
func NewDeezerProvider() *DeezerProvider {
	return &DeezerProvider{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		userAgent: "melisma",
		baseURL:   deezerSearchURL,
	}
}

func (p *DeezerProvider) Name() string {
	return "deezer"
}

type deezerSearchResponse struct {
	Data []struct {
		Name       string `json:"name"`
		PictureXL  string `json:"picture_xl"`
		PictureBig string `json:"picture_big"`
	} `json:"data"`
}

func (p *DeezerProvider) Lookup(ctx context.Context, artistName string) ([]byte, Status) {
	query := url.Values{}
	query.Set("q", artistName)
	query.Set("limit", "1")

	body, status := fetch(ctx, p.httpClient, p.userAgent, fmt.Sprintf("%s?%s", p.baseURL, query.Encode()))
	if status != StatusSuccess {
		return nil, status
	}

	var response deezerSearchResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, StatusTemporaryError
	}
	if len(response.Data) == 0 {
		return nil, StatusNotFound
	}

	imageURL := response.Data[0].PictureXL
	if imageURL == "" {
		imageURL = response.Data[0].PictureBig
	}
	if imageURL == "" {
		return nil, StatusNotFound
	}

	image, status := fetch(ctx, p.httpClient, p.userAgent, imageURL)
	if status != StatusSuccess {
		return nil, status
	}
	return image, StatusSuccess
}
