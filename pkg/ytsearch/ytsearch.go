package ytsearch

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
)

var ErrVideoNotFound = errors.New("video not found")

var videoIdRe = regexp.MustCompile(`"videoRenderer":\{"videoId":"([^"]+)"`)

type Client struct {
	httpClient *http.Client
}

func NewClient(httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Client{httpClient: httpClient}
}

// FindVideoId resolves a video id for a track described by title and
// artist by scraping the first result of a "<artist> <title> MV" search.
func (c Client) FindVideoId(title, artist string) (string, error) {
	query := url.QueryEscape(artist + " " + title + " MV")
	resp, err := c.httpClient.Get("https://www.youtube.com/results?search_query=" + query)
	if err != nil {
		return "", fmt.Errorf("failed to fetch search results: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read search results: %w", err)
	}

	match := videoIdRe.FindSubmatch(body)
	if match == nil {
		return "", ErrVideoNotFound
	}

	return string(match[1]), nil
}

// WatchURL returns the canonical watch page url for a video id.
func WatchURL(videoId string) string {
	return "https://www.youtube.com/watch?v=" + strings.TrimSpace(videoId)
}
