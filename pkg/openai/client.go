// Package openai is a minimal client for the two OpenAI endpoints the
// subtitle pipeline needs: audio transcription and chat-completion based
// batch translation.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	transcriptionURL = "https://api.openai.com/v1/audio/transcriptions"
	completionURL    = "https://api.openai.com/v1/chat/completions"

	transcriptionModel = "whisper-1"
	translationModel   = "gpt-4o-mini"
)

var ErrNoAPIKey = errors.New("openai api key is not set")

type Client struct {
	apiKey     string
	httpClient *http.Client
}

func NewClient(apiKey string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Minute}
	}

	return &Client{
		apiKey:     apiKey,
		httpClient: httpClient,
	}
}

type TranscriptionSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

type Transcription struct {
	Language string
	Segments []TranscriptionSegment
}

// Transcribe sends an audio file to the transcription endpoint and
// returns language-tagged, time-stamped segments.
func (c Client) Transcribe(ctx context.Context, audioPath string) (*Transcription, error) {
	if c.apiKey == "" {
		return nil, ErrNoAPIKey
	}

	file, err := os.Open(audioPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio file: %w", err)
	}
	defer file.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	part, err := mw.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, fmt.Errorf("failed to copy audio file: %w", err)
	}

	mw.WriteField("model", transcriptionModel)
	mw.WriteField("response_format", "verbose_json")
	mw.WriteField("timestamp_granularities[]", "segment")
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, transcriptionURL, &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("transcription request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("transcription api returned %d: %s", resp.StatusCode, respBody)
	}

	var result struct {
		Language string                 `json:"language"`
		Segments []TranscriptionSegment `json:"segments"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode transcription response: %w", err)
	}

	if result.Language == "" {
		result.Language = "unknown"
	}

	segments := make([]TranscriptionSegment, 0, len(result.Segments))
	for _, segment := range result.Segments {
		segment.Text = strings.TrimSpace(segment.Text)
		if segment.Text != "" {
			segments = append(segments, segment)
		}
	}

	return &Transcription{
		Language: result.Language,
		Segments: segments,
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// TranslateBatch translates texts from sourceLanguage into Korean,
// returning translations in input order.
func (c Client) TranslateBatch(ctx context.Context, sourceLanguage string, texts []string) ([]string, error) {
	if c.apiKey == "" {
		return nil, ErrNoAPIKey
	}

	textsJSON, err := json.Marshal(texts)
	if err != nil {
		return nil, err
	}

	systemPrompt := fmt.Sprintf(
		"You are a professional translator. Translate %s song lyrics and dialogue into natural Korean. "+
			"The input is a JSON array of strings; return a JSON array of translations in the same order, "+
			"with no text other than the JSON array.",
		sourceLanguage,
	)

	reqBody, err := json.Marshal(map[string]any{
		"model":                 translationModel,
		"temperature":           0.3,
		"max_completion_tokens": 2000,
		"messages": []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: "Translate the following texts into Korean:\n" + string(textsJSON)},
		},
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, completionURL, bytes.NewReader(reqBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("translation request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("translation api returned %d: %s", resp.StatusCode, respBody)
	}

	var result struct {
		Choices []struct {
			Message chatMessage `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode translation response: %w", err)
	}

	if len(result.Choices) == 0 {
		return nil, errors.New("translation response has no choices")
	}

	content := result.Choices[0].Message.Content
	// models occasionally wrap the array in prose or a code fence
	if start, end := strings.Index(content, "["), strings.LastIndex(content, "]"); start >= 0 && end > start {
		content = content[start : end+1]
	}

	var translations []string
	if err := json.Unmarshal([]byte(content), &translations); err != nil {
		return nil, fmt.Errorf("failed to parse translations: %w", err)
	}

	return translations, nil
}
