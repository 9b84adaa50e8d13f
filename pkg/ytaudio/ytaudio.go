// Package ytaudio downloads the audio track of a video with yt-dlp and
// downsamples it with ffmpeg so it stays under the transcription API's
// payload limit.
package ytaudio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/plyst/server/pkg/ytsearch"
)

var ErrAudioNotFound = errors.New("audio file not found after download")

type Config struct {
	YtDlpPath   string
	FfmpegPath  string
	CookiesFile string
	MaxFileSize string // yt-dlp filesize filter, e.g. "25M"
}

type Fetcher struct {
	cfg *Config
}

func NewFetcher(cfg *Config) *Fetcher {
	if cfg.YtDlpPath == "" {
		cfg.YtDlpPath = "yt-dlp"
	}
	if cfg.FfmpegPath == "" {
		cfg.FfmpegPath = "ffmpeg"
	}
	if cfg.MaxFileSize == "" {
		cfg.MaxFileSize = "25M"
	}

	return &Fetcher{cfg: cfg}
}

// Fetch downloads and compresses the audio for a video id. The returned
// cleanup func removes the temp directory and must be called on every
// path once the file is no longer needed.
func (f Fetcher) Fetch(ctx context.Context, videoId string) (string, func(), error) {
	tempDir, err := os.MkdirTemp("", "plyst_audio_")
	if err != nil {
		return "", nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	cleanup := func() { os.RemoveAll(tempDir) }

	audioFile, err := f.download(ctx, videoId, tempDir)
	if err != nil {
		cleanup()
		return "", nil, err
	}

	// compression is best-effort; on failure transcribe the original
	if compressed, err := f.compress(ctx, audioFile, tempDir, videoId); err == nil {
		os.Remove(audioFile)
		audioFile = compressed
	}

	return audioFile, cleanup, nil
}

func (f Fetcher) download(ctx context.Context, videoId, tempDir string) (string, error) {
	size := f.cfg.MaxFileSize
	format := fmt.Sprintf("ba[ext=m4a][filesize<%[1]s]/ba[ext=webm][filesize<%[1]s]/ba[filesize<%[1]s]/ba", size)

	args := []string{
		"-f", format,
		"-o", filepath.Join(tempDir, videoId+".%(ext)s"),
		"--no-playlist",
		"--concurrent-fragments", "8",
		"--no-warnings",
		"--no-part",
	}
	if f.cfg.CookiesFile != "" {
		if _, err := os.Stat(f.cfg.CookiesFile); err == nil {
			args = append(args, "--cookies", f.cfg.CookiesFile)
		}
	}
	args = append(args, ytsearch.WatchURL(videoId))

	cmd := exec.CommandContext(ctx, f.cfg.YtDlpPath, args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("yt-dlp failed: %w: %s", err, strings.TrimSpace(string(out)))
	}

	entries, err := os.ReadDir(tempDir)
	if err != nil {
		return "", fmt.Errorf("failed to list temp dir: %w", err)
	}

	for _, entry := range entries {
		name := strings.ToLower(entry.Name())
		switch filepath.Ext(name) {
		case ".mp3", ".m4a", ".webm", ".opus":
			return filepath.Join(tempDir, entry.Name()), nil
		}
	}

	return "", ErrAudioNotFound
}

// compress downsamples to 16kHz mono 32kbps mp3, which is enough for
// speech transcription.
func (f Fetcher) compress(ctx context.Context, inputFile, tempDir, videoId string) (string, error) {
	outputFile := filepath.Join(tempDir, videoId+"_compressed.mp3")

	cmd := exec.CommandContext(ctx, f.cfg.FfmpegPath,
		"-i", inputFile,
		"-ar", "16000",
		"-ac", "1",
		"-b:a", "32k",
		"-y",
		outputFile,
	)
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("ffmpeg failed: %w", err)
	}

	if _, err := os.Stat(outputFile); err != nil {
		return "", err
	}

	return outputFile, nil
}
