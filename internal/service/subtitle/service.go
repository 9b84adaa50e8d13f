package subtitle

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

var ErrEmptyTranscription = errors.New("transcription produced no segments")

type iAudioFetcher interface {
	Fetch(ctx context.Context, videoId string) (string, func(), error)
}

type iTranscriber interface {
	Transcribe(ctx context.Context, audioPath string) (string, []TranscribedSegment, error)
}

type iTranslator interface {
	TranslateBatch(ctx context.Context, sourceLanguage string, texts []string) ([]string, error)
}

type Config struct {
	TargetLanguages    []string
	SupportedLanguages []string
	BatchSize          int
	BatchTimeout       time.Duration
}

// entry tracks one generation per video id. Entries in the cache are
// either in progress (done open) or ready (done closed, err nil); a
// failed generation removes its entry so the next request retries.
type entry struct {
	done     chan struct{}
	segments []Segment
	err      error
}

type service struct {
	fetcher     iAudioFetcher
	transcriber iTranscriber
	translator  iTranslator
	cfg         *Config
	logger      *slog.Logger

	mu    sync.Mutex
	cache map[string]*entry

	enabledMu sync.RWMutex
	enabled   map[int]string
}

func NewService(fetcher iAudioFetcher, transcriber iTranscriber, translator iTranslator, cfg *Config, logger *slog.Logger) *service {
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 30
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = 30 * time.Second
	}
	if len(cfg.TargetLanguages) == 0 {
		cfg.TargetLanguages = []string{"korean", "ko"}
	}
	if len(cfg.SupportedLanguages) == 0 {
		cfg.SupportedLanguages = []string{"english", "en", "japanese", "ja"}
	}

	return &service{
		fetcher:     fetcher,
		transcriber: transcriber,
		translator:  translator,
		cfg:         cfg,
		logger:      logger,
		cache:       make(map[string]*entry),
		enabled:     make(map[int]string),
	}
}

// Promise resolves once a generation for the video id finishes. Every
// concurrent requester for the same id shares one underlying entry.
type Promise struct {
	e *entry
}

func (p Promise) Done() <-chan struct{} {
	return p.e.done
}

// Result must only be read after Done is closed.
func (p Promise) Result() ([]Segment, error) {
	return p.e.segments, p.e.err
}

func (p Promise) Wait(ctx context.Context) ([]Segment, error) {
	select {
	case <-p.e.done:
		return p.e.segments, p.e.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Ensure starts a generation for the video id unless one is already in
// flight or finished, and returns a promise for its outcome.
func (s *service) Ensure(videoId string) Promise {
	s.mu.Lock()
	if e, ok := s.cache[videoId]; ok {
		s.mu.Unlock()
		return Promise{e: e}
	}

	e := &entry{done: make(chan struct{})}
	s.cache[videoId] = e
	s.mu.Unlock()

	s.logger.Info("starting subtitle generation", "video_id", videoId)
	go s.run(videoId, e)

	return Promise{e: e}
}

func (s *service) run(videoId string, e *entry) {
	segments, err := s.generate(context.Background(), videoId)
	if err != nil {
		s.logger.Info("subtitle generation failed", "video_id", videoId, "error", err)
		s.mu.Lock()
		delete(s.cache, videoId)
		s.mu.Unlock()
		e.err = err
		close(e.done)
		return
	}

	s.logger.Info("subtitle generation finished", "video_id", videoId, "segments", len(segments))
	e.segments = segments
	close(e.done)
}

func (s *service) GetStatus(videoId string) Status {
	s.mu.Lock()
	e, ok := s.cache[videoId]
	s.mu.Unlock()

	if !ok {
		return Status{VideoId: videoId, Segments: []Segment{}}
	}

	select {
	case <-e.done:
		if e.err != nil {
			return Status{VideoId: videoId, Segments: []Segment{}}
		}
		status := Status{
			VideoId:   videoId,
			Available: true,
			Segments:  e.segments,
		}
		if len(e.segments) > 0 {
			status.OriginalLanguage = e.segments[0].OriginalLanguage
		}
		return status
	default:
		return Status{VideoId: videoId, Processing: true, Segments: []Segment{}}
	}
}

// Enable marks subtitles on for a station and reports whether they were
// already enabled for this exact video id.
func (s *service) Enable(stationId int, videoId string) bool {
	s.enabledMu.Lock()
	defer s.enabledMu.Unlock()

	prev, ok := s.enabled[stationId]
	s.enabled[stationId] = videoId

	return ok && prev == videoId
}

func (s *service) Disable(stationId int) {
	s.enabledMu.Lock()
	defer s.enabledMu.Unlock()

	delete(s.enabled, stationId)
}

func (s *service) IsEnabled(stationId int) bool {
	s.enabledMu.RLock()
	defer s.enabledMu.RUnlock()

	_, ok := s.enabled[stationId]
	return ok
}

// Cleanup drops the station's enable flag on station close. The media
// cache is global and stays: other stations may play the same video.
func (s *service) Cleanup(stationId int) {
	s.Disable(stationId)
}
