package subtitle

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"
)

// generate runs the full fetch -> transcribe -> translate pipeline for
// one video id. It never runs on a connection-handling goroutine.
func (s *service) generate(ctx context.Context, videoId string) ([]Segment, error) {
	audioPath, cleanup, err := s.fetcher.Fetch(ctx, videoId)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch audio: %w", err)
	}
	defer cleanup()

	language, transcribed, err := s.transcriber.Transcribe(ctx, audioPath)
	if err != nil {
		return nil, fmt.Errorf("failed to transcribe audio: %w", err)
	}
	if len(transcribed) == 0 {
		return nil, ErrEmptyTranscription
	}

	segments := make([]Segment, 0, len(transcribed))
	for _, t := range transcribed {
		segments = append(segments, Segment{
			StartTime:        t.Start,
			EndTime:          t.End,
			Text:             t.Text,
			OriginalLanguage: language,
		})
	}

	return s.translate(ctx, language, segments), nil
}

// translate fills TranslatedText for every segment. Sources already in a
// target language, or outside the supported set, pass through with the
// original text; translation failures fall back per batch the same way.
func (s *service) translate(ctx context.Context, language string, segments []Segment) []Segment {
	lang := strings.ToLower(language)

	if slices.Contains(s.cfg.TargetLanguages, lang) || !slices.Contains(s.cfg.SupportedLanguages, lang) {
		if !slices.Contains(s.cfg.TargetLanguages, lang) {
			s.logger.Info("unsupported source language, keeping original text", "language", language)
		}
		for i := range segments {
			segments[i].TranslatedText = segments[i].Text
		}
		return segments
	}

	batchSize := s.cfg.BatchSize
	batchCount := (len(segments) + batchSize - 1) / batchSize
	translations := make([][]string, batchCount)

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < batchCount; i++ {
		i := i
		start := i * batchSize
		end := min(start+batchSize, len(segments))
		batch := segments[start:end]

		g.Go(func() error {
			texts := make([]string, 0, len(batch))
			for _, segment := range batch {
				texts = append(texts, segment.Text)
			}

			batchCtx, cancel := context.WithTimeout(ctx, s.cfg.BatchTimeout)
			defer cancel()

			translated, err := s.translator.TranslateBatch(batchCtx, lang, texts)
			if err != nil {
				s.logger.Info("translation batch failed, keeping original text", "error", err)
				return nil
			}

			translations[i] = translated
			return nil
		})
	}
	g.Wait()

	for i := 0; i < batchCount; i++ {
		start := i * batchSize
		end := min(start+batchSize, len(segments))
		for j := start; j < end; j++ {
			if batch := translations[i]; batch != nil && j-start < len(batch) {
				segments[j].TranslatedText = batch[j-start]
			} else {
				segments[j].TranslatedText = segments[j].Text
			}
		}
	}

	return segments
}
