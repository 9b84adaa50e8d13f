package app

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/plyst/server/internal/controller"
	connInmemory "github.com/plyst/server/internal/repository/connection/inmemory"
	cacheInmemory "github.com/plyst/server/internal/repository/roomcache/inmemory"
	stationRedis "github.com/plyst/server/internal/repository/station/redis"
	userconnInmemory "github.com/plyst/server/internal/repository/userconn/inmemory"
	"github.com/plyst/server/internal/service/station"
	"github.com/plyst/server/internal/service/subtitle"
	"github.com/plyst/server/pkg/ctxlogger"
	"github.com/plyst/server/pkg/openai"
	"github.com/plyst/server/pkg/redisclient"
	"github.com/plyst/server/pkg/ytaudio"
	"github.com/plyst/server/pkg/ytsearch"
)

type AppConfig struct {
	Host            string `json:"host"`
	Port            int    `json:"port"`
	LogLevel        string `json:"log_level"`
	LogPath         string `json:"log_path"`
	MaxParticipants int    `json:"max_participants"`

	RedisHost     string `json:"redis_host"`
	RedisPort     int    `json:"redis_port"`
	RedisPassword string `json:"-"`

	OpenAIAPIKey         string `json:"-"`
	YtDlpPath            string `json:"ytdlp_path"`
	FfmpegPath           string `json:"ffmpeg_path"`
	CookiesFile          string `json:"cookies_file"`
	SubtitleBatchSize    int    `json:"subtitle_batch_size"`
	SubtitleBatchTimeout int    `json:"subtitle_batch_timeout_sec"`
}

func (cfg *AppConfig) Validate() error {
	if cfg.MaxParticipants < 1 {
		return fmt.Errorf("max participants must be greater than 0")
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return fmt.Errorf("port must be a valid tcp port")
	}
	return nil
}

// transcriberAdapter narrows the transcription client to what the
// subtitle pipeline consumes.
type transcriberAdapter struct {
	client *openai.Client
}

func (a transcriberAdapter) Transcribe(ctx context.Context, audioPath string) (string, []subtitle.TranscribedSegment, error) {
	transcription, err := a.client.Transcribe(ctx, audioPath)
	if err != nil {
		return "", nil, err
	}

	segments := make([]subtitle.TranscribedSegment, 0, len(transcription.Segments))
	for _, segment := range transcription.Segments {
		segments = append(segments, subtitle.TranscribedSegment{
			Start: segment.Start,
			End:   segment.End,
			Text:  segment.Text,
		})
	}

	return transcription.Language, segments, nil
}

func newLogger(cfg *AppConfig) (*slog.Logger, func(), error) {
	logLevel := slog.LevelInfo
	if err := logLevel.UnmarshalText([]byte(strings.ToUpper(cfg.LogLevel))); err != nil {
		return nil, nil, fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}

	var w io.Writer = os.Stdout
	cleanup := func() {}
	if cfg.LogPath != "" {
		file, err := os.OpenFile(cfg.LogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			slog.Warn("failed to open log file, falling back to stdout", "path", cfg.LogPath, "error", err)
		} else {
			w = io.MultiWriter(os.Stdout, file)
			cleanup = func() { file.Close() }
		}
	}

	h := ctxlogger.ContextHandler{
		Handler: slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level:     logLevel,
			AddSource: true,
		}),
	}

	return slog.New(&h), cleanup, nil
}

func Run(ctx context.Context, cfg *AppConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, cleanup, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	rc, err := redisclient.NewRedisClient(&redisclient.Config{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		return fmt.Errorf("failed to create redis client: %w", err)
	}
	defer rc.Close()

	stationRepo := stationRedis.NewRepo(rc, logger)
	roomCacheRepo := cacheInmemory.NewRepo(logger)
	connectionRepo := connInmemory.NewRepo(logger)
	userConnRepo := userconnInmemory.NewRepo(logger)

	openaiClient := openai.NewClient(cfg.OpenAIAPIKey, &http.Client{Timeout: 2 * time.Minute})
	audioFetcher := ytaudio.NewFetcher(&ytaudio.Config{
		YtDlpPath:   cfg.YtDlpPath,
		FfmpegPath:  cfg.FfmpegPath,
		CookiesFile: cfg.CookiesFile,
	})

	subtitleService := subtitle.NewService(
		audioFetcher,
		transcriberAdapter{client: openaiClient},
		openaiClient,
		&subtitle.Config{
			BatchSize:    cfg.SubtitleBatchSize,
			BatchTimeout: time.Duration(cfg.SubtitleBatchTimeout) * time.Second,
		},
		logger,
	)

	videoResolver := ytsearch.NewClient(&http.Client{Timeout: 10 * time.Second})
	stationService := station.NewService(
		stationRepo,
		roomCacheRepo,
		connectionRepo,
		subtitleService,
		videoResolver,
		cfg.MaxParticipants,
		logger,
	)

	ctrl := controller.NewController(stationService, connectionRepo, userConnRepo, logger)
	server := &http.Server{Addr: fmt.Sprintf("%s:%d", cfg.Host, cfg.Port), Handler: ctrl.GetMux()}

	// graceful shutdown
	serverCtx, serverStopCtx := context.WithCancel(ctx)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		<-sig

		shutdownCtx, c := context.WithTimeout(serverCtx, 30*time.Second)
		defer c()

		go func() {
			<-shutdownCtx.Done()
			if shutdownCtx.Err() == context.DeadlineExceeded {
				log.Fatal("graceful shutdown timed out.. forcing exit.")
			}
		}()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Fatal(err)
		}
		serverStopCtx()
	}()

	logger.InfoContext(serverCtx, "starting server", "address", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	<-serverCtx.Done()

	return nil
}
