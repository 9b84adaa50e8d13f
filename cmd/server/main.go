package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/plyst/server/internal/app"
)

type configVar[T any] struct {
	envKey       string
	flagKey      string
	defaultValue T
}

var (
	host = configVar[string]{
		envKey:       "SERVER_HOST",
		flagKey:      "host",
		defaultValue: "0.0.0.0",
	}
	port = configVar[int]{
		envKey:       "SERVER_PORT",
		flagKey:      "port",
		defaultValue: 8080,
	}
	logLevel = configVar[string]{
		envKey:       "SERVER_LOG_LEVEL",
		flagKey:      "log-level",
		defaultValue: "INFO",
	}
	logPath = configVar[string]{
		envKey:       "SERVER_LOG_PATH",
		flagKey:      "log-path",
		defaultValue: "",
	}
	maxParticipants = configVar[int]{
		envKey:       "SERVER_MAX_PARTICIPANTS",
		flagKey:      "max-participants",
		defaultValue: 10,
	}
	redisHost = configVar[string]{
		envKey:       "REDIS_HOST",
		flagKey:      "redis-host",
		defaultValue: "localhost",
	}
	redisPort = configVar[int]{
		envKey:       "REDIS_PORT",
		flagKey:      "redis-port",
		defaultValue: 6379,
	}
	redisPassword = configVar[string]{
		envKey:       "REDIS_PASSWORD",
		flagKey:      "redis-password",
		defaultValue: "",
	}
	openaiAPIKey = configVar[string]{
		envKey:       "OPENAI_API_KEY",
		flagKey:      "openai-api-key",
		defaultValue: "",
	}
	ytDlpPath = configVar[string]{
		envKey:       "YTDLP_PATH",
		flagKey:      "ytdlp-path",
		defaultValue: "yt-dlp",
	}
	ffmpegPath = configVar[string]{
		envKey:       "FFMPEG_PATH",
		flagKey:      "ffmpeg-path",
		defaultValue: "ffmpeg",
	}
	cookiesFile = configVar[string]{
		envKey:       "YOUTUBE_COOKIES_FILE",
		flagKey:      "cookies-file",
		defaultValue: "",
	}
	subtitleBatchSize = configVar[int]{
		envKey:       "SUBTITLE_BATCH_SIZE",
		flagKey:      "subtitle-batch-size",
		defaultValue: 30,
	}
	subtitleBatchTimeout = configVar[int]{
		envKey:       "SUBTITLE_BATCH_TIMEOUT",
		flagKey:      "subtitle-batch-timeout",
		defaultValue: 30,
	}
)

func loadAppConfig() *app.AppConfig {
	pflag.String(host.flagKey, host.defaultValue, "Server host")
	pflag.Int(port.flagKey, port.defaultValue, "Server port")
	pflag.String(logLevel.flagKey, logLevel.defaultValue, "Logging level")
	pflag.String(logPath.flagKey, logPath.defaultValue, "Log file path")
	pflag.Int(maxParticipants.flagKey, maxParticipants.defaultValue, "Maximum number of participants in a station")
	pflag.Int(redisPort.flagKey, redisPort.defaultValue, "Redis port")
	pflag.String(redisHost.flagKey, redisHost.defaultValue, "Redis host")
	pflag.String(redisPassword.flagKey, redisPassword.defaultValue, "Redis password")
	pflag.String(openaiAPIKey.flagKey, openaiAPIKey.defaultValue, "OpenAI API key for subtitle generation")
	pflag.String(ytDlpPath.flagKey, ytDlpPath.defaultValue, "Path to the yt-dlp binary")
	pflag.String(ffmpegPath.flagKey, ffmpegPath.defaultValue, "Path to the ffmpeg binary")
	pflag.String(cookiesFile.flagKey, cookiesFile.defaultValue, "Cookies file for audio downloads")
	pflag.Int(subtitleBatchSize.flagKey, subtitleBatchSize.defaultValue, "Segments per translation batch")
	pflag.Int(subtitleBatchTimeout.flagKey, subtitleBatchTimeout.defaultValue, "Translation batch timeout in seconds")
	pflag.Parse()

	viper.BindPFlags(pflag.CommandLine)

	viper.BindEnv(host.flagKey, host.envKey)
	viper.BindEnv(port.flagKey, port.envKey)
	viper.BindEnv(logLevel.flagKey, logLevel.envKey)
	viper.BindEnv(logPath.flagKey, logPath.envKey)
	viper.BindEnv(maxParticipants.flagKey, maxParticipants.envKey)
	viper.BindEnv(redisPort.flagKey, redisPort.envKey)
	viper.BindEnv(redisHost.flagKey, redisHost.envKey)
	viper.BindEnv(redisPassword.flagKey, redisPassword.envKey)
	viper.BindEnv(openaiAPIKey.flagKey, openaiAPIKey.envKey)
	viper.BindEnv(ytDlpPath.flagKey, ytDlpPath.envKey)
	viper.BindEnv(ffmpegPath.flagKey, ffmpegPath.envKey)
	viper.BindEnv(cookiesFile.flagKey, cookiesFile.envKey)
	viper.BindEnv(subtitleBatchSize.flagKey, subtitleBatchSize.envKey)
	viper.BindEnv(subtitleBatchTimeout.flagKey, subtitleBatchTimeout.envKey)

	viper.SetDefault(host.flagKey, host.defaultValue)
	viper.SetDefault(port.flagKey, port.defaultValue)
	viper.SetDefault(logLevel.flagKey, logLevel.defaultValue)
	viper.SetDefault(logPath.flagKey, logPath.defaultValue)
	viper.SetDefault(maxParticipants.flagKey, maxParticipants.defaultValue)
	viper.SetDefault(redisPort.flagKey, redisPort.defaultValue)
	viper.SetDefault(redisHost.flagKey, redisHost.defaultValue)
	viper.SetDefault(redisPassword.flagKey, redisPassword.defaultValue)
	viper.SetDefault(openaiAPIKey.flagKey, openaiAPIKey.defaultValue)
	viper.SetDefault(ytDlpPath.flagKey, ytDlpPath.defaultValue)
	viper.SetDefault(ffmpegPath.flagKey, ffmpegPath.defaultValue)
	viper.SetDefault(cookiesFile.flagKey, cookiesFile.defaultValue)
	viper.SetDefault(subtitleBatchSize.flagKey, subtitleBatchSize.defaultValue)
	viper.SetDefault(subtitleBatchTimeout.flagKey, subtitleBatchTimeout.defaultValue)

	return &app.AppConfig{
		Host:                 viper.GetString(host.flagKey),
		Port:                 viper.GetInt(port.flagKey),
		LogLevel:             viper.GetString(logLevel.flagKey),
		LogPath:              viper.GetString(logPath.flagKey),
		MaxParticipants:      viper.GetInt(maxParticipants.flagKey),
		RedisHost:            viper.GetString(redisHost.flagKey),
		RedisPort:            viper.GetInt(redisPort.flagKey),
		RedisPassword:        viper.GetString(redisPassword.flagKey),
		OpenAIAPIKey:         viper.GetString(openaiAPIKey.flagKey),
		YtDlpPath:            viper.GetString(ytDlpPath.flagKey),
		FfmpegPath:           viper.GetString(ffmpegPath.flagKey),
		CookiesFile:          viper.GetString(cookiesFile.flagKey),
		SubtitleBatchSize:    viper.GetInt(subtitleBatchSize.flagKey),
		SubtitleBatchTimeout: viper.GetInt(subtitleBatchTimeout.flagKey),
	}
}

func main() {
	ctx := context.Background()

	appConfig := loadAppConfig()

	jsonConfig, _ := json.MarshalIndent(appConfig, "", "  ")
	fmt.Printf("starting app with config: %s\n", jsonConfig)

	log.Fatal(app.Run(ctx, appConfig))
}
