package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type BaseEnv struct {
	Env      string `envconfig:"ENV" default:"local"`
	HTTPHost string `envconfig:"HTTP_HOST" default:""`
	HTTPPort string `envconfig:"HTTP_PORT" default:"3000"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"debug"`
	// APIKey is optional; when empty every request is accepted.
	APIKey string `envconfig:"API_KEY"`
}

type StorageEnv struct {
	Type string `envconfig:"STORAGE_TYPE" default:"local"`
	// Dir is the shared root the external agent also works in (ORCHESTRA_DIR).
	Dir string `envconfig:"DIR" default:"."`
	// S3 settings (used when Type == "s3")
	S3Bucket string `envconfig:"S3_BUCKET"`
	S3Prefix string `envconfig:"S3_PREFIX" default:"orchestra/"`
	S3Region string `envconfig:"S3_REGION" default:"ap-northeast-1"`
}

// LayoutEnv names the files shared with the external agent, relative to
// StorageEnv.Dir.
type LayoutEnv struct {
	TasksFile       string `envconfig:"TASKS_FILE" default:"data/tasks.json"`
	ProjectsFile    string `envconfig:"PROJECTS_FILE" default:"data/projects.json"`
	MessagesDir     string `envconfig:"MESSAGES_DIR" default:"communication/messages"`
	SystemLog       string `envconfig:"SYSTEM_LOG" default:"communication/messages/system.log"`
	LogsDir         string `envconfig:"LOGS_DIR" default:"logs"`
	AgentStatusFile string `envconfig:"AGENT_STATUS_FILE" default:"communication/agent_status.json"`
	SettingsFile    string `envconfig:"SETTINGS_FILE" default:"settings.yaml"`
}

type WatchEnv struct {
	AgentStatusInterval time.Duration `envconfig:"AGENT_STATUS_INTERVAL" default:"5s"`
	LogWatch            bool          `envconfig:"LOG_WATCH" default:"true"`
}

type Env struct {
	BaseEnv
	StorageEnv
	LayoutEnv
	WatchEnv
}

const namespace = "ORCHESTRA"

func LoadEnv() (*Env, error) {
	var env Env
	if err := envconfig.Process(namespace, &env); err != nil {
		return nil, fmt.Errorf("failed to load env: %w", err)
	}
	if env.StorageEnv.Type == "s3" && env.StorageEnv.S3Bucket == "" {
		return nil, fmt.Errorf("failed to load env: %s_S3_BUCKET is required when %s_STORAGE_TYPE=s3", namespace, namespace)
	}
	if env.AgentStatusInterval <= 0 {
		return nil, fmt.Errorf("failed to load env: %s_AGENT_STATUS_INTERVAL must be positive", namespace)
	}
	return &env, nil
}

func (e *BaseEnv) SlogLevel() slog.Level {
	if e == nil {
		return slog.LevelDebug
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(e.LogLevel)); err != nil {
		return slog.LevelDebug
	}
	return level
}
