// Package config provides configuration helpers for go-console commands.
package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// Default backend endpoints. These match the local development layout of the
// JetBot stack: motion API on 8889, raw feed on 8890, detection API on 8001,
// annotated feed on 8002, reasoning service on 8000.
const (
	DefaultRobotAPIURL   = "http://127.0.0.1:8889"
	DefaultRobotFeedURL  = "ws://127.0.0.1:8890"
	DefaultVisionAPIURL  = "http://127.0.0.1:8001"
	DefaultVisionFeedURL = "ws://127.0.0.1:8002"
	DefaultAgentURL      = "http://127.0.0.1:8000"
	DefaultConsolePort   = "8080"
)

// LoadDotenv loads a local .env file if present. Missing files are not an
// error; explicit environment variables always win.
func LoadDotenv() {
	_ = godotenv.Load()
}

// Env returns the value of key, falling back to def when unset or empty.
func Env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// EnvRequired returns the value of key or exits with a usage hint.
func EnvRequired(key string) string {
	v := os.Getenv(key)
	if v == "" {
		fmt.Fprintf(os.Stderr, "Error: %s environment variable is required\n", key)
		fmt.Fprintf(os.Stderr, "Usage: %s=... go run ./cmd/...\n", key)
		os.Exit(1)
	}
	return v
}

// RobotAPIURL returns the motion command API base URL.
func RobotAPIURL() string { return Env("ROBOT_API_URL", DefaultRobotAPIURL) }

// RobotFeedURL returns the raw camera feed WebSocket URL.
func RobotFeedURL() string { return Env("ROBOT_FEED_URL", DefaultRobotFeedURL) }

// VisionAPIURL returns the object detection API base URL.
func VisionAPIURL() string { return Env("VISION_API_URL", DefaultVisionAPIURL) }

// VisionFeedURL returns the annotated feed WebSocket URL.
func VisionFeedURL() string { return Env("VISION_FEED_URL", DefaultVisionFeedURL) }

// AgentURL returns the reasoning service base URL.
func AgentURL() string { return Env("AGENT_URL", DefaultAgentURL) }

// ConsolePort returns the port the console web server listens on.
func ConsolePort() string { return Env("CONSOLE_PORT", DefaultConsolePort) }

// GoogleAPIKey returns the API key used for text-to-speech synthesis.
func GoogleAPIKey() string { return os.Getenv("GOOGLE_API_KEY") }

// LogLevel returns the configured log level.
func LogLevel() string { return Env("LOG_LEVEL", "info") }
