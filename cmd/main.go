package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/idfort/idfort/pkg/config"
	"github.com/idfort/idfort/pkg/logx"
)

func main() {
	// 1. Initialize Logger
	logLevel := os.Getenv("LOG_LEVEL")
	switch logLevel {
	case "debug":
		logx.SetLevel(logx.LevelDebug)
	case "warn":
		logx.SetLevel(logx.LevelWarn)
	case "error":
		logx.SetLevel(logx.LevelError)
	default:
		logx.SetLevel(logx.LevelInfo)
	}

	logx.Info("🚀 Starting idfort auth core...")

	// 2. Load configuration
	cfg := config.LoadFromEnv()
	if cfg.Auth.JWT.Secret == "" {
		logx.Fatal("AUTH_JWT_SECRET must be set")
	}

	// 3. Initialize Dependency Container
	container := NewContainer(cfg)
	defer container.Cleanup()

	logx.Info("✅ Auth core ready")

	// 4. Wait for shutdown signal. The core carries no HTTP surface of its
	// own; adapter processes import the containers directly.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	sig := <-sigChan
	logx.Infof("🛑 Received signal: %v", sig)
	logx.Info("✅ Exited successfully")
}
