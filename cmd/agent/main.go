package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/clipmark/clipmark-agent/internal/api"
	"github.com/clipmark/clipmark-agent/internal/capture"
	"github.com/clipmark/clipmark-agent/internal/clips"
	"github.com/clipmark/clipmark-agent/internal/config"
	"github.com/clipmark/clipmark-agent/internal/db"
	"github.com/clipmark/clipmark-agent/internal/extract"
	"github.com/clipmark/clipmark-agent/internal/logging"
	"github.com/clipmark/clipmark-agent/internal/marks"
	"github.com/clipmark/clipmark-agent/internal/session"
	"github.com/clipmark/clipmark-agent/internal/usage"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("fatal error: %v", err)
	}
}

func run() error {
	startTime := time.Now()

	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := os.MkdirAll(cfg.DataDir(), 0755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}

	logger := logging.NewLogger(cfg.LogLevel())
	logger.Info("starting clipmark agent", "version", config.Version, "data_dir", cfg.DataDir())

	database, err := db.New(cfg.DBPath(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	agentID, err := ensureAgentID(database)
	if err != nil {
		return fmt.Errorf("failed to ensure agent ID: %w", err)
	}

	authToken, err := ensureAuthToken(database)
	if err != nil {
		return fmt.Errorf("failed to ensure auth token: %w", err)
	}

	sessions := session.NewRepository(database.Conn())
	owner, err := ensureOwner(sessions, authToken, cfg.OwnerTier())
	if err != nil {
		return fmt.Errorf("failed to ensure owner user: %w", err)
	}

	fmt.Println()
	fmt.Println("╔═══════════════════════════════════════════════════════════╗")
	fmt.Println("║                   CLIPMARK AGENT v0.1.0                   ║")
	fmt.Println("╠═══════════════════════════════════════════════════════════╣")
	fmt.Printf("║  API URL:    http://127.0.0.1:%-27d ║\n", cfg.Port())
	fmt.Printf("║  Auth Token: %-45s ║\n", authToken)
	fmt.Printf("║  Tier:       %-45s ║\n", string(owner.Tier))
	fmt.Println("╚═══════════════════════════════════════════════════════════╝")
	fmt.Println()

	profile, ok := capture.Resolve(cfg.Profile())
	if !ok {
		return fmt.Errorf("unknown capture profile %q", cfg.Profile())
	}

	// No capture runtime ships with the headless agent yet; the stubs
	// report the capability gap and the API degrades accordingly.
	captureLog := logging.WithComponent(logger, "capture")
	media := capture.NewStubMediaSource(captureLog)
	recorders := capture.NewStubRecorderFactory(captureLog)
	captureSession := capture.NewSession(media, recorders, profile, captureLog)

	caps := capture.Probe(media, recorders)
	logger.Info("capture backend probed",
		"capture_stream", caps.CaptureStream,
		"mp4", caps.MP4,
		"profile", profile.Name,
	)

	var usageStore usage.Store = usage.NewSQLiteStore(database.Conn())
	if cfg.SyncURL() != "" && cfg.SyncToken() != "" {
		usageStore = usage.NewMirrorStore(usageStore,
			usage.NewHTTPStore(cfg.SyncURL(), cfg.SyncToken(), logger), logger)
		logger.Info("usage mirroring enabled", "base_url", cfg.SyncURL())
	}

	saver, err := extract.NewDirSaver(cfg.OutputDir())
	if err != nil {
		return fmt.Errorf("failed to prepare output dir: %w", err)
	}

	queue := extract.NewQueue(extract.Options{
		Capturer: captureSession,
		Saver:    saver,
		Usage:    usageStore,
		History:  extract.NewSQLiteHistory(database.Conn()),
		Logger:   logging.WithComponent(logger, "queue"),
		JobPause: cfg.JobPause(),
	})

	apiServer := api.NewServer(api.ServerConfig{
		Port:      cfg.Port(),
		Marks:     marks.NewStore(),
		Queue:     queue,
		Sessions:  sessions,
		Usage:     usageStore,
		History:   extract.NewSQLiteHistory(database.Conn()),
		Clips:     clips.NewLibrary(cfg.OutputDir(), logging.WithComponent(logger, "clips")),
		Exports:   saver,
		Caps:      caps,
		Profile:   profile,
		Logger:    logging.WithComponent(logger, "api"),
		StartTime: startTime,
		AgentID:   agentID,
		Version:   config.Version,
	})

	go func() {
		if err := apiServer.Start(); err != nil {
			logger.Error("HTTP server error", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("received shutdown signal", "signal", sig)

	queue.Cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown HTTP server", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}

func ensureAgentID(database *db.DB) (string, error) {
	ctx := context.Background()

	existing, err := database.GetSetting(ctx, "agent_id")
	if err == nil && existing != "" {
		return existing, nil
	}

	idBytes := make([]byte, 16)
	if _, err := rand.Read(idBytes); err != nil {
		return "", err
	}
	agentID := hex.EncodeToString(idBytes)

	if err := database.SetSetting(ctx, "agent_id", agentID); err != nil {
		return "", err
	}
	return agentID, nil
}

func ensureAuthToken(database *db.DB) (string, error) {
	ctx := context.Background()

	existing, err := database.GetSetting(ctx, "auth_token")
	if err == nil && existing != "" {
		return existing, nil
	}

	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", err
	}
	token := hex.EncodeToString(tokenBytes)

	if err := database.SetSetting(ctx, "auth_token", token); err != nil {
		return "", err
	}
	return token, nil
}

// ensureOwner seeds the single local user the auth token maps to. The
// tier follows config so a changed CLIPMARK_TIER takes effect without
// wiping the database.
func ensureOwner(repo session.Repository, token, tierName string) (*session.User, error) {
	ctx := context.Background()

	tier, err := session.ParseTier(tierName)
	if err != nil {
		return nil, fmt.Errorf("invalid owner tier %q: %w", tierName, err)
	}

	existing, err := repo.GetUserByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if existing.Tier != tier {
			existing.Tier = tier
			if err := repo.UpdateUserTier(ctx, existing.ID, tier); err != nil {
				return nil, err
			}
		}
		return existing, nil
	}

	user := &session.User{Token: token, Tier: tier}
	if err := repo.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}
