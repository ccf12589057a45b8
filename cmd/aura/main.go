// Command aura is the headless assistant client: it opens a realtime session
// through the relay, streams mic audio up and model audio out, and renders
// transcript and surface changes on the console.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/aura-voice/aura/pkg/fetch"
	"github.com/aura-voice/aura/pkg/playback"
	"github.com/aura-voice/aura/pkg/session"
	"github.com/aura-voice/aura/pkg/state"
	"github.com/aura-voice/aura/pkg/store"
	"github.com/aura-voice/aura/pkg/tools"
)

type clientDeps struct {
	loadConfig   func() (clientConfig, error)
	openSpeaker  func() (*playback.Speaker, error)
	signalNotify func(chan<- os.Signal, ...os.Signal)
	signalStop   func(chan<- os.Signal)
	stdin        io.Reader
	stdout       io.Writer
}

func defaultClientDeps() clientDeps {
	return clientDeps{
		loadConfig:  loadClientConfig,
		openSpeaker: playback.OpenSpeaker,
		signalNotify: func(c chan<- os.Signal, sig ...os.Signal) {
			signal.Notify(c, sig...)
		},
		signalStop: signal.Stop,
		stdin:      os.Stdin,
		stdout:     os.Stdout,
	}
}

func runClient(ctx context.Context, logger *slog.Logger, deps clientDeps) error {
	if deps.loadConfig == nil || deps.openSpeaker == nil {
		return errors.New("missing config or speaker dependency")
	}
	if deps.signalNotify == nil || deps.signalStop == nil {
		return errors.New("missing signal dependency")
	}
	if logger == nil {
		logger = slog.Default()
	}

	cfg, err := deps.loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	st := state.New()
	go renderUpdates(deps.stdout, st)

	fetcher := fetch.NewClient(cfg.RelayBase, logger)

	var shopping tools.ShoppingAdder
	if cfg.DatabaseURL != "" {
		db, err := store.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer db.Close()
		shopping = db
	}

	registry := tools.New(logger)
	tools.RegisterBuiltins(registry, tools.Deps{
		State:    st,
		Shopping: shopping,
		News:     fetcher,
	})

	speaker, err := deps.openSpeaker()
	if err != nil {
		return fmt.Errorf("open speaker: %w", err)
	}
	defer speaker.Close()

	scheduler := playback.NewScheduler(speaker, playback.WithOnIdle(func() {
		st.SetSpeaking(false)
	}))

	eng := session.NewEngine(cfg.Session, st, registry, session.Options{
		Player: scheduler,
		Logger: logger,
	})

	// Ambient weather for the home surface; failures fall back to canned
	// data inside the client.
	if w, err := fetcher.Weather(ctx, cfg.Session.Profile.Location); err == nil {
		st.SetWeather(w)
	}

	if err := eng.Connect(ctx); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer eng.Disconnect()

	sigCh := make(chan os.Signal, 1)
	deps.signalNotify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer deps.signalStop(sigCh)

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(deps.stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	fmt.Fprintln(deps.stdout, "connected — type to talk, /stop to interrupt, /quit to exit")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sig := <-sigCh:
			logger.Info("shutdown signal received", "signal", sig.String())
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			switch strings.TrimSpace(line) {
			case "":
			case "/quit":
				return nil
			case "/stop":
				eng.StopPlayback()
			default:
				if err := eng.SendText(line); err != nil {
					logger.Warn("send failed", "error", err)
				}
			}
		}
	}
}

// renderUpdates prints transcript entries and surface/status changes as the
// engine mutates the store.
func renderUpdates(out io.Writer, st *state.Store) {
	if out == nil {
		out = os.Stdout
	}
	for update := range st.Subscribe() {
		switch update.Field {
		case "transcript":
			entries := st.Transcript()
			if len(entries) == 0 {
				continue
			}
			// Notifications are best-effort; print the newest entry and
			// tolerate missed ones.
			e := entries[len(entries)-1]
			fmt.Fprintf(out, "[%s] %s\n", e.Role, e.Text)
		case "activeSurface":
			fmt.Fprintf(out, "-- surface: %s\n", st.ActiveSurface())
		case "status":
			fmt.Fprintf(out, "-- status: %s\n", st.Status())
		case "lastError":
			if msg := st.LastError(); msg != "" {
				fmt.Fprintf(out, "!! %s\n", msg)
			}
		}
	}
}

func runMain(ctx context.Context, stderr io.Writer, deps clientDeps) int {
	if stderr == nil {
		stderr = os.Stderr
	}
	logger := slog.New(slog.NewTextHandler(stderr, nil))

	// A missing .env is fine; the environment may be set directly.
	_ = godotenv.Load()

	if err := runClient(ctx, logger, deps); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(stderr, "aura: %v\n", err)
		return 1
	}
	return 0
}

func main() {
	os.Exit(runMain(context.Background(), os.Stderr, defaultClientDeps()))
}
