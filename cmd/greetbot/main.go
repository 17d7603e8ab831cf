package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mattn/go-isatty"

	"github.com/joebot/greetbot/internal/admin"
	"github.com/joebot/greetbot/internal/cli"
	"github.com/joebot/greetbot/internal/config"
	"github.com/joebot/greetbot/internal/dispatch"
	"github.com/joebot/greetbot/internal/ledger"
	"github.com/joebot/greetbot/internal/logging"
	"github.com/joebot/greetbot/internal/scheduler"
	"github.com/joebot/greetbot/internal/settings"
	"github.com/joebot/greetbot/internal/source"
	"github.com/joebot/greetbot/internal/store"
)

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(0)
	}

	switch os.Args[1] {
	case "serve":
		cmdServe()
	case "run":
		cmdRun()
	case "status":
		cmdStatus()
	case "onboard":
		cli.RunOnboard()
	case "version", "--version", "-v":
		fmt.Println(cli.TitleStyle.Render(
			fmt.Sprintf("  %s greetbot v%s", cli.Logo, cli.Version),
		))
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	dim := cli.DimStyle.Render
	fmt.Println()
	fmt.Println(cli.TitleStyle.Render(fmt.Sprintf("  %s greetbot", cli.Logo)) + dim(" — First-contact auto-reply bot"))
	fmt.Println()
	fmt.Println("  " + cli.BoldStyle.Render("Usage"))
	fmt.Println()
	fmt.Printf("    greetbot %-10s %s\n", "serve", dim("Run the scheduler and admin server"))
	fmt.Printf("    greetbot %-10s %s\n", "run", dim("Run one dispatch cycle and exit"))
	fmt.Printf("    greetbot %-10s %s\n", "status", dim("Show configuration"))
	fmt.Printf("    greetbot %-10s %s\n", "onboard", dim("Initialize setup"))
	fmt.Printf("    greetbot %-10s %s\n", "version", dim("Show version"))
	fmt.Println()
}

// --- serve command ---

func cmdServe() {
	cfg := mustLoadConfig()
	setupLogging()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	kv := mustOpenStore(ctx, cfg)
	defer kv.Close()

	settingsStore := settings.NewStore(kv)
	engine := &dispatch.Engine{
		Source:   mustMakeSource(cfg),
		Ledger:   ledger.New(kv),
		PageSize: cfg.Scheduler.PageSize,
	}

	secret := cfg.Admin.SessionSecret
	if secret == "" {
		secret = ephemeralSecret()
		slog.Warn("No admin.sessionSecret configured, sessions will not survive restarts")
	}

	adminSrv := admin.NewServer(settingsStore, secret)
	go func() {
		if err := adminSrv.ListenAndServe(ctx, cfg.Admin.Listen); err != nil {
			slog.Error("Admin server error", "err", err)
			cancel()
		}
	}()

	sched := scheduler.New(cfg.Scheduler, func(ctx context.Context) error {
		st, err := settingsStore.Load(ctx)
		if err != nil {
			return err
		}
		report, err := engine.RunCycle(ctx, st.Dispatch())
		if report.Sent > 0 || report.Failed > 0 {
			slog.Info("Cycle report",
				"scanned", report.Scanned,
				"sent", report.Sent,
				"failed", report.Failed,
				"elapsed", report.Elapsed)
		}
		return err
	})

	slog.Info("greetbot serving", "platform", cfg.Platform)
	sched.Run(ctx)
}

// --- run command ---

func cmdRun() {
	cfg := mustLoadConfig()
	setupLogging()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	kv := mustOpenStore(ctx, cfg)
	defer kv.Close()

	st, err := settings.NewStore(kv).Load(ctx)
	if err != nil {
		fatal(err)
	}

	engine := &dispatch.Engine{
		Source:   mustMakeSource(cfg),
		Ledger:   ledger.New(kv),
		PageSize: cfg.Scheduler.PageSize,
	}
	report, err := engine.RunCycle(ctx, st.Dispatch())
	if err != nil {
		fatal(err)
	}

	fmt.Println()
	fmt.Printf("  %s Cycle complete: scanned %d, sent %d, failed %d in %s\n",
		cli.OkStyle.Render("✓"), report.Scanned, report.Sent, report.Failed, report.Elapsed.Round(time.Millisecond))
	if !st.Enabled {
		fmt.Println("  " + cli.DimStyle.Render("(dispatch is disabled; enable it via the admin API)"))
	}
	fmt.Println()
}

// --- status command ---

func cmdStatus() {
	cfg, _ := config.Load()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	storeOK := false
	var st settings.Settings
	if kv, err := openStore(ctx, cfg); err == nil {
		storeOK = kv.Ping(ctx) == nil
		st, _ = settings.NewStore(kv).Load(ctx)
		kv.Close()
	}
	cli.RunStatus(cfg, storeOK, st)
}

// --- helpers ---

func setupLogging() {
	color := isatty.IsTerminal(os.Stderr.Fd())
	slog.SetDefault(slog.New(logging.NewHandler(os.Stderr, &logging.Options{
		Level: slog.LevelInfo,
		Color: color,
	})))
}

func mustLoadConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		fatal(err)
	}
	return cfg
}

func openStore(ctx context.Context, cfg *config.Config) (store.KV, error) {
	if cfg.Store.Backend == "memory" {
		return store.NewMemory(), nil
	}
	return store.NewRedis(ctx, cfg.Store.Redis.Addr, cfg.Store.Redis.Password, cfg.Store.Redis.DB)
}

func mustOpenStore(ctx context.Context, cfg *config.Config) store.KV {
	kv, err := openStore(ctx, cfg)
	if err != nil {
		fatal(err)
	}
	return kv
}

func mustMakeSource(cfg *config.Config) source.Source {
	switch cfg.Platform {
	case "discord":
		src, err := source.NewDiscord(cfg.Discord)
		if err != nil {
			fatal(err)
		}
		return src
	default:
		return source.NewBluesky(cfg.Bluesky)
	}
}

func ephemeralSecret() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		fatal(fmt.Errorf("generate session secret: %w", err))
	}
	return hex.EncodeToString(b)
}

func fatal(err error) {
	fmt.Println()
	fmt.Println(cli.ErrStyle.Render("  Error: " + err.Error()))
	fmt.Println()
	os.Exit(1)
}
