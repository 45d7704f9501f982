package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/you/flippi-shorts/internal/combo"
	"github.com/you/flippi-shorts/internal/config"
	"github.com/you/flippi-shorts/internal/event"
	"github.com/you/flippi-shorts/internal/history"
	"github.com/you/flippi-shorts/internal/httpapi"
	"github.com/you/flippi-shorts/internal/media"
	"github.com/you/flippi-shorts/internal/obsctl"
	"github.com/you/flippi-shorts/internal/pipeline"
	"github.com/you/flippi-shorts/internal/scheduler"
	"github.com/you/flippi-shorts/internal/textgen"
	"github.com/you/flippi-shorts/internal/version"
	"github.com/you/flippi-shorts/internal/ytupload"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("uploader: .env: %v", err)
	}

	var (
		versionFlag     bool
		baseDir         string
		httpAddr        string
		httpCorsOrigins string
		httpRateRPS     int
		httpRateBurst   int
		runOnce         string
		runEvent        string
	)

	flag.BoolVar(&versionFlag, "version", false, "Print build version and exit")
	flag.StringVar(&baseDir, "base", "", "Events base directory (contains Event/)")
	flag.StringVar(&httpAddr, "http-addr", "", "HTTP status address (e.g., :8080)")
	flag.StringVar(&httpCorsOrigins, "http-cors-origins", "", "Comma-separated list of allowed CORS origins")
	flag.IntVar(&httpRateRPS, "http-rate-rps", 20, "Maximum HTTP requests per second per client")
	flag.IntVar(&httpRateBurst, "http-rate-burst", 40, "Burst size for HTTP rate limiter")
	flag.StringVar(&runOnce, "run", "", "Run one job and exit: prep, shorts, or comp")
	flag.StringVar(&runEvent, "event", "", "Event name for -run prep/comp")
	flag.Parse()

	if versionFlag {
		fmt.Printf(
			"uploader version: %s (commit %s, built %s)\n",
			version.Version,
			version.Commit,
			version.BuildTime,
		)
		os.Exit(0)
	}

	overrides := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) {
		overrides[f.Name] = true
	})

	cfg := config.Load()
	if overrides["base"] {
		cfg.BaseDir = strings.TrimSpace(baseDir)
	}
	if overrides["http-addr"] {
		cfg.HTTP.Addr = strings.TrimSpace(httpAddr)
	}
	log.Printf("%s", cfg.SummaryJSON())

	ff := &media.FFmpeg{FFmpegBin: cfg.Media.FFmpegBin, FFprobeBin: cfg.Media.FFprobeBin}
	if err := ff.Check(); err != nil {
		log.Fatalf("uploader: %v", err)
	}

	gen, err := textgen.NewOpenAI(cfg.OpenAI.KeyFile)
	if err != nil {
		log.Fatalf("uploader: %v", err)
	}

	tokens := &ytupload.TokenSource{Path: cfg.YouTube.CredentialsFile}
	uploader := &ytupload.Uploader{Tokens: tokens}

	var hist *history.Store
	if cfg.History.SQLitePath != "" {
		h, err := history.Open(cfg.History.SQLitePath)
		if err != nil {
			log.Fatalf("uploader: open history: %v", err)
		}
		hist = h
		defer func() {
			if err := hist.Close(); err != nil {
				log.Printf("uploader: closing history: %v", err)
			}
		}()
	}

	registry := prometheus.NewRegistry()
	metrics := pipeline.NewMetrics(registry)

	p := &pipeline.Pipeline{
		Gen:       gen,
		Media:     ff,
		Uploader:  uploader,
		Tables:    combo.DefaultTables(),
		Metrics:   metrics,
		Tolerance: cfg.PairToleranceSec,
		MinLength: cfg.CompMinSec,
		MaxLength: cfg.CompMaxSec,
		PromoLine: cfg.PromoLine,
		Hashtags:  cfg.YouTube.Hashtags,
		Tags:      cfg.YouTube.Tags,
		Privacy:   cfg.YouTube.Privacy,
		Reauthorize: func(ctx context.Context) error {
			return tokens.Reload(ctx)
		},
	}
	if hist != nil {
		p.History = hist
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("uploader: received %s, shutting down", sig)
		cancel()
	}()

	if runOnce != "" {
		if err := runSingle(ctx, p, cfg, runOnce, runEvent); err != nil {
			log.Fatalf("uploader: %v", err)
		}
		return
	}

	var api *httpapi.Server
	if cfg.HTTP.Addr != "" {
		var corsOrigins []string
		for _, origin := range strings.Split(httpCorsOrigins, ",") {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				corsOrigins = append(corsOrigins, origin)
			}
		}

		build := httpapi.BuildInfo{Version: version.Version, Revision: version.Commit}
		if version.BuildTime != "" && version.BuildTime != "unknown" {
			if t, err := time.Parse(time.RFC3339, version.BuildTime); err == nil {
				build.BuiltAt = t
			}
		}

		var uploadsView httpapi.UploadStore
		if hist != nil {
			uploadsView = hist
		}
		api = httpapi.New(cfg.BaseDir, uploadsView, httpapi.Options{
			Addr:           cfg.HTTP.Addr,
			Build:          build,
			AllowedOrigins: corsOrigins,
			RateLimitRPS:   httpRateRPS,
			RateLimitBurst: httpRateBurst,
			Registry:       registry,
			ConfigSnapshot: cfg.Redacted(),
		})
		go func() {
			if err := api.Start(); err != nil {
				log.Fatalf("uploader: http api: %v", err)
			}
		}()
	}

	if cfg.Watch {
		events, err := event.List(cfg.BaseDir)
		if err != nil {
			log.Printf("uploader: list events for watch: %v", err)
		} else if err := p.WatchComboLogs(ctx, events...); err != nil {
			log.Printf("uploader: combo log watch: %v", err)
		}
	}

	var obs *obsctl.Client
	if cfg.OBSEnabled() {
		obs = &obsctl.Client{Addr: cfg.OBS.Addr, Password: cfg.OBS.Password}
		defer obs.Close()
	}

	if cfg.Schedule.Enabled {
		shortsRotation := &event.Rotation{Base: cfg.BaseDir}
		obsRotation := &event.Rotation{Base: cfg.BaseDir}

		sched := &scheduler.Scheduler{}
		if err := addSlots(sched, cfg, p, shortsRotation, obsRotation, obs); err != nil {
			log.Fatalf("uploader: %v", err)
		}
		go sched.Run(ctx)
	}

	<-ctx.Done()

	if api != nil {
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
		if err := api.Shutdown(shutdownCtx); err != nil {
			log.Printf("uploader: http api shutdown: %v", err)
		}
		cancelShutdown()
	}
	log.Printf("uploader: shutdown complete")
}

func runSingle(ctx context.Context, p *pipeline.Pipeline, cfg config.Config, job, eventName string) error {
	switch job {
	case "prep":
		if eventName == "" {
			return fmt.Errorf("-event is required for -run prep")
		}
		return p.PrepEvent(ctx, event.New(cfg.BaseDir, eventName))
	case "shorts":
		return p.RunShorts(ctx, &event.Rotation{Base: cfg.BaseDir})
	case "comp":
		if eventName == "" {
			return fmt.Errorf("-event is required for -run comp")
		}
		return p.RunCompilation(ctx, event.New(cfg.BaseDir, eventName))
	default:
		return fmt.Errorf("unknown job %q (want prep, shorts, or comp)", job)
	}
}

func addSlots(
	sched *scheduler.Scheduler,
	cfg config.Config,
	p *pipeline.Pipeline,
	shortsRotation, obsRotation *event.Rotation,
	obs *obsctl.Client,
) error {
	shortsHour, shortsMin, err := parseClock(cfg.Schedule.ShortsTime)
	if err != nil {
		return fmt.Errorf("shorts time: %w", err)
	}
	compSlot, err := scheduler.ParseSlot(cfg.Schedule.CompSlot, withRunID("compilation", func(ctx context.Context) error {
		events, err := event.List(cfg.BaseDir)
		if err != nil {
			return err
		}
		for _, ev := range events {
			if err := p.RunCompilation(ctx, ev); err != nil {
				log.Printf("uploader: compilation for %s: %v", ev.Name, err)
			}
		}
		return nil
	}))
	if err != nil {
		return fmt.Errorf("comp slot: %w", err)
	}

	// Shorts go out daily except on the compilation day.
	shortsDays := scheduler.EveryDayExcept(compSlot.Day)
	sched.Add(scheduler.WeekdaySlots(shortsDays, shortsHour, shortsMin, withRunID("shorts", func(ctx context.Context) error {
		return p.RunShorts(ctx, shortsRotation)
	}))...)
	sched.Add(compSlot)

	rotHour, rotMin, err := parseClock(cfg.Schedule.RotationTime)
	if err != nil {
		return fmt.Errorf("rotation time: %w", err)
	}
	allDays := scheduler.EveryDayExcept()
	sched.Add(scheduler.WeekdaySlots(allDays, rotHour, rotMin, withRunID("rotation", func(ctx context.Context) error {
		order, err := obsRotation.Order()
		if err != nil {
			return err
		}
		if len(order) == 0 {
			return nil
		}
		active := order[0]
		log.Printf("uploader: active event is now %s", active.Name)
		if obs == nil {
			return nil
		}
		return obs.SetRecordPath(ctx, active.ClipsDir(), cfg.OBS.Profile)
	}))...)
	return nil
}

// withRunID tags every run of a job with a unique id for log correlation.
func withRunID(name string, run func(ctx context.Context) error) scheduler.Job {
	return scheduler.Job{
		Name: name,
		Run: func(ctx context.Context) error {
			id := uuid.NewString()
			log.Printf("uploader: job %s run %s starting", name, id)
			err := run(ctx)
			if err != nil {
				log.Printf("uploader: job %s run %s failed: %v", name, id, err)
				return err
			}
			log.Printf("uploader: job %s run %s done", name, id)
			return nil
		},
	}
}

func parseClock(raw string) (int, int, error) {
	var hour, minute int
	if _, err := fmt.Sscanf(strings.TrimSpace(raw), "%d:%d", &hour, &minute); err != nil {
		return 0, 0, fmt.Errorf("malformed time %q", raw)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("time out of range %q", raw)
	}
	return hour, minute, nil
}
