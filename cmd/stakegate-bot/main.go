package main

import (
	"context"
	"crypto/rsa"
	stdhttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stakegate/internal/adapters/backend"
	"stakegate/internal/adapters/github"
	"stakegate/internal/platform/config"
	"stakegate/internal/platform/dedup"
	"stakegate/internal/platform/logger"
	"stakegate/internal/platform/metrics"
	phttp "stakegate/internal/platform/net/http"
	"stakegate/internal/platform/net/middleware"
	"stakegate/internal/platform/signing"
	"stakegate/internal/platform/statefile"

	"stakegate/internal/modkit"
	deadlinesvc "stakegate/internal/services/deadline/service"
	outboxmod "stakegate/internal/services/outbox/module"
	webhookmod "stakegate/internal/services/webhook/module"

	"github.com/google/uuid"
)

func main() {
	root := config.New()
	botCfg := root.Prefix("BOT_")
	ghCfg := root.Prefix("GITHUB_")
	beCfg := root.Prefix("BACKEND_")

	logger.Init(logger.FromEnv())
	l := logger.Get()

	met := metrics.New()

	ghClient := github.NewClient(github.Options{
		BaseURL:    ghCfg.MayString("API_URL", "https://api.github.com"),
		AppID:      ghCfg.MustString("APP_ID"),
		PrivateKey: loadAppKey(ghCfg),
	})

	beClient := backend.NewClient(backend.Options{
		BaseURL: beCfg.MustURL("URL").String(),
		KeyID:   beCfg.MayString("KEY_ID", "stakegate-bot"),
		Secret:  beCfg.MustString("SECRET"),
	})

	// state file backs the legacy deadline path and durable dedup; both
	// are optional and single-instance only
	var state *statefile.File
	if path := botCfg.MayString("STATE_FILE", ""); path != "" {
		f, err := statefile.Open(path)
		if err != nil {
			l.Panic().Err(err).Str("path", path).Msg("state file open failed")
		}
		state = f
	}

	var dd dedup.Store
	if ttl := botCfg.MayDuration("DEDUP_TTL", 0); ttl > 0 {
		if state != nil {
			dd = dedup.NewDurable(state, ttl)
		} else {
			dd = dedup.NewMemory(ttl)
		}
	}

	deps := modkit.Deps{Log: *l, Cfg: botCfg, Metrics: met}

	webhooks := webhookmod.New(deps, webhookmod.Options{
		Secret: []byte(botCfg.MustString("WEBHOOK_SECRET")),
		Pusher: beClient,
		GitHub: ghClient,
		Dedup:  dd,
	})

	outbox := outboxmod.New(deps, outboxmod.Options{
		WorkerID:   botCfg.MayString("WORKER_ID", hostnameWorkerID()),
		Interval:   botCfg.MayDuration("POLL_INTERVAL", 5*time.Second),
		ClaimLimit: botCfg.MayInt("CLAIM_LIMIT", 5),
		Source:     beClient,
		GitHub:     ghClient,
	})

	srv := phttp.NewServer(botCfg)
	r := srv.Router()
	r.Use(
		middleware.RequestID(),
		middleware.RealIP(),
		middleware.RecoverJSON(func() { met.Errors.Inc() }),
		middleware.AccessLogZerolog(middleware.AccessLogOptions{Slow: 2 * time.Second}),
	)
	if origins := botCfg.MayCSV("CORS_ORIGINS", nil); len(origins) > 0 {
		r.Use(middleware.CORS(middleware.CORSOptions{AllowedOrigins: origins}))
	}

	webhooks.MountRoutes(r)
	r.Get("/healthz", func(w stdhttp.ResponseWriter, _ *stdhttp.Request) {
		phttp.JSON(w, stdhttp.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", met.Handler())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if botCfg.MayBool("POLL_ENABLED", true) {
		go func() {
			if err := outbox.Ports().(outboxmod.Ports).Worker.Run(ctx); err != nil && ctx.Err() == nil {
				l.Error().Err(err).Msg("outbox worker stopped")
			}
		}()
	}

	if botCfg.MayBool("LEGACY_DEADLINES", false) {
		sched := deadlinesvc.New(beClient, state, met)
		go func() {
			if err := sched.Run(ctx); err != nil && ctx.Err() == nil {
				l.Error().Err(err).Msg("deadline scheduler stopped")
			}
		}()
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			l.Error().Err(err).Msg("http shutdown failed")
		}
	}()

	if err := srv.Run(ctx); err != nil {
		l.Panic().Err(err).Msg("http server stopped")
	}
}

func loadAppKey(ghCfg config.Conf) *rsa.PrivateKey {
	l := logger.Get()
	pem := ghCfg.MayString("PRIVATE_KEY", "")
	if pem == "" {
		path := ghCfg.MustString("PRIVATE_KEY_FILE")
		b, err := os.ReadFile(path)
		if err != nil {
			l.Panic().Err(err).Str("path", path).Msg("private key read failed")
		}
		pem = string(b)
	}
	key, err := signing.LoadPrivateKey([]byte(pem))
	if err != nil {
		l.Panic().Err(err).Msg("private key parse failed")
	}
	return key
}

// hostnameWorkerID derives a stable worker identity from the host name,
// falling back to a random id when the hostname is unavailable
func hostnameWorkerID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "stakegate-bot-" + uuid.NewString()[:8]
	}
	return "stakegate-bot-" + host
}
