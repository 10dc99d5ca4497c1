// README: Entry point; loads config, wires services, starts the notification relay and the HTTP server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	firebase "firebase.google.com/go/v4"
	"github.com/apex/log"

	"routedesk/internal/ai"
	"routedesk/internal/config"
	httptransport "routedesk/internal/http"
	"routedesk/internal/infra"
	"routedesk/internal/metrics"
	"routedesk/internal/modules/account"
	"routedesk/internal/modules/aiusage"
	"routedesk/internal/modules/assignment"
	"routedesk/internal/modules/export"
	"routedesk/internal/modules/feed"
	"routedesk/internal/modules/notify"
	"routedesk/internal/modules/route"
	"routedesk/internal/storeutil"
	"routedesk/internal/types"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	infra.SetupLogging(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	metrics.Register()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var fbApp *firebase.App
	if cfg.Firebase.ProjectID != "" {
		fbApp, err = infra.NewFirebaseApp(ctx, cfg.Firebase.ProjectID, cfg.Firebase.CredentialsFile)
		if err != nil {
			log.Fatalf("firebase init: %v", err)
		}
	}
	var verifier infra.TokenVerifier
	switch cfg.Auth.Mode {
	case config.AuthJWT:
		verifier, err = infra.NewJWTVerifier(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer)
	default:
		verifier, err = infra.NewFirebaseVerifier(ctx, fbApp)
	}
	if err != nil {
		log.Fatalf("auth init: %v", err)
	}

	dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer dbPool.Close()

	redisClient, err := infra.NewRedis(ctx, cfg.Redis.Addr)
	if err != nil {
		log.Fatalf("redis: %v", err)
	}
	defer redisClient.Close()

	retry := storeutil.NewRetrier(cfg.Store.Retries, cfg.Store.Backoff)
	quotaSvc := aiusage.NewService(aiusage.NewStore(dbPool, retry, cfg.AI.QuotaTokens))

	accountOpts := []account.Option{
		account.WithCache(account.NewRedisCache(redisClient, cfg.Redis.CacheTTL)),
		account.WithCatalog(account.NewCatalog(cfg.Regions)),
		account.WithAdmins(toIDs(cfg.Auth.AdminUIDs)...),
		account.WithLocation(cfg.Location),
		account.WithQuota(quotaSvc),
	}
	if cfg.AI.GeminiKey != "" {
		extractor, err := ai.NewGeminiExtractor(ctx, cfg.AI.GeminiKey)
		if err != nil {
			log.Fatalf("gemini: %v", err)
		}
		defer extractor.Close()
		accountOpts = append(accountOpts, account.WithOracle(extractor))
	} else {
		log.Warn("GEMINI_API_KEY not set; document verification disabled")
	}
	accountSvc := account.NewService(account.NewStore(dbPool, retry), accountOpts...)

	sinks := []notify.Sink{notify.LogSink{}}
	if cfg.AMQP.URL != "" {
		conn, ch, err := infra.DialAMQP(cfg.AMQP.URL, cfg.AMQP.Exchange)
		if err != nil {
			log.Fatalf("amqp: %v", err)
		}
		defer conn.Close()
		sinks = append(sinks, notify.NewAMQPSink(ch, cfg.AMQP.Exchange))
	}
	if fbApp != nil {
		messenger, err := infra.NewMessaging(ctx, fbApp)
		if err != nil {
			log.Fatalf("fcm: %v", err)
		}
		sinks = append(sinks, notify.NewPushSink(messenger, func(ctx context.Context, id types.ID) (string, error) {
			p, err := accountSvc.Profile(ctx, id)
			if err != nil {
				return "", err
			}
			return p.DeviceToken, nil
		}))
	}
	relay := notify.NewRelay(cfg.Notify.QueueSize, sinks...)
	// The relay outlives the HTTP server so in-flight requests can still notify.
	relayCtx, stopRelay := context.WithCancel(context.Background())
	relayDone := make(chan struct{})
	go func() {
		defer close(relayDone)
		relay.Run(relayCtx)
	}()

	hub := feed.NewRedisHub(redisClient)
	routeStore := route.NewStore(dbPool, retry)
	routeSvc := route.NewService(routeStore, accountSvc, relay, hub)
	assignmentSvc := assignment.NewService(assignment.NewStore(dbPool, retry), routeStore, accountSvc, relay, hub)
	exportSvc := export.NewService(accountSvc)

	server := httptransport.NewServer(httptransport.ServerDeps{
		Verifier:    verifier,
		Routes:      routeSvc,
		Assignments: assignmentSvc,
		Accounts:    accountSvc,
		Quota:       quotaSvc,
		Export:      exportSvc,
		Feed:        hub,
	})
	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           server.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.WithField("addr", cfg.HTTP.Addr).Info("http listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http: %v", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("http shutdown: %v", err)
	}
	stopRelay()
	<-relayDone
}

func toIDs(uids []string) []types.ID {
	out := make([]types.ID, 0, len(uids))
	for _, u := range uids {
		out = append(out, types.ID(u))
	}
	return out
}
