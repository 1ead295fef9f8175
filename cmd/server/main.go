package main

import (
	"context"
	"flag"
	"log"
	"math/rand"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"negotiator.ai/internal/agent"
	"negotiator.ai/internal/classifier"
	"negotiator.ai/internal/config"
	"negotiator.ai/internal/negotiation"
	"negotiator.ai/internal/observerproto"
	persistlog "negotiator.ai/internal/persistence/log"
	"negotiator.ai/internal/relay"
	"negotiator.ai/internal/transport/httpapi"
	"negotiator.ai/internal/transport/observer"
)

func main() {
	var (
		configPath = flag.String("config", "./configs/agent.yaml", "agent settings file")
		port       = flag.Int("port", 0, "http listen port (overrides settings)")
		name       = flag.String("name", "", "agent name (overrides settings)")
		dataDir    = flag.String("data", "", "runtime data directory (overrides settings)")
		seed       = flag.Int64("seed", 0, "pricing/phrasing seed (overrides settings; 0 keeps settings)")
		disableDB  = flag.Bool("disable_db", false, "disable the negotiation index")
		disableLog = flag.Bool("disable_event_log", false, "disable the zstd event log")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if *port > 0 {
		cfg.Port = *port
	}
	if n := strings.TrimSpace(*name); n != "" {
		cfg.Name = n
	}
	if d := strings.TrimSpace(*dataDir); d != "" {
		cfg.DataDir = d
	}
	if *seed != 0 {
		cfg.Seed = *seed
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("config: %v", err)
	}

	var cls agent.Classifier = classifier.Unavailable
	if cfg.Classifier.Enabled() {
		w, err := classifier.NewWatson(classifier.WatsonConfig{
			URL:         cfg.Classifier.URL,
			APIKey:      cfg.Classifier.APIKey,
			AssistantID: cfg.Classifier.AssistantID,
			Version:     cfg.Classifier.Version,
			Timeout:     cfg.Classifier.Timeout(),
			Logger:      log.New(os.Stdout, "[classifier] ", log.LstdFlags|log.Lmicroseconds),
		})
		if err != nil {
			logger.Fatalf("classifier: %v", err)
		}
		cls = w
	} else {
		logger.Printf("classifier not configured; every message will be NotUnderstood")
	}

	var rel agent.Relay = relay.Discard{}
	if orch, ok := cfg.Orchestrator(); ok {
		h, err := relay.NewHTTP(orch.URL(relay.Path), 10*time.Second)
		if err != nil {
			logger.Fatalf("relay: %v", err)
		}
		logger.Printf("relaying to %s", h.URL())
		rel = h
	} else {
		logger.Printf("no %s in service_map; outbound messages are discarded", config.ServiceOrchestrator)
	}

	sinks := negotiation.MultiSink{}
	if !*disableLog {
		eventLog := persistlog.NewEventLogger(cfg.DataDir)
		defer eventLog.Close()
		sinks = append(sinks, eventLog)
	}

	// Optional read-model index backend; the agent never reads it back.
	idx, err := openRuntimeIndex(cfg, *disableDB, logger)
	if err != nil {
		logger.Fatalf("open index backend: %v", err)
	}
	if idx != nil {
		defer idx.Close()
		sinks = append(sinks, idx)
	}

	var a *agent.Agent
	obsSrv := observer.NewServer(func() observerproto.BootstrapResponse {
		st := a.State()
		cps := make([]string, 0, len(st.Ledger))
		for cp := range st.Ledger {
			cps = append(cps, cp)
		}
		return observerproto.BootstrapResponse{Agent: st.Name, Round: st.Round, Counterparties: cps}
	}, logger)
	sinks = append(sinks, obsSrv)

	var rng *rand.Rand
	if cfg.Seed != 0 {
		rng = rand.New(rand.NewSource(cfg.Seed))
	}
	a, err = agent.New(agent.Config{
		Name: cfg.Name,
		Defaults: agent.Defaults{
			Speaker:         cfg.Defaults.Speaker,
			Role:            cfg.Defaults.Role,
			EnvironmentUUID: cfg.Defaults.EnvironmentUUID,
		},
		RoundDuration: cfg.RoundDuration(),
		Classifier:    cls,
		Relay:         rel,
		Sink:          sinks,
		Rand:          rng,
		Logger:        log.New(os.Stdout, "[agent] ", log.LstdFlags|log.Lmicroseconds),
	})
	if err != nil {
		logger.Fatalf("agent: %v", err)
	}

	ctx, cancel := signalContext()
	defer cancel()

	mux := http.NewServeMux()
	httpapi.NewServer(a, logger).Register(mux)
	mux.HandleFunc("/metrics", metricsSource{agent: a, index: idx, observer: obsSrv}.handler())

	enableAdminHTTP := envBool("NEG_ENABLE_ADMIN_HTTP", defaultEnableAdminHTTP())
	enablePprofHTTP := envBool("NEG_ENABLE_PPROF_HTTP", false)
	if enableAdminHTTP {
		// Local-only admin endpoints.
		mux.HandleFunc("/admin/v1/state", httpapi.StateHandler(func() any { return a.State() }))
		mux.HandleFunc("/admin/v1/observer/bootstrap", obsSrv.BootstrapHandler())
		mux.HandleFunc("/admin/v1/observer/ws", obsSrv.WSHandler())
	} else {
		logger.Printf("admin endpoints disabled (NEG_ENABLE_ADMIN_HTTP=false)")
	}
	if enablePprofHTTP {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("agent %s listening on %s", a.Name(), cfg.Addr())
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func defaultEnableAdminHTTP() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("DEPLOY_ENV"))) {
	case "staging", "production":
		return false
	default:
		return true
	}
}
