// Command sentineld runs the antivirus engine as a long-lived daemon:
// it loads the signature database, opens the quarantine store, starts
// the file monitor and scheduled scanner, and serves the Admin API
// until it receives a termination signal.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sentineld/avengine/internal/api"
	"github.com/sentineld/avengine/internal/audit"
	"github.com/sentineld/avengine/internal/auth"
	"github.com/sentineld/avengine/internal/config"
	"github.com/sentineld/avengine/internal/monitor"
	"github.com/sentineld/avengine/internal/quarantine"
	"github.com/sentineld/avengine/internal/scanner"
	"github.com/sentineld/avengine/internal/scheduledscan"
	"github.com/sentineld/avengine/internal/signatures"
	"github.com/sentineld/avengine/internal/threatengine"
)

func buildLogger(level string) *zap.Logger {
	lvl := zapcore.InfoLevel
	if level == "debug" {
		lvl = zapcore.DebugLevel
	}
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), zapcore.AddSync(os.Stdout), lvl)
	return zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
}

func main() {
	cfg := config.Load()

	var noAPI bool
	flag.BoolVar(&noAPI, "no-api", false, "run the core engine without starting the Admin API")
	flag.Parse()

	log := buildLogger(cfg.LogLevel)
	defer log.Sync()

	sigStore := signatures.New(log)
	if err := sigStore.Load(cfg.SignatureDBPath); err != nil {
		log.Warn("failed to load signature database, continuing with bootstrap signatures", zap.Error(err))
	}

	qStore, err := quarantine.Open(cfg.QuarantineRoot, log)
	if err != nil {
		log.Fatal("failed to open quarantine store", zap.Error(err))
	}

	engine := threatengine.New(sigStore, qStore, log)
	engine.Configure(cfg.HeuristicsEnabled)
	engine.SetDatabasePath(cfg.SignatureDBPath)

	sc := scanner.New(engine, scanner.DefaultOptions(), log)

	mon := monitor.New(engine, log)
	if cfg.MonitorEnabled {
		mon.Initialize()
		for _, root := range cfg.MonitorRoots {
			mon.AddWatch(root)
		}
		log.Info("file monitor started", zap.Strings("roots", cfg.MonitorRoots))
	}

	sched := scheduledscan.New(sc, log)
	sched.Start()

	var auditStore *audit.Store
	var authSvc *auth.Service
	var httpServer *http.Server

	if !noAPI {
		auditCfg := audit.Config{
			Host: cfg.DBHost, User: cfg.DBUser, Password: cfg.DBPassword,
			DBName: cfg.DBName, Port: cfg.DBPort, SSLMode: cfg.DBSSLMode, TimeZone: "UTC",
		}
		auditStore, err = audit.Open(auditCfg, log)
		if err != nil {
			log.Warn("audit store unavailable, running without persisted history", zap.Error(err))
		}

		authSvc = auth.New(auditStore, log)
		router := api.Router(api.Deps{
			Engine: engine, Scanner: sc, Monitor: mon, Scheduler: sched,
			AuthSvc: authSvc, AuditStore: auditStore,
		})
		httpServer = &http.Server{Addr: cfg.ListenAddr, Handler: router}

		go func() {
			log.Info("admin API listening", zap.String("addr", cfg.ListenAddr))
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("admin API stopped unexpectedly", zap.Error(err))
			}
		}()
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Info("shutting down")

	if httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(ctx); err != nil {
			log.Warn("admin API graceful shutdown failed", zap.Error(err))
		}
	}
	sched.Stop()
	if cfg.MonitorEnabled {
		mon.Shutdown()
	}

	log.Info("shutdown complete")
}
