package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/gops/agent"
	"github.com/hasssanezzz/logcache/cache"
	"github.com/hasssanezzz/logcache/cmd/api"
	"github.com/hasssanezzz/logcache/shared"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type options struct {
	addr   string
	source string
	config string
	debug  bool
}

func parseFlags() options {
	var o options
	flag.StringVar(&o.addr, "a", ":3011", "Host to bind the server to")
	flag.StringVar(&o.source, "s", ".logcache", "Path to the store directory")
	flag.StringVar(&o.config, "c", "", "Path to a YAML config file")
	flag.BoolVar(&o.debug, "d", false, "Debug mode")
	flag.Parse()
	return o
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// loadConfig applies the YAML file, if any, then the -s flag when it was
// given explicitly.
func loadConfig(o options) (*shared.EngineConfig, error) {
	config := shared.NewEngineConfig()
	if o.config != "" {
		loaded, err := shared.LoadConfig(o.config)
		if err != nil {
			return nil, err
		}
		config = loaded
	}

	sourceSet := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "s" {
			sourceSet = true
		}
	})
	if sourceSet || config.Homepath == "" {
		config.Homepath = o.source
	}
	return config, nil
}

func main() {
	o := parseFlags()

	logger, err := newLogger(o.debug)
	if err != nil {
		log.Fatalf("can not create logger: %v", err)
	}
	os.Exit(runMain(o, logger))
}

// runMain returns the process exit code. The logger is synced before
// returning since os.Exit skips deferred calls.
func runMain(o options, logger *zap.Logger) int {
	code := 0
	if err := run(o, logger); err != nil {
		logger.Sugar().Errorw("logcache stopped", "error", err)
		code = 1
	}
	logger.Sync()
	return code
}

func run(o options, logger *zap.Logger) error {
	sugar := logger.Sugar()

	config, err := loadConfig(o)
	if err != nil {
		return err
	}
	config.WithLogger(logger)

	if o.debug {
		sugar.Info("[DEBUG MODE]")
		if err := agent.Listen(agent.Options{ShutdownCleanup: true}); err != nil {
			sugar.Warnw("gops agent not started", "error", err)
		}
		go func() {
			sugar.Info(http.ListenAndServe("localhost:6060", nil))
		}()
	}

	db, err := cache.Open(config.Homepath, *config)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			sugar.Errorw("error closing store", "error", err)
		}
	}()

	mux := http.NewServeMux()
	api.New(db, logger).SetupRoutes(mux)

	server := &http.Server{
		Addr:    o.addr,
		Handler: mux,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sugar.Infow("server is listening", "addr", server.Addr, "store", config.Homepath)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	sugar.Info("server gracefully stopped.")
	return nil
}
