package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/redis/go-redis/v9"

	app "github.com/tbxark/flowagent"
	"github.com/tbxark/flowagent/agent"
	"github.com/tbxark/flowagent/config"
	"github.com/tbxark/flowagent/log"
	"github.com/tbxark/flowagent/registry"
	"github.com/tbxark/flowagent/server"
	"github.com/tbxark/flowagent/store"
	"github.com/tbxark/flowagent/validate"
)

type flowAgent struct {
	cfg          *config.Config
	registry     registry.Registry
	closers      []func() error
	store        store.Store
	orchestrator *agent.Orchestrator
	httpServer   *http.Server
	quit         chan os.Signal
}

var (
	ErrOpenRegistry    = errors.New("failed to open flow registry")
	ErrConnectRedis    = errors.New("failed to connect to redis")
	ErrCreateChatModel = errors.New("failed to create chat model")
)

func main() {
	path := flag.String("config", "", "path to a JSON config file")
	local := flag.Bool("local", false, "use keyword matching instead of a language model")
	flag.Parse()

	cfg, err := loadConfig(*path)
	if err != nil {
		slog.Error("Invalid configuration", log.Error(err))
		os.Exit(1)
	}

	s := &flowAgent{
		cfg:  cfg,
		quit: make(chan os.Signal, 1),
	}
	s.setupLogging()

	if err := s.run(*local); err != nil {
		slog.Error("Failed to start application", log.Error(err))
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	cfg := config.NewDefaultConfig()
	if path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (s *flowAgent) run(local bool) error {
	ctx := context.Background()
	defer s.close()

	if err := s.initializeRegistry(ctx); err != nil {
		return err
	}
	if err := s.initializeStore(ctx); err != nil {
		return err
	}
	if err := s.initializeOrchestrator(ctx, local); err != nil {
		return err
	}
	s.startServer()

	signal.Notify(s.quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(s.quit)
	<-s.quit

	s.shutdown()
	return nil
}

func (s *flowAgent) setupLogging() {
	level := log.ParseLevel(s.cfg.LogLevel)

	env := os.Getenv("ENV")
	logger := log.NewWithLevel(app.Name, env, app.Version, level)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level)

	slog.Info("FlowAgent starting",
		slog.String("log_level", s.cfg.LogLevel))

	slog.Info("Configuration loaded",
		slog.String("registry_url", s.cfg.RegistryURL),
		slog.String("bucket_url", s.cfg.BucketURL),
		slog.String("state_store", s.cfg.StateStore),
		slog.String("model", s.cfg.Model),
		slog.String("api_host", s.cfg.APIHost),
		slog.Int("api_port", s.cfg.APIPort))
}

func (s *flowAgent) initializeRegistry(ctx context.Context) error {
	if s.cfg.BucketURL == "" {
		s.registry = registry.NewHTTPRegistry(s.cfg.RegistryURL, s.cfg.HTTPTimeout)
		return nil
	}
	reg, err := registry.OpenBucketRegistry(ctx, s.cfg.BucketURL)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrOpenRegistry, err)
	}
	s.registry = reg
	s.closers = append(s.closers, reg.Close)
	return nil
}

func (s *flowAgent) initializeStore(ctx context.Context) error {
	if s.cfg.StateStore != config.StateStoreRedis {
		s.store = store.NewMemoryStore()
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     s.cfg.Redis.Addr,
		Password: s.cfg.Redis.Password,
		DB:       s.cfg.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return fmt.Errorf("%w: %w", ErrConnectRedis, err)
	}
	s.store = store.NewRedisStore(client, s.cfg.Redis.Prefix)
	s.closers = append(s.closers, client.Close)
	return nil
}

func (s *flowAgent) initializeOrchestrator(ctx context.Context, local bool) error {
	extractor := agent.NewLocalExtractor()
	if !local {
		cm, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
			APIKey:  s.cfg.APIKey,
			Model:   s.cfg.Model,
			BaseURL: s.cfg.BaseURL,
		})
		if err != nil {
			return fmt.Errorf("%w: %w", ErrCreateChatModel, err)
		}
		if extractor, err = agent.NewToolBasedExtractor(cm); err != nil {
			return fmt.Errorf("%w: %w", ErrCreateChatModel, err)
		}
	}

	remote := validate.NewHTTPValidator(s.cfg.HTTPTimeout)
	s.orchestrator = agent.NewOrchestrator(s.registry, extractor, s.store,
		agent.WithValidator(validate.NewEngine(validate.WithRemote(remote))),
	)
	return nil
}

func (s *flowAgent) startServer() {
	apiServer := server.NewServer(app.Name,
		server.WithOrchestrator(s.orchestrator),
		server.WithRegistry(s.registry),
	)

	s.httpServer = &http.Server{
		Addr:    s.cfg.Addr(),
		Handler: apiServer.SetupRoutes(),
	}

	go func() {
		slog.Info("HTTP server starting",
			slog.String("addr", s.httpServer.Addr))
		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", log.Error(err))
		}
	}()
}

func (s *flowAgent) shutdown() {
	slog.Info("Shutting down")

	ctx, cancel := context.WithTimeout(
		context.Background(), s.cfg.ShutdownTimeout,
	)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		slog.Error("Shutdown failed", log.Error(err))
	}
	slog.Info("Server exited")
}

func (s *flowAgent) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			slog.Error("Close failed", log.Error(err))
		}
	}
}
