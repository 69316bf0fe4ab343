package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/classpilot/tool-runtime/internal/agentctx"
	"github.com/classpilot/tool-runtime/internal/config"
	"github.com/classpilot/tool-runtime/internal/gate"
	"github.com/classpilot/tool-runtime/internal/httpapi"
	"github.com/classpilot/tool-runtime/internal/schedule"
	"github.com/classpilot/tool-runtime/internal/schoolapi"
	"github.com/classpilot/tool-runtime/internal/store"
	"github.com/classpilot/tool-runtime/internal/tools"
)

// Runtime owns the wired service graph: store, tool registry, confirmation
// gate, agent context, task dispatcher and the HTTP API server.
type Runtime struct {
	cfg        config.Config
	logger     *slog.Logger
	store      *store.Store
	registry   *tools.Registry
	gate       *gate.Gate
	dispatcher *agentctx.Dispatcher
	tokens     *schoolapi.FileTokenProvider
	httpServer *http.Server
}

func New(cfg config.Config, logger *slog.Logger) (*Runtime, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	metaStore, err := store.New(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	if err := metaStore.AutoMigrate(context.Background()); err != nil {
		metaStore.Close()
		return nil, err
	}

	var tokenProvider schoolapi.TokenProvider
	var fileTokens *schoolapi.FileTokenProvider
	if cfg.SchoolAPITokenFile != "" {
		fileTokens, err = schoolapi.NewFileTokenProvider(cfg.SchoolAPITokenFile, logger.With("component", "token-watcher"))
		if err != nil {
			metaStore.Close()
			return nil, err
		}
		tokenProvider = fileTokens
	} else {
		tokenProvider = schoolapi.StaticTokenProvider(cfg.SchoolAPIToken)
	}

	recordsClient := schoolapi.New(schoolapi.Config{
		BaseURL: cfg.SchoolAPIURL,
		Timeout: time.Duration(cfg.SchoolAPITimeoutSec) * time.Second,
	}, tokenProvider, logger.With("component", "schoolapi"))

	agent := agentctx.New(metaStore, logger.With("component", "agentctx"))
	resolver, err := schedule.NewResolver(agent, logger.With("component", "schedule"))
	if err != nil {
		metaStore.Close()
		return nil, err
	}

	registry := tools.NewRegistry()
	registered := schoolapi.NewTools(recordsClient, logger)
	registered = append(registered, schedule.NewTaskTool(resolver))
	guardianTool := newGuardianMessageTool()
	registered = append(registered, guardianTool)
	for _, tool := range registered {
		if err := registry.Register(tool); err != nil {
			metaStore.Close()
			return nil, err
		}
	}

	callGate := gate.New(registry, map[string]gate.ExecFunc{
		guardianTool.Name(): guardianTool.Deliver(logger.With("component", "guardian-messages")),
	}, gate.Options{
		PendingStore: metaStore,
		TTL:          time.Duration(cfg.PendingTTLSeconds) * time.Second,
		Logger:       logger.With("component", "gate"),
	})
	if err := callGate.Verify(); err != nil {
		metaStore.Close()
		return nil, fmt.Errorf("tool configuration: %w", err)
	}
	restored, err := callGate.Restore(context.Background())
	if err != nil {
		metaStore.Close()
		return nil, err
	}
	if restored > 0 {
		logger.Info("restored pending confirmations", "count", restored)
	}

	dispatcher := agentctx.NewDispatcher(
		metaStore,
		newTaskRunner(logger.With("component", "task-runner")),
		time.Duration(cfg.DispatcherPollSec)*time.Second,
		logger.With("component", "dispatcher"),
	)

	handler := httpapi.NewRouter(httpapi.Dependencies{
		Config:   cfg,
		Store:    metaStore,
		Registry: registry,
		Gate:     callGate,
		Logger:   logger.With("component", "httpapi"),
	})

	return &Runtime{
		cfg:        cfg,
		logger:     logger,
		store:      metaStore,
		registry:   registry,
		gate:       callGate,
		dispatcher: dispatcher,
		tokens:     fileTokens,
		httpServer: &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}
