package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/aidekernel/aide/internal/assembly"
	"github.com/aidekernel/aide/internal/config"
	"github.com/aidekernel/aide/internal/daemon"
	"github.com/aidekernel/aide/internal/delivery"
	"github.com/aidekernel/aide/internal/orchestrator"
	"github.com/aidekernel/aide/internal/recorder"
	"github.com/aidekernel/aide/internal/tier"
	"github.com/aidekernel/aide/internal/types"
)

const (
	defaultL2SystemPrompt = "You are AIde's fast tier. Make small, targeted edits to an existing living page. Prefer single-primitive responses."
	defaultL3SystemPrompt = "You are AIde's default tier. Extend and refine a living page conversationally, emitting the primitives needed to realize the user's request."
	defaultL4SystemPrompt = "You are AIde's flagship tier. Scaffold a new living page from a blank slate, or handle requests the lighter tiers escalate to you."
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the AIde server: orchestrator, flight recorder, and duplex delivery channel",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	lock, err := daemon.Acquire(dataDir)
	if err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	defer lock.Release()

	store, err := assembly.Open(ctx, filepath.Join(dataDir, "aide.db"))
	if err != nil {
		return fmt.Errorf("serve: open store: %w", err)
	}
	defer store.Close()

	tiers, err := tier.NewRegistry(config.GetString("tier.api-key"), tierConfigs(false))
	if err != nil {
		return fmt.Errorf("serve: build tier registry: %w", err)
	}

	var opts []orchestrator.Option
	opts = append(opts, orchestrator.WithBlueprint(loadBlueprint()))

	if hasShadowTiers() {
		shadow, err := tier.NewRegistry(config.GetString("tier.api-key"), tierConfigs(true))
		if err != nil {
			return fmt.Errorf("serve: build shadow tier registry: %w", err)
		}
		opts = append(opts, orchestrator.WithShadowRegistry(shadow))
	}

	recPath := config.GetString("recorder.path")
	if !filepath.IsAbs(recPath) {
		recPath = filepath.Join(dataDir, filepath.Base(recPath))
	}
	sink := recorder.NewWriter(recPath, 100, 5, 28)
	defer sink.Close()

	rec := recorder.New(sink, logger,
		config.GetInt("recorder.queue-capacity"),
		config.GetInt("recorder.batch-size"),
		config.GetDuration("recorder.flush-interval"))
	defer rec.Close()

	hub := delivery.NewHub(logger)
	orch := orchestrator.New(store, tiers, hub, rec, opts...)

	handler := delivery.NewHandler(hub, &storeLoader{store: store}, &orchestratorAdapter{orch: orch}, logger)

	mux := http.NewServeMux()
	mux.Handle("/ws", handler)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	addr := config.GetString("server.listen")
	server := &http.Server{Addr: addr, Handler: mux}

	serverErrc := make(chan error, 1)
	go func() {
		logger.Info("serve: listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrc <- err
		}
	}()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigc:
		logger.Info("serve: received signal, shutting down", "signal", sig.String())
	case err := <-serverErrc:
		logger.Error("serve: listener failed", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := orch.Shutdown(shutdownCtx); err != nil {
		logger.Warn("serve: orchestrator shutdown", "error", err)
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("serve: http shutdown", "error", err)
	}
	return nil
}

func tierConfigs(shadow bool) map[tier.Name]tier.Config {
	key := func(name string) string {
		if shadow {
			return "tier." + name + ".shadow-model"
		}
		return "tier." + name + ".model"
	}
	return map[tier.Name]tier.Config{
		tier.L2: {Model: config.GetString(key("l2")), SystemPrompt: defaultL2SystemPrompt, Timeout: config.GetDuration("tier.l2.timeout")},
		tier.L3: {Model: config.GetString(key("l3")), SystemPrompt: defaultL3SystemPrompt, Timeout: config.GetDuration("tier.l3.timeout")},
		tier.L4: {Model: config.GetString(key("l4")), SystemPrompt: defaultL4SystemPrompt, Timeout: config.GetDuration("tier.l4.timeout")},
	}
}

func hasShadowTiers() bool {
	return config.GetString("tier.l2.shadow-model") != "" ||
		config.GetString("tier.l3.shadow-model") != "" ||
		config.GetString("tier.l4.shadow-model") != ""
}

func loadBlueprint() types.Blueprint {
	path := config.GetString("page.default-blueprint")
	if path == "" || path == "default" {
		return assembly.DefaultBlueprint
	}
	bp, err := assembly.LoadBlueprintFile(path)
	if err != nil {
		logger.Warn("serve: load default blueprint file, falling back to built-in default", "path", path, "error", err)
		return assembly.DefaultBlueprint
	}
	return bp
}

// storeLoader adapts assembly.Load to delivery.PageLoader, which only needs
// a page's current snapshot for the initial replay (§6.3).
type storeLoader struct {
	store *assembly.Store
}

func (l *storeLoader) LoadSnapshot(ctx context.Context, pageID string) (types.PageState, error) {
	file, err := assembly.Load(ctx, l.store, pageID)
	if err != nil {
		return types.PageState{}, err
	}
	return file.State, nil
}

// orchestratorAdapter bridges delivery.Submitter's package-local request/
// result shape to orchestrator.Orchestrator.Submit's concrete types, so
// internal/delivery never has to import internal/orchestrator (the same
// accept-interfaces shape the orchestrator itself uses for Broadcaster/
// FlightRecorder/TierSource).
type orchestratorAdapter struct {
	orch *orchestrator.Orchestrator
}

func (a *orchestratorAdapter) Submit(ctx context.Context, req delivery.SubmitRequest) (delivery.SubmitResult, error) {
	turnReq := orchestrator.TurnRequest{
		PageID:       req.PageID,
		TurnID:       req.TurnID,
		Prompt:       req.Prompt,
		HasPriorTurn: req.HasPriorTurn,
		ActorTier:    req.ActorTier,
	}
	if req.DirectEdit != nil {
		turnReq.DirectEdit = &orchestrator.DirectEdit{
			EntityID: req.DirectEdit.EntityID,
			Field:    req.DirectEdit.Field,
			Value:    req.DirectEdit.Value,
		}
	}

	result, err := a.orch.Submit(ctx, turnReq)
	if err != nil {
		return delivery.SubmitResult{Err: err}, err
	}
	return delivery.SubmitResult{Err: result.Err}, nil
}
