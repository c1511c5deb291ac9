package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jupark12/meeting-minutes/inbox"
	"github.com/jupark12/meeting-minutes/ledger"
	"github.com/jupark12/meeting-minutes/models"
	"github.com/jupark12/meeting-minutes/pipeline"
	"github.com/jupark12/meeting-minutes/queue"
	"github.com/jupark12/meeting-minutes/server"
	"github.com/jupark12/meeting-minutes/worker"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the summary workers",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	wsManager := models.NewWebSocketManager(log)
	jobs := ledger.New(st, ledger.WithNotifier(wsManager.BroadcastJobUpdate))

	svc, err := buildLLM(ctx, cfg, st, log)
	if err != nil {
		return fmt.Errorf("configure LLM providers: %w", err)
	}
	orchestrator := pipeline.NewOrchestrator(jobs, svc, st, pipelineConfig(cfg), log)

	// Initialize the task queue
	taskQueue, err := queue.NewTaskQueue(cfg.Queue.DataDir, log)
	if err != nil {
		return err
	}

	// Load tasks left over from the last run
	n, err := taskQueue.LoadTasks()
	if err != nil {
		log.Warn(ctx, "Failed to load existing tasks: %v", err)
	} else if n > 0 {
		log.Info(ctx, "Requeued %d tasks from %s", n, cfg.Queue.DataDir)
	}

	pool := worker.NewPool(cfg.Pipeline.Workers, taskQueue, orchestrator, log)
	submitter := pipeline.NewSubmitter(jobs, st, taskQueue, submitDefaults(cfg), log)
	submitter.SetModelConfig(st)

	if cfg.Inbox.Dir != "" {
		in, err := inbox.New(cfg.Inbox.Dir, st, submitter, log, cfg.Inbox.MaxConcurrent)
		if err != nil {
			return fmt.Errorf("start inbox: %w", err)
		}
		defer in.Stop()
		go func() {
			if err := in.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error(ctx, "Inbox stopped: %v", err)
			}
		}()
	}

	srv := server.NewServer(server.Config{
		Addr:           cfg.Server.Addr,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		MaxUploadMB:    cfg.Server.MaxUploadMB,
	}, server.Deps{
		Meetings:   st,
		Jobs:       jobs,
		Submitter:  submitter,
		Connectors: buildConnectors(cfg),
		Settings:   st,
		OnAPIKey:   svc.UseAPIKey,
		Pool:       pool,
		WSManager:  wsManager,
		Log:        log,
	})

	log.Info(ctx, "Meeting summary broker started with %d workers (store: %s, chunk size %d, overlap %d)",
		cfg.Pipeline.Workers, cfg.Store.Driver, cfg.Pipeline.ChunkSize, cfg.Pipeline.OverlapValue())
	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("server failed: %w", err)
	}
	log.Info(context.Background(), "Shut down gracefully")
	return nil
}
