package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jupark12/meeting-minutes/ledger"
	"github.com/jupark12/meeting-minutes/pipeline"
	"github.com/jupark12/meeting-minutes/transcript"
)

var (
	summarizeModel     string
	summarizeModelName string
	summarizeChunkSize int
	summarizeOverlap   int
)

var summarizeCmd = &cobra.Command{
	Use:   "summarize <file>",
	Short: "Summarize a transcript file and print the summary as JSON",
	Long: `Runs the summary pipeline once, in the foreground, on a .txt, .md or
.pdf transcript. The job is recorded in the configured store like any other.`,
	Args: cobra.ExactArgs(1),
	RunE: runSummarize,
}

func init() {
	summarizeCmd.Flags().StringVar(&summarizeModel, "model", "", "provider (openai, groq, claude, ollama, gemini)")
	summarizeCmd.Flags().StringVar(&summarizeModelName, "model-name", "", "provider model name")
	summarizeCmd.Flags().IntVar(&summarizeChunkSize, "chunk-size", 0, "window size in characters")
	summarizeCmd.Flags().IntVar(&summarizeOverlap, "overlap", -1, "window overlap in characters")
	rootCmd.AddCommand(summarizeCmd)
}

func runSummarize(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	text, err := transcript.Extract(args[0], data)
	if err != nil {
		return fmt.Errorf("read transcript: %w", err)
	}

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	svc, err := buildLLM(ctx, cfg, st, log)
	if err != nil {
		return fmt.Errorf("configure LLM providers: %w", err)
	}

	jobs := ledger.New(st)
	submitter := pipeline.NewSubmitter(jobs, nil, nil, submitDefaults(cfg), log)
	submitter.SetModelConfig(st)

	req := pipeline.SubmitRequest{
		ProcessID: uuid.New().String(),
		Text:      text,
		Model:     summarizeModel,
		ModelName: summarizeModelName,
	}
	if cmd.Flags().Changed("chunk-size") {
		req.ChunkSize = &summarizeChunkSize
	}
	if cmd.Flags().Changed("overlap") {
		req.Overlap = &summarizeOverlap
	}
	task := submitter.Task(ctx, req)

	if _, err := jobs.Create(ctx, task.ProcessID, ""); err != nil {
		return err
	}

	orchestrator := pipeline.NewOrchestrator(jobs, svc, nil, pipelineConfig(cfg), log)
	if err := orchestrator.Run(ctx, task); err != nil {
		return fmt.Errorf("summarize %s: %w", args[0], err)
	}

	rec, err := jobs.Get(ctx, task.ProcessID)
	if err != nil {
		return err
	}
	doc, err := ledger.DecodeResult(rec)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}
