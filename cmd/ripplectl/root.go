package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/OFFIS-RIT/ripple/internal/app"
	"github.com/OFFIS-RIT/ripple/internal/config"
	"github.com/OFFIS-RIT/ripple/internal/util"
	"github.com/OFFIS-RIT/ripple/pkg/logger"
	"github.com/OFFIS-RIT/ripple/pkg/logger/console"

	"github.com/spf13/cobra"
)

var globalFlags struct {
	corpus  string
	adapter string
	debug   bool
}

var rootCmd = &cobra.Command{
	Use:   "ripplectl",
	Short: "Explore causal relationships in a news corpus",
	Long:  "ripplectl loads a corpus, discovers causal relationships between its\narticles and prints the requested analysis as JSON.",
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	SilenceUsage: true,
}

func init() {
	f := rootCmd.PersistentFlags()
	f.StringVar(&globalFlags.corpus, "corpus", "", "Corpus JSON file (overrides CORPUS_PATH)")
	f.StringVar(&globalFlags.adapter, "adapter", "", "Model adapter: openai, ollama, gemini or none (overrides AI_ADAPTER)")
	f.BoolVar(&globalFlags.debug, "debug", false, "Debug logging")

	rootCmd.AddCommand(discoverCmd, chainCmd, rippleCmd, predictCmd, pathCmd, statsCmd, loopsCmd, rootsCmd, exportCmd, enqueueCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads the configuration and applies the global flags.
func loadConfig() (config.Config, error) {
	util.LoadEnv()
	if globalFlags.corpus != "" {
		os.Setenv("CORPUS_SOURCE", "file")
		os.Setenv("CORPUS_PATH", globalFlags.corpus)
	}
	if globalFlags.adapter != "" {
		os.Setenv("AI_ADAPTER", globalFlags.adapter)
	}
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}
	logger.Init(console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug:  cfg.Debug || globalFlags.debug,
		JSON:   cfg.LogJSON,
		Prefix: "ripplectl",
	}))
	return cfg, nil
}

// open wires the runtime and, when build is set, builds the graph.
func open(ctx context.Context, build bool) (*app.Runtime, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	rt, err := app.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if build {
		if err := rt.Analyzer.Build(ctx); err != nil {
			rt.Close()
			return nil, err
		}
	}
	return rt, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
