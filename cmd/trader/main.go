package main

import (
	"flag"
	"fmt"
	"os"

	"ataix-trade-bot-go/internal/ataix"
	"ataix-trade-bot-go/internal/config"
	"ataix-trade-bot-go/internal/journal"
	"ataix-trade-bot-go/internal/ledger"
	"ataix-trade-bot-go/internal/logger"
	"ataix-trade-bot-go/internal/trader"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "./configs", "directory containing config.yml")
	auto := flag.Bool("auto", false, "run the scripted buy ladder instead of the interactive menu")
	flag.Parse()

	// Credentials live in the environment (optionally a .env file), never
	// in the config file or source.
	_ = godotenv.Load()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		// We can't use the logger here because it's not initialized yet.
		panic(fmt.Sprintf("could not load config: %v", err))
	}

	log, err := logger.NewLogger(cfg.Logger.Level, cfg.Logger.Format, cfg.Logger.Output)
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	log.Info("Configuration loaded")

	if !cfg.Ataix.DryRun && cfg.Ataix.ApiKey == "" {
		log.Fatal("ATAIX_API_KEY must be set, or enable ataix.dry_run")
	}

	jnl, err := journal.Open(cfg.Database.DSN, log)
	if err != nil {
		log.Fatal("Failed to open event journal", zap.Error(err))
	}

	client := ataix.NewRestClient(&cfg.Ataix, log)
	store := ledger.NewStore(cfg.Trading.OrderFile)

	var workflow trader.Workflow
	if *auto {
		workflow, err = trader.NewAutoWorkflow(&cfg.Trading)
	} else {
		workflow, err = trader.NewInteractiveWorkflow(&cfg.Trading, os.Stdin, os.Stdout)
	}
	if err != nil {
		log.Fatal("Failed to build workflow", zap.Error(err))
	}

	ctx := trader.WorkflowContext{
		Logger:  log,
		Cfg:     &cfg,
		Client:  client,
		Store:   store,
		Journal: jnl,
	}

	log.Info("Starting workflow",
		zap.String("workflow", workflow.Name()),
		zap.String("symbol", cfg.Trading.Symbol),
		zap.Bool("dry_run", cfg.Ataix.DryRun),
	)
	if err := workflow.Run(ctx); err != nil {
		log.Fatal("Workflow failed", zap.Error(err))
	}
	log.Info("Workflow complete")
}
