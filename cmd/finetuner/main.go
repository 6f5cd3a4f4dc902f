package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/avassilev/finetuner/backbone"
	"github.com/avassilev/finetuner/config"
	"github.com/avassilev/finetuner/pipeline"
	"github.com/avassilev/finetuner/training"
)

func main() {
	configPath := flag.String("config", "configs/config.yml", "path to the YAML configuration file")
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	if flag.NArg() != 1 {
		logger.Fatal("usage: finetuner [-config file] <dataset root>")
	}
	root := flag.Arg(0)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	embedder, err := backbone.NewONNXEmbedder(cfg.Backbone.ModelPath, cfg.Backbone.MetadataPath)
	if err != nil {
		logger.Fatal("failed to load backbone", zap.Error(err))
	}
	defer embedder.Close()

	p, err := pipeline.New(embedder, cfg.Pipeline)
	if err != nil {
		logger.Fatal("failed to create pipeline", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	observer := training.NewLogObserver(logger)

	run, err := p.Run(ctx, root, observer)
	if err != nil {
		logger.Error("training run failed", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("run finished",
		zap.Int("epochs", run.Epochs),
		zap.Float64("accuracy", run.FinalAccuracy),
		zap.Float64("loss", run.FinalLoss),
	)
}
