package main

import (
	"context"
	"errors"
	"log"
	"os"

	"go.uber.org/zap"

	"github.com/noah-isme/curriculum-api/internal/repository"
	"github.com/noah-isme/curriculum-api/internal/service"
	"github.com/noah-isme/curriculum-api/pkg/config"
	"github.com/noah-isme/curriculum-api/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx := context.Background()
	opened, err := repository.OpenCollectionStore(ctx, cfg, logr)
	if err != nil {
		logr.Fatal("failed to open collection store", zap.Error(err))
	}
	defer opened.Close() //nolint:errcheck

	data := repository.NewDataContext(opened.Store, logr)
	if err := data.Load(ctx); err != nil {
		logr.Fatal("failed to load curriculum collections", zap.Error(err))
	}

	cli := &commandLine{
		importer: service.NewCurriculumService(data, nil, logr),
		users:    repository.NewUserRepository(opened.Store),
		out:      os.Stdout,
		logger:   logr,
	}
	if err := cli.run(ctx, os.Args); err != nil {
		if errors.Is(err, errHelp) {
			os.Exit(2)
		}
		logr.Error("curriculum import failed", zap.Error(err))
		os.Exit(1)
	}
}
