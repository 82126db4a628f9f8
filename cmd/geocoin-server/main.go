package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mkarlsen/geocoin/internal/api"
	"github.com/mkarlsen/geocoin/internal/board"
	"github.com/mkarlsen/geocoin/internal/config"
	"github.com/mkarlsen/geocoin/internal/game"
	"github.com/mkarlsen/geocoin/internal/store"
	"github.com/mkarlsen/geocoin/internal/survey"
)

func main() {
	logger := log.New(os.Stdout, "[geocoin] ", log.LstdFlags)

	if err := run(logger); err != nil {
		logger.Fatalf("fatal: %v", err)
	}
}

func run(logger *log.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	db, err := store.NewSQLiteDB(cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		return err
	}

	world, err := db.LoadOrCreateWorld(cfg.WorldLabel, cfg.WorldSeed)
	if err != nil {
		return err
	}
	logger.Printf("world %q (id=%s)", world.Label, world.ID)

	ctrl, err := game.NewController(game.Config{
		Seed:             world.Seed,
		TileWidth:        cfg.TileWidth,
		VisibilityRadius: cfg.VisibilityRadius,
		SpawnProbability: cfg.SpawnProbability,
		CoinScale:        cfg.CoinScale,
		InventoryFIFO:    cfg.InventoryFIFO(),
		Start:            board.Point{Lat: cfg.StartLat, Lng: cfg.StartLng},
	}, db, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err := ctrl.Close(); err != nil {
			logger.Printf("shutdown: %v", err)
		}
	}()

	scanner := survey.NewScanner(game.NewGenerator(world.Seed, cfg.SpawnProbability, cfg.CoinScale))
	server := api.NewServer(ctrl, scanner)
	httpServer := &http.Server{
		Addr:         cfg.Addr,
		Handler:      server.Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Printf("listening on %s", cfg.Addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Print("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
