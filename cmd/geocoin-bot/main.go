// geocoin-bot runs a JavaScript explorer script against a local world,
// sharing the same database and world as the server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/mkarlsen/geocoin/internal/board"
	"github.com/mkarlsen/geocoin/internal/config"
	"github.com/mkarlsen/geocoin/internal/game"
	"github.com/mkarlsen/geocoin/internal/scripting"
	"github.com/mkarlsen/geocoin/internal/store"
)

func main() {
	scriptPath := flag.String("script", "", "path to the bot script")
	maxSteps := flag.Int("steps", 1000, "maximum tick() calls before the run stops")
	history := flag.Int("history", 0, "list the N most recent bot runs instead of running a script")
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags)

	if *scriptPath == "" && *history <= 0 {
		flag.Usage()
		os.Exit(2)
	}

	var err error
	if *history > 0 {
		err = listRuns(logger, *history)
	} else {
		err = run(logger, *scriptPath, *maxSteps)
	}
	if err != nil {
		logger.Fatalf("fatal: %v", err)
	}
}

func openWorld(cfg config.Config) (*store.SQLiteDB, store.World, error) {
	db, err := store.NewSQLiteDB(cfg.DBPath)
	if err != nil {
		return nil, store.World{}, err
	}

	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, store.World{}, err
	}

	world, err := db.LoadOrCreateWorld(cfg.WorldLabel, cfg.WorldSeed)
	if err != nil {
		db.Close()
		return nil, store.World{}, err
	}
	return db, world, nil
}

func run(logger *log.Logger, scriptPath string, maxSteps int) error {
	source, err := os.ReadFile(scriptPath)
	if err != nil {
		return fmt.Errorf("read script: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	db, world, err := openWorld(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

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

	runner := scripting.NewRunner(ctrl, maxSteps)
	stats, err := runner.Run(context.Background(), string(source))

	for _, entry := range runner.Logs() {
		logger.Printf("script: %s", entry.Message)
	}
	if err != nil {
		return err
	}

	if _, err := db.SaveBotRun(store.BotRun{
		ScriptName:     filepath.Base(scriptPath),
		Steps:          stats.Steps,
		Moves:          stats.Moves,
		CoinsCollected: stats.CoinsCollected,
		CoinsDeposited: stats.CoinsDeposited,
	}); err != nil {
		logger.Printf("record run: %v", err)
	}

	logger.Printf("done: steps=%d moves=%d collected=%d deposited=%d",
		stats.Steps, stats.Moves, stats.CoinsCollected, stats.CoinsDeposited)
	return nil
}

func listRuns(logger *log.Logger, limit int) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	db, world, err := openWorld(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	runs, err := db.ListBotRuns(limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		logger.Printf("no recorded runs for world %q", world.Label)
		return nil
	}

	for _, r := range runs {
		logger.Printf("%s %s steps=%d moves=%d collected=%d deposited=%d",
			r.CreatedAt.Format("2006-01-02 15:04:05"), r.ScriptName,
			r.Steps, r.Moves, r.CoinsCollected, r.CoinsDeposited)
	}
	return nil
}
