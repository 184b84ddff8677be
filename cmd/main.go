package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/brettbedarf/filetree/auth"
	"github.com/brettbedarf/filetree/config"
	"github.com/brettbedarf/filetree/internal/util"
	"github.com/brettbedarf/filetree/server"
	"github.com/brettbedarf/filetree/tree"
	"golang.org/x/sync/errgroup"
)

func main() {
	// Parse command line arguments
	var (
		configPath string
		root       string
		listenAddr string
		dbPath     string
		verbose    int
	)
	flag.StringVar(&configPath, "config", "", "Path to a YAML or JSON config file")
	flag.StringVar(&configPath, "c", "", "--config (shorthand)")
	flag.StringVar(&root, "root", "", "Directory holding the managed tree. Default is ./files")
	flag.StringVar(&root, "r", "", "--root (shorthand)")
	flag.StringVar(&listenAddr, "listen", "", "HTTP listen address. Default is :8080")
	flag.StringVar(&listenAddr, "l", "", "--listen (shorthand)")
	flag.StringVar(&dbPath, "db", "", "Path to the user store. Default is filetree.db next to the root")
	flag.IntVar(&verbose, "verbose", 3, "Log verbosity level between 1 (error) and 5 (trace). Default is 3 (info).")
	flag.IntVar(&verbose, "v", 3, "--verbose (shorthand)")
	flag.Parse()

	// Only flags given on the command line override the config file
	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })

	// Initialize logger
	util.InitializeLogger(util.VerbosityToLevel(verbose))
	logger := util.GetLogger("main")

	cfg := config.NewDefaultConfig()
	if configPath != "" {
		override, err := config.LoadConfigOverrideFile(configPath)
		if err != nil {
			logger.Fatal().Err(err).Str("config", configPath).Msg("Failed to load config file")
		}
		cfg.Merge(override)
		logger.Debug().Str("config", configPath).Msg("Config file loaded successfully")
	}
	cliOverride := &config.ConfigOverride{}
	if set["root"] || set["r"] {
		cliOverride.Root = &root
	}
	if set["listen"] || set["l"] {
		cliOverride.ListenAddr = &listenAddr
	}
	if set["db"] {
		cliOverride.DBPath = &dbPath
	}
	if set["verbose"] || set["v"] {
		cliOverride.LogLvl = &verbose
	}
	cfg.Merge(cliOverride)
	if err := cfg.Normalize(); err != nil {
		logger.Fatal().Err(err).Msg("Invalid configuration")
	}
	// The file may have changed the level
	util.InitializeLogger(cfg.LogLvl)
	logger = util.GetLogger("main")

	logger.Info().
		Str("root", cfg.Root).
		Str("listen", cfg.ListenAddr).
		Str("db", cfg.DBPath).
		Msg("FileTree server initializing")

	if err := os.MkdirAll(cfg.Root, os.FileMode(cfg.DirPerms)); err != nil {
		logger.Fatal().Err(err).Str("root", cfg.Root).Msg("Failed to create root directory")
	}
	t, err := tree.NewFromConfig(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to open tree")
	}

	store, err := auth.OpenBoltStore(cfg.DBPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to open user store")
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close user store")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	n, err := store.Seed(ctx, cfg.Users)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to seed users")
		return
	}
	logger.Info().Int("users", n).Msg("Seeded users")
	if n == 0 {
		logger.Warn().Msg("No users configured; only previously stored tokens will be accepted")
	}

	// Serve until a signal arrives or the server fails
	srv := server.New(cfg, t, store)
	addr, done, err := srv.ServeAsync()
	if err != nil {
		logger.Error().Err(err).Str("listen", cfg.ListenAddr).Msg("Failed to listen")
		return
	}
	logger.Info().Str("addr", addr.String()).Msg("Server started successfully")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := <-done; err != nil {
			return fmt.Errorf("server stopped unexpectedly: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("Shutting down")
		return srv.Shutdown(context.Background())
	})

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("Server exited with error")
		return
	}
	logger.Info().Msg("Server shut down successfully")
}
