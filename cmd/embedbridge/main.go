// Command embedbridge serves the engine to a host process over stdio.
// Every input line is a JSON call {"id": ..., "op": "...", "args": {...}};
// every output line is the response envelope for one call.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/dshills/embedbridge/binding"
	"github.com/dshills/embedbridge/config"
	"github.com/dshills/embedbridge/host"
	"github.com/dshills/embedbridge/logging"
	"go.uber.org/zap"
)

// maxLineSize bounds one call line; large batches of embeddings are long
const maxLineSize = 256 << 20

type request struct {
	ID   json.RawMessage `json:"id,omitempty"`
	Op   string          `json:"op"`
	Args json.RawMessage `json:"args"`
}

type response struct {
	ID json.RawMessage `json:"id,omitempty"`
	host.Response
}

func main() {
	var (
		configPath = flag.String("config", os.Getenv(config.ConfigPathEnv), "Path to a YAML config file")
		logLevel   = flag.String("log-level", "", "Log level override: debug, info, warn, error")
	)
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
		if err := cfg.Validate(); err != nil {
			log.Fatalf("Invalid configuration: %v", err)
		}
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	table := host.NewTable(binding.WithConfig(cfg), binding.WithLogger(logger))
	router := host.NewRouter(table, logger.Named("host"))

	logger.Info("embedbridge host started",
		zap.String("version", binding.Version),
		zap.String("storage_path", cfg.Storage.Path),
		zap.String("backend", cfg.Storage.Backend))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	done := make(chan error, 1)
	go func() {
		done <- serve(ctx, router, os.Stdin, os.Stdout)
	}()

	select {
	case err = <-done:
	case <-ctx.Done():
		logger.Info("shutting down on signal")
	}

	if closeErr := table.CloseAll(); closeErr != nil {
		logger.Error("failed to close handles", zap.Error(closeErr))
	}
	if err != nil {
		logger.Error("host stopped", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("embedbridge host stopped")
}

// serve answers calls until r is exhausted
func serve(ctx context.Context, router *host.Router, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	out := bufio.NewWriter(w)
	enc := json.NewEncoder(out)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var resp response
		var req request
		if err := json.Unmarshal(line, &req); err != nil {
			resp.Error = &host.ErrorBody{
				Kind:    binding.KindMalformedInput,
				Message: fmt.Sprintf("Request error: invalid call line: %v", err),
			}
		} else {
			resp.ID = req.ID
			resp.Response = router.Call(ctx, req.Op, req.Args)
		}

		if err := enc.Encode(resp); err != nil {
			return fmt.Errorf("failed to write response: %w", err)
		}
		if err := out.Flush(); err != nil {
			return fmt.Errorf("failed to flush response: %w", err)
		}
	}
	return scanner.Err()
}
