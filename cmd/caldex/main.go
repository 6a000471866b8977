// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"

	"github.com/poiesic/caldex"
	"github.com/poiesic/caldex/config"
	"github.com/poiesic/caldex/ingest"
	"github.com/poiesic/caldex/watch"
)

func main() {
	app := &cli.App{
		Name:  "caldex",
		Usage: "Calendar event vector indexing for retrieval",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to YAML configuration file",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "ingest",
				Usage:  "Index calendar events into the vector store",
				Action: ingestCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "mode",
						Aliases: []string{"m"},
						Usage:   "Ingestion mode: full or incremental",
						Value:   "incremental",
					},
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Re-read and re-embed already indexed files",
					},
					&cli.BoolFlag{
						Name:  "stats",
						Usage: "Report ledger and index statistics without ingesting",
					},
				},
			},
			{
				Name:      "search",
				Usage:     "Query the vector index",
				Action:    searchCommand,
				ArgsUsage: "<query>",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "limit",
						Aliases: []string{"n"},
						Usage:   "Maximum number of results",
						Value:   10,
					},
					&cli.StringFlag{
						Name:  "calendar",
						Usage: "Restrict results to one calendar id",
					},
				},
			},
			{
				Name:   "watch",
				Usage:  "Continuously index new events as they arrive",
				Action: watchCommand,
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:  "debounce",
						Usage: "Quiet period after a filesystem change before indexing",
						Value: 2 * time.Second,
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func openSystem(c *cli.Context) (*caldex.System, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	return caldex.Open(cfg)
}

func ingestCommand(c *cli.Context) error {
	sys, err := openSystem(c)
	if err != nil {
		return err
	}
	defer sys.Close()

	ctx := c.Context

	if c.Bool("stats") {
		stats, err := sys.Ingestor().Stats(ctx)
		if err != nil {
			return err
		}
		return printJSON(stats)
	}

	var report *ingest.Report
	switch c.String("mode") {
	case "full":
		report, err = sys.Ingestor().IngestAll(ctx, c.Bool("force"))
	case "incremental":
		report, err = sys.Ingestor().IngestIncremental(ctx)
	default:
		return fmt.Errorf("invalid mode %q: must be full or incremental", c.String("mode"))
	}
	if err != nil {
		return err
	}

	return printJSON(report)
}

func searchCommand(c *cli.Context) error {
	query := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if query == "" {
		return fmt.Errorf("a query argument is required")
	}

	sys, err := openSystem(c)
	if err != nil {
		return err
	}
	defer sys.Close()

	ctx := c.Context

	vector, err := sys.Embedder().EmbedText(ctx, query)
	if err != nil {
		return fmt.Errorf("embedding query: %w", err)
	}

	var filter map[string]any
	if calendarID := c.String("calendar"); calendarID != "" {
		filter = map[string]any{"calendar_id": calendarID}
	}

	results, err := sys.Index().Query(ctx, vector, c.Int("limit"), filter)
	if err != nil {
		return err
	}

	for i, result := range results {
		fmt.Printf("%d. %s (score %.4f)\n", i+1, result.Document.ID, result.Score)
		for _, line := range strings.Split(result.Document.Content, "\n") {
			if line != "" {
				fmt.Printf("   %s\n", line)
			}
		}
		fmt.Println()
	}
	if len(results) == 0 {
		fmt.Println("no results")
	}
	return nil
}

func watchCommand(c *cli.Context) error {
	sys, err := openSystem(c)
	if err != nil {
		return err
	}
	defer sys.Close()

	cfg := sys.Config()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	run := func(ctx context.Context) error {
		_, err := sys.Ingestor().IngestIncremental(ctx)
		return err
	}

	opts := []watch.Option{watch.WithDebounce(c.Duration("debounce"))}
	if cfg.Indexing.CheckInterval > 0 {
		opts = append(opts, watch.WithResyncInterval(cfg.Indexing.CheckInterval))
	}

	watcher, err := watch.NewWatcher(cfg.EventStorePath(), run, opts...)
	if err != nil {
		return err
	}

	if cfg.Indexing.ReindexOnStartup {
		if _, err := sys.Ingestor().IngestAll(ctx, false); err != nil {
			slog.Error("startup reindex failed", "error", err)
		}
	} else if err := run(ctx); err != nil {
		slog.Error("initial ingestion failed", "error", err)
	}

	if err := watcher.Start(ctx); err != nil {
		return err
	}
	defer watcher.Stop()

	server := &http.Server{Addr: fmt.Sprintf(":%d", cfg.HealthPort)}
	http.Handle("/metrics", promhttp.Handler())
	http.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("health server failed", "error", err)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func setupLogger(c *cli.Context) error {
	// Get log level from flag and normalize to lowercase
	levelStr := strings.ToLower(c.String("log-level"))

	// Map string to slog.Level
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	// Configure slog with the specified level
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
