package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/maltedev/cartsmith/internal/config"
	"github.com/maltedev/cartsmith/internal/models"
	"github.com/maltedev/cartsmith/internal/queue"
	"github.com/maltedev/cartsmith/pkg/logger"
	"github.com/spf13/cobra"
)

var (
	extractTimeout     time.Duration
	extractConcurrency int
)

func init() {
	extractCmd.Flags().DurationVar(&extractTimeout, "timeout", 30*time.Second, "Overall time allowed per URL.")
	extractCmd.Flags().IntVar(&extractConcurrency, "concurrency", 4, "Number of URLs extracted in parallel.")
	rootCmd.AddCommand(extractCmd)
}

var extractCmd = &cobra.Command{
	Use:   "extract <url>... | extract -",
	Short: "Extracts product details from one or more URLs and prints the results as JSON.",
	Long: `Extracts product details from one or more URLs and prints the results as JSON.
With "-" as the only argument the URLs are read from stdin, one per line.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		// stdout carries the results; logs go to stderr.
		log := logger.NewWithWriter(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		service := newService(ctx, cfg, log)

		var (
			q     *queue.Queue
			total int
			fed   = make(chan error, 1)
		)
		if len(args) == 1 && args[0] == "-" {
			q = queue.New(extractConcurrency * 2)
			go func() {
				n, err := queue.Feed(ctx, q, cmd.InOrStdin())
				total = n
				fed <- err
			}()
		} else {
			q = queue.FromURLs(args)
			total = len(args)
			fed <- nil
		}

		var (
			mu      sync.Mutex
			results = make(map[int]models.ExtractionResult)
		)
		queue.Drain(ctx, q, extractConcurrency, func(ctx context.Context, task queue.Task) {
			taskCtx, taskCancel := context.WithTimeout(ctx, extractTimeout)
			defer taskCancel()
			result := service.ExtractFromURL(taskCtx, task.URL)

			mu.Lock()
			results[task.Index] = result
			mu.Unlock()
		})
		if err := <-fed; err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")

		failed := 0
		for i := range total {
			result := results[i]
			if !result.Success {
				failed++
			}
			if err := enc.Encode(result); err != nil {
				return fmt.Errorf("failed to write result: %w", err)
			}
		}

		if failed > 0 {
			return fmt.Errorf("%d of %d extractions failed", failed, total)
		}
		return nil
	},
}
