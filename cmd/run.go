// -- cmd/run.go --
package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/prospector-cli/internal/config"
	"github.com/xkilldash9x/prospector-cli/internal/observability"
	"github.com/xkilldash9x/prospector-cli/pkg/agent"
	"github.com/xkilldash9x/prospector-cli/pkg/browser"
	"github.com/xkilldash9x/prospector-cli/pkg/extract"
	"github.com/xkilldash9x/prospector-cli/pkg/gateway"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// newRunCmd creates and configures the `run` command.
func newRunCmd() *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run <task>",
		Short: "Runs the agent against one or more start pages until the task completes",
		Long: `Runs the vision-guided agent. The task is a free-text objective, e.g.
"find contact information for Acme Plumbing in Portland". Each --url
starts an independent run; all runs share one rate-limited model gateway.`,
		Args: cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			// Bind flags to their viper keys so command-line values
			// override the config file and environment.
			if err := viper.BindPFlag("agent.max_steps", cmd.Flags().Lookup("max-steps")); err != nil {
				return err
			}
			if err := viper.BindPFlag("gateway.requests_per_minute", cmd.Flags().Lookup("rpm")); err != nil {
				return err
			}
			if err := viper.BindPFlag("browser.headless", cmd.Flags().Lookup("headless")); err != nil {
				return err
			}
			if err := viper.BindPFlag("agent.concurrency", cmd.Flags().Lookup("concurrency")); err != nil {
				return err
			}
			return viper.BindPFlag("extraction.location", cmd.Flags().Lookup("location"))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := config.NewConfigFromViper(viper.GetViper())
			if err != nil {
				return err
			}
			if cfg.Gateway.APIKey == "" {
				return fmt.Errorf("no API key configured; set PROSPECTOR_GATEWAY_API_KEY or gateway.api_key")
			}

			task := strings.TrimSpace(args[0])
			if task == "" {
				return fmt.Errorf("task must not be empty")
			}
			startURLs, err := cmd.Flags().GetStringSlice("url")
			if err != nil {
				return err
			}
			if len(startURLs) == 0 {
				return fmt.Errorf("at least one --url is required")
			}
			startURLs = normalizeStartURLs(startURLs)
			output, err := cmd.Flags().GetString("output")
			if err != nil {
				return err
			}

			// One pacer and one gateway are shared by every run so the
			// requests-per-minute ceiling holds across all of them.
			pacer := gateway.NewPacer(cfg.Gateway.MinInterval())
			gw := gateway.NewGateway(cfg.Gateway, logger, pacer)
			pipeline := extract.NewPipeline(cfg.Extraction, logger, gw)

			logger.Info("Starting runs",
				zap.String("task", task),
				zap.Strings("urls", startURLs),
				zap.Int("max_steps", cfg.Agent.MaxSteps),
				zap.Int("rpm", cfg.Gateway.RequestsPerMinute),
				zap.Int("concurrency", cfg.Agent.Concurrency))

			results := make([]agent.Result, len(startURLs))
			group, groupCtx := errgroup.WithContext(ctx)
			group.SetLimit(cfg.Agent.Concurrency)
			for i, startURL := range startURLs {
				group.Go(func() error {
					results[i] = runOne(groupCtx, cfg, logger, gw, pipeline, agent.Task{
						Instruction: task,
						StartURL:    startURL,
					})
					return nil
				})
			}
			if err := group.Wait(); err != nil {
				return err
			}

			if output != "" {
				if err := writeResults(output, results); err != nil {
					return fmt.Errorf("failed to write results: %w", err)
				}
				logger.Info("Results written", zap.String("path", output))
			}

			failed := 0
			for _, r := range results {
				logger.Info("Run summary",
					zap.String("run_id", r.RunID),
					zap.String("url", r.FinalURL),
					zap.String("status", string(r.Status)),
					zap.Int("contacts", len(r.Contacts)),
					zap.String("summary", r.Summary))
				if r.Status == agent.StatusFailed {
					failed++
				}
			}
			if failed == len(results) {
				return fmt.Errorf("all %d runs failed", failed)
			}
			return nil
		},
	}

	runCmd.Flags().StringSlice("url", nil, "start URL for a run; repeat for multiple runs")
	runCmd.Flags().Int("max-steps", 0, "maximum decide/act steps per run")
	runCmd.Flags().Int("rpm", 0, "model requests per minute, shared across runs")
	runCmd.Flags().Bool("headless", true, "run the browser headless")
	runCmd.Flags().Int("concurrency", 0, "number of runs executed in parallel")
	runCmd.Flags().String("output", "", "write results to this JSON file")
	runCmd.Flags().String("location", "", "expected location, enables location validation of contacts")

	return runCmd
}

// runOne executes a single task in its own browser session. Failures
// become a Failed result rather than an error so sibling runs continue.
func runOne(ctx context.Context, cfg *config.Config, logger *zap.Logger, gw gateway.Decider, pipeline *extract.Pipeline, task agent.Task) agent.Result {
	session, err := browser.NewSession(ctx, cfg.Browser, logger)
	if err != nil {
		logger.Error("Browser session failed to start",
			zap.String("start_url", task.StartURL), zap.Error(err))
		return agent.Result{
			Status:  agent.StatusFailed,
			Summary: "run failed before completing the task",
			Error:   fmt.Sprintf("browser session: %v", err),
		}
	}
	defer session.Close(context.Background())

	loop := agent.NewLoop(cfg.Agent, logger, gw, pipeline)
	return loop.Run(ctx, session, task)
}

// normalizeStartURLs defaults bare hostnames to https.
func normalizeStartURLs(urls []string) []string {
	out := make([]string, len(urls))
	for i, u := range urls {
		u = strings.TrimSpace(u)
		if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
			u = "https://" + u
		}
		out[i] = u
	}
	return out
}

// writeResults marshals the run results to a JSON file.
func writeResults(path string, results []agent.Result) error {
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
