package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vetta-research/dossier-cli/internal/fetch"
	"github.com/vetta-research/dossier-cli/internal/pipeline"
	"github.com/vetta-research/dossier-cli/internal/synthesis"
	anthropicpkg "github.com/vetta-research/dossier-cli/pkg/anthropic"
	"github.com/vetta-research/dossier-cli/pkg/judicial"
	"github.com/vetta-research/dossier-cli/pkg/messenger"
	"github.com/vetta-research/dossier-cli/pkg/websearch"
)

var (
	runDeliver bool
	runTo      string
	runJSON    bool
)

var runCmd = &cobra.Command{
	Use:   "run <name or document>",
	Short: "Generate a dossier for a single person or organization",
	Long:  "Looks up judicial records and public web sources for the given name, CPF, or CNPJ and synthesizes a risk-scored report. A fresh report for the same subject is served from cache.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("run"); err != nil {
			return err
		}
		if runDeliver && runTo == "" {
			return eris.New("--to is required with --deliver")
		}

		// Init store
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		// Init clients
		judicialClient := judicial.NewClient(cfg.Judicial.Key,
			judicial.WithBaseURL(cfg.Judicial.BaseURL))
		searchClient := websearch.NewClient(cfg.WebSearch.Key,
			websearch.WithBaseURL(cfg.WebSearch.BaseURL))
		anthropicClient := anthropicpkg.NewClient(cfg.Anthropic.Key)

		fetcher := fetch.New(fetch.Config{
			AllowedDomains: cfg.Fetch.AllowedDomains,
			MaxBytes:       cfg.Fetch.MaxBytes,
			Timeout:        time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
			RatePerSecond:  cfg.Fetch.RatePerSecond,
		})

		synth := synthesis.New(anthropicClient, synthesis.Config{
			ExtractModel:    cfg.Anthropic.ExtractModel,
			SynthesizeModel: cfg.Anthropic.SynthesizeModel,
		})

		var messengerClient messenger.Client
		if cfg.Messenger.Enabled {
			messengerClient = messenger.NewClient(cfg.Messenger.WebhookURL, cfg.Messenger.Token)
		}

		// Build pipeline
		p := pipeline.New(cfg, st, judicialClient, searchClient, fetcher, synth, messengerClient)

		query := strings.Join(args, " ")
		report, err := p.Run(ctx, query, pipeline.RunOptions{
			Deliver:     runDeliver,
			Destination: runTo,
		})
		if err != nil {
			return eris.Wrap(err, "pipeline run")
		}

		zap.L().Info("dossier complete",
			zap.Int("risk_score", report.Risk.Value),
			zap.String("risk_level", string(report.Risk.Level)),
			zap.Bool("from_cache", report.FromCache),
			zap.Int("sources", len(report.Sources)),
		)

		if runJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		}

		fmt.Fprintln(os.Stdout, pipeline.Render(report))
		return nil
	},
}

func init() {
	runCmd.Flags().BoolVar(&runDeliver, "deliver", false, "send the finished report through the messaging gateway")
	runCmd.Flags().StringVar(&runTo, "to", "", "delivery destination (phone number or channel ID)")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "print the structured report as JSON instead of plain text")
	rootCmd.AddCommand(runCmd)
}
