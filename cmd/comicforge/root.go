package main

import (
	"context"
	"os"

	"github.com/Nephrolytics-ai/polyglot-media/pkg/blobstore"
	"github.com/Nephrolytics-ai/polyglot-media/pkg/config"
	"github.com/Nephrolytics-ai/polyglot-media/pkg/logging"
	"github.com/Nephrolytics-ai/polyglot-media/pkg/media"
	"github.com/Nephrolytics-ai/polyglot-media/pkg/model"
	"github.com/Nephrolytics-ai/polyglot-media/pkg/utils"
	"github.com/spf13/cobra"
)

// app carries what every subcommand needs once flags have been parsed.
type app struct {
	configPath  string
	envFile     string
	metricsFile string
	verbose     bool

	cfg      *config.Config
	blobs    *blobstore.Store
	metrics  *media.Metrics
	adapters *media.Adapters
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:          "comicforge",
		Short:        "Educational comic generator backed by Gemini or any OpenAI-compatible API",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.flushMetrics(cmd.Context())
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "comicforge.yaml", "YAML configuration file")
	flags.StringVar(&a.envFile, "env-file", ".env", "dotenv file loaded before the environment is read")
	flags.StringVar(&a.metricsFile, "metrics-file", "", "write call metrics in Prometheus text format to this file on exit")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		newScriptCmd(a),
		newRenderCmd(a),
		newSpeakCmd(a),
		newOptimizeCmd(a),
		newMCPCmd(a),
	)
	return root
}

func (a *app) setup() error {
	if a.verbose {
		_ = os.Setenv("LOG_LEVEL", "debug")
	}
	if err := config.LoadEnv(a.envFile); err != nil {
		return err
	}

	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	metrics, err := media.NewMetrics()
	if err != nil {
		return utils.WrapIfNotNil(err)
	}

	a.cfg = cfg
	a.blobs = blobstore.New(cfg.GetBlobTTL())
	a.metrics = metrics
	factory := media.NewDefaultFactory(cfg.ClientOptions(model.WithBlobStore(a.blobs))...)
	a.adapters = media.NewAdapters(factory, media.WithMetrics(metrics))
	return nil
}

func (a *app) flushMetrics(ctx context.Context) error {
	if a.metricsFile == "" || a.metrics == nil {
		return nil
	}
	if err := a.metrics.WriteTextfile(a.metricsFile); err != nil {
		return err
	}
	logging.NewLogger(ctx).Debugf("metrics written to %s", a.metricsFile)
	return nil
}
