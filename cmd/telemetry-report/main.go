package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/PraWek/BusinessTelemetry/internal/cohorts"
	"github.com/PraWek/BusinessTelemetry/internal/config"
	"github.com/PraWek/BusinessTelemetry/internal/export"
	"github.com/PraWek/BusinessTelemetry/internal/ingest"
	"github.com/PraWek/BusinessTelemetry/internal/metrics"
	"github.com/PraWek/BusinessTelemetry/internal/report"
	"github.com/PraWek/BusinessTelemetry/internal/storage"
)

var (
	configPath     string
	inputPath      string
	outputDir      string
	stepsFlag      string
	noStepIncrease bool
	logLevel       string

	rootCmd = &cobra.Command{
		Use:   "telemetry-report",
		Short: "Compute funnel, transition and cohort reports from telemetry events",
		Long: `Reads a telemetry CSV, reconstructs sessions and writes the funnel,
sankey transitions, daily cohort conversion, KPIs and retention tables.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runReport,
	}
)

func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "path to the YAML config (default $CONFIG_PATH)")
	rootCmd.Flags().StringVarP(&inputPath, "input", "i", "", "telemetry CSV to analyze")
	rootCmd.Flags().StringVarP(&outputDir, "output", "o", "", "directory for CSV outputs")
	rootCmd.Flags().StringVar(&stepsFlag, "steps", "", "comma separated funnel steps, in order")
	rootCmd.Flags().BoolVar(&noStepIncrease, "no-step-increase", false, "keep backward transitions in the sankey table")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
}

func main() {
	// Setup logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if err := rootCmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("Report failed")
	}
}

func runReport(cmd *cobra.Command, _ []string) error {
	level, err := zerolog.ParseLevel(logLevel)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", logLevel, err)
	}
	zerolog.SetGlobalLevel(level)

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	steps, err := metrics.NewSteps(cfg.Funnel.Steps...)
	if err != nil {
		return err
	}

	log.Info().
		Str("input", cfg.Input).
		Str("output", cfg.Output.Dir).
		Strs("steps", steps).
		Bool("require_step_increase", cfg.StepIncreaseRequired()).
		Str("clickhouse_addr", cfg.ClickHouse.Addr).
		Strs("kafka_brokers", cfg.Kafka.Brokers).
		Str("redis_addr", cfg.Redis.Addr).
		Msg("Configuration loaded")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loaded, err := ingest.ReadFile(cfg.Input, ingest.Options{
		Fields:         cfg.Fields,
		ValueColumn:    cfg.Columns.Value,
		CategoryColumn: cfg.Columns.Category,
		CategoryFill:   cfg.Columns.CategoryFill,
	})
	if err != nil {
		return err
	}

	sinks, err := buildSinks(ctx, cfg)
	if err != nil {
		return err
	}

	processor := report.NewProcessor(report.Options{
		Fields:              cfg.Fields,
		Steps:               steps,
		RequireStepIncrease: cfg.StepIncreaseRequired(),
		OrdersAction:        cfg.Funnel.OrdersAction,
		Activity: cohorts.ActivityOptions{
			ChurnDays:         cfg.Cohorts.ChurnDays,
			ActiveMinSessions: cfg.Cohorts.ActiveMinSessions,
			ActiveRecencyDays: cfg.Cohorts.ActiveRecencyDays,
		},
	}, sinks...)
	defer processor.Close()

	r, err := processor.Run(ctx, loaded.Table)
	if err != nil {
		return err
	}

	for _, row := range r.Funnel.Rows {
		log.Info().
			Str("step", row.Step).
			Int("sessions_reached", row.SessionsReached).
			Int("unique_users_reached", row.UniqueUsersReached).
			Msg("Funnel")
	}
	log.Info().Str("run_id", r.RunID.String()).Msg("Report finished")
	return nil
}

// loadConfig reads the config file when one is given and applies flag overrides
func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}

	cfg := config.Default()
	if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, fmt.Errorf("load config %s: %w", path, err)
		}
		cfg = loaded
	}

	if inputPath != "" {
		cfg.Input = inputPath
	}
	if outputDir != "" {
		cfg.Output.Dir = outputDir
	}
	if stepsFlag != "" {
		cfg.Funnel.Steps = splitSteps(stepsFlag)
	}
	if noStepIncrease {
		disabled := false
		cfg.Funnel.RequireStepIncrease = &disabled
	}
	return cfg, nil
}

func splitSteps(s string) []string {
	var steps []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			steps = append(steps, part)
		}
	}
	return steps
}

func buildSinks(ctx context.Context, cfg *config.Config) ([]report.Sink, error) {
	var sinks []report.Sink

	if cfg.CSVEnabled() {
		csvSink, err := export.NewCSVSink(cfg.Output.Dir)
		if err != nil {
			return nil, fmt.Errorf("create output dir: %w", err)
		}
		sinks = append(sinks, csvSink)
	}

	if cfg.ClickHouse.Addr != "" {
		ch, err := storage.NewClickHouse(cfg.ClickHouse)
		if err != nil {
			return nil, fmt.Errorf("connect to ClickHouse: %w", err)
		}
		log.Info().Msg("Connected to ClickHouse")
		sinks = append(sinks, ch)
	}

	if len(cfg.Kafka.Brokers) > 0 {
		sinks = append(sinks, export.NewKafkaPublisher(cfg.Kafka))
	}

	if cfg.Redis.Addr != "" {
		store := storage.NewSessionStore(cfg.Redis)
		if err := store.Ping(ctx); err != nil {
			log.Warn().Err(err).Msg("Failed to connect to Redis, session export disabled")
			store.Close()
		} else {
			log.Info().Msg("Connected to Redis")
			sinks = append(sinks, store)
		}
	}

	return sinks, nil
}
