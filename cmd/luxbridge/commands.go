package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/luxbridge/internal/infrastructure/database"
	"github.com/nerrad567/luxbridge/internal/infrastructure/logging"
	"github.com/nerrad567/luxbridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/luxbridge/internal/simulator"
	"github.com/nerrad567/luxbridge/migrations"
)

func newRootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:           "luxbridge",
		Short:         "luxbridge: light-threshold shade controller over MQTT",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), configPath)
		},
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", "",
		"Path to config file (default $"+configEnvVar+" or "+defaultConfigPath+")")

	cmd.AddCommand(runCmd(&configPath), simulateCmd(&configPath), migrateCmd(&configPath), versionCmd())
	return cmd
}

func runCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the bridge until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), *configPath)
		},
	}
}

func simulateCmd(configPath *string) *cobra.Command {
	var interval time.Duration

	c := &cobra.Command{
		Use:   "simulate",
		Short: "Run the device simulator: fake sensor readings and a shade that obeys commands",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return simulate(cmd.Context(), *configPath, interval)
		},
	}

	c.Flags().DurationVar(&interval, "interval", 0, "Publish interval (overrides simulator.interval)")
	return c
}

// Schema actions for the migrate command.
const (
	migrateUp     = "up"
	migrateDown   = "down"
	migrateStatus = "status"
)

func migrateCmd(configPath *string) *cobra.Command {
	c := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the decision log schema",
	}

	actions := []struct {
		name  string
		short string
	}{
		{migrateUp, "Apply pending migrations"},
		{migrateDown, "Roll back the most recent migration"},
		{migrateStatus, "List applied and pending migrations"},
	}
	for _, a := range actions {
		a := a // per-iteration copy; go.mod targets go1.21 loop semantics
		c.AddCommand(&cobra.Command{
			Use:   a.name,
			Short: a.short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return migrate(cmd.Context(), *configPath, a.name, cmd.OutOrStdout())
			},
		})
	}
	return c
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "luxbridge %s (commit %s, built %s)\n", version, commit, date)
			return err
		},
	}
}

// simulate runs the device simulator until ctx is cancelled.
func simulate(ctx context.Context, flagPath string, interval time.Duration) error {
	cfg, configPath, err := loadConfig(flagPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if interval < 0 {
		return fmt.Errorf("--interval must not be negative")
	}
	if interval > 0 {
		cfg.Simulator.Interval = interval
	}

	log := logging.New(cfg.Logging, version)
	log.Info("starting luxbridge simulator",
		"version", version,
		"config", configPath,
		"interval", cfg.Simulator.Interval.String(),
	)

	mqttCfg := cfg.MQTT
	mqttCfg.Broker.ClientID = cfg.Simulator.ClientID

	sim, err := simulator.New(cfg.Simulator, mqtt.ResolveTopics(cfg.Topics), log)
	if err != nil {
		return fmt.Errorf("building simulator: %w", err)
	}
	return sim.Run(ctx, mqttCfg)
}

// migrate runs one schema action against database.path. database.enabled
// is not required, so the log can be prepared before it is switched on.
func migrate(ctx context.Context, flagPath, action string, out io.Writer) error {
	cfg, _, err := loadConfig(flagPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	db, err := database.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close() //nolint:errcheck // read-mostly command, nothing to flush

	switch action {
	case migrateUp:
		if err := db.Migrate(ctx, migrations.FS, migrations.Dir); err != nil {
			return fmt.Errorf("running migrations: %w", err)
		}
	case migrateDown:
		if err := db.MigrateDown(ctx, migrations.FS, migrations.Dir); err != nil {
			return fmt.Errorf("rolling back migration: %w", err)
		}
	case migrateStatus:
	default:
		return fmt.Errorf("unknown migrate action %q", action)
	}

	applied, pending, err := db.MigrationStatus(ctx, migrations.FS, migrations.Dir)
	if err != nil {
		return fmt.Errorf("reading migration status: %w", err)
	}
	for _, r := range applied {
		fmt.Fprintf(out, "applied  %s  %s\n", r.Version, r.AppliedAt.Format(time.RFC3339))
	}
	for _, m := range pending {
		fmt.Fprintf(out, "pending  %s  %s\n", m.Version, m.Name)
	}
	return nil
}
