// Package main is the synchdb-worker binary: the long-running process
// that owns one connector's event loop (C17) and exposes it to synchdbctl
// over a control socket (internal/control). It mirrors the teacher's
// cmd/smf/main.go shape (a root cobra.Command with one xCmd() constructor
// per subcommand, flags bound via cmd.Flags().StringVar, RunE doing the
// real work) even though, unlike smf, this binary has exactly one
// meaningful subcommand: "start" runs the worker loop in the foreground
// (SPEC_FULL.md §4.11 — "foreground mode is what is specified and
// tested").
package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"synchdb/internal/applier"
	"synchdb/internal/config"
	"synchdb/internal/connector"
	"synchdb/internal/control"
	"synchdb/internal/dml"
	"synchdb/internal/engine"
	"synchdb/internal/logging"
	"synchdb/internal/model"
	"synchdb/internal/rules"
	"synchdb/internal/schemacache"
	"synchdb/internal/worker"
)

type startFlags struct {
	configPath string
	ruleFile   string
	socketDir  string
	logFile    string
	engineCmd  string
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "synchdb-worker",
		Short: "Runs one change-data-capture connector's worker loop",
	}
	rootCmd.AddCommand(startCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func startCmd() *cobra.Command {
	flags := &startFlags{}
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start a connector's worker loop in the foreground",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runStart(flags)
		},
	}

	cmd.Flags().StringVar(&flags.configPath, "config", "", "Path to the connector's TOML configuration file (required)")
	cmd.Flags().StringVar(&flags.ruleFile, "rules", "", "Path to the rule document JSON file (overrides the config file's rule_file)")
	cmd.Flags().StringVar(&flags.socketDir, "socket-dir", "/tmp/synchdb", "Directory the control socket is created under")
	cmd.Flags().StringVar(&flags.logFile, "log-file", "", "Path to the rotating log file (console-only if empty)")
	cmd.Flags().StringVar(&flags.engineCmd, "engine-command", "synchdb-engine", "Upstream engine subprocess to launch")

	return cmd
}

func runStart(flags *startFlags) error {
	if flags.configPath == "" {
		return fmt.Errorf("--config is required")
	}

	cfg, err := config.LoadConnectorConfig(flags.configPath)
	if err != nil {
		return fmt.Errorf("synchdb-worker: load config: %w", err)
	}
	if flags.ruleFile != "" {
		cfg.RuleFile = flags.ruleFile
	}

	logCfg := logging.DefaultConfig()
	logCfg.FilePath = flags.logFile
	logger := logging.New(logCfg, cfg.Name, cfg.SourceDialect)
	defer logger.Sync()

	ruleStore, err := rules.LoadDocument(cfg.RuleFile)
	if err != nil {
		logging.Log(logger, logging.KindRuleFileMalformed, "failed to load rule file", zap.Error(err), zap.String("path", cfg.RuleFile))
		return fmt.Errorf("synchdb-worker: load rules: %w", err)
	}

	db, err := sql.Open("mysql", cfg.TargetDSN)
	if err != nil {
		return fmt.Errorf("synchdb-worker: open target: %w", err)
	}
	defer db.Close()

	cache := schemacache.New(db)
	app := applier.New(db)

	kind, err := connectorKindFor(cfg.SourceDialect)
	if err != nil {
		return err
	}

	offsetDir := filepath.Join(flags.socketDir, "offsets")
	eng := engine.New(flags.engineCmd, nil, offsetDir)

	shared := connector.New()
	shared.Register(cfg.Name, os.Getpid(), cfg.SourceDialect)

	mode := dml.ModeSQL
	if cfg.DirectApply {
		mode = dml.ModeDirectApply
	}

	w := worker.New(
		cfg.Name,
		cfg.SourceDialect,
		kind,
		cfg.SourceDB,
		shared,
		eng,
		logger,
		ruleStore,
		cache,
		app,
		mode,
		time.Duration(cfg.PollIntervalMS)*time.Millisecond,
	)

	if err := os.MkdirAll(flags.socketDir, 0o755); err != nil {
		return fmt.Errorf("synchdb-worker: create socket dir: %w", err)
	}
	socketPath := filepath.Join(flags.socketDir, cfg.Name+".sock")
	ctrl := control.NewServer(socketPath, shared)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	connInfo := engine.ConnInfo{
		Hostname:     cfg.Hostname,
		Port:         cfg.Port,
		User:         cfg.User,
		Password:     cfg.Password,
		SourceDB:     cfg.SourceDB,
		TableList:    cfg.TableList,
		SnapshotMode: cfg.SnapshotMode,
	}
	if err := eng.Start(ctx, connInfo); err != nil {
		return fmt.Errorf("synchdb-worker: start engine: %w", err)
	}

	controlErrCh := make(chan error, 1)
	go func() { controlErrCh <- ctrl.ListenAndServe(ctx) }()

	runErrCh := make(chan error, 1)
	go func() { runErrCh <- w.Run(ctx) }()

	select {
	case <-ctx.Done():
		<-runErrCh
		return nil
	case err := <-runErrCh:
		return err
	case err := <-controlErrCh:
		if err != nil {
			logger.Error("control socket stopped", zap.Error(err))
		}
		cancel()
		<-runErrCh
		return nil
	}
}

func connectorKindFor(dialect model.SourceDialect) (engine.ConnectorKind, error) {
	switch dialect {
	case model.DialectMySQL:
		return engine.KindMySQL, nil
	case model.DialectSQLServer:
		return engine.KindSQLServer, nil
	case model.DialectOracle:
		return engine.KindOracle, nil
	default:
		return "", fmt.Errorf("synchdb-worker: unsupported source dialect %q", dialect)
	}
}
