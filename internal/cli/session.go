package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/mnemo/internal/config"
	"github.com/roach88/mnemo/internal/engine"
	"github.com/roach88/mnemo/internal/logging"
	"github.com/roach88/mnemo/internal/router"
	"github.com/roach88/mnemo/internal/store"
)

// session is an opened store and the engine over it, for one command.
type session struct {
	cfg    *config.Config
	store  *store.Store
	engine *engine.Engine
	log    *zap.Logger
}

// Close releases the store and flushes the logger.
func (s *session) Close() error {
	_ = s.log.Sync()
	return s.store.Close()
}

// formatter builds the output formatter for cmd.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// openSession loads config, opens the store and builds the engine. An empty
// routing table is seeded with the built-in rules; a configured rules file
// replaces the table.
func (o *RootOptions) openSession(ctx context.Context) (*session, error) {
	cfg, err := config.Load(o.Config)
	if err != nil {
		return nil, err
	}
	if o.Database != "" {
		cfg.Database = o.Database
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log := o.logger
	if log == nil {
		level := cfg.Logging.Level
		if o.Verbose {
			level = "debug"
		}
		if log, err = logging.New(level, cfg.Logging.Format); err != nil {
			return nil, err
		}
	}

	st, err := store.Open(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	opts := []engine.Option{
		engine.WithLogger(log),
		engine.WithBatchLimit(cfg.Ingest.BatchMax),
	}
	if o.clock != nil {
		opts = append(opts, engine.WithClock(o.clock))
	}
	if o.ids != nil {
		opts = append(opts, engine.WithRequestIDs(o.ids))
	}
	eng := engine.New(st, opts...)

	if _, err := eng.SeedDefaultRules(ctx); err != nil {
		st.Close()
		return nil, err
	}
	if cfg.RulesFile != "" {
		rules, err := router.LoadRulesFile(cfg.RulesFile)
		if err != nil {
			st.Close()
			return nil, err
		}
		if _, err := eng.ImportRules(ctx, rules); err != nil {
			st.Close()
			return nil, err
		}
	}

	log.Debug("session opened",
		zap.String("database", cfg.Database),
		zap.String("rules_file", cfg.RulesFile),
	)
	return &session{cfg: cfg, store: st, engine: eng, log: log}, nil
}

// withSession runs fn against an opened session and reports any error
// through the formatter.
func (o *RootOptions) withSession(cmd *cobra.Command, fn func(ctx context.Context, s *session, out *OutputFormatter) error) error {
	out := o.formatter(cmd)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	s, err := o.openSession(ctx)
	if err != nil {
		return out.Fail(err)
	}
	defer s.Close()

	if err := fn(ctx, s, out); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			return err
		}
		return out.Fail(err)
	}
	return nil
}
