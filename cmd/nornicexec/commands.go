package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/orneryd/nornicexec/pkg/config"
	"github.com/orneryd/nornicexec/pkg/execution"
	"github.com/orneryd/nornicexec/pkg/queryinfo"
	"github.com/orneryd/nornicexec/pkg/resultset"
	"github.com/orneryd/nornicexec/pkg/storage"
)

// session bundles what every command needs: config, the opened graph and
// the finished-query history.
type session struct {
	cfg     *config.Config
	graph   storage.Engine
	tracker *queryinfo.Tracker
	out     io.Writer
}

// openSession loads config, applies flag overrides, opens the storage
// engine and seeds it when --seed is set.
func openSession(cmd *cobra.Command) (*session, error) {
	flags := cmd.Flags()
	path, _ := flags.GetString("config")
	if path == "" {
		path = config.FindConfigFile()
	}
	cfg, err := config.LoadFromFile(path)
	if err != nil {
		return nil, err
	}
	if v, _ := flags.GetString("engine"); v != "" {
		cfg.Storage.Engine = strings.ToLower(v)
	}
	if v, _ := flags.GetString("data-dir"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v, _ := flags.GetBool("log-queries"); v {
		cfg.Logging.QueryLogEnabled = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	cfg.Memory.ApplyRuntimeMemory()

	graph, err := openEngine(cfg)
	if err != nil {
		return nil, err
	}
	s := &session{
		cfg:     cfg,
		graph:   graph,
		tracker: queryinfo.NewTracker(cfg.Execution.HistorySize),
		out:     cmd.OutOrStdout(),
	}

	count, _ := flags.GetInt("seed")
	holes, _ := flags.GetInt("holes-every")
	if count > 0 {
		if err := seedGraph(graph, count, holes); err != nil {
			s.close()
			return nil, err
		}
	}
	return s, nil
}

func openEngine(cfg *config.Config) (storage.Engine, error) {
	switch cfg.Storage.Engine {
	case config.EngineBadger:
		engine, err := storage.NewBadgerEngineWithOptions(storage.BadgerOptions{
			DataDir:       cfg.Storage.DataDir,
			InMemory:      cfg.Storage.InMemory,
			SyncWrites:    cfg.Storage.SyncWrites,
			NodeCacheSize: cfg.Storage.NodeCacheSize,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open badger engine: %w", err)
		}
		return engine, nil
	default:
		return storage.NewMemoryEngine(), nil
	}
}

func (s *session) close() {
	if err := s.graph.Close(); err != nil {
		log.Printf("[storage] close failed: %v", err)
	}
}

// newQuery creates a QueryContext configured from the session.
func (s *session) newQuery(query string) *execution.QueryContext {
	return execution.NewQueryContext(s.graph, query, execution.Options{
		ResultSetLimit:     s.cfg.Execution.ResultSetSizeLimit,
		QueryLog:           s.cfg.Logging.QueryLogEnabled,
		SlowQueryThreshold: s.cfg.Logging.SlowQueryThreshold,
		Tracker:            s.tracker,
	})
}

// executionContext is cancelled on SIGINT/SIGTERM and after the configured
// query timeout.
func (s *session) executionContext() (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	if s.cfg.Execution.QueryTimeout <= 0 {
		return ctx, stop
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Execution.QueryTimeout)
	return ctx, func() {
		cancel()
		stop()
	}
}

// report logs the finished-query history when query logging is on.
func (s *session) report() {
	if !s.cfg.Logging.QueryLogEnabled {
		return
	}
	for _, info := range s.tracker.Recent() {
		log.Printf("[exec] query %s wait=%s execute=%s report=%s: %s",
			info.ID, info.WaitDuration, info.ExecutionDuration, info.ReportingDuration, info.Query)
	}
}

// seedGraph creates count Person nodes with id and name properties, then
// deletes every holesEvery-th one.
func seedGraph(graph storage.Engine, count, holesEvery int) error {
	ids := make([]storage.NodeID, 0, count)
	for i := 0; i < count; i++ {
		id, err := graph.CreateNode(&storage.Node{
			Labels: []string{"Person"},
			Properties: map[string]any{
				"name":  fmt.Sprintf("person-%d", i),
				"score": int64(i * 7 % 10),
			},
		})
		if err != nil {
			return fmt.Errorf("failed to seed node %d: %w", i, err)
		}
		ids = append(ids, id)
	}
	deleted := 0
	if holesEvery > 0 {
		for i := holesEvery - 1; i < len(ids); i += holesEvery {
			if err := graph.DeleteNode(ids[i]); err != nil {
				return fmt.Errorf("failed to delete node %d: %w", ids[i], err)
			}
			deleted++
		}
	}
	log.Printf("[storage] seeded %d nodes, deleted %d", count, deleted)
	return nil
}

func runSeed(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	count, _ := cmd.Flags().GetInt("count")
	holes, _ := cmd.Flags().GetInt("holes-every")
	if err := seedGraph(s.graph, count, holes); err != nil {
		return err
	}
	n, err := s.graph.NodeCount()
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "Nodes: %d (id bound %d)\n", n, s.graph.UncompactedNodeCount())
	return nil
}

func runScan(cmd *cobra.Command, args []string) error {
	opts, err := scanOptionsFromFlags(cmd.Flags())
	if err != nil {
		return err
	}
	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	compact, _ := cmd.Flags().GetBool("compact")
	workers, _ := cmd.Flags().GetInt("workers")
	query := describeCommand(cmd)

	q := s.newQuery(query)
	plan := buildScanPlan(q, opts)
	defer plan.Free()

	ctx, cancel := s.executionContext()
	defer cancel()

	if workers > 1 {
		ctxs, err := execution.RunParallel(ctx, plan, workers, func(int) *execution.QueryContext {
			return s.newQuery(query)
		})
		for i, c := range ctxs {
			c.Finish()
			if c.ResultSet != nil {
				fmt.Fprintf(s.out, "clone %d: %d rows\n", i, c.ResultSet.Len())
			}
		}
		if err != nil {
			return err
		}
		q = ctxs[0]
	} else if err := plan.Execute(ctx); err != nil {
		return err
	}

	defer s.report()
	return writeResults(s.out, q, compact)
}

func runSet(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	rng, err := rangeFromFlags(flags)
	if err != nil {
		return err
	}
	where, err := whereFromFlags(flags)
	if err != nil {
		return err
	}
	raw, _ := flags.GetStringArray("prop")
	if len(raw) == 0 {
		return fmt.Errorf("at least one --prop key=value is required")
	}
	assigns := make([]propAssign, len(raw))
	for i, r := range raw {
		if assigns[i], err = parseAssignment(r); err != nil {
			return err
		}
	}
	replace, _ := flags.GetBool("replace")

	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	q := s.newQuery(describeCommand(cmd))
	plan := buildSetPlan(q, rng, where, assigns, replace)
	defer plan.Free()

	ctx, cancel := s.executionContext()
	defer cancel()
	if err := plan.Execute(ctx); err != nil {
		return err
	}
	defer s.report()
	return writeResults(s.out, q, false)
}

func runExplain(cmd *cobra.Command, args []string) error {
	opts, err := scanOptionsFromFlags(cmd.Flags())
	if err != nil {
		return err
	}
	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	plan := buildScanPlan(s.newQuery(describeCommand(cmd)), opts)
	defer plan.Free()
	// Init clamps the scan range to the ids in storage
	if err := plan.Init(); err != nil {
		return err
	}
	fmt.Fprint(s.out, plan.Describe())
	return nil
}

func runBackup(cmd *cobra.Command, args []string) error {
	engine, s, err := openBadger(cmd)
	if err != nil {
		return err
	}
	defer s.close()
	if err := engine.BackupToFile(args[0]); err != nil {
		return err
	}
	fmt.Fprintf(s.out, "Backup written to %s\n", args[0])
	return nil
}

func runRestore(cmd *cobra.Command, args []string) error {
	engine, s, err := openBadger(cmd)
	if err != nil {
		return err
	}
	defer s.close()
	if err := engine.RestoreFromFile(args[0]); err != nil {
		return err
	}
	n, err := engine.NodeCount()
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "Restored %d nodes from %s\n", n, args[0])
	return nil
}

func openBadger(cmd *cobra.Command) (*storage.BadgerEngine, *session, error) {
	s, err := openSession(cmd)
	if err != nil {
		return nil, nil, err
	}
	engine, ok := s.graph.(*storage.BadgerEngine)
	if !ok {
		s.close()
		return nil, nil, fmt.Errorf("%s requires the badger engine (--engine badger)", cmd.Name())
	}
	return engine, s, nil
}

// writeResults formats the result set and closes the query info.
func writeResults(w io.Writer, q *execution.QueryContext, compact bool) error {
	defer q.Finish()
	var f resultset.Formatter = resultset.TextFormatter{}
	if compact {
		f = resultset.CompactFormatter{}
	}
	return q.ResultSet.Write(w, f)
}

func rangeFromFlags(flags *pflag.FlagSet) (execution.UnsignedRange, error) {
	minID, _ := flags.GetUint64("min")
	maxID, _ := flags.GetUint64("max")
	exMin, _ := flags.GetBool("exclusive-min")
	exMax, _ := flags.GetBool("exclusive-max")
	if minID > maxID {
		return execution.UnsignedRange{}, fmt.Errorf("--min %d is greater than --max %d", minID, maxID)
	}
	return execution.UnsignedRange{Min: minID, Max: maxID, IncludeMin: !exMin, IncludeMax: !exMax}, nil
}

func whereFromFlags(flags *pflag.FlagSet) (*propAssign, error) {
	raw, _ := flags.GetString("where")
	if raw == "" {
		return nil, nil
	}
	a, err := parseAssignment(raw)
	if err != nil {
		return nil, fmt.Errorf("--where: %w", err)
	}
	return &a, nil
}

func scanOptionsFromFlags(flags *pflag.FlagSet) (scanOptions, error) {
	rng, err := rangeFromFlags(flags)
	if err != nil {
		return scanOptions{}, err
	}
	where, err := whereFromFlags(flags)
	if err != nil {
		return scanOptions{}, err
	}
	opts := scanOptions{Range: rng, Where: where}
	opts.OrderBy, _ = flags.GetString("order-by")
	opts.Desc, _ = flags.GetBool("desc")
	opts.Skip, _ = flags.GetUint64("skip")
	opts.Limit, _ = flags.GetUint64("limit")
	opts.Return, _ = flags.GetStringSlice("return")
	return opts, nil
}

// describeCommand renders the command and its changed flags as the query
// text recorded in logs and history.
func describeCommand(cmd *cobra.Command) string {
	parts := []string{cmd.Name()}
	cmd.Flags().Visit(func(f *pflag.Flag) {
		parts = append(parts, "--"+f.Name+"="+f.Value.String())
	})
	return strings.Join(parts, " ")
}
