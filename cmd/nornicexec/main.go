// Package main provides the nornicexec CLI entry point.
//
// nornicexec runs small operator plans (id range scans and property updates)
// against a memory or badger graph.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version   = "0.1.0"
	commit    = "dev"
	buildTime = "unknown" // Set via ldflags: -X main.buildTime=$(date +%Y%m%d-%H%M%S)
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "nornicexec",
		Short: "nornicexec - pull-based graph query execution engine",
		Long: `nornicexec executes operator plans against a property graph.

Plans are trees of pull-based operators (NodeByIdSeek, Filter, Sort,
Skip, Limit, Update, Project, Results). Every command builds a plan,
executes it, and prints the result set and statistics.`,
		SilenceUsage: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "Config file (YAML, or TOML when ending in .toml)")
	flags.String("engine", "", "Storage engine: memory or badger (overrides config)")
	flags.String("data-dir", "", "Badger data directory (overrides config)")
	flags.Int("seed", 0, "Create this many nodes before running the command")
	flags.Int("holes-every", 0, "When seeding, delete every k-th node to leave id holes")
	flags.Bool("log-queries", false, "Log start and finish of every query")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("nornicexec v%s (%s) built %s\n", version, commit, buildTime)
		},
	})

	seedCmd := &cobra.Command{
		Use:   "seed",
		Short: "Create nodes in the graph",
		RunE:  runSeed,
	}
	seedCmd.Flags().Int("count", 10, "Number of nodes to create")
	rootCmd.AddCommand(seedCmd)

	scanCmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan nodes by id range",
		Long:  "Run Results <- Project <- [Limit] <- [Skip] <- [Sort] <- [Filter] <- NodeByIdSeek",
		RunE:  runScan,
	}
	addScanFlags(scanCmd)
	scanCmd.Flags().Bool("compact", false, "Write the result set as compact msgpack")
	scanCmd.Flags().Int("workers", 1, "Execute this many plan clones in parallel")
	rootCmd.AddCommand(scanCmd)

	setCmd := &cobra.Command{
		Use:   "set",
		Short: "Set properties on nodes in an id range",
		Long:  "Run Results <- Project <- Update <- [Filter] <- NodeByIdSeek",
		RunE:  runSet,
	}
	addRangeFlags(setCmd)
	setCmd.Flags().String("where", "", "Only update nodes where key=value")
	setCmd.Flags().StringArray("prop", nil, "Property assignment key=value (repeatable); empty value removes the key")
	setCmd.Flags().Bool("replace", false, "Replace all properties instead of merging")
	rootCmd.AddCommand(setCmd)

	explainCmd := &cobra.Command{
		Use:   "explain",
		Short: "Print the operator tree of a scan",
		RunE:  runExplain,
	}
	addScanFlags(explainCmd)
	rootCmd.AddCommand(explainCmd)

	rootCmd.AddCommand(&cobra.Command{
		Use:   "backup <file>",
		Short: "Write a compressed backup of a badger graph",
		Args:  cobra.ExactArgs(1),
		RunE:  runBackup,
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "restore <file>",
		Short: "Load a compressed backup into a badger graph",
		Args:  cobra.ExactArgs(1),
		RunE:  runRestore,
	})

	return rootCmd
}

func addRangeFlags(cmd *cobra.Command) {
	cmd.Flags().Uint64("min", 0, "Lowest node id")
	cmd.Flags().Uint64("max", ^uint64(0), "Highest node id")
	cmd.Flags().Bool("exclusive-min", false, "Exclude --min itself")
	cmd.Flags().Bool("exclusive-max", false, "Exclude --max itself")
}

func addScanFlags(cmd *cobra.Command) {
	addRangeFlags(cmd)
	cmd.Flags().String("where", "", "Only return nodes where key=value")
	cmd.Flags().String("order-by", "", "Sort by this property")
	cmd.Flags().Bool("desc", false, "Sort descending")
	cmd.Flags().Uint64("skip", 0, "Skip this many rows")
	cmd.Flags().Uint64("limit", 0, "Return at most this many rows (0 = all)")
	cmd.Flags().StringSlice("return", nil, "Properties to return instead of the node")
}
