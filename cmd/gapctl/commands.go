package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"reallynicca-backend/application/commands"
	"reallynicca-backend/application/queries"
	"reallynicca-backend/domain/core/entities"
	"reallynicca-backend/infrastructure/di"
)

// graphFile is the on-disk graph format read by analyze and store
type graphFile struct {
	Entities      []entities.Entity       `json:"nodes"`
	Relationships []entities.Relationship `json:"edges"`
}

type app struct {
	in           io.Reader
	out          io.Writer
	newContainer func(ctx context.Context) (*di.Container, func(), error)

	// flags
	file                  string
	graphID               string
	pretty                bool
	minClusterSize        int
	connectivityThreshold float64
	maxGaps               int
	topBridges            int
	keywordsPerCluster    int
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "gapctl",
		Short:        "Find structural gaps in knowledge graphs",
		SilenceUsage: true,
	}
	root.SetOut(a.out)

	analyzeCmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analyze a graph read from a file or stdin, or a stored graph with --graph-id",
		RunE:  a.runAnalyze,
	}
	analyzeCmd.Flags().StringVarP(&a.file, "file", "f", "-", "graph JSON file, - for stdin")
	analyzeCmd.Flags().StringVar(&a.graphID, "graph-id", "", "analyze a stored graph instead of a file")
	analyzeCmd.Flags().BoolVar(&a.pretty, "pretty", false, "indent the JSON report")
	analyzeCmd.Flags().IntVar(&a.minClusterSize, "min-cluster-size", 0, "smallest community considered for gaps")
	analyzeCmd.Flags().Float64Var(&a.connectivityThreshold, "connectivity-threshold", 0, "connectivity below which a pair is a gap")
	analyzeCmd.Flags().IntVar(&a.maxGaps, "max-gaps", 0, "maximum number of gaps reported")
	analyzeCmd.Flags().IntVar(&a.topBridges, "top-bridges", 0, "bridge candidates per gap")
	analyzeCmd.Flags().IntVar(&a.keywordsPerCluster, "keywords", 0, "representative labels per community")

	storeCmd := &cobra.Command{
		Use:   "store",
		Short: "Store a graph under --graph-id in the configured backend",
		RunE:  a.runStore,
	}
	storeCmd.Flags().StringVarP(&a.file, "file", "f", "-", "graph JSON file, - for stdin")
	storeCmd.Flags().StringVar(&a.graphID, "graph-id", "", "id to store the graph under")
	_ = storeCmd.MarkFlagRequired("graph-id")

	root.AddCommand(analyzeCmd, storeCmd)
	return root
}

func (a *app) runAnalyze(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	container, cleanup, err := a.newContainer(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	options := a.analysisOptions(cmd)

	var result interface{}
	if a.graphID != "" {
		result, err = container.QueryBus.Ask(ctx, queries.DetectGapsForGraphQuery{
			GraphID: a.graphID,
			Options: options,
		})
	} else {
		var graph *graphFile
		graph, err = a.readGraph()
		if err != nil {
			return err
		}
		result, err = container.QueryBus.Ask(ctx, queries.DetectGapsQuery{
			Entities:      graph.Entities,
			Relationships: graph.Relationships,
			Options:       options,
		})
	}
	if err != nil {
		return err
	}

	return a.writeJSON(result)
}

func (a *app) runStore(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	graph, err := a.readGraph()
	if err != nil {
		return err
	}

	container, cleanup, err := a.newContainer(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	err = container.CommandBus.Send(ctx, commands.StoreGraphCommand{
		GraphID:       a.graphID,
		Entities:      graph.Entities,
		Relationships: graph.Relationships,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "stored graph %s: %d nodes, %d edges\n", a.graphID, len(graph.Entities), len(graph.Relationships))
	return nil
}

// analysisOptions turns the flags the user set into per-run overrides
func (a *app) analysisOptions(cmd *cobra.Command) queries.AnalysisOptions {
	var opts queries.AnalysisOptions
	flags := cmd.Flags()

	if flags.Changed("min-cluster-size") {
		opts.MinClusterSize = &a.minClusterSize
	}
	if flags.Changed("connectivity-threshold") {
		opts.ConnectivityThreshold = &a.connectivityThreshold
	}
	if flags.Changed("max-gaps") {
		opts.MaxGaps = &a.maxGaps
	}
	if flags.Changed("top-bridges") {
		opts.TopBridges = &a.topBridges
	}
	if flags.Changed("keywords") {
		opts.KeywordsPerCluster = &a.keywordsPerCluster
	}
	return opts
}

func (a *app) readGraph() (*graphFile, error) {
	var r io.Reader = a.in
	if a.file != "-" && a.file != "" {
		f, err := os.Open(a.file)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}

	var graph graphFile
	decoder := json.NewDecoder(r)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&graph); err != nil {
		return nil, fmt.Errorf("invalid graph JSON: %w", err)
	}
	return &graph, nil
}

func (a *app) writeJSON(v interface{}) error {
	encoder := json.NewEncoder(a.out)
	if a.pretty {
		encoder.SetIndent("", "  ")
	}
	return encoder.Encode(v)
}
