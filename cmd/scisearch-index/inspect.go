package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/scisearch/internal/ann"
	"github.com/kailas-cloud/scisearch/internal/domain"
)

func init() {
	rootCmd.AddCommand(inspectCmd)
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <file>",
	Short: "Print the structure of an index artifact",
	Args:  cobra.ExactArgs(1),
	RunE:  runInspect,
}

// InspectResult is the response for the inspect command.
type InspectResult struct {
	Path       string `json:"path"`
	Dimensions int    `json:"dimensions"`
	Items      int    `json:"items"`
	Trees      int    `json:"trees"`
	Nodes      int    `json:"nodes"`
	LeafSize   int    `json:"leaf_size"`
	Seed       uint64 `json:"seed"`
	Bytes      int64  `json:"bytes"`
	Mapped     bool   `json:"mapped"`
	Metric     string `json:"metric"`
	Algorithm  string `json:"algorithm"`
}

func runInspect(cmd *cobra.Command, args []string) error {
	idx, err := ann.Load(args[0], ann.LoadOptions{Mmap: true})
	if err != nil {
		return err //nolint:wrapcheck // already names the file
	}
	defer idx.Close()

	st := idx.Stats()
	vc := domain.DefaultVectorConfig()
	res := InspectResult{
		Path:       args[0],
		Dimensions: st.Dimensions,
		Items:      st.Items,
		Trees:      st.Trees,
		Nodes:      st.Nodes,
		LeafSize:   st.LeafSize,
		Seed:       st.Seed,
		Bytes:      st.Bytes,
		Mapped:     st.Mapped,
		Metric:     vc.DistanceMetric,
		Algorithm:  vc.Algorithm,
	}
	return output(cmd.OutOrStdout(), res, func(w io.Writer) {
		fmt.Fprintf(w, "%s\n  dimensions %d\n  items      %d\n  trees      %d\n  nodes      %d\n  leaf size  %d\n  seed       %d\n  bytes      %d (mapped: %v)\n  metric     %s (%s)\n",
			res.Path, res.Dimensions, res.Items, res.Trees, res.Nodes, res.LeafSize, res.Seed, res.Bytes, res.Mapped, res.Metric, res.Algorithm)
	})
}
