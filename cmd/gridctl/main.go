package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/searchgrid/grid/coordinator/split"
	"github.com/searchgrid/grid/pkg"
	"github.com/searchgrid/grid/pkg/coreadmin"
	"github.com/searchgrid/grid/pkg/gridlog"
)

type splitFlags struct {
	shard         string
	splitKey      string
	ranges        string
	numSubShards  int
	fuzz          float64
	method        string
	async         string
	wait          bool
	timing        bool
	createNodeSet []string
}

var (
	coordinatorEndpoint string
	timeout             time.Duration

	splitOpts splitFlags
)

var rootCmd = &cobra.Command{
	Use:     "gridctl -e localhost:7003",
	Version: pkg.VersionRevision(),
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
	SilenceUsage: true,
}

var splitCmd = &cobra.Command{
	Use:   "split <collection>",
	Short: "split a shard of a collection into sub-shards",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return call(cmd, buildSplitRequest(args[0]))
	},
}

var statusCmd = &cobra.Command{
	Use:   "status <request-id>",
	Short: "show the status of an async split",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return call(cmd, coreadmin.NewRequestStatus(args[0]))
	},
}

var locksCmd = &cobra.Command{
	Use:   "locks <collection>",
	Short: "list shards of a collection held by a split lock",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return call(cmd, coreadmin.NewRequest(coreadmin.ActionLockStatus).Set(split.ParamCollection, args[0]))
	},
}

var unlockCmd = &cobra.Command{
	Use:   "unlock <collection>",
	Short: "release every split lock of a collection",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return call(cmd, coreadmin.NewRequest(coreadmin.ActionReleaseLocks).Set(split.ParamCollection, args[0]))
	},
}

// buildSplitRequest turns the split flags into SPLITSHARD parameters.
// Only flags that were set are sent.
func buildSplitRequest(collection string) *coreadmin.Request {
	req := coreadmin.NewRequest(coreadmin.ActionSplitShard).Set(split.ParamCollection, collection)
	if splitOpts.shard != "" {
		req.Set(split.ParamShard, splitOpts.shard)
	}
	if splitOpts.splitKey != "" {
		req.Set(split.ParamSplitKey, splitOpts.splitKey)
	}
	if splitOpts.ranges != "" {
		req.Set(split.ParamRanges, splitOpts.ranges)
	}
	if splitOpts.numSubShards != 0 {
		req.Set(split.ParamNumSubShards, splitOpts.numSubShards)
	}
	if splitOpts.fuzz != 0 {
		req.Set(split.ParamSplitFuzz, splitOpts.fuzz)
	}
	if splitOpts.method != "" {
		req.Set(split.ParamSplitMethod, splitOpts.method)
	}
	if splitOpts.async != "" {
		req.Set(coreadmin.ParamAsync, splitOpts.async)
	}
	if splitOpts.wait {
		req.Set(split.ParamWaitForFinalState, true)
	}
	if splitOpts.timing {
		req.Set(split.ParamTiming, true)
	}
	if len(splitOpts.createNodeSet) > 0 {
		nodes := make([]any, len(splitOpts.createNodeSet))
		for i, n := range splitOpts.createNodeSet {
			nodes[i] = n
		}
		req.Set(split.ParamCreateNodeSet, nodes)
	}
	return req
}

func call(cmd *cobra.Command, req *coreadmin.Request) error {
	gridlog.Zero.Debug().
		Str("endpoint", coordinatorEndpoint).
		Str("request", req.String()).
		Msg("gridctl: calling coordinator")

	cc, err := grpc.NewClient(coordinatorEndpoint, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return err
	}
	defer cc.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()
	resp, err := coreadmin.Invoke(ctx, cc, coreadmin.CollectionsService, req)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return err
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&coordinatorEndpoint, "endpoint", "e", "localhost:7003", "coordinator admin endpoint")
	rootCmd.PersistentFlags().DurationVarP(&timeout, "timeout", "t", 10*time.Minute, "how long to wait for the coordinator")

	splitCmd.Flags().StringVarP(&splitOpts.shard, "shard", "s", "", "shard to split")
	splitCmd.Flags().StringVarP(&splitOpts.splitKey, "split-key", "k", "", "route key whose hash range becomes its own sub-shard")
	splitCmd.Flags().StringVar(&splitOpts.ranges, "ranges", "", "comma separated hex hash ranges of the sub-shards")
	splitCmd.Flags().IntVarP(&splitOpts.numSubShards, "num-sub-shards", "n", 0, "number of sub-shards, 2 to 8")
	splitCmd.Flags().Float64Var(&splitOpts.fuzz, "fuzz", 0, "fraction in [0, 1) by which sub-range sizes vary")
	splitCmd.Flags().StringVarP(&splitOpts.method, "method", "m", "", "index split method: rewrite or link")
	splitCmd.Flags().StringVar(&splitOpts.async, "async", "", "run asynchronously under this request id")
	splitCmd.Flags().BoolVarP(&splitOpts.wait, "wait", "w", false, "wait until sub-shards are active")
	splitCmd.Flags().BoolVar(&splitOpts.timing, "timing", false, "report time spent in each phase")
	splitCmd.Flags().StringSliceVar(&splitOpts.createNodeSet, "create-node-set", nil, "nodes that may host new sub-shard replicas")

	rootCmd.SetVersionTemplate(pkg.VersionTemplate())
	rootCmd.AddCommand(splitCmd, statusCmd, locksCmd, unlockCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
