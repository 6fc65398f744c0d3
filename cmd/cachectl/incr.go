package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quarrylabs/go-cachekit/cache"
)

var incrDelta int64

var incrCmd = &cobra.Command{
	Use:   "incr <key>",
	Short: "Atomically increment a counter",
	Args:  cobra.ExactArgs(1),
	RunE:  runIncr,
}

func init() {
	incrCmd.Flags().Int64Var(&incrDelta, "delta", 1, "amount to add (negative to subtract)")
	rootCmd.AddCommand(incrCmd)
}

func runIncr(cmd *cobra.Command, args []string) error {
	return withCache(func(ctx context.Context, c cache.Cache) error {
		val, err := c.Increment(ctx, args[0], incrDelta)
		if err != nil {
			return err
		}
		fmt.Println(val)
		return nil
	})
}
