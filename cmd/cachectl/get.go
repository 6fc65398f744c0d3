package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quarrylabs/go-cachekit/cache"
)

var getCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Read a value from the cache",
	Args:  cobra.ExactArgs(1),
	RunE:  runGet,
}

func init() {
	rootCmd.AddCommand(getCmd)
}

func runGet(cmd *cobra.Command, args []string) error {
	return withCache(func(ctx context.Context, c cache.Cache) error {
		found, val, err := cache.GetAs[string](ctx, c, args[0])
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("key %q not found in namespace %q", args[0], namespace)
		}
		fmt.Println(val)
		return nil
	})
}
