package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quarrylabs/go-cachekit/cache"
)

var delCmd = &cobra.Command{
	Use:   "del <key>",
	Short: "Remove a key from the cache",
	Args:  cobra.ExactArgs(1),
	RunE:  runDel,
}

func init() {
	rootCmd.AddCommand(delCmd)
}

func runDel(cmd *cobra.Command, args []string) error {
	return withCache(func(ctx context.Context, c cache.Cache) error {
		removed, err := c.Remove(ctx, args[0])
		if err != nil {
			return err
		}
		if !removed {
			fmt.Printf("key %q was not present\n", args[0])
			return nil
		}
		fmt.Printf("removed %s:%s\n", namespace, args[0])
		return nil
	})
}
