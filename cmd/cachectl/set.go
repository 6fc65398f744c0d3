package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	str2duration "github.com/xhit/go-str2duration/v2"

	"github.com/quarrylabs/go-cachekit/cache"
)

var setTTL string

var setCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Store a value in the cache",
	Args:  cobra.ExactArgs(2),
	RunE:  runSet,
}

func init() {
	setCmd.Flags().StringVar(&setTTL, "ttl", "", "time-to-live, e.g. 90s, 10m, 1d (default: namespace TTL)")
	rootCmd.AddCommand(setCmd)
}

func runSet(cmd *cobra.Command, args []string) error {
	var ttl time.Duration
	if setTTL != "" {
		d, err := str2duration.ParseDuration(setTTL)
		if err != nil {
			return fmt.Errorf("invalid ttl %q: %w", setTTL, err)
		}
		ttl = d
	}
	return withCache(func(ctx context.Context, c cache.Cache) error {
		if err := c.Put(ctx, args[0], args[1], ttl); err != nil {
			return err
		}
		fmt.Printf("OK %s:%s\n", namespace, args[0])
		return nil
	})
}
