package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quarrylabs/go-cachekit/cache"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show statistics for the selected namespace",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	return withCache(func(ctx context.Context, c cache.Cache) error {
		stats, err := c.Statistics(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Namespace:   %s\n", stats.Namespace)
		fmt.Printf("Captured:    %s (%s window)\n", stats.CapturedAt.Format("2006-01-02 15:04:05"), stats.Window)
		fmt.Printf("Entries:     %d\n", stats.Size)
		fmt.Printf("Hits:        %d\n", stats.Hits)
		fmt.Printf("Misses:      %d\n", stats.Misses)
		fmt.Printf("Hit rate:    %.1f%%\n", stats.HitRate*100)
		fmt.Printf("Evictions:   %d\n", stats.Evictions)
		if stats.GetLatency.Max > 0 {
			fmt.Printf("Get latency: p50=%s p95=%s p99=%s max=%s\n",
				stats.GetLatency.P50, stats.GetLatency.P95, stats.GetLatency.P99, stats.GetLatency.Max)
		}
		if stats.MemoryTotalBytes > 0 {
			fmt.Printf("Memory:      %.1f%% of %.1f GiB used\n",
				float64(stats.MemoryUsedBytes)/float64(stats.MemoryTotalBytes)*100,
				float64(stats.MemoryTotalBytes)/(1<<30))
		}
		return nil
	})
}
