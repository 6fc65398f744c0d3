package main

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/quarrylabs/go-cachekit/cache"
	"github.com/quarrylabs/go-cachekit/logger"
	"github.com/quarrylabs/go-cachekit/resilience"
)

var (
	// Global flags.
	redisURL  string
	namespace string
	opTimeout time.Duration
	verbose   bool
)

var rootCmd = &cobra.Command{
	Use:   "cachectl",
	Short: "Inspect and manipulate a Redis-backed namespaced cache",
	Long: `cachectl talks to a Redis cache through the same namespaced,
circuit-protected chain the library hands to applications, so what you
see is what your services see.

Examples:
  # Store and read a value
  cachectl set session-42 '{"user":"alice"}' --ttl 10m
  cachectl get session-42

  # Bump a counter
  cachectl incr requests --delta 5

  # Show namespace statistics
  cachectl stats --namespace sessions`,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&redisURL, "redis", "r", "redis://localhost:6379", "redis connection URL")
	rootCmd.PersistentFlags().StringVarP(&namespace, "namespace", "n", "default", "cache namespace to operate on")
	rootCmd.PersistentFlags().DurationVar(&opTimeout, "timeout", time.Second, "per-operation deadline")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
}

func logLevel() logger.LogLevel {
	if verbose {
		return logger.LevelDebug
	}
	return logger.LevelWarn
}

// withCache connects to Redis, builds the manager chain for the selected
// namespace and runs fn against it. The initial ping is retried so a cache
// that is still coming up does not immediately fail the command.
func withCache(fn func(ctx context.Context, c cache.Cache) error) error {
	ctx := context.Background()
	log := logger.NewConsole(logLevel())

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return fmt.Errorf("invalid redis URL %q: %w", redisURL, err)
	}
	client := redis.NewClient(opts)
	defer client.Close()

	retryCfg := resilience.DefaultRetryConfig()
	retryCfg.MaxRetries = 3
	retryCfg.InitialBackoff = 200 * time.Millisecond
	if err := resilience.Retry(ctx, retryCfg, func() error {
		return client.Ping(ctx).Err()
	}); err != nil {
		return fmt.Errorf("connecting to redis at %s: %w", redisURL, err)
	}

	backend := cache.NewRedis(client)
	manager, err := cache.NewManager(backend,
		cache.WithLogger(log),
		cache.WithOperationTimeout(opTimeout),
	)
	if err != nil {
		return err
	}
	defer manager.Close(ctx)

	c, err := manager.GetCache(namespace)
	if err != nil {
		return err
	}
	return fn(ctx, c)
}
