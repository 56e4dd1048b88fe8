package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/xzsean666/marketfeed/internal/catalog"
	"github.com/xzsean666/marketfeed/internal/config"
	"github.com/xzsean666/marketfeed/internal/logging"
	"github.com/xzsean666/marketfeed/internal/repository/objectstore"
	"github.com/xzsean666/marketfeed/internal/sync"
)

var (
	dbPath      string
	direction   string
	force       bool
	deleteFlag  bool
	dryRun      bool
	compress    bool
	maxParallel int
	exclude     []string
	quiet       bool
)

var rootCmd = &cobra.Command{
	Use:   "marketfeed-sync [local-path] [s3://bucket/prefix | gs://bucket/prefix]",
	Short: "Reconcile a local folder against an object store bucket",
	Args:  cobra.ExactArgs(2),
	Run:   runSync,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db-path", "./sync.db", "sync catalog path")
	rootCmd.PersistentFlags().String("log-level", "info", "log level")
	rootCmd.Flags().StringVar(&direction, "direction", "l2r", "sync direction: l2r, r2l, or bi")
	rootCmd.Flags().BoolVar(&force, "force", false, "re-transfer files even if the catalog says they're unchanged")
	rootCmd.Flags().BoolVar(&deleteFlag, "delete", false, "delete files on the destination that are absent from the source")
	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false, "compute what would change without writing anything")
	rootCmd.Flags().BoolVar(&compress, "compress", false, "stream remote objects zstd-compressed with a .zst suffix")
	rootCmd.Flags().IntVar(&maxParallel, "max-parallel", 8, "maximum concurrent transfers")
	rootCmd.Flags().StringSliceVar(&exclude, "exclude", nil, "exclude patterns (*suffix, prefix*, *middle*, or a bare substring)")
	rootCmd.Flags().BoolVar(&quiet, "quiet", false, "suppress per-file upload/download progress bars")
}

func runSync(cmd *cobra.Command, args []string) {
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		logging.SetLevel(level)
	}

	localPath := args[0]
	bucketConfig, err := objectstore.ParseBucketConfig(stripPrefixPath(args[1]))
	if err != nil {
		log.Fatalf("invalid destination: %v", err)
	}
	remotePrefix := extractPrefix(args[1])

	ctx := context.Background()
	repo, err := buildRepository(ctx, bucketConfig)
	if err != nil {
		log.Fatalf("build object repository: %v", err)
	}

	store, err := catalog.Open(dbPath)
	if err != nil {
		log.Fatalf("open sync catalog at %s: %v", dbPath, err)
	}
	defer store.Close()

	engine := &sync.Engine{
		Repo:         repo,
		Catalog:      catalog.NewSyncCatalog(store),
		LocalRoot:    localPath,
		RemotePrefix: remotePrefix,
		Opts: sync.Options{
			Direction:       sync.Direction(direction),
			Force:           force,
			Delete:          deleteFlag,
			DryRun:          dryRun,
			ExcludePatterns: exclude,
			MaxParallel:     maxParallel,
			UseCompression:  compress,
			Quiet:           quiet,
		},
	}

	stats, err := engine.Run(ctx)
	if err != nil {
		log.Fatalf("sync failed: %v", err)
	}
	fmt.Printf("scanned=%d uploaded=%d downloaded=%d deleted=%d skipped=%d errors=%d\n",
		stats.Scanned, stats.Uploaded, stats.Downloaded, stats.Deleted, stats.Skipped, stats.Errors)
}

func buildRepository(ctx context.Context, bucketConfig objectstore.BucketConfig) (objectstore.ObjectRepository, error) {
	switch bucketConfig.Type {
	case objectstore.GCSType:
		client, err := objectstore.NewGCSClient(ctx)
		if err != nil {
			return nil, err
		}
		return objectstore.NewGCSObjectRepository(client, bucketConfig.Name), nil
	default:
		awsCfg, err := config.LoadAWSConfig(ctx)
		if err != nil {
			return nil, err
		}
		factory := objectstore.NewObjectRepositoryFactory(awsCfg, nil)
		return factory.CreateRepository(bucketConfig)
	}
}

// stripPrefixPath drops everything after the bucket name so
// ParseBucketConfig only ever sees "<scheme>://<bucket>".
func stripPrefixPath(uri string) string {
	scheme, rest, ok := strings.Cut(uri, "://")
	if !ok {
		return uri
	}
	bucket, _, _ := strings.Cut(rest, "/")
	return scheme + "://" + bucket
}

// extractPrefix returns the path component after the bucket name, if
// any.
func extractPrefix(uri string) string {
	_, rest, ok := strings.Cut(uri, "://")
	if !ok {
		return ""
	}
	_, prefix, found := strings.Cut(rest, "/")
	if !found {
		return ""
	}
	return prefix
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
