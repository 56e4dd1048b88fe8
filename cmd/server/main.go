package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/xzsean666/marketfeed/internal/catalog"
	"github.com/xzsean666/marketfeed/internal/config"
	"github.com/xzsean666/marketfeed/internal/logging"
	"github.com/xzsean666/marketfeed/internal/proxy"
	"github.com/xzsean666/marketfeed/internal/repository/objectstore"
)

var cfg *config.ProxyConfig

var rootCmd = &cobra.Command{
	Use:   "marketfeed-proxy",
	Short: "Transfer proxy HTTP server",
	Long:  "Serves listings and compressed downloads from a local directory, brokering S3 presigned URLs when configured.",
	Run:   runServer,
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	var err error
	cfg, err = config.LoadProxyConfig()
	if err != nil {
		log.Fatalf("error loading configuration: %v", err)
	}
	logging.SetLevel(cfg.LogLevel)
}

func runServer(cmd *cobra.Command, args []string) {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	repo, uploads := initS3Backend(ctx)

	srv := proxy.NewServer(cfg.BaseDir, repo, uploads)
	if err := srv.Run(ctx, fmt.Sprintf(":%d", cfg.Port)); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}

// initS3Backend wires S3 when a bucket is configured; the proxy runs in
// download-only mode with both return values nil otherwise.
func initS3Backend(ctx context.Context) (objectstore.ObjectRepository, *catalog.UploadCatalog) {
	if cfg.S3Bucket == "" {
		log.Warn("S3_BUCKET_NAME not set, /get_s3_url will report 503")
		return nil, nil
	}

	awsCfg, err := config.LoadAWSConfig(ctx)
	if err != nil {
		log.Fatalf("load aws config: %v", err)
	}
	if cfg.S3Region != "" {
		awsCfg.Region = cfg.S3Region
	}

	factory := objectstore.NewObjectRepositoryFactory(awsCfg, nil)
	repo, err := factory.CreateRepository(objectstore.BucketConfig{
		Name:   cfg.S3Bucket,
		Type:   objectstore.S3Type,
		Region: cfg.S3Region,
	})
	if err != nil {
		log.Fatalf("create s3 repository: %v", err)
	}

	store, err := catalog.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("open upload catalog at %s: %v", cfg.DBPath, err)
	}

	return repo, catalog.NewUploadCatalog(store)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
