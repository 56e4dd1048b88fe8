package main

import (
	"context"
	"fmt"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/xzsean666/marketfeed/internal/config"
	"github.com/xzsean666/marketfeed/internal/logging"
	"github.com/xzsean666/marketfeed/internal/orchestrator"
)

var (
	jobCfg     *config.MPConfig
	configPath string
	dateFlag   string
)

var rootCmd = &cobra.Command{
	Use:   "marketfeed",
	Short: "Merge Pipeline CLI for the market data columnar job",
	Long:  "Fetches, merges, gap-fills, and writes one day of market data to columnar output.",
}

func init() {
	cobra.OnInitialize(initConfig)
	setupFlags()
	addCommands()
}

func setupFlags() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "job config file path")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (trace, debug, info, warn, error)")
}

var runCmd = &cobra.Command{
	Use:   "run [data-type]",
	Short: "Run one merge pipeline job for a configured data type and date",
	Args:  cobra.ExactArgs(1),
	Run:   runMergePipeline,
}

func runMergePipeline(cmd *cobra.Command, args []string) {
	dataType := args[0]
	ds, ok := jobCfg.FindDataSource(dataType)
	if !ok {
		fmt.Printf("no data source configured for data type %q\n", dataType)
		os.Exit(1)
	}

	date, err := parseDate(dateFlag)
	if err != nil {
		fmt.Printf("invalid --date: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	result, err := orchestrator.Run(ctx, *ds, jobCfg.Output, date)
	if err != nil {
		log.Fatalf("job failed: %v", err)
	}

	fmt.Printf("wrote %d symbols, %d files for %s on %s\n", result.Symbols, len(result.FilesWritten), result.DataType, result.Date.Format("2006-01-02"))
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Now().UTC().AddDate(0, 0, -1), nil
	}
	return time.Parse("2006-01-02", s)
}

func initConfig() {
	var err error
	jobCfg, err = config.LoadMPConfig(configPath)
	if err != nil {
		log.Fatalf("error loading job config: %v", err)
	}
	if level, _ := rootCmd.PersistentFlags().GetString("log-level"); level != "" {
		logging.SetLevel(level)
	}
}

func addCommands() {
	runCmd.Flags().StringVar(&dateFlag, "date", "", "UTC date to process (YYYY-MM-DD), defaults to yesterday")
	rootCmd.AddCommand(runCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
