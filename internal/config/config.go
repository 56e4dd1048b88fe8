// Package config provides the two configuration surfaces this module
// needs: a structured YAML job file for MP (see mpconfig.go) and small
// flat environment-variable configs for the transfer proxy and folder
// sync binaries, following the getEnv(key, default) convention the
// teacher used for its own env-backed Config.
package config

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
)

// ProxyConfig holds the transfer proxy server's runtime settings.
type ProxyConfig struct {
	LogLevel   string
	Port       int
	BaseDir    string
	DBPath     string
	S3Bucket   string
	S3Region   string
	S3Endpoint string
}

// LoadProxyConfig reads the transfer proxy's environment-variable
// configuration, mirroring PORT/LOG_LEVEL from the teacher's
// internal/config/config.go plus the proxy-specific FILE_PROXY_DIR,
// DB_PATH, and S3 settings.
func LoadProxyConfig() (*ProxyConfig, error) {
	port, err := strconv.Atoi(getEnv("PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid PORT: %w", err)
	}
	return &ProxyConfig{
		LogLevel:   getEnv("LOG_LEVEL", "info"),
		Port:       port,
		BaseDir:    getEnv("FILE_PROXY_DIR", "."),
		DBPath:     getEnv("DB_PATH", "./tp.db"),
		S3Bucket:   os.Getenv("S3_BUCKET_NAME"),
		S3Region:   os.Getenv("S3_REGION"),
		S3Endpoint: os.Getenv("S3_ENDPOINT"),
	}, nil
}

// LoadAWSConfig loads the default AWS SDK config chain, used by both the
// transfer proxy and folder sync when talking to S3.
func LoadAWSConfig(ctx context.Context) (aws.Config, error) {
	return awsconfig.LoadDefaultConfig(ctx)
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
