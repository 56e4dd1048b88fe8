package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// SSHSourceConfig describes one SSH-tunneled upstream.
type SSHSourceConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Username       string `mapstructure:"username"`
	Password       string `mapstructure:"password"`
	PrivateKeyPath string `mapstructure:"private_key_path"`
	InputBasePath  string `mapstructure:"input_base_path"`
}

// HTTPSourceConfig describes one HTTP/object-store-backed upstream.
type HTTPSourceConfig struct {
	BaseURL       string `mapstructure:"base_url"`
	InputBasePath string `mapstructure:"input_base_path"`
	Proxy         string `mapstructure:"proxy"`
}

// LocalSourceConfig describes one local-filesystem upstream.
type LocalSourceConfig struct {
	BasePath string `mapstructure:"base_path"`
}

// DataSourceConfig groups every upstream declared for one data type.
// Source ordering within each slice, and the fixed local->ssh->http kind
// ordering, determines first-writer-wins dedup precedence.
type DataSourceConfig struct {
	DataType    string              `mapstructure:"data_type"`
	SSHServers  []SSHSourceConfig   `mapstructure:"ssh_servers"`
	HTTPServers []HTTPSourceConfig  `mapstructure:"http_servers"`
	LocalFiles  []LocalSourceConfig `mapstructure:"local_files"`
}

// OutputConfig describes the Columnar Writer's destination.
type OutputConfig struct {
	Path       string `mapstructure:"path"`
	Name       string `mapstructure:"name"`
	BatchSize  *int   `mapstructure:"batch_size"`
	UseTempDir bool   `mapstructure:"use_temp_dir"`
}

// MPConfig is the top-level MP job configuration file.
type MPConfig struct {
	DataSources []DataSourceConfig `mapstructure:"data_sources"`
	Output      OutputConfig       `mapstructure:"output"`
}

// LoadMPConfig reads an MP job configuration from a YAML file via viper,
// the library the teacher's go.mod has always declared but never
// imported. AutomaticEnv lets any field be overridden by an environment
// variable of the same dotted key, upper-cased.
func LoadMPConfig(path string) (*MPConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	var cfg MPConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return &cfg, nil
}

// FindDataSource returns the DataSourceConfig whose DataType matches
// dataType, mirroring Config::find_data_source in the original job
// runner.
func (c *MPConfig) FindDataSource(dataType string) (*DataSourceConfig, bool) {
	for i := range c.DataSources {
		if c.DataSources[i].DataType == dataType {
			return &c.DataSources[i], true
		}
	}
	return nil, false
}
