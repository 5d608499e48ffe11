package config

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/viper"
)

// BuildInformation is the content of application.yml, stamped at build
// time. The name doubles as the Consul service id and KV settings key.
type BuildInformation struct {
	Name          string `mapstructure:"name" json:"name"`
	Version       string `mapstructure:"version" json:"version"`
	Repository    string `mapstructure:"repository" json:"repository"`
	Environment   string `mapstructure:"environment" json:"environment"`
	CommitHash    string `mapstructure:"commit_hash" json:"commit_hash"`
	BuildDate     string `mapstructure:"build_date" json:"build_date"`
	BuildEpochSec int64  `mapstructure:"build_epoch_sec" json:"build_epoch_sec"`
}

// LoadBuildInformation reads <resources>/application.yml once.
func LoadBuildInformation() (BuildInformation, error) {
	path := filepath.Join(ResourcesDirectory(), "application.yml")

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return BuildInformation{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	var build BuildInformation
	if err := v.Unmarshal(&build); err != nil {
		return BuildInformation{}, fmt.Errorf("config: unmarshal build information: %w", err)
	}
	if build.Name == "" {
		return BuildInformation{}, fmt.Errorf("config: application.yml carries no name")
	}
	return build, nil
}
