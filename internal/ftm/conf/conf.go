package conf

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/ftm-project/ftm/pkg/config"
)

const (
	AppName      = "ftm"
	ConfigName   = "config"
	EnvPrefix    = "FTM"
	EnvConfigDir = "FTM_DIR"
)

// Load reads config.yaml from the watched root's .ftm directory,
// applying Defaults for any unset key and writing the file back if it
// did not already exist.
func Load(ftmDir string) (*Config, *config.Manager, error) {
	cm, err := config.New(AppName, ftmDir, ConfigName, EnvPrefix, true)
	if err != nil {
		log.Error().Err(err).Msg("load config failed")
		return nil, nil, err
	}

	conf := &Config{}
	config.SetDefaults(cm.Viper, conf, Defaults)

	if err := cm.Load(conf); err != nil {
		log.Error().Err(err).Msg("load config failed")
		return nil, nil, err
	}
	conf.ConfigDir = cm.Path

	if err := conf.Validate(); err != nil {
		return nil, nil, err
	}

	b, _ := json.Marshal(conf)
	log.Debug().Msgf("config: %s", string(b))

	return conf, cm, nil
}
