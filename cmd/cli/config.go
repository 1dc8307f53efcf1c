package cli

import (
	"fmt"
	"strings"

	"github.com/appforge/connectorhub/internal/initialization"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// LoadConfig loads configuration from a YAML file and environment
// variables. Every secret-bearing field is required: the process refuses to
// start without the master key or a registered connector's credentials.
func LoadConfig() (initialization.Config, error) {
	v := viper.New()

	v.SetDefault("HTTPAddress", ":8080")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	envMappings := map[string]string{
		"HTTPAddress":           "HTTP_ADDRESS",
		"MasterEncryptionKey":   "MASTER_ENCRYPTION_KEY",
		"RedisAddress":          "REDIS_ADDRESS",
		"RedisPassword":         "REDIS_PASSWORD",
		"RedisDB":               "REDIS_DB",
		"NotionClientID":        "NOTION_CLIENT_ID",
		"NotionClientSecret":    "NOTION_CLIENT_SECRET",
		"LinearClientID":        "LINEAR_CLIENT_ID",
		"LinearClientSecret":    "LINEAR_CLIENT_SECRET",
		"AtlassianClientID":     "ATLASSIAN_CLIENT_ID",
		"AtlassianClientSecret": "ATLASSIAN_CLIENT_SECRET",
	}

	for configKey, envVar := range envMappings {
		if err := v.BindEnv(configKey, envVar); err != nil {
			log.Warn().Err(err).Msgf("Failed to bind environment variable %s for %s", envVar, configKey)
		}
	}

	v.SetConfigName("connectorhub_config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("$HOME/.connectorhub")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return initialization.Config{}, fmt.Errorf("error reading config file: %w", err)
		}
		log.Debug().Msg("Config file not found, using environment variables and defaults")
	} else {
		log.Info().Msgf("Using config file: %s", v.ConfigFileUsed())
	}

	var config initialization.Config
	if err := v.Unmarshal(&config); err != nil {
		return initialization.Config{}, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	if err := validateConfig(config); err != nil {
		return initialization.Config{}, err
	}

	return config, nil
}

func validateConfig(config initialization.Config) error {
	var missingVars []string

	required := []struct {
		value  string
		envVar string
	}{
		{config.MasterEncryptionKey, "MASTER_ENCRYPTION_KEY"},
		{config.NotionClientID, "NOTION_CLIENT_ID"},
		{config.NotionClientSecret, "NOTION_CLIENT_SECRET"},
		{config.LinearClientID, "LINEAR_CLIENT_ID"},
		{config.LinearClientSecret, "LINEAR_CLIENT_SECRET"},
		{config.AtlassianClientID, "ATLASSIAN_CLIENT_ID"},
		{config.AtlassianClientSecret, "ATLASSIAN_CLIENT_SECRET"},
	}

	for _, field := range required {
		if field.value == "" {
			missingVars = append(missingVars, field.envVar)
		}
	}

	if len(missingVars) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missingVars, ", "))
	}

	return nil
}
