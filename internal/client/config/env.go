package config

import "github.com/caarlos0/env/v11"

// EnvPrefix prefixes every environment variable read by parseEnv.
const EnvPrefix = "TRACKKEEPER_CLI_"

func parseEnv(config *Config) error {
	return env.ParseWithOptions(config, env.Options{Prefix: EnvPrefix})
}
