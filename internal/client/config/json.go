package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/trackkeeper/internal/flagx"
	"github.com/dmitrijs2005/trackkeeper/internal/timex"
)

// JsonConfig is the on-disk shape of the JSON config file. Absent keys keep
// their current value.
//
//	{
//	  "server_endpoint_addr": "127.0.0.1:50051",
//	  "session_db_path": "session.db",
//	  "request_timeout": "10s",
//	  "log_level": "warn"
//	}
type JsonConfig struct {
	ServerEndpointAddr *string         `json:"server_endpoint_addr"`
	SessionDBPath      *string         `json:"session_db_path"`
	RequestTimeout     *timex.Duration `json:"request_timeout"`
	LogLevel           *string         `json:"log_level"`
}

func parseJson(config *Config, args []string) error {
	path := flagx.ConfigPath(args)
	if path == "" {
		return nil
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		return err
	}

	if c.ServerEndpointAddr != nil {
		config.ServerEndpointAddr = *c.ServerEndpointAddr
	}
	if c.SessionDBPath != nil {
		config.SessionDBPath = *c.SessionDBPath
	}
	if c.RequestTimeout != nil {
		config.RequestTimeout = c.RequestTimeout.Duration
	}
	if c.LogLevel != nil {
		config.LogLevel = *c.LogLevel
	}
	return nil
}
