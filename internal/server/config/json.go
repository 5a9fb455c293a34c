package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/trackkeeper/internal/flagx"
	"github.com/dmitrijs2005/trackkeeper/internal/timex"
)

// JsonConfig is the on-disk shape of the JSON config file. Only keys present
// in the file override the current Config, so pointers distinguish "absent"
// from zero values.
type JsonConfig struct {
	EndpointAddrGRPC              *string         `json:"endpoint_addr_grpc"`
	DatabaseDSN                   *string         `json:"database_dsn"`
	SecretKey                     *string         `json:"secret_key"`
	AccessTokenValidityDuration   *timex.Duration `json:"access_token_validity_duration"`
	RefreshTokenValidityDuration  *timex.Duration `json:"refresh_token_validity_duration"`
	PasswordResetValidityDuration *timex.Duration `json:"password_reset_validity_duration"`
	HashCost                      *int            `json:"hash_cost"`
	HashConcurrency               *int            `json:"hash_concurrency"`
	PruneInterval                 *timex.Duration `json:"prune_interval"`
	LogLevel                      *string         `json:"log_level"`
	Mailer                        *string         `json:"mailer"`
	MailFrom                      *string         `json:"mail_from"`
	SMTPHost                      *string         `json:"smtp_host"`
	SMTPPort                      *int            `json:"smtp_port"`
	SMTPUser                      *string         `json:"smtp_user"`
	SMTPPassword                  *string         `json:"smtp_password"`
	SESRegion                     *string         `json:"ses_region"`
	SESAccessKeyID                *string         `json:"ses_access_key_id"`
	SESSecretAccessKey            *string         `json:"ses_secret_access_key"`
	SESBaseEndpoint               *string         `json:"ses_base_endpoint"`
	RedisAddr                     *string         `json:"redis_addr"`
	ResetCooldown                 *timex.Duration `json:"reset_cooldown"`
}

// parseJson loads the file named by -c/-config (if any) and copies every key
// it defines into config.
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

	c.apply(config)
	return nil
}

func (c *JsonConfig) apply(config *Config) {
	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setDuration(&config.AccessTokenValidityDuration, c.AccessTokenValidityDuration)
	setDuration(&config.RefreshTokenValidityDuration, c.RefreshTokenValidityDuration)
	setDuration(&config.PasswordResetValidityDuration, c.PasswordResetValidityDuration)
	setInt(&config.HashCost, c.HashCost)
	setInt(&config.HashConcurrency, c.HashConcurrency)
	setDuration(&config.PruneInterval, c.PruneInterval)
	setString(&config.LogLevel, c.LogLevel)
	setString(&config.Mailer, c.Mailer)
	setString(&config.MailFrom, c.MailFrom)
	setString(&config.SMTPHost, c.SMTPHost)
	setInt(&config.SMTPPort, c.SMTPPort)
	setString(&config.SMTPUser, c.SMTPUser)
	setString(&config.SMTPPassword, c.SMTPPassword)
	setString(&config.SESRegion, c.SESRegion)
	setString(&config.SESAccessKeyID, c.SESAccessKeyID)
	setString(&config.SESSecretAccessKey, c.SESSecretAccessKey)
	setString(&config.SESBaseEndpoint, c.SESBaseEndpoint)
	setString(&config.RedisAddr, c.RedisAddr)
	setDuration(&config.ResetCooldown, c.ResetCooldown)
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v *timex.Duration) {
	if v != nil {
		*dst = v.Duration
	}
}
