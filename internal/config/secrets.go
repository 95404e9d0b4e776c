package config

// RedactedConfig returns a copy of cfg with sensitive fields replaced by "***".
// Log this, never cfg itself.
func RedactedConfig(cfg *Config) Config {
	out := *cfg

	redact(&out.Key.PrivateKey)
	redact(&out.Key.KeyPassword)

	redact(&out.Postgres.DSN)
	redact(&out.Postgres.Password)

	redact(&out.Redis.Password)

	redact(&out.Server.APIKey)

	redact(&out.S3.AccessKey)
	redact(&out.S3.SecretKey)

	redact(&out.Notify.TelegramToken)
	redact(&out.Notify.DiscordWebhookURL)
	redact(&out.Notify.WebhookSecret)

	// Slices share backing arrays with cfg; copy the ones callers might edit.
	out.Notify.Events = append([]string(nil), cfg.Notify.Events...)
	out.Server.CORSOrigins = append([]string(nil), cfg.Server.CORSOrigins...)
	out.Genesis.Mints = append([]MintConfig(nil), cfg.Genesis.Mints...)
	out.Genesis.Collections = append([]CollectionConfig(nil), cfg.Genesis.Collections...)

	return out
}

const redacted = "***"

func redact(s *string) {
	if *s != "" {
		*s = redacted
	}
}
