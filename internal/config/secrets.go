package config

import "slices"

const redacted = "***"

// Redacted returns a copy of c with credentials masked, for logging and
// check-config output.
func (c *Config) Redacted() Config {
	out := *c

	redact(&out.Bazaar.APIKey)
	redact(&out.Postgres.DSN)
	redact(&out.Postgres.Password)
	redact(&out.Redis.Password)
	redact(&out.S3.AccessKey)
	redact(&out.S3.SecretKey)
	redact(&out.Server.APIKey)
	redact(&out.Notify.TelegramToken)
	redact(&out.Notify.DiscordWebhookURL)

	out.Notify.Events = slices.Clone(c.Notify.Events)
	out.Server.CORSOrigins = slices.Clone(c.Server.CORSOrigins)
	return out
}

func redact(s *string) {
	if *s != "" {
		*s = redacted
	}
}
