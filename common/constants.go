package common

import "time"

const DefaultRpcWaitTime = 30 * time.Second

const ServiceName = "callpush"

const (
	Env_MetricsEndpoint = "OTEL_EXPORTER_OTLP_METRICS_ENDPOINT"
	Env_DbHost          = "DB_HOST"
	Env_DbName          = "DB_NAME"
	Env_DbPassword      = "DB_PASSWORD"
	Env_DbPort          = "DB_PORT"
	Env_DbUsername      = "DB_USERNAME"
)

const (
	Env_DiscordAlertWebhook   = "DISCORD_ALERT_WEBHOOK"
	Env_DiscordWarningWebhook = "DISCORD_WARNING_WEBHOOK"
	Env_DiscordTestWebhook    = "DISCORD_TEST_WEBHOOK"
)
