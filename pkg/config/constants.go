package config

const (
	EnvPrefix = "ANUCARTS"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv = "ANUCARTS_APP_ENV"
	EnvPort   = "ANUCARTS_APP_PORT"

	EnvDBDSN  = "ANUCARTS_DB_DSN"
	EnvDBHost = "ANUCARTS_DB_HOST"
	EnvDBUser = "ANUCARTS_DB_USER"
	EnvDBName = "ANUCARTS_DB_NAME"

	EnvRedisURL  = "ANUCARTS_REDIS_URL"
	EnvJWTSecret = "ANUCARTS_JWT_SECRET"
	EnvJWTIssuer = "ANUCARTS_JWT_ISSUER"

	EnvCartClearOnCheckout = "ANUCARTS_CART_CLEAR_ON_CHECKOUT"
	EnvFanoutTimeout       = "ANUCARTS_ORDERS_FANOUT_TIMEOUT"

	EnvGCPProjectID      = "ANUCARTS_GCP_PROJECT_ID"
	EnvGCSBucket         = "ANUCARTS_GCS_BUCKET_NAME"
	EnvPubSubOrdersTopic = "ANUCARTS_PUBSUB_ORDERS_TOPIC"
)
