package config

const EnvPrefix = "STOREFRONT"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	VariantMatchStrict         = "strict"
	VariantMatchPriceThenFirst = "price_then_first"
)

const (
	EnvAppEnv                = "STOREFRONT_APP_ENV"
	EnvPort                  = "STOREFRONT_APP_PORT"
	EnvDBDSN                 = "STOREFRONT_DB_DSN"
	EnvDBHost                = "STOREFRONT_DB_HOST"
	EnvDBUser                = "STOREFRONT_DB_USER"
	EnvDBName                = "STOREFRONT_DB_NAME"
	EnvRedisURL              = "STOREFRONT_REDIS_URL"
	EnvJWTSecret             = "STOREFRONT_JWT_SECRET"
	EnvBackendBaseURL        = "STOREFRONT_BACKEND_BASE_URL"
	EnvBackendAgentBaseURL   = "STOREFRONT_BACKEND_AGENT_BASE_URL"
	EnvFreeShippingThreshold = "STOREFRONT_FREE_SHIPPING_THRESHOLD"
	EnvFlatShippingFee       = "STOREFRONT_FLAT_SHIPPING_FEE"
	EnvVariantMatchPolicy    = "STOREFRONT_VARIANT_MATCH_POLICY"
	EnvUseSQLite             = "STOREFRONT_USE_SQLITE"
)

var discreteDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
