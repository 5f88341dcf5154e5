package envvar

const (
	// MapbridgeEnv is the environment variable used to determine the environment
	MapbridgeEnv = "MAPBRIDGE_ENV"

	// MapbridgePlatform overrides the configured map platform
	MapbridgePlatform = "MAPBRIDGE_PLATFORM"

	// MapbridgeServerGRPCPort is the environment variable used to determine the gRPC port
	MapbridgeServerGRPCPort = "MAPBRIDGE_SERVER_GRPC_PORT"

	// MapbridgeLogLevel overrides the configured log level
	MapbridgeLogLevel = "MAPBRIDGE_LOG_LEVEL"
)
