package common

// Environment variable keys
const (
	EnvSensorAPIKey      = "SENSOR_API_KEY"
	EnvSensorSecretKey   = "SENSOR_SECRET_KEY"
	EnvSensorURL         = "SENSOR_URL"
	EnvListenAddr        = "LISTEN_ADDR"
	EnvDataPath          = "DATA_PATH"
	EnvModelDir          = "MODEL_DIR"
	EnvNEstimators       = "N_ESTIMATORS"
	EnvLearningRate      = "LEARNING_RATE"
	EnvMaxDepth          = "MAX_DEPTH"
	EnvMinWindowSize     = "MIN_WINDOW_SIZE"
	EnvMaxWindowSize     = "MAX_WINDOW_SIZE"
	EnvUpdateStrategy    = "UPDATE_STRATEGY"
	EnvDetectDrift       = "DETECT_DRIFT"
	EnvAlertCooldown     = "ALERT_COOLDOWN"
	EnvMetricsPort       = "METRICS_PORT"
	EnvDashboardPort     = "DASHBOARD_PORT"
	EnvPingInterval      = "PING_INTERVAL"
	EnvRESTTimeout       = "REST_TIMEOUT"
	EnvSnapshotInterval  = "SNAPSHOT_INTERVAL"
	EnvSnapshotRetention = "SNAPSHOT_RETENTION"
	EnvRateWindow        = "RATE_WINDOW"
	EnvDatasetURL        = "DATASET_URL"
	EnvDatasetCacheDir   = "DATASET_CACHE_DIR"
)

// Configuration defaults
const (
	DefaultSensorURL         = "wss://localhost:9443/flows"
	DefaultListenAddr        = ":8090"
	DefaultModelDir          = "models"
	DefaultNEstimators       = 10
	DefaultLearningRate      = 0.3
	DefaultMaxDepth          = 3
	DefaultMinWindowSize     = 32
	DefaultMaxWindowSize     = 1024
	DefaultUpdateStrategy    = "replace"
	DefaultMetricsPort       = 8080
	DefaultDashboardPort     = 8091
	DefaultSnapshotRetention = 10
)

// Common error messages
const (
	ErrMsgSensorKeyRequired = "sensor API key and secret are required"
	ErrMsgSensorURLRequired = "sensor URL is required"
	ErrMsgListenRequired    = "API listen address is required"
)

// Validation bounds
const (
	MinEstimators    = 1
	MaxEstimators    = 500
	MinTreeDepth     = 1
	MaxTreeDepth     = 16
	MinMetricsPort   = 1024
	MaxMetricsPort   = 65535
	MinWindowFloor   = 1
	MaxWindowCeiling = 1 << 20
)
