package config

import "time"

// Config holds all environment-driven settings for the willow batch jobs.
// Every pipeline binary loads the same struct; unused sections are ignored.
type Config struct {
	AppName    string `env:"APP_NAME" env-default:"willow"`
	LogLevel   string `env:"LOG_LEVEL" env-default:"info"`
	PrettyLogs bool   `env:"PRETTY_LOGS" env-default:"false"`

	// Ops listener (healthz + prometheus metrics while a job runs)
	OpsPort    int  `env:"OPS_PORT" env-default:"3014"`
	OpsEnabled bool `env:"OPS_ENABLED" env-default:"true"`

	// PostgreSQL (shared atlas store)
	DatabaseDriver          string        `env:"DB_DRIVER" env-default:"postgres"`
	DatabaseHost            string        `env:"DB_HOST" env-default:"" validate:"required"`
	DatabasePort            string        `env:"DB_PORT" env-default:"5432"`
	DatabaseUserName        string        `env:"DB_USER_NAME" env-default:"" validate:"required"`
	DatabasePassword        string        `env:"DB_PASSWORD" env-default:"" validate:"required"`
	DatabaseName            string        `env:"DB_NAME" env-default:"willow"`
	DatabaseSSLMode         string        `env:"DB_SSL_MODE" env-default:"disable"`
	DatabaseMaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS" env-default:"25"`
	DatabaseMaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS" env-default:"10"`
	DatabaseConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" env-default:"10s"`

	// Migrations double as the store capability check: jobs refuse to start
	// against a schema older than the version they were built for.
	DatabaseMigrationFolderPath string `env:"DB_MIGRATION_FOLDER_PATH" env-default:"db/pg"`
	DatabaseMigrationVersion    int    `env:"DB_MIGRATION_VERSION" env-default:"0"`
	DatabaseMigrationForce      int    `env:"DB_MIGRATION_FORCE" env-default:"0"`
	RequiredSchemaVersion       uint   `env:"REQUIRED_SCHEMA_VERSION" env-default:"1"`

	// External sources
	SPARQLEndpoint     string        `env:"SPARQL_ENDPOINT" env-default:"https://query.wikidata.org/sparql"`
	WikipediaAPIBase   string        `env:"WIKIPEDIA_API_BASE" env-default:"https://en.wikipedia.org/w/api.php"`
	WikipediaRESTBase  string        `env:"WIKIPEDIA_REST_BASE" env-default:"https://en.wikipedia.org/api/rest_v1"`
	SeeingStarsBaseURL string        `env:"SEEING_STARS_BASE_URL" env-default:"https://www.seeing-stars.com"`
	GravesiteBaseURL   string        `env:"GRAVESITE_BASE_URL" env-default:""`
	UserAgent          string        `env:"HTTP_USER_AGENT" env-default:"willow-ingest/1.0 (+https://github.com/Ramsey-B/willow)"`
	HTTPTimeout        time.Duration `env:"HTTP_TIMEOUT" env-default:"45s"`

	// Pipeline tunables
	PageSize        int           `env:"PAGE_SIZE" env-default:"500"`
	SPARQLRowCap    int           `env:"SPARQL_ROW_CAP" env-default:"2000"`
	WorkerCount     int           `env:"WORKER_COUNT" env-default:"4"`
	MinRequestDelay time.Duration `env:"MIN_REQUEST_DELAY" env-default:"250ms"`
	MaxAttempts     int           `env:"MAX_ATTEMPTS" env-default:"5"`
	BaseRetryDelay  time.Duration `env:"BASE_RETRY_DELAY" env-default:"1s"`
	MaxRetryDelay   time.Duration `env:"MAX_RETRY_DELAY" env-default:"60s"`
	ResumeCursor    string        `env:"RESUME_CURSOR" env-default:""`
	TotalItemCap    int           `env:"TOTAL_ITEM_CAP" env-default:"0"` // 0 = unlimited

	// Backfill range (inclusive start year, exclusive end year)
	BackfillFromYear int `env:"BACKFILL_FROM_YEAR" env-default:"1920"`
	BackfillToYear   int `env:"BACKFILL_TO_YEAR" env-default:"2026"`

	// Resolver
	FuzzyAcceptThreshold int `env:"FUZZY_ACCEPT_THRESHOLD" env-default:"60"`

	// Kafka person-event emission (read-side cache invalidation)
	KafkaEnabled      bool     `env:"KAFKA_ENABLED" env-default:"false"`
	KafkaBrokers      []string `env:"KAFKA_BROKERS" env-default:"localhost:9092"`
	KafkaOutputTopic  string   `env:"KAFKA_OUTPUT_TOPIC" env-default:"person-events"`
	KafkaBatchSize    int      `env:"KAFKA_BATCH_SIZE" env-default:"100"`
	KafkaBatchTimeout int      `env:"KAFKA_BATCH_TIMEOUT_MS" env-default:"100"`
	KafkaRequiredAcks int      `env:"KAFKA_REQUIRED_ACKS" env-default:"1"`
	KafkaCompression  string   `env:"KAFKA_COMPRESSION" env-default:"snappy"`

	// Tracing
	TracingEnabled  bool   `env:"TRACING_ENABLED" env-default:"false"`
	TracingExporter string `env:"TRACING_EXPORTER" env-default:"console"`
	OTLPEndpoint    string `env:"OTLP_ENDPOINT" env-default:"localhost:4317"`
	OTLPProtocol    string `env:"OTLP_PROTOCOL" env-default:"grpc"`
}
