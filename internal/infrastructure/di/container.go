package di

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"

	storagegateway "github.com/YoshitsuguKoike/procrunner/internal/adapter/gateway/storage"
	"github.com/YoshitsuguKoike/procrunner/internal/app"
	appconfig "github.com/YoshitsuguKoike/procrunner/internal/app/config"
	"github.com/YoshitsuguKoike/procrunner/internal/application/port/output"
	"github.com/YoshitsuguKoike/procrunner/internal/application/process/divisionimport"
	"github.com/YoshitsuguKoike/procrunner/internal/application/runner"
	"github.com/YoshitsuguKoike/procrunner/internal/domain/repository"
	"github.com/YoshitsuguKoike/procrunner/internal/infra/logging"
	"github.com/YoshitsuguKoike/procrunner/internal/infrastructure/parser"
	sqliterepo "github.com/YoshitsuguKoike/procrunner/internal/infrastructure/persistence/sqlite"
	"github.com/YoshitsuguKoike/procrunner/internal/infrastructure/transaction"
)

// Container is the DI container that holds all dependencies
// This implements manual dependency injection for Clean Architecture
type Container struct {
	// Infrastructure Layer - Database
	db *sql.DB

	// Infrastructure Layer - Repositories (SQLite implementations)
	stateRepo    repository.ProcessStateRepository
	configRepo   repository.SourceConfigRepository
	divisionRepo repository.DivisionRepository

	// Infrastructure Layer - Transaction Manager
	txManager output.TransactionManager

	// Infrastructure Layer - Gateways
	storage output.SourceStorage

	// Infrastructure Layer - Parsers
	parsers *parser.Registry

	// Observability
	logger          *logging.ZapLogger
	metricsRegistry *prometheus.Registry
	metrics         *runner.Metrics

	// Application Layer - Process definitions
	catalog *runner.Catalog

	config Config
}

// Config holds configuration for the container
type Config struct {
	DBPath    string    // Path to SQLite database file, ":memory:" for tests
	WorkDir   string    // Scratch directory for intermediate import files
	MaxRuns   int       // Stage budget per Run call (default: runner.MaxRuns)
	LogLevel  string    // debug|info|warn|error
	LogOutput io.Writer // Log destination (default: os.Stderr)

	// Source storage configuration
	StorageType    string // "local" or "s3" (default: "local")
	StorageBaseDir string // Root directory for local storage
	S3Bucket       string
	S3Prefix       string
	S3Region       string // AWS region (optional, uses default chain if empty)

	// Fs backs local storage and the work directory (default: OS filesystem)
	Fs afero.Fs
	// S3Client replaces the AWS client, used by tests
	S3Client storagegateway.S3API
}

// ConfigFromApp maps the loaded application config onto container config
func ConfigFromApp(cfg appconfig.Config) Config {
	return Config{
		DBPath:         cfg.DBPath(),
		WorkDir:        cfg.WorkDir(),
		MaxRuns:        cfg.MaxRuns(),
		LogLevel:       cfg.LogLevel(),
		StorageType:    cfg.StorageType(),
		StorageBaseDir: cfg.StorageBaseDir(),
		S3Bucket:       cfg.S3Bucket(),
		S3Prefix:       cfg.S3Prefix(),
		S3Region:       cfg.S3Region(),
	}
}

// NewContainer creates and initializes the DI container
func NewContainer(ctx context.Context, config Config) (*Container, error) {
	c := &Container{
		config: config,
	}

	if c.config.LogOutput == nil {
		c.config.LogOutput = os.Stderr
	}
	if c.config.Fs == nil {
		c.config.Fs = afero.NewOsFs()
	}
	if c.config.MaxRuns == 0 {
		c.config.MaxRuns = runner.MaxRuns
	}

	c.initializeObservability()

	if err := c.initializeInfrastructure(ctx); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize infrastructure: %w", err)
	}

	if err := c.initializeApplication(); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize application: %w", err)
	}

	return c, nil
}

func (c *Container) initializeObservability() {
	c.logger = logging.NewZapLogger(c.config.LogOutput, app.ParseLevel(c.config.LogLevel))
	c.metricsRegistry = prometheus.NewRegistry()
	c.metrics = runner.NewMetrics(c.metricsRegistry)
}

// initializeInfrastructure initializes infrastructure layer components
func (c *Container) initializeInfrastructure(ctx context.Context) error {
	if c.config.DBPath == "" {
		return fmt.Errorf("database path is required")
	}

	// 1. Open SQLite database connection and run migrations
	db, err := sqliterepo.Open(c.config.DBPath)
	if err != nil {
		return err
	}
	c.db = db

	// 2. Initialize SQLite Repositories
	c.stateRepo = sqliterepo.NewProcessStateRepository(db)
	c.configRepo = sqliterepo.NewSourceConfigRepository(db)
	c.divisionRepo = sqliterepo.NewDivisionRepository(db)

	// 3. Initialize SQLite Transaction Manager
	c.txManager = transaction.NewSQLiteTransactionManager(db)

	// 4. Initialize source storage based on configuration
	storageType := c.config.StorageType
	if storageType == "" {
		storageType = appconfig.StorageLocal
	}

	switch storageType {
	case appconfig.StorageLocal:
		c.storage = storagegateway.NewLocalSourceStorageWithFs(c.config.Fs, c.config.StorageBaseDir)

	case appconfig.StorageS3:
		if c.config.S3Bucket == "" {
			return fmt.Errorf("S3 bucket name is required for S3 storage")
		}
		if c.config.S3Client != nil {
			c.storage = storagegateway.NewS3SourceStorageWithClient(c.config.S3Client, c.config.S3Bucket, c.config.S3Prefix)
			break
		}
		s3Storage, err := storagegateway.NewS3SourceStorage(ctx, storagegateway.S3Config{
			BucketName: c.config.S3Bucket,
			Prefix:     c.config.S3Prefix,
			Region:     c.config.S3Region,
		})
		if err != nil {
			return fmt.Errorf("failed to create S3 source storage: %w", err)
		}
		c.storage = s3Storage

	default:
		return fmt.Errorf("unknown storage type: %s", storageType)
	}

	// 5. Initialize parser registry
	c.parsers = parser.NewRegistry()

	return nil
}

// initializeApplication registers every process definition in the catalog
func (c *Container) initializeApplication() error {
	c.catalog = runner.NewCatalog()

	divisions, err := divisionimport.NewDefinition(divisionimport.Deps{
		Storage:   c.storage,
		Divisions: c.divisionRepo,
		Parsers: func(version string) (divisionimport.Parser, error) {
			return c.parsers.Lookup(version)
		},
		Fs:      c.config.Fs,
		WorkDir: c.config.WorkDir,
	})
	if err != nil {
		return fmt.Errorf("division import: %w", err)
	}
	if err := c.catalog.Register(divisions); err != nil {
		return err
	}

	return nil
}

// NewRunner builds a runner for source wired to the container's stores,
// transaction manager, logger and metrics. opts are applied last.
func (c *Container) NewRunner(source string, opts ...runner.Option) (*runner.Runner, error) {
	def, ok := c.catalog.Get(source)
	if !ok {
		return nil, fmt.Errorf("unknown process source %q (known: %v)", source, c.catalog.Sources())
	}

	base := []runner.Option{
		runner.WithLogger(c.logger),
		runner.WithMetrics(c.metrics),
		runner.WithTransactionManager(c.txManager),
		runner.WithMaxRuns(c.config.MaxRuns),
	}
	return runner.New(def, runner.Deps{States: c.stateRepo, Configs: c.configRepo}, append(base, opts...)...)
}

// WriteMetrics writes the metrics registry in the node-exporter textfile format
func (c *Container) WriteMetrics(path string) error {
	if path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, c.metricsRegistry); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	return nil
}

// WriteHealth records the outcome of a run at path. An empty path is a no-op.
func (c *Container) WriteHealth(path string, h app.Health) error {
	if err := app.WriteHealth(c.config.Fs, path, h); err != nil {
		return fmt.Errorf("failed to write health file: %w", err)
	}
	return nil
}

// DB returns the database handle
func (c *Container) DB() *sql.DB {
	return c.db
}

// GetProcessStateRepository returns the process state repository
func (c *Container) GetProcessStateRepository() repository.ProcessStateRepository {
	return c.stateRepo
}

// GetSourceConfigRepository returns the source config repository
func (c *Container) GetSourceConfigRepository() repository.SourceConfigRepository {
	return c.configRepo
}

// GetDivisionRepository returns the division repository
func (c *Container) GetDivisionRepository() repository.DivisionRepository {
	return c.divisionRepo
}

// GetSourceStorage returns the configured source storage
func (c *Container) GetSourceStorage() output.SourceStorage {
	return c.storage
}

// GetCatalog returns the registered process definitions
func (c *Container) GetCatalog() *runner.Catalog {
	return c.catalog
}

// GetLogger returns the application logger
func (c *Container) GetLogger() app.Logger {
	return c.logger
}

// GetMetricsRegistry returns the registry the runner metrics are registered on
func (c *Container) GetMetricsRegistry() *prometheus.Registry {
	return c.metricsRegistry
}

// Close flushes the logger and closes the database connection
func (c *Container) Close() error {
	if c.logger != nil {
		// stderr sync fails on some platforms; nothing to report
		_ = c.logger.Sync()
	}
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}
