package di

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"time"

	"blueprint-editor/application/commands"
	"blueprint-editor/application/commands/bus"
	commands_handlers "blueprint-editor/application/commands/handlers"
	"blueprint-editor/application/ports"
	"blueprint-editor/application/queries"
	querybus "blueprint-editor/application/queries/bus"
	queries_handlers "blueprint-editor/application/queries/handlers"
	"blueprint-editor/application/services"
	"blueprint-editor/domain/catalog"
	domainconfig "blueprint-editor/domain/config"
	"blueprint-editor/infrastructure/config"
	"blueprint-editor/infrastructure/export/pdf"
	"blueprint-editor/infrastructure/messaging"
	"blueprint-editor/infrastructure/persistence/dynamodb"
	"blueprint-editor/infrastructure/persistence/memory"
	"blueprint-editor/infrastructure/persistence/schema"
	"blueprint-editor/infrastructure/persistence/sqlstore"
	"blueprint-editor/infrastructure/storage"
	"blueprint-editor/interfaces/websocket"
	"blueprint-editor/pkg/observability"
	"blueprint-editor/pkg/ratelimit"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awscloudwatch "github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
)

const (
	// journalRetention bounds how long journaled events are kept
	journalRetention = 90 * 24 * time.Hour

	rateLimitWindow = time.Minute
	rateLimitSweep  = 5 * time.Minute
)

// ProvideDomainConfig derives the editor limits from the app config
func ProvideDomainConfig(cfg *config.Config) *domainconfig.DomainConfig {
	return cfg.Domain()
}

// ProvideAWSConfig creates AWS configuration
func ProvideAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	return awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.AWSRegion),
	)
}

// ProvideDynamoDBClient creates a DynamoDB client
func ProvideDynamoDBClient(awsCfg aws.Config) *awsdynamodb.Client {
	return awsdynamodb.NewFromConfig(awsCfg)
}

// ProvideEventBridgeClient creates an EventBridge client
func ProvideEventBridgeClient(awsCfg aws.Config) *awseventbridge.Client {
	return awseventbridge.NewFromConfig(awsCfg)
}

// ProvideCloudWatchClient creates a CloudWatch client
func ProvideCloudWatchClient(awsCfg aws.Config) *awscloudwatch.Client {
	return awscloudwatch.NewFromConfig(awsCfg)
}

// ProvideS3Client creates an S3 client
func ProvideS3Client(awsCfg aws.Config) *awss3.Client {
	return awss3.NewFromConfig(awsCfg)
}

// ProvideDiagramRepository selects the diagram store named by the config.
// SQL stores are migrated on startup when AutoMigrate is set.
func ProvideDiagramRepository(
	ctx context.Context,
	cfg *config.Config,
	client *awsdynamodb.Client,
	logger *zap.Logger,
) (ports.DiagramRepository, func(), error) {
	switch cfg.StorageBackend {
	case config.StorageMemory:
		logger.Warn("Using in-memory diagram storage; diagrams are lost on restart")
		return memory.NewDiagramRepository(), func() {}, nil

	case config.StorageDynamoDB:
		return dynamodb.NewDiagramRepository(client, cfg.DynamoDBTable, cfg.IndexName, logger), func() {}, nil

	case config.StoragePostgres, config.StorageSQLite:
		dialect, err := sqlstore.DialectFor(cfg.StorageBackend)
		if err != nil {
			return nil, nil, err
		}
		db, err := sqlstore.Open(ctx, dialect, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		cleanup := func() {
			if err := db.Close(); err != nil {
				logger.Warn("Closing database failed", zap.Error(err))
			}
		}

		if cfg.AutoMigrate {
			migrator, err := sqlstore.NewMigrator(db, dialect, logger)
			if err != nil {
				cleanup()
				return nil, nil, err
			}
			if err := migrator.Migrate(ctx, -1); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("migrate %s: %w", dialect.Name, err)
			}
		}
		return sqlstore.NewDiagramRepository(db, dialect, logger), cleanup, nil
	}
	return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
}

// ProvideLocalStore creates the directory blob store, or nil when blobs
// live in S3
func ProvideLocalStore(cfg *config.Config, logger *zap.Logger) (*storage.LocalStore, error) {
	if cfg.BlobBackend != config.BlobLocal {
		return nil, nil
	}
	return storage.NewLocalStore(cfg.BlobDir, strings.TrimSuffix(cfg.PublicBaseURL, "/")+"/blobs/", logger)
}

// ProvideBlobStore selects the blob backend and guards it with a circuit
// breaker
func ProvideBlobStore(
	cfg *config.Config,
	local *storage.LocalStore,
	client *awss3.Client,
	logger *zap.Logger,
) ports.BlobStore {
	var next ports.BlobStore
	name := "blob-local"
	if local != nil {
		next = local
	} else {
		next = storage.NewS3Store(client, cfg.S3Bucket, cfg.S3Prefix, cfg.AWSRegion, "", logger)
		name = "blob-s3"
	}
	return storage.NewBreakerStore(next, storage.DefaultBreakerConfig(name), logger)
}

// ProvideEventJournal creates the DynamoDB event journal when enabled
func ProvideEventJournal(cfg *config.Config, client *awsdynamodb.Client, logger *zap.Logger) *dynamodb.EventJournal {
	if !cfg.JournalEvents {
		return nil
	}
	return dynamodb.NewEventJournal(client, cfg.DynamoDBTable, journalRetention, logger)
}

// ProvideEventPublisher selects the event transport. Journaled events are
// written alongside whatever transport is configured.
func ProvideEventPublisher(
	cfg *config.Config,
	client *awseventbridge.Client,
	journal *dynamodb.EventJournal,
	logger *zap.Logger,
) (ports.EventPublisher, func(), error) {
	var (
		primary ports.EventPublisher
		cleanup = func() {}
	)

	switch cfg.EventBackend {
	case config.EventsNone, "":
		primary = messaging.NewNoopPublisher(logger)
	case config.EventsEventBridge:
		primary = messaging.NewEventBridgePublisher(client, cfg.EventBusName, logger)
	case config.EventsNATS:
		conn, err := messaging.ConnectNATS(cfg.NATSURL, logger)
		if err != nil {
			return nil, nil, err
		}
		primary = messaging.NewNATSPublisher(conn, cfg.NATSSubject, logger)
		cleanup = func() {
			if err := conn.Drain(); err != nil {
				logger.Warn("Draining NATS connection failed", zap.Error(err))
			}
		}
	default:
		return nil, nil, fmt.Errorf("unknown event backend %q", cfg.EventBackend)
	}

	if journal == nil {
		return primary, cleanup, nil
	}
	return messaging.FanOut{primary, journal}, cleanup, nil
}

// ProvideRateLimiter limits uploads and session opens per client. With a
// table configured the counters live in DynamoDB so Lambda environments
// share them. A nil limiter disables the check.
func ProvideRateLimiter(cfg *config.Config, client *awsdynamodb.Client) (ratelimit.Limiter, func()) {
	if cfg.RateLimitPerMinute <= 0 {
		return nil, func() {}
	}
	if cfg.RateLimitTable != "" {
		return ratelimit.NewDistributedLimiter(client, cfg.RateLimitTable, "EDITOR", cfg.RateLimitPerMinute, rateLimitWindow), func() {}
	}
	limiter := ratelimit.NewSlidingWindowLimiter(cfg.RateLimitPerMinute, rateLimitWindow)
	ctx, cancel := context.WithCancel(context.Background())
	go limiter.Run(ctx, rateLimitSweep)
	return limiter, cancel
}

// ProvideInMemoryCache creates the process-local view cache
func ProvideInMemoryCache() (*InMemoryCache, func()) {
	cache := NewInMemoryCache(time.Minute)
	return cache, cache.Close
}

// ProvideMetrics creates the Prometheus collectors
func ProvideMetrics() *observability.Metrics {
	return observability.NewMetrics("blueprint_editor")
}

// ProvideCloudWatchMetrics creates the CloudWatch sink, or nil when no
// namespace is configured
func ProvideCloudWatchMetrics(cfg *config.Config, client *awscloudwatch.Client, logger *zap.Logger) *observability.CloudWatchMetrics {
	if !cfg.EnableMetrics || cfg.CloudWatchNamespace == "" {
		return nil
	}
	return observability.NewCloudWatchMetrics(client, cfg.CloudWatchNamespace, logger)
}

// ProvideBusinessMetrics fans business metrics out to every enabled sink
func ProvideBusinessMetrics(metrics *observability.Metrics, cw *observability.CloudWatchMetrics) ports.BusinessMetrics {
	sinks := observability.BusinessMetrics{metrics}
	if cw != nil {
		sinks = append(sinks, cw)
	}
	return sinks
}

// ProvideTracer creates the X-Ray tracer
func ProvideTracer(cfg *config.Config) *observability.Tracer {
	return observability.NewTracer("blueprint-editor", cfg.EnableTracing)
}

// ProvideSchemaRegistry loads the persisted JSON contracts
func ProvideSchemaRegistry() (*schema.SchemaRegistry, error) {
	return schema.NewSchemaRegistry()
}

// ProvideCatalog returns the built-in symbol catalog
func ProvideCatalog() *catalog.Catalog {
	return catalog.Default()
}

// ProvideExporter creates the PDF schedule exporter
func ProvideExporter() *pdf.Exporter {
	return pdf.NewExporter("blueprint-editor")
}

// ProvideHub creates the live session hub
func ProvideHub(logger *zap.Logger) *websocket.Hub {
	return websocket.NewHub(logger)
}

// ProvideSessionService creates the editing session registry
func ProvideSessionService(
	cmdBus *bus.CommandBus,
	queryBus *querybus.QueryBus,
	symbols *catalog.Catalog,
	hub *websocket.Hub,
	metrics ports.BusinessMetrics,
	dc *domainconfig.DomainConfig,
	logger *zap.Logger,
) *services.SessionService {
	return services.NewSessionService(cmdBus, queryBus, symbols, hub, metrics, dc, logger)
}

// CommandHandlerAdapter adapts specific command handlers to the generic interface
type CommandHandlerAdapter struct {
	handler func(context.Context, bus.Command) (interface{}, error)
}

func (a *CommandHandlerAdapter) Handle(ctx context.Context, cmd bus.Command) (interface{}, error) {
	return a.handler(ctx, cmd)
}

// ProvideCommandBus creates a command bus with registered handlers
func ProvideCommandBus(
	repo ports.DiagramRepository,
	registry *schema.SchemaRegistry,
	blobs ports.BlobStore,
	cache *InMemoryCache,
	publisher ports.EventPublisher,
	business ports.BusinessMetrics,
	metrics *observability.Metrics,
	tracer *observability.Tracer,
	dc *domainconfig.DomainConfig,
	logger *zap.Logger,
) (*bus.CommandBus, error) {
	commandBus := bus.NewCommandBus(
		bus.LoggingMiddleware(&zapLoggerAdapter{logger}),
		bus.MetricsMiddleware(metrics),
		tracingMiddleware(tracer),
	)

	createHandler := commands_handlers.NewCreateDiagramHandler(repo, cache, publisher, dc, logger)
	saveHandler := commands_handlers.NewSaveNodesHandler(repo, registry, cache, publisher, business, dc, logger)
	updateHandler := commands_handlers.NewUpdateDiagramHandler(repo, cache, publisher, dc, logger)
	uploadHandler := commands_handlers.NewUploadBlueprintHandler(blobs, createHandler, cache, publisher, business, dc, logger)

	registrations := []struct {
		cmd     bus.Command
		handler func(context.Context, bus.Command) (interface{}, error)
	}{
		{commands.CreateDiagramCommand{}, func(ctx context.Context, cmd bus.Command) (interface{}, error) {
			return createHandler.Handle(ctx, cmd.(commands.CreateDiagramCommand))
		}},
		{commands.SaveNodesCommand{}, func(ctx context.Context, cmd bus.Command) (interface{}, error) {
			return saveHandler.Handle(ctx, cmd.(commands.SaveNodesCommand))
		}},
		{commands.RenameDiagramCommand{}, func(ctx context.Context, cmd bus.Command) (interface{}, error) {
			return nil, updateHandler.HandleRename(ctx, cmd.(commands.RenameDiagramCommand))
		}},
		{commands.SetBlueprintPositionCommand{}, func(ctx context.Context, cmd bus.Command) (interface{}, error) {
			return nil, updateHandler.HandleSetBlueprintPosition(ctx, cmd.(commands.SetBlueprintPositionCommand))
		}},
		{commands.UploadBlueprintCommand{}, func(ctx context.Context, cmd bus.Command) (interface{}, error) {
			return uploadHandler.Handle(ctx, cmd.(commands.UploadBlueprintCommand))
		}},
	}
	for _, r := range registrations {
		if err := commandBus.Register(r.cmd, &CommandHandlerAdapter{handler: r.handler}); err != nil {
			return nil, err
		}
	}

	return commandBus, nil
}

// QueryHandlerAdapter adapts specific query handlers to the generic interface
type QueryHandlerAdapter struct {
	handler func(context.Context, querybus.Query) (interface{}, error)
}

func (a *QueryHandlerAdapter) Handle(ctx context.Context, query querybus.Query) (interface{}, error) {
	return a.handler(ctx, query)
}

// ProvideQueryBus creates a query bus with registered handlers. Diagram
// views and the blueprint listing are cached under the keys the command
// handlers invalidate.
func ProvideQueryBus(
	repo ports.DiagramRepository,
	blobs ports.BlobStore,
	cache *InMemoryCache,
	symbols *catalog.Catalog,
	metrics *observability.Metrics,
	dc *domainconfig.DomainConfig,
	logger *zap.Logger,
) (*querybus.QueryBus, error) {
	queryBus := querybus.NewQueryBus()
	measured := querybus.NewMetricsMiddleware(metrics)
	viewCache := querybus.NewCachingMiddleware(cache, dc.DiagramCacheTTL)
	listCache := querybus.NewCachingMiddleware(cache, dc.ListCacheTTL)

	getDiagramHandler := queries_handlers.NewGetDiagramHandler(repo, logger)
	listDiagramsHandler := queries_handlers.NewListDiagramsHandler(repo, cache, dc, logger)
	listBlueprintsHandler := queries_handlers.NewListBlueprintsHandler(blobs, logger)
	listSymbolsHandler := queries_handlers.NewListSymbolsHandler(symbols)

	registrations := []struct {
		query   querybus.Query
		handler querybus.QueryHandler
	}{
		{queries.GetDiagramQuery{}, viewCache.Wrap(&QueryHandlerAdapter{
			handler: func(ctx context.Context, query querybus.Query) (interface{}, error) {
				return getDiagramHandler.Handle(ctx, query.(queries.GetDiagramQuery))
			},
		})},
		{queries.ListDiagramsQuery{}, &QueryHandlerAdapter{
			handler: func(ctx context.Context, query querybus.Query) (interface{}, error) {
				return listDiagramsHandler.Handle(ctx, query.(queries.ListDiagramsQuery))
			},
		}},
		{queries.ListBlueprintsQuery{}, listCache.Wrap(&QueryHandlerAdapter{
			handler: func(ctx context.Context, query querybus.Query) (interface{}, error) {
				return listBlueprintsHandler.Handle(ctx, query.(queries.ListBlueprintsQuery))
			},
		})},
		{queries.ListSymbolsQuery{}, &QueryHandlerAdapter{
			handler: func(ctx context.Context, query querybus.Query) (interface{}, error) {
				return listSymbolsHandler.Handle(ctx, query.(queries.ListSymbolsQuery))
			},
		}},
	}
	for _, r := range registrations {
		if err := queryBus.Register(r.query, measured.Wrap(r.handler)); err != nil {
			return nil, err
		}
	}

	return queryBus, nil
}

// tracingMiddleware runs each command inside an X-Ray subsegment
func tracingMiddleware(tracer *observability.Tracer) bus.Middleware {
	return func(next bus.CommandHandler) bus.CommandHandler {
		return bus.CommandHandlerFunc(func(ctx context.Context, cmd bus.Command) (interface{}, error) {
			var result interface{}
			err := tracer.TraceFunction(ctx, reflect.TypeOf(cmd).Name(), func(ctx context.Context) error {
				var err error
				result, err = next.Handle(ctx, cmd)
				return err
			})
			return result, err
		})
	}
}

// zapLoggerAdapter adapts zap.Logger to the bus Logger interface
type zapLoggerAdapter struct {
	logger *zap.Logger
}

func (a *zapLoggerAdapter) Info(msg string, fields ...interface{}) {
	a.logger.Info(msg, a.fieldsToZap(fields...)...)
}

func (a *zapLoggerAdapter) Error(msg string, fields ...interface{}) {
	a.logger.Error(msg, a.fieldsToZap(fields...)...)
}

func (a *zapLoggerAdapter) fieldsToZap(fields ...interface{}) []zap.Field {
	var zapFields []zap.Field
	for i := 0; i < len(fields); i += 2 {
		if i+1 < len(fields) {
			key, _ := fields[i].(string)
			zapFields = append(zapFields, zap.Any(key, fields[i+1]))
		}
	}
	return zapFields
}
