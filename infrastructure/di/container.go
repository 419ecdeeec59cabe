package di

import (
	"blueprint-editor/application/commands/bus"
	"blueprint-editor/application/ports"
	querybus "blueprint-editor/application/queries/bus"
	"blueprint-editor/application/services"
	"blueprint-editor/domain/catalog"
	domainconfig "blueprint-editor/domain/config"
	"blueprint-editor/infrastructure/config"
	"blueprint-editor/infrastructure/export/pdf"
	"blueprint-editor/infrastructure/persistence/dynamodb"
	"blueprint-editor/infrastructure/persistence/schema"
	"blueprint-editor/infrastructure/storage"
	"blueprint-editor/interfaces/websocket"
	"blueprint-editor/pkg/observability"
	"blueprint-editor/pkg/ratelimit"

	"go.uber.org/zap"
)

// Container holds all application dependencies
type Container struct {
	Config      *config.Config
	Domain      *domainconfig.DomainConfig
	Logger      *zap.Logger
	Repo        ports.DiagramRepository
	Blobs       ports.BlobStore
	LocalBlobs  *storage.LocalStore
	Journal     *dynamodb.EventJournal
	Publisher   ports.EventPublisher
	Cache       *InMemoryCache
	Metrics     *observability.Metrics
	CloudWatch  *observability.CloudWatchMetrics
	Business    ports.BusinessMetrics
	Tracer      *observability.Tracer
	Schemas     *schema.SchemaRegistry
	Catalog     *catalog.Catalog
	Exporter    *pdf.Exporter
	Hub         *websocket.Hub
	CommandBus  *bus.CommandBus
	QueryBus    *querybus.QueryBus
	Sessions    *services.SessionService
	RateLimiter ratelimit.Limiter
}
