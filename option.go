package stagegate

import (
	"github.com/viant/afs/storage"
	"github.com/viant/x"

	"github.com/gearmill/stagegate/extension"
	"github.com/gearmill/stagegate/service/catalog"
	"github.com/gearmill/stagegate/service/catalog/loader"
	"github.com/gearmill/stagegate/service/directory"
	"github.com/gearmill/stagegate/service/event"
	"github.com/gearmill/stagegate/service/messaging"
	"github.com/gearmill/stagegate/service/receipt"
	"github.com/gearmill/stagegate/service/store"
	"github.com/gearmill/stagegate/tracing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Option customises the root service assembly.
type Option func(s *Service)

// WithConfig sets the serialisable configuration; explicit options still win
// over config fields.
func WithConfig(config *Config) Option {
	return func(s *Service) {
		s.config = config
	}
}

// WithCatalog sets the policy catalog service.
func WithCatalog(service catalog.Service) Option {
	return func(s *Service) {
		s.catalogService = service
	}
}

// WithDirectory sets the principal directory service.
func WithDirectory(service directory.Service) Option {
	return func(s *Service) {
		s.directoryService = service
	}
}

// WithStore sets the workflow store.
func WithStore(service store.Service) Option {
	return func(s *Service) {
		s.workflowStore = service
	}
}

// WithEventService sets the lifecycle event feed.
func WithEventService(service *event.Service) Option {
	return func(s *Service) {
		s.eventService = service
	}
}

// WithQueueVendor selects the messaging vendor ("memory" or "fs") backing
// the default event feed.
func WithQueueVendor(vendor messaging.Vendor) Option {
	return func(s *Service) {
		s.queueVendor = string(vendor)
	}
}

// WithQueueBasePath roots the fs vendor queue directories.
func WithQueueBasePath(basePath string) Option {
	return func(s *Service) {
		s.queueBasePath = basePath
	}
}

// WithCatalogURL points the service at a policy catalog document loaded on
// Start.
func WithCatalogURL(URL string) Option {
	return func(s *Service) {
		s.catalogURL = URL
	}
}

// WithSeedCatalog writes the starter catalog to the catalog URL on Start
// when no document exists there yet.
func WithSeedCatalog() Option {
	return func(s *Service) {
		s.seedCatalog = true
	}
}

// WithCatalogBaseURL sets the base URL relative catalog URLs resolve
// against.
func WithCatalogBaseURL(baseURL string) Option {
	return func(s *Service) {
		s.loaderOptions = append(s.loaderOptions, loader.WithBaseURL(baseURL))
	}
}

// WithCatalogFsOptions sets storage options passed to the catalog loader
// filesystem, e.g. an embedded filesystem.
func WithCatalogFsOptions(options ...storage.Option) Option {
	return func(s *Service) {
		s.loaderOptions = append(s.loaderOptions, loader.WithFsOptions(options...))
	}
}

// WithExtensionTypes registers subject payload types.
func WithExtensionTypes(types ...*x.Type) Option {
	return func(s *Service) {
		s.extensionTypes = types
	}
}

// WithHandlers registers subject-kind handlers.
func WithHandlers(handlers ...extension.Handler) Option {
	return func(s *Service) {
		s.handlers = append(s.handlers, handlers...)
	}
}

// WithReceiptSigner configures the signer issuing decision and outcome
// receipts. Without it receipt issuance is disabled.
func WithReceiptSigner(config *receipt.Config, options ...receipt.Option) Option {
	return func(s *Service) {
		s.receiptService = receipt.New(config, options...)
	}
}

// WithDispatcherWorkers sets the outcome dispatcher worker count.
func WithDispatcherWorkers(count int) Option {
	return func(s *Service) {
		s.dispatcherWorkers = count
	}
}

// WithTracing configures OpenTelemetry tracing for the service. If outputFile is empty the
// stdout exporter is used; otherwise traces are written to the supplied file path. The function is
// safe to call multiple times, the first successful initialisation wins.
func WithTracing(serviceName, serviceVersion, outputFile string) Option {
	return func(s *Service) {
		_ = tracing.Init(serviceName, serviceVersion, outputFile)
	}
}

// WithTracingExporter configures OpenTelemetry tracing using a custom SpanExporter. This enables
// integrations with exporters other than the built-in stdout exporter, for example OTLP, Jaeger or
// Zipkin. The function is safe to call multiple times, the first successful initialisation wins.
func WithTracingExporter(serviceName, serviceVersion string, exporter sdktrace.SpanExporter) Option {
	return func(s *Service) {
		_ = tracing.InitWithExporter(serviceName, serviceVersion, exporter)
	}
}
