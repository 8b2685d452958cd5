package stagegate

import (
	"path"

	"github.com/viant/x"

	"github.com/gearmill/stagegate/extension"
	"github.com/gearmill/stagegate/service/catalog"
	"github.com/gearmill/stagegate/service/catalog/loader"
	cmemory "github.com/gearmill/stagegate/service/catalog/memory"
	"github.com/gearmill/stagegate/service/directory"
	dmemory "github.com/gearmill/stagegate/service/directory/memory"
	"github.com/gearmill/stagegate/service/dispatcher"
	"github.com/gearmill/stagegate/service/engine"
	"github.com/gearmill/stagegate/service/event"
	"github.com/gearmill/stagegate/service/messaging"
	"github.com/gearmill/stagegate/service/messaging/fs"
	mmemory "github.com/gearmill/stagegate/service/messaging/memory"
	"github.com/gearmill/stagegate/service/receipt"
	"github.com/gearmill/stagegate/service/store"
	smemory "github.com/gearmill/stagegate/service/store/memory"
)

// Service assembles the approval engine with its collaborators: policy
// catalog, principal directory, workflow store, lifecycle event feed,
// outcome dispatcher and optional receipt signer.
type Service struct {
	runtime *Runtime

	catalogService   catalog.Service
	directoryService directory.Service
	workflowStore    store.Service
	eventService     *event.Service
	receiptService   *receipt.Service
	catalogLoader    *loader.Service

	kinds          *extension.Kinds
	extensionTypes []*x.Type
	handlers       []extension.Handler

	loaderOptions     []loader.Option
	queueVendor       string
	queueBasePath     string
	catalogURL        string
	seedCatalog       bool
	dispatcherWorkers int
	config            *Config
}

func (s *Service) init(options []Option) {
	for _, option := range options {
		option(s)
	}
	s.ensureBaseSetup()
	s.kinds = extension.NewKinds(s.extensionTypes...)
	for _, handler := range s.handlers {
		s.kinds.Register(handler)
	}
	s.runtime.engine = engine.New(s.catalogService, s.directoryService, s.workflowStore,
		engine.WithKinds(s.kinds),
		engine.WithEventService(s.eventService))
	s.runtime.catalog = s.catalogService
	s.runtime.directory = s.directoryService
	s.runtime.workflows = s.workflowStore
	s.runtime.events = s.eventService
	s.runtime.receipts = s.receiptService
	s.runtime.loader = s.catalogLoader
	s.runtime.catalogURL = s.config.Catalog.URL
	s.runtime.seedCatalog = s.config.Catalog.Seed
	s.runtime.dispatcher, _ = dispatcher.New(s.eventService, s.kinds,
		dispatcher.WithConfig(dispatcher.Config{
			WorkerCount: s.config.Dispatcher.WorkerCount,
			Buffer:      s.config.Dispatcher.Buffer,
		}))
}

// RegisterExtensionTypes registers subject payload types with the kind
// registry.
func (s *Service) RegisterExtensionTypes(types ...*x.Type) {
	for i := range types {
		s.kinds.Types().Register(types[i])
	}
}

// RegisterHandlers registers subject-kind handlers.
func (s *Service) RegisterHandlers(handlers ...extension.Handler) {
	for i := range handlers {
		s.kinds.Register(handlers[i])
	}
}

func (s *Service) Runtime() *Runtime {
	return s.runtime
}

func (s *Service) ensureBaseSetup() {
	if s.config == nil {
		s.config = DefaultConfig()
	}
	if s.queueVendor != "" {
		s.config.Queue.Vendor = s.queueVendor
	}
	if s.queueBasePath != "" {
		s.config.Queue.BasePath = s.queueBasePath
	}
	if s.catalogURL != "" {
		s.config.Catalog.URL = s.catalogURL
	}
	if s.seedCatalog {
		s.config.Catalog.Seed = true
	}
	if s.dispatcherWorkers > 0 {
		s.config.Dispatcher.WorkerCount = s.dispatcherWorkers
	}
	if s.config.Dispatcher.WorkerCount <= 0 {
		s.config.Dispatcher.WorkerCount = DefaultConfig().Dispatcher.WorkerCount
	}
	if s.config.Dispatcher.Buffer <= 0 {
		s.config.Dispatcher.Buffer = DefaultConfig().Dispatcher.Buffer
	}
	if s.catalogService == nil {
		s.catalogService = cmemory.New()
	}
	if s.directoryService == nil {
		s.directoryService = dmemory.New()
	}
	if s.workflowStore == nil {
		s.workflowStore = smemory.New()
	}
	if s.catalogLoader == nil {
		s.catalogLoader = loader.New(s.loaderOptions...)
	}
	if s.eventService == nil {
		switch messaging.Vendor(s.config.Queue.Vendor) {
		case fs.Vendor:
			basePath := s.config.Queue.BasePath
			s.eventService, _ = event.New(fs.Vendor, event.WithNewFsQueueConfig(func(name string) fs.QueueConfig {
				config := fs.DefaultConfig()
				if basePath != "" {
					config.BasePath = basePath
				}
				config.BasePath = path.Join(config.BasePath, name)
				return config
			}))
		default:
			s.eventService, _ = event.New(mmemory.Vendor, event.WithNewMemoryQueueConfig(func(name string) mmemory.Config {
				return mmemory.DefaultConfig()
			}))
		}
	}
}

func New(options ...Option) *Service {
	ret := &Service{runtime: &Runtime{}}
	ret.init(options)
	return ret
}

// NewFromConfig validates the supplied configuration and assembles the
// service with it; further options are applied on top.
func NewFromConfig(config *Config, options ...Option) (*Service, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return New(append([]Option{WithConfig(config)}, options...)...), nil
}
