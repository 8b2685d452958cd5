package event

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/viant/afs"

	"github.com/gearmill/stagegate/service/messaging"
	"github.com/gearmill/stagegate/service/messaging/fs"
	"github.com/gearmill/stagegate/service/messaging/memory"
)

// Service hands out one queue per event payload type, lazily created from
// the configured vendor. Publishers and listeners of the same type share
// that queue, so events published anywhere in the process reach every
// subscriber of the type.
type Service struct {
	vendor    messaging.Vendor
	fsConfig  func(name string) fs.QueueConfig
	memConfig func(name string) memory.Config

	mu         sync.RWMutex
	publishers map[reflect.Type]any
	listeners  map[reflect.Type]any
}

// New validates the vendor selection and its configuration callback.
func New(vendor messaging.Vendor, options ...Option) (*Service, error) {
	ret := &Service{
		vendor:     vendor,
		publishers: make(map[reflect.Type]any),
		listeners:  make(map[reflect.Type]any),
	}
	for _, option := range options {
		option(ret)
	}
	switch vendor {
	case fs.Vendor:
		if ret.fsConfig == nil {
			return nil, fmt.Errorf("fs queue vendor requires a queue config callback")
		}
	case memory.Vendor:
		if ret.memConfig == nil {
			return nil, fmt.Errorf("memory queue vendor requires a queue config callback")
		}
	default:
		return nil, fmt.Errorf("unsupported queue vendor: %s", vendor)
	}
	return ret, nil
}

// PublisherOf returns the shared publisher for events of type T, creating
// its queue on first use.
func PublisherOf[T any](s *Service) (*Publisher[T], error) {
	key := typeOf[T]()
	s.mu.RLock()
	existing, ok := s.publishers[key]
	s.mu.RUnlock()
	if ok {
		return existing.(*Publisher[T]), nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok = s.publishers[key]; ok {
		return existing.(*Publisher[T]), nil
	}
	queue, err := queueOf[Event[T]](s, key.String())
	if err != nil {
		return nil, err
	}
	publisher := NewPublisher[T](queue)
	s.publishers[key] = publisher
	return publisher, nil
}

// SetListenerOf subscribes handler to events of type T, replacing any
// previous subscription for the type.
func SetListenerOf[T any](s *Service, handler func(*Event[T])) error {
	publisher, err := PublisherOf[T](s)
	if err != nil {
		return err
	}
	key := typeOf[T]()
	listener := NewListener[T](publisher, handler)
	s.mu.Lock()
	if previous, ok := s.listeners[key]; ok {
		previous.(*Listener[T]).Stop()
	}
	s.listeners[key] = listener
	s.mu.Unlock()
	listener.Start()
	return nil
}

// queueOf builds a vendor queue named after the payload type. Each call
// creates a fresh queue; sharing happens one level up, in PublisherOf.
func queueOf[T any](s *Service, name string) (messaging.Queue[T], error) {
	switch s.vendor {
	case fs.Vendor:
		return fs.NewQueue[T](afs.New(), s.fsConfig(name))
	case memory.Vendor:
		return memory.NewQueue[T](s.memConfig(name)), nil
	}
	return nil, fmt.Errorf("unsupported queue vendor: %s", s.vendor)
}

func typeOf[T any]() reflect.Type {
	rType := reflect.TypeOf((*T)(nil)).Elem()
	if rType.Kind() == reflect.Ptr {
		rType = rType.Elem()
	}
	return rType
}
