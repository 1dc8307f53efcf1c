package domain

import (
	"fmt"
)

// ConnectorRegistry is the process-wide catalog of connector definitions. It
// is populated sequentially during startup and read-only afterwards, so
// lookups need no locking.
type ConnectorRegistry interface {
	RegisterPersonal(connector PersonalConnector) error
	RegisterShared(connector SharedConnector) error
	GetPersonalConnector(key ConnectorKey) (PersonalConnector, error)
	GetSharedConnector(key ConnectorKey) (SharedConnector, error)
	ListPersonal() []ConnectorDescriptor
	ListShared() []ConnectorDescriptor
}

type connectorRegistry struct {
	personalByKey map[ConnectorKey]PersonalConnector
	sharedByKey   map[ConnectorKey]SharedConnector

	// registration order, kept so List* output is stable
	personalKeys []ConnectorKey
	sharedKeys   []ConnectorKey
}

func NewConnectorRegistry() ConnectorRegistry {
	return &connectorRegistry{
		personalByKey: make(map[ConnectorKey]PersonalConnector),
		sharedByKey:   make(map[ConnectorKey]SharedConnector),
	}
}

// RegisterPersonal adds a personal connector. Keys are unique across both
// variants; a second registration under an existing key fails.
func (r *connectorRegistry) RegisterPersonal(connector PersonalConnector) error {
	key := connector.Descriptor().Key

	if err := r.checkKeyIsFree(key); err != nil {
		return err
	}

	r.personalByKey[key] = connector
	r.personalKeys = append(r.personalKeys, key)

	return nil
}

func (r *connectorRegistry) RegisterShared(connector SharedConnector) error {
	key := connector.Descriptor().Key

	if err := r.checkKeyIsFree(key); err != nil {
		return err
	}

	r.sharedByKey[key] = connector
	r.sharedKeys = append(r.sharedKeys, key)

	return nil
}

func (r *connectorRegistry) checkKeyIsFree(key ConnectorKey) error {
	if _, ok := r.personalByKey[key]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateConnector, key)
	}
	if _, ok := r.sharedByKey[key]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateConnector, key)
	}
	return nil
}

func (r *connectorRegistry) GetPersonalConnector(key ConnectorKey) (PersonalConnector, error) {
	connector, ok := r.personalByKey[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrConnectorNotFound, key)
	}

	return connector, nil
}

func (r *connectorRegistry) GetSharedConnector(key ConnectorKey) (SharedConnector, error) {
	connector, ok := r.sharedByKey[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrConnectorNotFound, key)
	}

	return connector, nil
}

func (r *connectorRegistry) ListPersonal() []ConnectorDescriptor {
	descriptors := make([]ConnectorDescriptor, 0, len(r.personalKeys))

	for _, key := range r.personalKeys {
		descriptors = append(descriptors, r.personalByKey[key].Descriptor())
	}

	return descriptors
}

func (r *connectorRegistry) ListShared() []ConnectorDescriptor {
	descriptors := make([]ConnectorDescriptor, 0, len(r.sharedKeys))

	for _, key := range r.sharedKeys {
		descriptors = append(descriptors, r.sharedByKey[key].Descriptor())
	}

	return descriptors
}
