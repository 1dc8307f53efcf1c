package initialization

import (
	"context"
	"fmt"

	"github.com/appforge/connectorhub/internal/managers"
	"github.com/appforge/connectorhub/internal/storage"
	"github.com/appforge/connectorhub/pkg/domain"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Config carries everything the container needs to assemble the registry.
// Validation of required fields happens in cmd before this is built; missing
// per-connector configuration still fails here, at registration time.
type Config struct {
	HTTPAddress string

	MasterEncryptionKey string

	RedisAddress  string
	RedisPassword string
	RedisDB       int

	NotionClientID     string
	NotionClientSecret string

	LinearClientID     string
	LinearClientSecret string

	AtlassianClientID     string
	AtlassianClientSecret string
}

// Container wires the process-wide services: built once at startup,
// read-only afterwards, handed to the HTTP layer by injection.
type Container struct {
	Config            Config
	Registry          domain.ConnectorRegistry
	ConnectionStore   domain.ConnectionStore
	EncryptionService domain.EncryptionService
	ConnectionManager domain.ConnectionManager
	ResourceGateway   domain.ResourceGateway
}

func NewContainer(ctx context.Context, config Config) (*Container, error) {
	encryptionService, err := managers.NewEncryptionService(config.MasterEncryptionKey)
	if err != nil {
		return nil, err
	}

	connectionStore, err := newConnectionStore(ctx, config)
	if err != nil {
		return nil, err
	}

	registry := domain.NewConnectorRegistry()

	if err := registerConnectors(registry, config); err != nil {
		return nil, fmt.Errorf("failed to register connectors: %w", err)
	}

	connectionManager := managers.NewConnectionManager(managers.ConnectionManagerDependencies{
		Registry:          registry,
		ConnectionStore:   connectionStore,
		EncryptionService: encryptionService,
	})

	resourceGateway := managers.NewResourceGateway(managers.ResourceGatewayDependencies{
		Registry:          registry,
		ConnectionManager: connectionManager,
	})

	return &Container{
		Config:            config,
		Registry:          registry,
		ConnectionStore:   connectionStore,
		EncryptionService: encryptionService,
		ConnectionManager: connectionManager,
		ResourceGateway:   resourceGateway,
	}, nil
}

func newConnectionStore(ctx context.Context, config Config) (domain.ConnectionStore, error) {
	if config.RedisAddress == "" {
		log.Warn().Msg("No Redis address configured, using in-memory connection store")
		return storage.NewMemoryConnectionStore(), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     config.RedisAddress,
		Password: config.RedisPassword,
		DB:       config.RedisDB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", config.RedisAddress, err)
	}

	log.Info().Str("address", config.RedisAddress).Msg("Connected to Redis connection store")

	return storage.NewRedisConnectionStore(client, "connectorhub"), nil
}
