// Package testhelpers starts shared backing-service containers for
// integration tests. Containers are created once per test binary and reused;
// short mode skips anything that needs Docker.
package testhelpers

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/estategraph/estate-engine/pkg/config"
)

const (
	postgresImage      = "postgres:16-alpine"
	elasticsearchImage = "docker.elastic.co/elasticsearch/elasticsearch:8.18.1"

	testDatabase = "estate_engine_test"
	testUser     = "estate"
	testPassword = "test_password"
)

var (
	pgOnce sync.Once
	pgCfg  *config.StoreConfig
	pgErr  error

	esOnce sync.Once
	esURL  string
	esErr  error
)

// PostgresStoreConfig returns the store configuration of a shared postgres
// container, for exercising the postgres backend against a real server.
func PostgresStoreConfig(t *testing.T) *config.StoreConfig {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode (requires Docker)")
	}

	pgOnce.Do(func() {
		pgCfg, pgErr = startPostgres()
	})
	if pgErr != nil {
		t.Fatalf("start postgres container: %v", pgErr)
	}
	return pgCfg
}

func startPostgres() (*config.StoreConfig, error) {
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        postgresImage,
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_DB":       testDatabase,
				"POSTGRES_USER":     testUser,
				"POSTGRES_PASSWORD": testPassword,
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		return nil, fmt.Errorf("start container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return nil, fmt.Errorf("container host: %w", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		return nil, fmt.Errorf("container port: %w", err)
	}

	return &config.StoreConfig{
		Backend:        "postgres",
		Host:           host,
		Port:           port.Int(),
		User:           testUser,
		Password:       testPassword,
		Database:       testDatabase,
		SSLMode:        "disable",
		MaxConnections: 5,
	}, nil
}

// ElasticsearchURL returns the HTTP endpoint of a shared single-node
// Elasticsearch container with security disabled.
func ElasticsearchURL(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode (requires Docker)")
	}

	esOnce.Do(func() {
		esURL, esErr = startElasticsearch()
	})
	if esErr != nil {
		t.Fatalf("start elasticsearch container: %v", esErr)
	}
	return esURL
}

func startElasticsearch() (string, error) {
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        elasticsearchImage,
			ExposedPorts: []string{"9200/tcp"},
			Env: map[string]string{
				"discovery.type":         "single-node",
				"xpack.security.enabled": "false",
				"ES_JAVA_OPTS":           "-Xms512m -Xmx512m",
			},
			WaitingFor: wait.ForHTTP("/_cluster/health").
				WithPort("9200/tcp").
				WithStartupTimeout(120 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		return "", fmt.Errorf("start container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return "", fmt.Errorf("container host: %w", err)
	}
	port, err := container.MappedPort(ctx, "9200")
	if err != nil {
		return "", fmt.Errorf("container port: %w", err)
	}
	return fmt.Sprintf("http://%s:%s", host, port.Port()), nil
}
