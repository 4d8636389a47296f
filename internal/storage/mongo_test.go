package storage

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupMongoURI(t *testing.T, ctx context.Context) string {
	t.Helper()

	req := tc.ContainerRequest{
		Image:        "mongo:6",
		ExposedPorts: []string{"27017/tcp"},
		WaitingFor:   wait.ForLog("Waiting for connections"),
	}

	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "27017")
	require.NoError(t, err)

	return fmt.Sprintf("mongodb://%s:%s", host, port.Port())
}

func TestMongoSink(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping document store test in short mode")
	}

	ctx := context.Background()
	uri := setupMongoURI(t, ctx)

	sink, err := NewMongoSink(ctx, uri, "meteo_test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = sink.Close(context.Background()) })

	require.NoError(t, sink.Ping(ctx))

	first := testDocument(time.Date(2025, 11, 14, 10, 0, 0, 0, time.UTC))
	require.NoError(t, sink.Save(ctx, first))

	current, err := sink.GetCurrent(ctx)
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, first.RunID, current.RunID)
	require.NotNil(t, current.AirQuality)
	require.NotNil(t, current.AirQuality.OverallAQI)
	assert.Equal(t, 42, *current.AirQuality.OverallAQI)

	// A later run overwrites the current pointer.
	second := testDocument(time.Date(2025, 11, 14, 11, 0, 0, 0, time.UTC))
	second.RunID = "run-2"
	require.NoError(t, sink.Save(ctx, second))

	current, err = sink.GetCurrent(ctx)
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, "run-2", current.RunID)
}

func TestMongoSinkGetCurrentEmpty(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping document store test in short mode")
	}

	ctx := context.Background()
	uri := setupMongoURI(t, ctx)

	sink, err := NewMongoSink(ctx, uri, "meteo_empty")
	require.NoError(t, err)
	t.Cleanup(func() { _ = sink.Close(context.Background()) })

	current, err := sink.GetCurrent(ctx)
	require.NoError(t, err)
	assert.Nil(t, current)
}
