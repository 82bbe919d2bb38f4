package messaging

import (
	"context"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"

	"github.com/Additional-Code/cannadmin/internal/config"
)

func TestNewClientNoop(t *testing.T) {
	lc := fxtest.NewLifecycle(t)
	cfg := config.Config{Messaging: config.Messaging{Enabled: false, Kafka: config.Kafka{Topic: "changefeed"}}}

	client, err := NewClient(lc, cfg, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "changefeed", client.Topic())
	assert.NoError(t, client.Publish(context.Background(), []byte("k"), []byte("v"), nil))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, client.Consume(ctx, nil), context.DeadlineExceeded)
}

func TestNewClientUnsupportedDriver(t *testing.T) {
	lc := fxtest.NewLifecycle(t)
	cfg := config.Config{Messaging: config.Messaging{Enabled: true, Driver: "nats"}}

	_, err := NewClient(lc, cfg, zap.NewNop())
	assert.ErrorContains(t, err, "nats")
}

func TestHeaderConversion(t *testing.T) {
	assert.Nil(t, toKafkaHeaders(nil))
	assert.Nil(t, fromKafkaHeaders(nil))

	in := map[string]string{"change-table": "orders", "content-type": "application/json"}
	out := toKafkaHeaders(in)
	require.Len(t, out, 2)
	assert.Contains(t, out, kafka.Header{Key: "change-table", Value: []byte("orders")})
	assert.Equal(t, in, fromKafkaHeaders(out))
}
