package mq

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoopPublisher(t *testing.T) {
	p := NewNoopPublisher()
	require.NoError(t, p.Publish(context.Background(), "characters.created", []byte(`{}`)))
	p.Close()
}

func TestNewPublisherUnreachable(t *testing.T) {
	_, err := NewPublisher("nats://127.0.0.1:1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connect nats")
}
