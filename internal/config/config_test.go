package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	c, err := Load()

	require.NoError(t, err)
	assert.Equal(t, ":8080", c.HTTPAddr)
	assert.Equal(t, StoreMemory, c.EventStore)
	assert.Equal(t, ProjectionInline, c.Projection)
	assert.Equal(t, []string{"localhost:9092"}, c.KafkaBrokers)
	assert.Equal(t, 15*time.Minute, c.AccessTokenTTL)
	assert.Equal(t, 10*time.Second, c.SMTPTimeout)
	assert.Equal(t, 30*time.Second, c.NotifyTimeout)
	assert.False(t, c.NeedsPostgres())
}

func TestLoad_PrefixedAndBareNames(t *testing.T) {
	t.Setenv("MARKETPLACE_EVENT_STORE", "postgres")
	t.Setenv("READ_STORE", "postgres")
	t.Setenv("MARKETPLACE_PROJECTION", "kafka")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("MARKETPLACE_REFRESH_TOKEN_TTL", "24h")

	c, err := Load()

	require.NoError(t, err)
	assert.Equal(t, StorePostgres, c.EventStore)
	assert.Equal(t, StorePostgres, c.ReadStore)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.KafkaBrokers)
	assert.Equal(t, 24*time.Hour, c.RefreshTokenTTL)
	assert.True(t, c.NeedsPostgres())
}

func TestLoad_RejectsUnknownBackend(t *testing.T) {
	t.Setenv("MARKETPLACE_SEQUENCE", "etcd")

	_, err := Load()

	assert.ErrorContains(t, err, "SEQUENCE")
}

func TestValidate_KafkaNeedsSharedReadStore(t *testing.T) {
	c := &Config{
		EventStore:   StoreMemory,
		ReadStore:    StoreMemory,
		Projection:   ProjectionKafka,
		Sequence:     StoreMemory,
		KafkaBrokers: []string{"k1:9092"},
	}

	assert.Error(t, c.Validate())
}

func TestCheckJWTSecret(t *testing.T) {
	c := &Config{}
	assert.Error(t, c.CheckJWTSecret())

	c.JWTSecret = "too-short"
	assert.Error(t, c.CheckJWTSecret())

	c.JWTSecret = strings.Repeat("k", 32)
	assert.NoError(t, c.CheckJWTSecret())
}
