package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMongoConfig_WithDefaults(t *testing.T) {
	cfg := MongoConfig{URI: "mongodb://localhost:27017", Database: "promode"}.withDefaults()

	assert.Equal(t, uint64(100), cfg.MaxPoolSize)
	assert.Equal(t, uint64(10), cfg.MinPoolSize)
}

func TestMongoConfig_WithDefaultsKeepsExplicitPoolSizes(t *testing.T) {
	cfg := MongoConfig{MaxPoolSize: 20, MinPoolSize: 2}.withDefaults()

	assert.Equal(t, uint64(20), cfg.MaxPoolSize)
	assert.Equal(t, uint64(2), cfg.MinPoolSize)
}
