package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPortsAreDistinct(t *testing.T) {
	ports := []int{APIServerPort, BacktestScorerPort, PostgresPort, RedisPort, NATSPort}
	seen := make(map[int]bool)
	for _, p := range ports {
		assert.False(t, seen[p], "port %d assigned twice", p)
		seen[p] = true
		assert.Greater(t, p, 0)
		assert.LessOrEqual(t, p, 65535)
	}
}
