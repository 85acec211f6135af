package common

import (
	"github.com/stretchr/testify/require"
	"testing"
)

func TestCalculateShardsNumber(t *testing.T) {
	cases := []struct {
		network       int
		currentShards int
		expected      int
	}{
		{
			network:       1,
			currentShards: 1,
			expected:      1,
		},
		{
			network:       5,
			currentShards: 1,
			expected:      2,
		},
		{
			network:       6,
			currentShards: 2,
			expected:      2,
		},
		{
			network:       40,
			currentShards: 2,
			expected:      16,
		},
		{
			network:       4,
			currentShards: 8,
			expected:      1,
		},
		{
			network:       0,
			currentShards: 16,
			expected:      1,
		},
		{
			network:       10,
			currentShards: 0,
			expected:      4,
		},
	}

	for _, c := range cases {
		require.Equal(t, c.expected, CalculateShardsNumber(MinShardSize, MaxShardSize, c.network, c.currentShards))
	}
}
