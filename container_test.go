package tzp

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAlgorithmIDString(t *testing.T) {
	require.Equal(t, "zstd-22", AlgoZstd22.String())
	require.Equal(t, "hybrid", AlgoHybrid.String())
	require.Contains(t, AlgorithmID(99).String(), "algorithm(99)")
}

func TestCanonicalProfile(t *testing.T) {
	require.Equal(t, ProfileFast, canonicalProfile("turbo"))
	require.Equal(t, ProfileHigh, canonicalProfile("POWER"))
	require.Equal(t, ProfileMax, canonicalProfile(" ultimate "))
	require.Equal(t, ProfileBalanced, canonicalProfile("adaptive"))
	require.Equal(t, ProfileBalanced, canonicalProfile("nonsense"))
	require.Equal(t, ProfileLightning, canonicalProfile("lightning"))
}
