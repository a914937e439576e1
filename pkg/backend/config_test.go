package backend

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConfigDefaults(t *testing.T) {
	cfg := DefaultConfig()
	require.True(t, cfg.Optimize())
	require.Empty(t, cfg.TargetCPU())
}

func TestConfigHashConsistentWithEqual(t *testing.T) {
	a := NewConfig()
	b := NewConfig()
	require.True(t, a.Equal(b))
	require.Equal(t, a.Hash(), b.Hash())

	c := NewConfig(WithOptimize(false))
	require.False(t, a.Equal(c))
	require.NotEqual(t, a.Hash(), c.Hash())

	d := NewConfig(WithTargetCPU("haswell"))
	require.False(t, a.Equal(d))
	require.NotEqual(t, a.Hash(), d.Hash())
}

func TestConfigEqualNil(t *testing.T) {
	var nilCfg *Config
	require.True(t, nilCfg.Equal(nil))
	require.False(t, DefaultConfig().Equal(nil))
	require.False(t, nilCfg.Equal(DefaultConfig()))
}
