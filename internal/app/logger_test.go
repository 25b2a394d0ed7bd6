package app

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConfigureLogging(t *testing.T) {
	require.NoError(t, ConfigureLogging("debug", "console"))
	require.NoError(t, ConfigureLogging("", ""))
	require.NoError(t, ConfigureLogging("loud", "json"), "unknown levels fall back to info")
}
