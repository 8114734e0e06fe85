// -- cmd/root_test.go --
package cmd

import (
	"bytes"
	"context"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCmdVersionFlag(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"--version"})

	err := cmd.ExecuteContext(context.Background())

	require.NoError(t, err)
	assert.Contains(t, out.String(), Version)
}

func TestRootCmdNoArgsShowsHelp(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{})

	err := cmd.ExecuteContext(context.Background())

	require.NoError(t, err)
	assert.Contains(t, out.String(), "vision-guided browser agent")
}

// Executing --version first must not leak parsed flag state into a
// later plain invocation of a fresh command.
func TestRootCmdFreshPerExecution(t *testing.T) {
	first := newRootCmd()
	first.SetOut(&bytes.Buffer{})
	first.SetErr(&bytes.Buffer{})
	first.SetArgs([]string{"--version"})
	require.NoError(t, first.ExecuteContext(context.Background()))

	second := newRootCmd()
	var out bytes.Buffer
	second.SetOut(&out)
	second.SetErr(&out)
	second.SetArgs([]string{})
	require.NoError(t, second.ExecuteContext(context.Background()))

	assert.NotEqual(t, Version+"\n", out.String())
	assert.Contains(t, out.String(), "vision-guided browser agent")
}

func TestInitializeConfigEnvOverride(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	t.Setenv("PROSPECTOR_GATEWAY_REQUESTS_PER_MINUTE", "5")
	t.Setenv("PROSPECTOR_AGENT_MAX_STEPS", "7")

	require.NoError(t, initializeConfig())

	assert.Equal(t, 5, viper.GetInt("gateway.requests_per_minute"))
	assert.Equal(t, 7, viper.GetInt("agent.max_steps"))
	// Untouched keys keep their defaults.
	assert.Equal(t, "gemini-2.5-flash", viper.GetString("gateway.model"))
}
