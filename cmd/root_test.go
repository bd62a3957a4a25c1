package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, name := range []string{"run", "serve", "worker", "runs", "cache"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "decision-cli", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestRunCommand_Flags(t *testing.T) {
	tests := []struct {
		name string
		def  string
	}{
		{"input", ""},
		{"decision-id", ""},
		{"temporal", "false"},
		{"format", "json"},
	}
	for _, tt := range tests {
		flag := runCmd.Flags().Lookup(tt.name)
		require.NotNil(t, flag, "run command should have --%s flag", tt.name)
		assert.Equal(t, tt.def, flag.DefValue, tt.name)
	}
}

func TestRunsCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range runsCmd.Commands() {
		names[c.Name()] = true
	}
	for _, name := range []string{"list", "show", "stats", "export"} {
		assert.True(t, names[name], "runs should have subcommand %q", name)
	}

	limit := runsListCmd.Flags().Lookup("limit")
	require.NotNil(t, limit)
	assert.Equal(t, "50", limit.DefValue)
	assert.NotNil(t, runsListCmd.Flags().Lookup("decision"))
	assert.NotNil(t, runsShowCmd.Flags().Lookup("phases"))
}

func TestCacheCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range cacheCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["cleanup"])
	assert.True(t, names["invalidate"])

	assert.Error(t, cacheInvalidateCmd.Args(cacheInvalidateCmd, nil))
	assert.NoError(t, cacheInvalidateCmd.Args(cacheInvalidateCmd, []string{"scrape:*"}))
}
