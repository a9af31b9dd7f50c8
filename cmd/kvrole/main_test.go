package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ceyewan/kvrole/launcher"
)

func TestRunRejectsUnknownFlag(t *testing.T) {
	assert.Equal(t, launcher.ExitConfig, run([]string{"--no-such-flag"}))
}

func TestRunRejectsConflictingOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	assert.Equal(t, launcher.ExitConfig, run([]string{"--role.primary", "--role.witness", "--identity=redis-0"}))
}

func TestRunRejectsMissingSecretFile(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("KVROLE_AUTH_PASSWORD_FILE", "/nonexistent/kvrole/secret")
	assert.Equal(t, launcher.ExitConfig, run([]string{"--identity=redis-0", "--dry-run"}))
}
