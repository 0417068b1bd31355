package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func executeCheck(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newCheckCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCheck_AllowedQueryTable(t *testing.T) {
	out, err := executeCheck(t, "SELECT id FROM users -- recent")
	require.NoError(t, err)
	assert.Contains(t, out, "ALLOWED")
	assert.Contains(t, out, "SELECT id FROM users")
	assert.NotContains(t, out, "recent")
}

func TestCheck_RejectedQueryExitsWithStatus2(t *testing.T) {
	out, err := executeCheck(t, "SELECT 1; DROP TABLE users")
	require.Error(t, err)

	var exit *exitError
	require.True(t, errors.As(err, &exit))
	assert.Equal(t, exitRejected, exit.code)
	assert.Contains(t, out, "REJECTED")
	assert.Contains(t, out, "dangerous_command")
}

func TestCheck_JSONFormat(t *testing.T) {
	out, err := executeCheck(t, "SELECT a FROM t UNION SELECT b FROM u", "--format", "json")
	require.Error(t, err)

	var report checkReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.False(t, report.Safe)
	assert.Equal(t, "conditional_command", report.Code)
	assert.Equal(t, []string{"UNION"}, report.ConditionalCommands)
}

func TestCheck_YAMLFormat(t *testing.T) {
	out, err := executeCheck(t, "WITH x AS (SELECT 1) SELECT * FROM x", "-f", "yaml")
	require.NoError(t, err)

	var report checkReport
	require.NoError(t, yaml.Unmarshal([]byte(out), &report))
	assert.True(t, report.Safe)
	assert.Equal(t, "WITH", report.FirstCommand)
	assert.Empty(t, report.DangerousCommands)
}

func TestCheck_UnknownFormat(t *testing.T) {
	_, err := executeCheck(t, "SELECT 1", "--format", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown format")

	var exit *exitError
	assert.False(t, errors.As(err, &exit))
}

func TestCheck_RequiresOneArgument(t *testing.T) {
	_, err := executeCheck(t)
	require.Error(t, err)
}

func TestVersionCommand(t *testing.T) {
	cmd := newVersionCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs(nil)
	require.NoError(t, cmd.Execute())
	assert.Equal(t, "ekaya-guard "+Version+"\n", out.String())
}
