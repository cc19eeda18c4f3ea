package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kode4food/cadence/pkg/api"
)

const doublerYAML = `
id: doubler
name: Doubler
steps:
  - id: load
    capabilityName: noop
    inputFrom:
      x: $input.x
  - id: check
    capabilityName: echo
    condition: $load.x > 5
    args:
      value: big
  - id: gate
    capabilityName: echo
    approval:
      level: required
    args:
      value: approved
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestRunAutoApprove(t *testing.T) {
	def := writeFile(t, "doubler.yaml", doublerYAML)
	var out, errOut bytes.Buffer

	code := run([]string{
		"-inputs", `{"x": 2}`, "-auto-approve", def,
	}, &out, &errOut)
	require.Equal(t, exitOK, code, errOut.String())

	var rec api.ResultRecord
	require.NoError(t, json.Unmarshal(out.Bytes(), &rec))
	assert.True(t, rec.Success)
	assert.Equal(t, "approved", rec.FinalResult)
	assert.Equal(t, map[string]any{"x": float64(2)}, rec.StepResults["load"])
	assert.NotContains(t, rec.StepResults, api.StepID("check"))
}

func TestRunRejectedGate(t *testing.T) {
	def := writeFile(t, "doubler.yaml", doublerYAML)
	var out, errOut bytes.Buffer

	code := run([]string{
		"-select", "failedStep", def,
	}, &out, &errOut)
	assert.Equal(t, exitRunFailed, code)
	assert.Equal(t, `"gate"`, strings.TrimSpace(out.String()))
}

func TestRunSelect(t *testing.T) {
	def := writeFile(t, "doubler.yaml", doublerYAML)
	var out, errOut bytes.Buffer

	code := run([]string{
		"-inputs", `{"x": 9}`, "-auto-approve",
		"-select", "stepResults.check", def,
	}, &out, &errOut)
	require.Equal(t, exitOK, code, errOut.String())
	assert.Equal(t, `"big"`, strings.TrimSpace(out.String()))
}

func TestRunArchive(t *testing.T) {
	def := writeFile(t, "doubler.yaml", doublerYAML)
	dir := t.TempDir()
	var out, errOut bytes.Buffer

	code := run([]string{
		"-auto-approve", "-archive", "file://" + dir, def,
	}, &out, &errOut)
	require.Equal(t, exitOK, code, errOut.String())

	pattern := filepath.Join(dir, "runs", "doubler", "*.json")
	matches, err := filepath.Glob(pattern)
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

func TestRunUsageErrors(t *testing.T) {
	var out, errOut bytes.Buffer
	assert.Equal(t, exitUsage, run(nil, &out, &errOut))

	def := writeFile(t, "doubler.yaml", doublerYAML)
	code := run([]string{"-inputs", "[1, 2]", def}, &out, &errOut)
	assert.Equal(t, exitUsage, code)

	code = run([]string{"-inputs", "{broken", def}, &out, &errOut)
	assert.Equal(t, exitUsage, code)

	bad := writeFile(t, "workflow.txt", doublerYAML)
	assert.Equal(t, exitUsage, run([]string{bad}, &out, &errOut))

	dup := writeFile(t, "dup.json",
		`{"id":"d","steps":[{"id":"a"},{"id":"a"}]}`)
	assert.Equal(t, exitUsage, run([]string{dup}, &out, &errOut))
}

func TestParseInputs(t *testing.T) {
	args, err := parseInputs(`{"user": {"id": "u-1"}, "n": 3}`)
	require.NoError(t, err)
	assert.Equal(t, api.Args{
		"user": map[string]any{"id": "u-1"},
		"n":    float64(3),
	}, args)

	_, err = parseInputs(`"text"`)
	assert.ErrorIs(t, err, ErrInvalidInputs)
}
