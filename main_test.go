package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/estategraph/estate-engine/pkg/apperrors"
)

func writeTestFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func neighborhoodFixture(t *testing.T, dir string) string {
	t.Helper()
	return writeTestFile(t, dir, "neighborhoods.json", `[
		{
			"neighborhood_id": "N1",
			"name": "Mission District",
			"city": "San Francisco",
			"state": "CA",
			"description": "A vibrant neighborhood.",
			"amenities": ["parks", "cafes"],
			"safety_rating": 7.5,
			"walkability_score": 9.1
		}
	]`)
}

func executeRun(t *testing.T, configYAML string, extraArgs ...string) (string, error) {
	t.Helper()
	cfgPath := writeTestFile(t, t.TempDir(), "config.yaml", configYAML)

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"run", "-c", cfgPath}, extraArgs...))
	err := root.Execute()
	return out.String(), err
}

func TestExitCodeMapping(t *testing.T) {
	assert.Equal(t, exitOK, exitCode(nil))
	assert.Equal(t, exitSourcesEmpty, exitCode(fmt.Errorf("run: %w", apperrors.ErrAllSourcesEmpty)))
	assert.Equal(t, exitConfig, exitCode(fmt.Errorf("%w: bad field", apperrors.ErrConfigInvalid)))
	assert.Equal(t, exitFatal, exitCode(errors.New("store exploded")))
}

func TestRunCommandFailsWhenEntityFails(t *testing.T) {
	dir := t.TempDir()
	neighborhoods := neighborhoodFixture(t, dir)
	missing := filepath.Join(dir, "no-such-properties.json")

	out, err := executeRun(t, fmt.Sprintf(`
logging:
  level: "error"
run:
  entities: ["neighborhood", "property"]
sources:
  neighborhood_path: %q
  property_path: %q
store:
  backend: "sqlite"
  path: ":memory:"
embedding:
  provider: "mock"
`, neighborhoods, missing), "--skip-sinks")

	require.Error(t, err)
	assert.NotErrorIs(t, err, apperrors.ErrAllSourcesEmpty)
	assert.Contains(t, err.Error(), "entity failed")
	assert.Equal(t, exitFatal, exitCode(err))
	assert.Contains(t, out, `"status": "degraded"`, "report is still printed before the failure exit")
}

func TestRunCommandMapsAllSourcesEmpty(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "no-such-neighborhoods.json")

	_, err := executeRun(t, fmt.Sprintf(`
logging:
  level: "error"
run:
  entities: ["neighborhood"]
sources:
  neighborhood_path: %q
store:
  backend: "sqlite"
  path: ":memory:"
embedding:
  provider: "mock"
`, missing), "--skip-sinks")

	require.ErrorIs(t, err, apperrors.ErrAllSourcesEmpty)
	assert.Equal(t, exitSourcesEmpty, exitCode(err))
}

func TestRunCommandFailsWhenNoSinkSucceeds(t *testing.T) {
	dir := t.TempDir()
	neighborhoods := neighborhoodFixture(t, dir)

	// A regular file where the sink expects a directory blocks every write.
	blocker := writeTestFile(t, dir, "blocker", "x")
	parquetOut := filepath.Join(blocker, "out")

	_, err := executeRun(t, fmt.Sprintf(`
logging:
  level: "error"
run:
  entities: ["neighborhood"]
sources:
  neighborhood_path: %q
store:
  backend: "sqlite"
  path: ":memory:"
embedding:
  provider: "mock"
sinks:
  enabled: ["parquet"]
  parquet:
    path: %q
`, neighborhoods, parquetOut))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no sink write succeeded")
	assert.Equal(t, exitFatal, exitCode(err))
}

func TestRunCommandSkipSinksSuppressesSinkCheck(t *testing.T) {
	dir := t.TempDir()
	neighborhoods := neighborhoodFixture(t, dir)

	// Same dead sink, but --skip-sinks means no writes were expected.
	blocker := writeTestFile(t, dir, "blocker", "x")
	parquetOut := filepath.Join(blocker, "out")

	_, err := executeRun(t, fmt.Sprintf(`
logging:
  level: "error"
run:
  entities: ["neighborhood"]
sources:
  neighborhood_path: %q
store:
  backend: "sqlite"
  path: ":memory:"
embedding:
  provider: "mock"
sinks:
  enabled: ["parquet"]
  parquet:
    path: %q
`, neighborhoods, parquetOut), "--skip-sinks")

	require.NoError(t, err)
}

func TestVersionCommand(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})
	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), Version)
}
