package scanconfig

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultValidates(t *testing.T) {
	require.NoError(t, Validate(Default()))
}

func TestValidateRejectsZeroThreads(t *testing.T) {
	c := Default()
	c.Scan.Threads = 0
	assert.Error(t, Validate(c))
}

func TestValidateRejectsZeroTimeout(t *testing.T) {
	c := Default()
	c.Scan.TimeoutSeconds = 0
	assert.Error(t, Validate(c))
}

func TestGenerateDefaultThenLoadRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, GenerateDefault(path))

	loaded, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, Default(), loaded)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	assert.Error(t, err)
}
