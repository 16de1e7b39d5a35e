package logger

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() {
		SetOutput(os.Stderr)
		SetVerbose(false)
	})
	return &buf
}

func TestSetVerbose(t *testing.T) {
	buf := capture(t)

	SetVerbose(false)
	Debugf("hidden %d", 1)
	assert.NotContains(t, buf.String(), "hidden")
	assert.False(t, IsVerbose())

	SetVerbose(true)
	Debugf("shown %d", 2)
	assert.Contains(t, buf.String(), "shown 2")
	assert.True(t, IsVerbose())
}

func TestSetLevel(t *testing.T) {
	buf := capture(t)

	SetLevel("error")
	Warnf("quiet warning")
	Errorf("loud error")
	assert.NotContains(t, buf.String(), "quiet warning")
	assert.Contains(t, buf.String(), "loud error")

	SetLevel("nonsense")
	Infof("back to info")
	assert.Contains(t, buf.String(), "back to info")
}

func TestConfigureFromEnv(t *testing.T) {
	buf := capture(t)
	t.Setenv(EnvLogLevel, "debug")

	ConfigureFromEnv()
	assert.True(t, IsVerbose())

	Debug("fetching tags", "repository", "library/node")
	assert.Contains(t, buf.String(), "repository=library/node")
}
