package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestInitLogger_InvalidInput(t *testing.T) {
	prev := Log
	t.Cleanup(func() { Log = prev })

	assert.Error(t, InitLogger("loud", "json"))
	assert.Error(t, InitLogger("info", "xml"))
	assert.Same(t, prev, Log, "failed init must not replace the logger")
}

func TestInitLogger_WritesFile(t *testing.T) {
	prev := Log
	t.Cleanup(func() { Log = prev })

	path := filepath.Join(t.TempDir(), "dbsync.log")
	require.NoError(t, InitLogger("debug", "json", WithFile(path, 1, 1)))

	Log.Info("cycle started", zap.String("cycle_id", "abc"))
	Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"cycle started"`)
	assert.Contains(t, string(data), `"cycle_id":"abc"`)
}
