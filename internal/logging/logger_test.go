package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, TRACE, ParseLevel("trace"))
	assert.Equal(t, DEBUG, ParseLevel(" Debug "))
	assert.Equal(t, WARN, ParseLevel("WARN"))
	assert.Equal(t, ERROR, ParseLevel("error"))
	assert.Equal(t, INFO, ParseLevel("bogus"), "неизвестный уровень → INFO")
	assert.Equal(t, "WARN", WARN.String())
}

func TestLogger_ConsoleLevels(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger("frontier", &buf)

	l.Debug("скрыто")
	l.Info("чанк %d", 7)
	assert.NotContains(t, buf.String(), "скрыто")
	assert.Contains(t, buf.String(), "[INFO] [frontier] чанк 7")

	buf.Reset()
	l.SetLevels(TRACE, TRACE)
	l.Trace("детали")
	assert.Contains(t, buf.String(), "[TRACE] [frontier] детали")
}

func TestLogger_WritesFile(t *testing.T) {
	dir := t.TempDir()
	SetLogDir(dir)
	t.Cleanup(func() { SetLogDir("logs") })

	l, err := NewLogger("storage")
	require.NoError(t, err)
	l.Debug("только в файл")
	require.NoError(t, l.Close())
	require.NoError(t, l.Close(), "повторное закрытие безопасно")

	files, err := filepath.Glob(filepath.Join(dir, "storage_*.log"))
	require.NoError(t, err)
	require.Len(t, files, 1)

	data, err := os.ReadFile(files[0])
	require.NoError(t, err)
	assert.Contains(t, string(data), "[DEBUG] [storage] только в файл")
}

func TestLoggerManager(t *testing.T) {
	SetLogDir(t.TempDir())
	t.Cleanup(func() { SetLogDir("logs") })

	lm := NewLoggerManager()
	a, err := lm.GetLogger("api")
	require.NoError(t, err)
	b := lm.MustGetLogger("api")
	assert.Same(t, a, b)

	lm.MustGetLogger("eventbus")
	assert.Equal(t, []string{"api", "eventbus"}, lm.ListComponents())

	require.NoError(t, lm.SetLogLevel("api", ERROR, ERROR))
	assert.Error(t, lm.SetLogLevel("missing", INFO, INFO))

	require.NoError(t, lm.CloseAll())
	assert.Empty(t, lm.ListComponents())
}

func TestHexDump(t *testing.T) {
	assert.Equal(t, "No data", HexDump(nil))

	dump := HexDump([]byte("geo"))
	assert.Contains(t, dump, "67 65 6f")
	assert.Contains(t, dump, "|geo|")

	long := HexDump(bytes.Repeat([]byte{0xff}, 300))
	assert.Equal(t, 16, strings.Count(long, "\n"), "дамп обрезан до 256 байт")
}
