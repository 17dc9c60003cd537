package manifest

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeManifest(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "uartbridge.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	m, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	require.Equal(t, Default(), m)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeManifest(t, `
serial: /dev/ttyACM1
console: /dev/ttyS0
console_baud: 57600
storage: /tmp/bridge
monitor: 127.0.0.1:8321
trigger: "#"
tick: 10ms
`)
	m, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, "/dev/ttyACM1", m.Serial)
	require.Equal(t, "/dev/ttyS0", m.Console)
	require.Equal(t, uint32(57600), m.ConsoleBaud)
	require.Equal(t, "127.0.0.1:8321", m.Monitor)
	require.Equal(t, byte('#'), m.TriggerByte())
	require.Equal(t, 10*time.Millisecond, time.Duration(m.Tick))

	// Fields the file omits keep their defaults.
	require.Equal(t, time.Second, time.Duration(m.BootWindow))
	require.True(t, m.Announce)
}

func TestLoadRejectsBadManifest(t *testing.T) {
	cases := map[string]string{
		"empty serial":       "serial: \"\"\n",
		"multi-byte trigger": "trigger: \"++\"\n",
		"blank trigger":      "trigger: \" \"\n",
		"zero tick":          "tick: 0s\n",
		"garbage yaml":       "serial: [unterminated\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeManifest(t, content))
			require.Error(t, err)
		})
	}
}

func TestDefaultValidates(t *testing.T) {
	require.NoError(t, Default().Validate())
}
