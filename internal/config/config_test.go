package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"codeberg.org/tessen/netdom/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setArgs pins os.Args for the test so the test binary's own flags are not
// seen by the config flag set.
func setArgs(t *testing.T, args ...string) {
	t.Helper()

	oldArgs := os.Args
	os.Args = append([]string{"netdom"}, args...)
	t.Cleanup(func() { os.Args = oldArgs })
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "netdom.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoad(t *testing.T) {
	setArgs(t)

	configPath := writeConfig(t, `
log_level = "debug"

[defaults]
interval = 30
inventory = "/etc/netdom/inventory.csv"

[defaults.credentials]
username = "netops"
password = "secret"

[collectors.ifdom]
interval = 120
exclude_admin_down = false
exclude_link_down = true

[exporters.circ1]
type = "circonus"
url = "https://trap.example.com/module/httptrap/abc"

[exporters.influx1]
type = "influxdb"
server_url = "http://db.lab:8086"
database = "netmon"

[export]
max_inflight = 50
backoff_base = "2s"
backoff_cap = "8s"
export_timeout = "5m"
`)
	t.Setenv("NETDOM_CONFIG", configPath)

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 30, cfg.Defaults.Interval)
	assert.Equal(t, "/etc/netdom/inventory.csv", cfg.Defaults.Inventory)
	assert.Equal(t, "netops", cfg.Defaults.Credentials.Username)
	assert.Equal(t, "secret", cfg.Defaults.Credentials.Password)

	require.Contains(t, cfg.Collectors, "ifdom")
	ifdom := cfg.Collectors["ifdom"]
	assert.Equal(t, 120, ifdom.Interval)
	require.NotNil(t, ifdom.ExcludeAdminDown)
	assert.False(t, *ifdom.ExcludeAdminDown)
	assert.True(t, ifdom.ExcludeLinkDown)

	require.Contains(t, cfg.Exporters, "circ1")
	assert.Equal(t, "circonus", cfg.Exporters["circ1"].Type)
	require.Contains(t, cfg.Exporters, "influx1")
	assert.Equal(t, "netmon", cfg.Exporters["influx1"].Database)

	assert.Equal(t, 50, cfg.Export.MaxInflight)
	assert.Equal(t, 2*time.Second, cfg.Export.BackoffBase)
	assert.Equal(t, 8*time.Second, cfg.Export.BackoffCap)
	assert.Equal(t, 5*time.Minute, cfg.Export.ExportTimeout)
}

func TestLoadDefaults(t *testing.T) {
	setArgs(t)
	t.Setenv("NETDOM_CONFIG", "")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, config.DefaultLogLevel, cfg.LogLevel)
	assert.Equal(t, config.DefaultInterval, cfg.Defaults.Interval)
	assert.Equal(t, config.DefaultInventory, cfg.Defaults.Inventory)
	assert.Equal(t, 100, cfg.Export.MaxInflight)
	assert.Equal(t, 4*time.Second, cfg.Export.BackoffBase)
	assert.Equal(t, 10*time.Second, cfg.Export.BackoffCap)
	assert.Equal(t, time.Duration(0), cfg.Export.ExportTimeout)

	nilDefault := cfg.Collectors["ifdom"]
	assert.Nil(t, nilDefault.ExcludeAdminDown)
}

func TestFlagsOverrideFile(t *testing.T) {
	configPath := writeConfig(t, `
log_level = "warn"

[defaults]
interval = 300
`)
	t.Setenv("NETDOM_CONFIG", configPath)
	setArgs(t, "--interval", "15", "--log-level", "debug", "--inventory", "/tmp/devices.csv")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 15, cfg.Defaults.Interval)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "/tmp/devices.csv", cfg.Defaults.Inventory)
}

func TestLoadConfigFileInvalidFormat(t *testing.T) {
	setArgs(t)

	configPath := writeConfig(t, `This is not a valid TOML file`)
	t.Setenv("NETDOM_CONFIG", configPath)

	_, err := config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Failed to read config file")
}

func TestInvalidLogLevel(t *testing.T) {
	setArgs(t)

	configPath := writeConfig(t, `log_level = "loud"`)
	t.Setenv("NETDOM_CONFIG", configPath)

	_, err := config.Load()
	require.Error(t, err)
}

func TestInvalidInterval(t *testing.T) {
	setArgs(t)

	configPath := writeConfig(t, `
[defaults]
interval = -5
`)
	t.Setenv("NETDOM_CONFIG", configPath)

	_, err := config.Load()
	require.Error(t, err)
}

func TestUnknownExporterType(t *testing.T) {
	setArgs(t)

	configPath := writeConfig(t, `
[exporters.bad]
type = "graphite"
`)
	t.Setenv("NETDOM_CONFIG", configPath)

	_, err := config.Load()
	require.Error(t, err)
}

func TestCredentialEnvExpansion(t *testing.T) {
	setArgs(t)

	configPath := writeConfig(t, `
[defaults.credentials]
username = "$NETDOM_USER"
password = "$NETDOM_PASSWORD"

[exporters.influx1]
type = "influxdb"
server_url = "$INFLUX_URL"
database = "netmon"
`)
	t.Setenv("NETDOM_CONFIG", configPath)
	t.Setenv("NETDOM_USER", "netops")
	t.Setenv("NETDOM_PASSWORD", "hunter2")
	t.Setenv("INFLUX_URL", "http://db.lab:8086")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "netops", cfg.Defaults.Credentials.Username)
	assert.Equal(t, "hunter2", cfg.Defaults.Credentials.Password)
	assert.Equal(t, "http://db.lab:8086", cfg.Exporters["influx1"].ServerURL)
}

func TestCollectorInterval(t *testing.T) {
	setArgs(t)

	configPath := writeConfig(t, `
[defaults]
interval = 60

[collectors.ifdom]
interval = 120
`)
	t.Setenv("NETDOM_CONFIG", configPath)

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 120*time.Second, cfg.CollectorInterval("ifdom"))
	assert.Equal(t, 60*time.Second, cfg.CollectorInterval("other"), "unconfigured collectors fall back to the default")
}
