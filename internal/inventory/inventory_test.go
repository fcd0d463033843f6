package inventory_test

import (
	"os"
	"path/filepath"
	"testing"

	"codeberg.org/tessen/netdom/internal/inventory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeInventory(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "inventory.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	return path
}

func TestLoadInventory(t *testing.T) {
	path := writeInventory(t, `host,os_name,site,role
sw1.lab,eos,lab1,leaf
sw2.lab,nxos,lab1,spine
`)

	records, err := inventory.Load(path)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "sw1.lab", records[0].Host)
	assert.Equal(t, "eos", records[0].OSName)
	assert.Equal(t, map[string]string{"site": "lab1", "role": "leaf"}, records[0].Tags)

	assert.Equal(t, "nxos", records[1].OSName)
	assert.Equal(t, "spine", records[1].Tags["role"])
}

func TestLoadInventoryExtraColumnsBecomeTags(t *testing.T) {
	path := writeInventory(t, `site,host,rack,os_name
lab1,sw1.lab,r12,eos
`)

	records, err := inventory.Load(path)
	require.NoError(t, err)
	require.Len(t, records, 1)

	// Column order does not matter; required columns never become tags.
	assert.Equal(t, map[string]string{"site": "lab1", "rack": "r12"}, records[0].Tags)
}

func TestLoadInventorySkipsIncompleteRows(t *testing.T) {
	path := writeInventory(t, `host,os_name
sw1.lab,eos
,nxos
sw3.lab,
sw4.lab,ios
`)

	records, err := inventory.Load(path)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "sw1.lab", records[0].Host)
	assert.Equal(t, "sw4.lab", records[1].Host)
}

func TestLoadInventoryEmptyTagValuesOmitted(t *testing.T) {
	path := writeInventory(t, `host,os_name,site
sw1.lab,eos,
`)

	records, err := inventory.Load(path)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Empty(t, records[0].Tags)
}

func TestLoadInventoryMissingRequiredColumns(t *testing.T) {
	path := writeInventory(t, `hostname,platform
sw1.lab,eos
`)

	_, err := inventory.Load(path)
	assert.Error(t, err)
}

func TestLoadInventoryMissingFile(t *testing.T) {
	_, err := inventory.Load(filepath.Join(t.TempDir(), "absent.csv"))
	assert.Error(t, err)
}
