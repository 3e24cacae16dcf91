package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeSeedAcceptsBothShapes(t *testing.T) {
	orders, err := decodeSeed([]byte(` [{"id": 1, "totalAmount": 10}, {"id": 2}] `))
	require.NoError(t, err)
	assert.Len(t, orders, 2)

	orders, err = decodeSeed([]byte(`{"orders": [{"id": 3, "isClosed": true}]}`))
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, int64(3), orders[0].ID)

	_, err = decodeSeed([]byte(`[{"totalAmount": 10}]`))
	assert.Error(t, err)

	_, err = decodeSeed([]byte(`nope`))
	assert.Error(t, err)
}

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestSeedThenReport(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("PERSIST_BACKEND", "pebble")
	t.Setenv("PEBBLE_DIR", filepath.Join(dir, "state"))
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("AUTH_DISABLED", "true")

	seed := filepath.Join(dir, "orders.json")
	require.NoError(t, os.WriteFile(seed, []byte(`[
		{"id": 1, "createdAt": "2026-06-01T10:00:00Z", "totalAmount": 100, "paymentType": "cash",
		 "products": [{"name": "Pide", "quantity": 1, "totalPrice": 100}]},
		{"id": 2, "createdAt": "2026-06-01T11:00:00Z", "totalAmount": 50, "paymentType": "getir_online",
		 "products": [{"name": "Ayran", "quantity": 2, "totalPrice": 50}]}
	]`), 0o600))

	out, err := runCommand(t, "seed", "--file", seed)
	require.NoError(t, err)
	assert.Contains(t, out, "seeded 2 orders")

	out, err = runCommand(t, "report", "--period", "all")
	require.NoError(t, err)
	var r map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &r))
	assert.Equal(t, 2.0, r["openOrders"])
	assert.Equal(t, 0.0, r["closedOrders"])

	_, err = runCommand(t, "report", "--period", "fortnight")
	assert.Error(t, err)
}

func TestSyncWithoutCredentialFails(t *testing.T) {
	t.Setenv("PERSIST_BACKEND", "memory")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("AUTH_DISABLED", "true")

	out, err := runCommand(t, "sync")
	require.Error(t, err)
	assert.Contains(t, out, "not connected")
}
