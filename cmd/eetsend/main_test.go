package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eet/internal/audit"
	"eet/internal/journal"
	"eet/internal/platform/config"
	dErrors "eet/pkg/domain-errors"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestReadReceipts(t *testing.T) {
	path := writeTemp(t, "receipts.json", `[
		{"uuid_zpravy": "b3a09b52-7c87-4014-a496-4c7a53cf9125", "porad_cis": 68, "celk_trzba": 546},
		{"uuid_zpravy": "b3a09b52-7c87-4014-a496-4c7a53cf9126", "porad_cis": 69, "celk_trzba": 748.5}
	]`)

	values, err := readReceipts(path)
	require.NoError(t, err)
	require.Len(t, values, 2)

	f, err := values[1].Fields()
	require.NoError(t, err)
	assert.Equal(t, "69", f.ReceiptSerial)
	assert.Equal(t, "748.5", f.TotalAmount.Decimal.String())

	_, err = readReceipts(writeTemp(t, "bad.json", `{"porad_cis": 1}`))
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func TestRunWithoutCertificateIsNotConfigured(t *testing.T) {
	cfgPath := writeTemp(t, "config.json", `{
		"wsdlPath": "https://pg.eet.cz:443/eet/services/EETServiceSOAP/v3",
		"defaultValues": {"dic_popl": "CZ1212121218", "id_provoz": "273", "id_pokl": "1"}
	}`)
	receiptsPath := writeTemp(t, "receipts.json",
		`[{"uuid_zpravy": "b3a09b52-7c87-4014-a496-4c7a53cf9125", "porad_cis": 68, "celk_trzba": 546}]`)

	var out bytes.Buffer
	err := run(context.Background(), options{configPath: cfgPath, receiptsPath: receiptsPath}, &out)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotConfigured), "%v", err)
	assert.Empty(t, out.String())
}

func TestOpenFallbacks(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := &config.Config{}

	store, closeStore, err := openJournal(context.Background(), cfg, log)
	require.NoError(t, err)
	defer closeStore()
	assert.IsType(t, &journal.InMemoryStore{}, store)

	emitter, closeAudit, err := openAudit(cfg, log)
	require.NoError(t, err)
	defer closeAudit()
	assert.IsType(t, &audit.Publisher{}, emitter)
}
