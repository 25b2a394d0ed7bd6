package main

import (
	"archive/zip"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/LACC-DEVLINK/checkin-exercito-api/internal/credential"
	"github.com/LACC-DEVLINK/checkin-exercito-api/internal/database"
	"github.com/LACC-DEVLINK/checkin-exercito-api/internal/models"
)

const testDirectory = `title: Formatura
subjects:
  - id: "1001"
    name: Ana Souza
    rank: Sgt
  - id: "1002"
    name: Bruno Lima
`

// writeConfig prepares a config directory backed by a sqlite file in a temp dir.
func writeConfig(t *testing.T, withDirectory bool) string {
	t.Helper()

	dir := t.TempDir()
	directoryPath := ""
	if withDirectory {
		directoryPath = filepath.Join(dir, "subjects.yaml")
		require.NoError(t, os.WriteFile(directoryPath, []byte(testDirectory), 0o600))
	}

	cfg := fmt.Sprintf(`server:
  log_level: error
  log_format: console
database:
  driver: sqlite
  path: %q
credentials:
  secret: cli-test-secret-0123456789
  batch_concurrency: 2
  qr_size: 128
  directory: %q
`, filepath.Join(dir, "checkin.sqlite"), directoryPath)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(cfg), 0o600))
	return dir
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func payloadFrom(t *testing.T, output string) string {
	t.Helper()
	for _, line := range strings.Split(output, "\n") {
		if rest, ok := strings.CutPrefix(line, "payload:"); ok {
			return strings.TrimSpace(rest)
		}
	}
	t.Fatalf("no payload in output:\n%s", output)
	return ""
}

func TestIssueThenValidateOnce(t *testing.T) {
	cfgDir := writeConfig(t, false)
	qrPath := filepath.Join(t.TempDir(), "qr.png")

	out, err := execute(t, "", "--config", cfgDir, "issue", "1001", "--event", "formatura", "--qr", qrPath)
	require.NoError(t, err, out)
	payload := payloadFrom(t, out)

	png, err := os.ReadFile(qrPath)
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))

	out, err = execute(t, payload, "--config", cfgDir, "--operator", "silva", "--station", "gate-2", "validate")
	require.NoError(t, err, out)
	require.Contains(t, out, `"valid": true`)
	require.Contains(t, out, `"event_id": "formatura"`)

	out, err = execute(t, "", "--config", cfgDir, "validate", payload)
	require.ErrorIs(t, err, credential.ErrNotFoundOrAlreadyUsed)
	require.Contains(t, out, string(credential.ReasonNotFoundOrAlreadyUsed))

	out, err = execute(t, "", "--config", cfgDir, "history", "1001")
	require.NoError(t, err)
	require.Contains(t, out, "consumed")

	db, err := database.Open(database.Config{Driver: "sqlite", Path: filepath.Join(cfgDir, "checkin.sqlite")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })

	var actors []string
	require.NoError(t, db.Model(&models.AuditLog{}).
		Where("action = ? AND result = ?", credential.AuditActionValidate, "success").
		Pluck("actor", &actors).Error)
	require.Equal(t, []string{"silva@gate-2"}, actors)
}

func TestReissueSupersedes(t *testing.T) {
	cfgDir := writeConfig(t, false)

	out, err := execute(t, "", "--config", cfgDir, "issue", "1001")
	require.NoError(t, err, out)
	first := payloadFrom(t, out)

	out, err = execute(t, "", "--config", cfgDir, "issue", "1001")
	require.NoError(t, err, out)

	_, err = execute(t, "", "--config", cfgDir, "validate", first)
	require.ErrorIs(t, err, credential.ErrNotFoundOrAlreadyUsed)

	out, err = execute(t, "", "--config", cfgDir, "history", "1001")
	require.NoError(t, err)
	require.Contains(t, out, "superseded")
	require.Contains(t, out, "YES")
}

func TestBatchAndPrintFromDirectory(t *testing.T) {
	cfgDir := writeConfig(t, true)
	outDir := t.TempDir()

	out, err := execute(t, "", "--config", cfgDir, "batch", "--all", "--event", "formatura")
	require.NoError(t, err, out)
	require.Contains(t, out, "1001")
	require.Contains(t, out, "1002")

	sheetPath := filepath.Join(outDir, "sheet.html")
	out, err = execute(t, "", "--config", cfgDir, "sheet", "--all", "-o", sheetPath)
	require.NoError(t, err, out)
	require.Contains(t, out, "2 cards")

	sheet, err := os.ReadFile(sheetPath)
	require.NoError(t, err)
	require.Contains(t, string(sheet), "Ana Souza")
	require.Contains(t, string(sheet), "Formatura")

	archivePath := filepath.Join(outDir, "cards.zip")
	out, err = execute(t, "", "--config", cfgDir, "archive", "1001", "9999", "-o", archivePath)
	require.NoError(t, err, out)
	require.Contains(t, out, "skipped: 9999")

	zr, err := zip.OpenReader(archivePath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = zr.Close() })
	require.Len(t, zr.File, 1)

	cardPath := filepath.Join(outDir, "card.html")
	out, err = execute(t, "", "--config", cfgDir, "card", "1002", "-o", cardPath)
	require.NoError(t, err, out)
	require.FileExists(t, cardPath)
}

func TestBatchReportsFailures(t *testing.T) {
	cfgDir := writeConfig(t, false)

	out, err := execute(t, "", "--config", cfgDir, "batch", "1001", "bad|id", "1002", "--retries", "1")
	require.Error(t, err)
	require.Contains(t, err.Error(), "1 of 3 subjects failed")
	require.Contains(t, out, "1002")
}

func TestAllRequiresDirectory(t *testing.T) {
	cfgDir := writeConfig(t, false)

	_, err := execute(t, "", "--config", cfgDir, "sheet", "--all")
	require.ErrorContains(t, err, "credentials.directory")

	_, err = execute(t, "", "--config", cfgDir, "batch")
	require.ErrorContains(t, err, "--all")
}

func TestInvalidConfigurationStopsCommands(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("credentials:\n  secret: short\n"), 0o600))

	_, err := execute(t, "", "--config", dir, "issue", "1001")
	require.ErrorContains(t, err, "credentials.secret")

	_, err = execute(t, "", "--config", filepath.Join(dir, "missing"), "issue", "1001")
	require.ErrorContains(t, err, "does not exist")
}

func TestReadPayload(t *testing.T) {
	raw, err := readPayload(strings.NewReader(" {\"a\":1}\n"), nil)
	require.NoError(t, err)
	require.Equal(t, `{"a":1}`, raw)

	raw, err = readPayload(strings.NewReader("ignored"), []string{"direct"})
	require.NoError(t, err)
	require.Equal(t, "direct", raw)
}
