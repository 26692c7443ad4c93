package queue

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleBulkImported_AppendsLines(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	ev := BulkImportedEvent{
		ImportedBy:   "admin-1",
		Source:       "csv",
		Rows:         3,
		Created:      1,
		UsersCreated: 1,
		Skipped:      2,
		Errors:       2,
		ImportedAt:   "2026-01-02T03:04:05Z",
	}
	body, err := json.Marshal(ev)
	require.NoError(t, err)

	require.NoError(t, HandleBulkImported(dir, body))
	require.NoError(t, HandleBulkImported(dir, body))

	raw, err := os.ReadFile(filepath.Join(dir, AuditLogName))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "[2026-01-02T03:04:05Z] Bulk import | by=admin-1 | source=csv | rows=3 | created=1 | users_created=1 | skipped=2 | errors=2", lines[0])
}

func TestHandleBulkImported_RejectsGarbage(t *testing.T) {
	assert.Error(t, HandleBulkImported(t.TempDir(), []byte("{not json")))
}
