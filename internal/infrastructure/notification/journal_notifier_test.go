package notification

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJournalNotifier_AppendsLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "journal.ndjson")
	n := NewJournalNotifier(path, nil)

	first := testEvent("APP001")
	second := testEvent("APP002")
	second.From, second.To = "under-review", "credit-assessment"

	require.NoError(t, n.Notify(context.Background(), first))
	require.NoError(t, n.Notify(context.Background(), second))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"application_id":"APP001"`)

	events, err := ReadJournal(path, "")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, first.Timestamp, events[0].Timestamp)
	assert.Equal(t, "credit-assessment", events[1].To)
}

func TestReadJournal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "journal.ndjson")
	n := NewJournalNotifier(path, nil)
	for _, id := range []string{"APP001", "APP002", "APP001"} {
		require.NoError(t, n.Notify(context.Background(), testEvent(id)))
	}

	corrupt := filepath.Join(dir, "corrupt.ndjson")
	require.NoError(t, os.WriteFile(corrupt, []byte("{\"application_id\":\"A\"}\nnot json\n"), 0o644))

	tests := []struct {
		name    string
		path    string
		filter  string
		want    int
		wantErr string
	}{
		{"all events", path, "", 3, ""},
		{"filtered", path, "APP001", 2, ""},
		{"no match", path, "APP404", 0, ""},
		{"missing journal", filepath.Join(dir, "absent.ndjson"), "", 0, ""},
		{"corrupt line", corrupt, "", 0, "journal line 2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events, err := ReadJournal(tt.path, tt.filter)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Len(t, events, tt.want)
		})
	}
}
