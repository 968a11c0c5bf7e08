package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ananth-NQI/agrobot-backend/internal/models"
)

func TestFileStore(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "sessions")
	fs, err := NewFileStore(dir)
	require.NoError(t, err)

	t.Run("missing", func(t *testing.T) {
		_, err := fs.Get(ctx, phone)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("round trip through Sessions", func(t *testing.T) {
		s, _ := newTestSessions(t, fs)
		sess := s.Load(ctx, phone)
		sess.Slots.Fill(models.SlotCategory, "Maíz")
		require.NoError(t, s.Save(ctx, sess))

		_, err := os.Stat(filepath.Join(dir, "+5493415551234.json"))
		require.NoError(t, err)

		got := s.Load(ctx, phone)
		assert.Equal(t, "Maíz", got.Slots.Category)
	})

	t.Run("ids are sanitized", func(t *testing.T) {
		require.NoError(t, fs.Put(ctx, &Record{ID: "whatsapp:../etc", Data: []byte(`{}`)}))
		_, err := os.Stat(filepath.Join(dir, "whatsapp____etc.json"))
		assert.NoError(t, err)
	})

	t.Run("no temp files left behind", func(t *testing.T) {
		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		for _, e := range entries {
			assert.Equal(t, ".json", filepath.Ext(e.Name()), e.Name())
		}
	})
}
