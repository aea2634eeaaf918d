package contacts

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func writeWorkbook(t *testing.T, path string, rows [][]any) {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		cellName, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cellName, &row))
	}
	require.NoError(t, f.SaveAs(path))
}

func TestLoadXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "contacts.xlsx")
	writeWorkbook(t, path, [][]any{
		{"name", "Media", "NUMBER"},
		{"Asha", "x.jpg", "9876543210"},
		{"", "", 919812345678},
		{"", "", ""},
		{"Ravi", "", "+91 98765-43211"},
	})

	list, err := LoadXLSX(path)
	require.NoError(t, err)
	assert.Equal(t, []Contact{
		{Number: "9876543210", Name: "Asha"},
		{Number: "919812345678"},
		{Number: "+91 98765-43211", Name: "Ravi"},
	}, list)
}

func TestLoadXLSXMissingNumberColumn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "contacts.xlsx")
	writeWorkbook(t, path, [][]any{{"Name"}, {"Asha"}})

	_, err := LoadXLSX(path)
	assert.Error(t, err)
}

func TestLoadXLSXMissingFile(t *testing.T) {
	list, err := LoadXLSX(filepath.Join(t.TempDir(), "nope.xlsx"))
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Empty(t, list)
}

func TestStoreReplaceIsWholesale(t *testing.T) {
	s := NewStore()
	assert.Empty(t, s.All())

	first := []Contact{{Number: "1"}}
	s.Replace(first)
	held := s.All()

	s.Replace([]Contact{{Number: "2"}, {Number: "3"}})
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, "1", held[0].Number)

	s.Replace(nil)
	assert.NotNil(t, s.All())
	assert.Equal(t, 0, s.Len())
}

func TestReloaderReload(t *testing.T) {
	store := NewStore()
	r := NewReloader("contacts.xlsx", "@every 1h", store, zerolog.Nop())

	r.load = func(string) ([]Contact, error) { return []Contact{{Number: "1"}}, nil }
	r.Reload()
	assert.Equal(t, 1, store.Len())

	r.load = func(string) ([]Contact, error) { return nil, errors.New("corrupt") }
	r.Reload()
	assert.Equal(t, 1, store.Len(), "previous list kept on error")

	r.load = func(string) ([]Contact, error) { return []Contact{}, os.ErrNotExist }
	r.Reload()
	assert.Equal(t, 0, store.Len())
}

func TestReloaderPicksUpFileChanges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "contacts.xlsx")
	writeWorkbook(t, path, [][]any{{"Number", "Name"}, {"9876543210", "Asha"}})

	store := NewStore()
	r := NewReloader(path, "@every 1h", store, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, r.Start(ctx))
	assert.Equal(t, 1, store.Len())

	writeWorkbook(t, path, [][]any{{"Number", "Name"}, {"9876543210", "Asha"}, {"9876543211", "Ravi"}})
	assert.Eventually(t, func() bool { return store.Len() == 2 }, 5*time.Second, 50*time.Millisecond)
}

func TestReloaderRejectsBadSchedule(t *testing.T) {
	r := NewReloader(filepath.Join(t.TempDir(), "c.xlsx"), "every now and then", NewStore(), zerolog.Nop())
	assert.Error(t, r.Start(context.Background()))
}
