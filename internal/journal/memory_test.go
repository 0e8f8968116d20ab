package journal

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemoryStoreOrderAndCap(t *testing.T) {
	store, err := NewMemoryStore("")
	require.NoError(t, err)
	ctx := context.Background()

	for i := 0; i < MaxEntries+3; i++ {
		entry := NewEntry("getBalance")
		entry.Text = fmt.Sprintf("call-%d", i)
		require.NoError(t, store.Save(ctx, entry))
	}

	all, err := store.ListLatest(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, MaxEntries)
	require.Equal(t, fmt.Sprintf("call-%d", MaxEntries+2), all[0].Text)

	two, err := store.ListLatest(ctx, 2)
	require.NoError(t, err)
	require.Len(t, two, 2)
	require.NotEqual(t, two[0].ID, two[1].ID)
}

func TestMemoryStoreRestoresFromDisk(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := NewMemoryStore(dir)
	require.NoError(t, err)
	first := NewEntry("transfer")
	first.Status = StatusFailed
	second := NewEntry("swap")
	second.Status = StatusSucceeded
	second.TxHash = "0xabc"
	require.NoError(t, store.Save(ctx, first))
	require.NoError(t, store.Save(ctx, second))
	require.NoError(t, store.Close())

	reopened, err := NewMemoryStore(dir)
	require.NoError(t, err)
	list, err := reopened.ListLatest(ctx, 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, second.ID, list[0].ID)
	require.Equal(t, "0xabc", list[0].TxHash)
	require.Equal(t, StatusFailed, list[1].Status)
}
