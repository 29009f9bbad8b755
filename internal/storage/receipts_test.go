package storage

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/afs"
)

func TestReceiptStoreSave(t *testing.T) {
	ctx := context.Background()
	store := NewReceiptStore("mem://localhost/receipts")

	location, err := store.Save(ctx, "taxi.jpg", []byte("jpeg-bytes"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(location, "mem://localhost/receipts/"))
	assert.True(t, strings.HasSuffix(location, ".jpg"))

	fs := afs.New()
	data, err := fs.DownloadWithURL(ctx, location)
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg-bytes"), data)
}

func TestReceiptStoreSaveUniqueNames(t *testing.T) {
	ctx := context.Background()
	store := NewReceiptStore("mem://localhost/receipts")

	first, err := store.Save(ctx, "receipt.png", []byte("a"))
	require.NoError(t, err)
	second, err := store.Save(ctx, "receipt.png", []byte("b"))
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestReceiptStoreDelete(t *testing.T) {
	ctx := context.Background()
	store := NewReceiptStore("mem://localhost/receipts")

	location, err := store.Save(ctx, "hotel.pdf", []byte("pdf"))
	require.NoError(t, err)
	require.NoError(t, store.Delete(ctx, location))

	fs := afs.New()
	exists, err := fs.Exists(ctx, location)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestReceiptStoreDeleteEmptyLocation(t *testing.T) {
	store := NewReceiptStore("mem://localhost/receipts")
	assert.NoError(t, store.Delete(context.Background(), ""))
}
