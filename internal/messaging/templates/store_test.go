package templates

import (
	"context"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewStore(client), mr
}

func TestStoreDefaultsWhenNoOverrides(t *testing.T) {
	store, _ := newTestStore(t)
	set, err := store.Get(context.Background(), "site-1")
	require.NoError(t, err)
	assert.Equal(t, DefaultSet(), set)
}

func TestStorePutAndGet(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "site-1", Set{KindCampaign: "Sale at {{business_name}}"}))

	tmpl, err := store.Template(ctx, "site-1", KindCampaign)
	require.NoError(t, err)
	assert.Equal(t, "Sale at {{business_name}}", tmpl)

	// other kinds fall back to defaults
	tmpl, err = store.Template(ctx, "site-1", KindReminder)
	require.NoError(t, err)
	assert.Equal(t, DefaultSet()[KindReminder], tmpl)

	// overrides are site scoped
	tmpl, err = store.Template(ctx, "site-2", KindCampaign)
	require.NoError(t, err)
	assert.Equal(t, DefaultSet()[KindCampaign], tmpl)
}

func TestStoreRejectsUnknownKind(t *testing.T) {
	store, _ := newTestStore(t)
	err := store.Put(context.Background(), "site-1", Set{"fax": "hello"})
	assert.Error(t, err)
}

func TestStoreCorruptPayload(t *testing.T) {
	store, mr := newTestStore(t)
	require.NoError(t, mr.Set("site:templates:site-1", "{not json"))
	_, err := store.Get(context.Background(), "site-1")
	assert.Error(t, err)
}

func TestStoreWithoutRedis(t *testing.T) {
	store := NewStore(nil)
	set, err := store.Get(context.Background(), "site-1")
	require.NoError(t, err)
	assert.Equal(t, DefaultSet(), set)
	assert.Error(t, store.Put(context.Background(), "site-1", Set{}))
}
