package filestore

import (
	"context"
	"testing"

	"delivery-agent/internal/domain/delivery"
	"delivery-agent/internal/persist"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, afero.Fs) {
	t.Helper()
	fsys := afero.NewMemMapFs()
	s, err := New(fsys, "/var/lib/agent", nil)
	require.NoError(t, err)
	return s, fsys
}

func TestStoreRoundTrip(t *testing.T) {
	s, fsys := newTestStore(t)
	ctx := context.Background()

	_, err := s.Load(ctx, "delivery.active_route")
	assert.ErrorIs(t, err, delivery.ErrStateNotFound)

	require.NoError(t, s.Save(ctx, "delivery.active_route", []byte(`{"a":1}`)))
	data, err := s.Load(ctx, "delivery.active_route")
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(data))

	exists, err := afero.Exists(fsys, "/var/lib/agent/delivery.active_route.json.tmp")
	require.NoError(t, err)
	assert.False(t, exists, "temp file must be renamed away")

	require.NoError(t, s.Delete(ctx, "delivery.active_route"))
	require.NoError(t, s.Delete(ctx, "delivery.active_route"), "deleting twice is fine")
	_, err = s.Load(ctx, "delivery.active_route")
	assert.ErrorIs(t, err, delivery.ErrStateNotFound)
}

func TestStoreRejectsPathKeys(t *testing.T) {
	s, _ := newTestStore(t)
	assert.Error(t, s.Save(context.Background(), "../escape", []byte("x")))
	assert.Error(t, s.Save(context.Background(), "", []byte("x")))
}

func TestEnvelopeVersioning(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, persist.Save(ctx, s, "k", 1, []string{"a", "b"}))

	var out []string
	found, err := persist.Load(ctx, s, "k", 1, &out)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []string{"a", "b"}, out)

	found, err = persist.Load(ctx, s, "k", 2, &out)
	assert.False(t, found)
	assert.ErrorIs(t, err, persist.ErrVersionMismatch)

	found, err = persist.Load(ctx, s, "missing", 1, &out)
	assert.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, persist.Delete(ctx, s, "missing"))
}
