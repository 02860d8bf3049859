package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSetGetDelete(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.Set("k", "v"))
	v, err := s.Get("k")
	require.NoError(t, err)
	require.Equal(t, "v", v)

	require.NoError(t, s.Delete("k"))
	_, err = s.Get("k")
	require.True(t, errors.Is(err, ErrNotFound))
}

func TestTokenAbsentIsEmptyNotError(t *testing.T) {
	s := openTestStore(t)

	token, err := s.Token(context.Background())
	require.NoError(t, err)
	require.Empty(t, token)

	require.NoError(t, s.Set(KeyToken, "jwt-abc"))
	token, err = s.Token(context.Background())
	require.NoError(t, err)
	require.Equal(t, "jwt-abc", token)
}

func TestPartnerRoundTrip(t *testing.T) {
	s := openTestStore(t)

	p, err := s.Partner()
	require.NoError(t, err)
	require.Empty(t, p.ID)

	require.NoError(t, s.SavePartner(Partner{ID: "p-1", Name: "Sparkle Laundry"}))
	p, err = s.Partner()
	require.NoError(t, err)
	require.Equal(t, "p-1", p.ID)
	require.Equal(t, "Sparkle Laundry", p.Name)
}
