package chain

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/xerrors"
)

func TestArguments_Uint64(t *testing.T) {
	args := Arguments{Uint64Arg("length", 1000), {Name: "short", Value: []byte{1}}}

	v, err := args.Uint64("length")
	require.NoError(t, err)
	require.Equal(t, uint64(1000), v)

	_, err = args.Uint64("missing")
	require.True(t, xerrors.Is(err, ErrMissingArgument))

	_, err = args.Uint64("short")
	require.Error(t, err)
}

func TestMemStore(t *testing.T) {
	m := NewMemStore()
	require.NoError(t, m.Set([]byte("b"), []byte("2")))
	require.NoError(t, m.Set([]byte("a"), []byte("1")))

	v, err := m.Get([]byte("a"))
	require.NoError(t, err)
	require.Equal(t, []byte("1"), v)
	v, err = m.Get([]byte("c"))
	require.NoError(t, err)
	require.Nil(t, v)

	entries := m.Entries()
	require.Equal(t, 2, len(entries))
	require.Equal(t, []byte("a"), entries[0].Key)

	local := m.Prefixed("local/alice/")
	require.NoError(t, local.Set([]byte("bidder"), []byte("x")))
	require.True(t, m.HasPrefix("local/alice/"))
	require.False(t, m.HasPrefix("local/bob/"))

	copied := NewMemStore(m.Entries()...)
	require.Equal(t, m.Entries(), copied.Entries())

	require.NoError(t, local.Delete([]byte("bidder")))
	require.False(t, m.HasPrefix("local/alice/"))
}

func TestRegisterContract(t *testing.T) {
	fn := func() Contract { return nil }
	require.NoError(t, RegisterContract("test_kind", fn))
	require.Error(t, RegisterContract("test_kind", fn))
	_, found := SearchContract("test_kind")
	require.True(t, found)
	require.Contains(t, Kinds(), "test_kind")
}
