package extensions_test

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/DIMO-Network/ear/pkg/extensions"
	"github.com/DIMO-Network/ear/pkg/value"
)

func TestRegistryRegister(t *testing.T) {
	t.Parallel()

	r := extensions.NewRegistry()
	require.NoError(t, r.Register("ext.company-name", -65537, value.KindText))

	require.True(t, r.HaveName("ext.company-name"))
	require.True(t, r.HaveKey(-65537))
	require.False(t, r.HaveName("ext.other"))
	require.Equal(t, value.KindText, r.KindByName("ext.company-name"))
	require.Equal(t, value.KindText, r.KindByKey(-65537))
	require.Equal(t, value.KindUnset, r.KindByName("ext.other"))

	err := r.Register("ext.company-name", -65538, value.KindText)
	require.ErrorIs(t, err, extensions.ErrAlreadyRegistered)
	require.EqualError(t, err, "name ext.company-name already registered")

	err = r.Register("ext.other", -65537, value.KindText)
	require.ErrorIs(t, err, extensions.ErrAlreadyRegistered)
	require.EqualError(t, err, "key -65537 already registered")
}

func TestRegistrySetGet(t *testing.T) {
	t.Parallel()

	r := extensions.NewRegistry()
	require.NoError(t, r.Register("ext.company-name", -65537, value.KindText))

	_, ok := r.GetByName("ext.company-name")
	require.False(t, ok)

	// The name and the key share one slot.
	require.NoError(t, r.SetByName("ext.company-name", value.Text("Acme Inc.")))
	v, ok := r.GetByKey(-65537)
	require.True(t, ok)
	require.Equal(t, value.Text("Acme Inc."), v)

	require.NoError(t, r.SetByKey(-65537, value.Text("Wayne Industries")))
	v, ok = r.GetByName("ext.company-name")
	require.True(t, ok)
	require.Equal(t, value.Text("Wayne Industries"), v)

	err := r.SetByName("ext.company-name", value.Integer(7))
	require.ErrorIs(t, err, extensions.ErrKindMismatch)
	require.EqualError(t, err, "kind mismatch: value is Integer, but want Text")

	err = r.SetByName("ext.unknown", value.Text("x"))
	require.ErrorIs(t, err, extensions.ErrNotRegistered)
	require.EqualError(t, err, "ext.unknown not registered")

	err = r.SetByKey(-3, value.Text("x"))
	require.ErrorIs(t, err, extensions.ErrNotRegistered)
	require.EqualError(t, err, "-3 not registered")
}

func TestRegistryDecodeJSON(t *testing.T) {
	t.Parallel()

	t.Run("registered slot decodes as declared kind", func(t *testing.T) {
		t.Parallel()

		r := extensions.NewRegistry()
		require.NoError(t, r.Register("ext.timestamp", -65538, value.KindInteger))

		require.NoError(t, r.DecodeEntryJSON("ext.timestamp", json.RawMessage(`1723534859`)))
		v, ok := r.GetByName("ext.timestamp")
		require.True(t, ok)
		require.Equal(t, value.Integer(1723534859), v)

		err := r.DecodeEntryJSON("ext.timestamp", json.RawMessage(`"not a number"`))
		require.Error(t, err)
	})

	t.Run("unknown entries are collected until registration", func(t *testing.T) {
		t.Parallel()

		r := extensions.NewRegistry()
		require.NoError(t, r.DecodeEntryJSON("ext.company-name", json.RawMessage(`"Acme Inc."`)))

		_, ok := r.GetByName("ext.company-name")
		require.False(t, ok)

		require.NoError(t, r.Register("ext.company-name", -65537, value.KindText))
		v, ok := r.GetByName("ext.company-name")
		require.True(t, ok)
		require.Equal(t, value.Text("Acme Inc."), v)
	})

	t.Run("collected values convert to the declared kind", func(t *testing.T) {
		t.Parallel()

		r := extensions.NewRegistry()
		require.NoError(t, r.DecodeEntryJSON("ext.blob", json.RawMessage(`"3q2-7w"`)))

		require.NoError(t, r.Register("ext.blob", -65539, value.KindBytes))
		v, ok := r.GetByName("ext.blob")
		require.True(t, ok)
		require.Equal(t, value.Bytes{0xde, 0xad, 0xbe, 0xef}, v)
	})

	t.Run("collected kind mismatch fails registration", func(t *testing.T) {
		t.Parallel()

		r := extensions.NewRegistry()
		require.NoError(t, r.DecodeEntryJSON("ext.count", json.RawMessage(`7`)))

		err := r.Register("ext.count", -65540, value.KindText)
		require.ErrorIs(t, err, extensions.ErrKindMismatch)
		require.EqualError(t, err, "kind mismatch: value is Integer, but want Text")
	})

	t.Run("collected null registers as unset", func(t *testing.T) {
		t.Parallel()

		r := extensions.NewRegistry()
		require.NoError(t, r.DecodeEntryJSON("ext.null", json.RawMessage(`null`)))

		err := r.Register("ext.null", -65541, value.KindText)
		require.ErrorIs(t, err, extensions.ErrKindMismatch)
		require.EqualError(t, err, "kind mismatch: value is Unset, but want Text")
	})

	t.Run("slot declared unset rejects entries", func(t *testing.T) {
		t.Parallel()

		r := extensions.NewRegistry()
		require.NoError(t, r.Register("ext.unset", -65542, value.KindUnset))

		err := r.DecodeEntryJSON("ext.unset", json.RawMessage(`"x"`))
		require.ErrorContains(t, err, "invalid extension")
	})
}

func TestRegistryDecodeCBOR(t *testing.T) {
	t.Parallel()

	t.Run("registered slot decodes as declared kind", func(t *testing.T) {
		t.Parallel()

		r := extensions.NewRegistry()
		require.NoError(t, r.Register("ext.timestamp", -65538, value.KindInteger))

		// 1a 66 b9 ad 0b == 1723534859
		require.NoError(t, r.DecodeEntryCBOR(-65538, []byte{0x1a, 0x66, 0xb9, 0xad, 0x0b}))
		v, ok := r.GetByKey(-65538)
		require.True(t, ok)
		require.Equal(t, value.Integer(1723534859), v)
	})

	t.Run("unknown entries are collected until registration", func(t *testing.T) {
		t.Parallel()

		r := extensions.NewRegistry()
		require.NoError(t, r.DecodeEntryCBOR(-65537, []byte{0x44, 0xde, 0xad, 0xbe, 0xef}))

		require.NoError(t, r.Register("ext.blob", -65537, value.KindBytes))
		v, ok := r.GetByName("ext.blob")
		require.True(t, ok)
		require.Equal(t, value.Bytes{0xde, 0xad, 0xbe, 0xef}, v)
	})

	t.Run("collected bytes convert to text", func(t *testing.T) {
		t.Parallel()

		r := extensions.NewRegistry()
		require.NoError(t, r.DecodeEntryCBOR(-65537, []byte{0x44, 0xde, 0xad, 0xbe, 0xef}))

		require.NoError(t, r.Register("ext.blob", -65537, value.KindText))
		v, ok := r.GetByKey(-65537)
		require.True(t, ok)
		require.Equal(t, value.Text("3q2-7w"), v)
	})
}

func TestRegistryEncode(t *testing.T) {
	t.Parallel()

	newRegistry := func(t *testing.T) *extensions.Registry {
		t.Helper()
		r := extensions.NewRegistry()
		require.NoError(t, r.Register("ext.company-name", -65537, value.KindText))
		require.NoError(t, r.Register("ext.timestamp", -65538, value.KindInteger))
		require.NoError(t, r.Register("ext.unused", -65539, value.KindBool))
		require.NoError(t, r.SetByName("ext.company-name", value.Text("Acme Inc.")))
		require.NoError(t, r.SetByName("ext.timestamp", value.Integer(1723534859)))
		return r
	}

	t.Run("json skips unset slots", func(t *testing.T) {
		t.Parallel()

		obj := make(map[string]json.RawMessage)
		require.NoError(t, newRegistry(t).EncodeEntriesJSON(obj))

		require.Len(t, obj, 2)
		require.JSONEq(t, `"Acme Inc."`, string(obj["ext.company-name"]))
		require.JSONEq(t, `1723534859`, string(obj["ext.timestamp"]))
	})

	t.Run("cbor emits ascending key order", func(t *testing.T) {
		t.Parallel()

		w := &value.MapWriter{}
		require.NoError(t, newRegistry(t).EncodeEntriesCBOR(w))
		require.Equal(t, 2, w.Len())

		// -65538 sorts before -65537.
		want := []byte{
			0xa2,
			0x3a, 0x00, 0x01, 0x00, 0x01, 0x1a, 0x66, 0xb9, 0xad, 0x0b,
			0x3a, 0x00, 0x01, 0x00, 0x00, 0x69, 'A', 'c', 'm', 'e', ' ', 'I', 'n', 'c', '.',
		}
		require.Equal(t, want, w.Bytes())
	})
}

func TestRegistryEqual(t *testing.T) {
	t.Parallel()

	a := extensions.NewRegistry()
	b := extensions.NewRegistry()
	require.True(t, a.Equal(b))

	require.NoError(t, a.Register("ext.x", -1, value.KindInteger))
	require.True(t, a.Equal(b), "unset slots do not take part in equality")

	require.NoError(t, a.SetByName("ext.x", value.Integer(1)))
	require.False(t, a.Equal(b))

	require.NoError(t, b.Register("ext.x", -1, value.KindInteger))
	require.NoError(t, b.SetByName("ext.x", value.Integer(1)))
	require.True(t, a.Equal(b))

	require.NoError(t, b.SetByName("ext.x", value.Integer(2)))
	require.False(t, a.Equal(b))
}

func TestRegistryConcurrentAccess(t *testing.T) {
	t.Parallel()

	r := extensions.NewRegistry()
	require.NoError(t, r.Register("ext.counter", -1, value.KindInteger))

	var group errgroup.Group
	for i := 0; i < 8; i++ {
		group.Go(func() error {
			for j := 0; j < 100; j++ {
				if err := r.SetByName("ext.counter", value.Integer(j)); err != nil {
					return err
				}
				if _, ok := r.GetByKey(-1); !ok {
					return fmt.Errorf("value disappeared")
				}
			}
			return nil
		})
		group.Go(func() error {
			name := fmt.Sprintf("ext.slot-%d", i)
			return r.Register(name, int64(-100-i), value.KindText)
		})
	}
	require.NoError(t, group.Wait())
}
