package codec

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type row struct {
	SKU string     `json:"sku" msgpack:"sku" cbor:"sku"`
	Qty int        `json:"qty" msgpack:"qty" cbor:"qty"`
	At  *time.Time `json:"at" msgpack:"at" cbor:"at"`
}

func TestByNamePreservesValues(t *testing.T) {
	at := time.Date(2026, 5, 1, 10, 30, 0, 0, time.UTC)
	in := []row{{SKU: "B-8", Qty: 3, At: &at}, {SKU: "N-8", Qty: 0}}

	for _, name := range []string{NameMsgpack, NameCBOR, NameJSON} {
		t.Run(name, func(t *testing.T) {
			c, err := ByName[[]row](name, 0)
			require.NoError(t, err)

			b, err := c.Encode(in)
			require.NoError(t, err)
			out, err := c.Decode(b)
			require.NoError(t, err)

			require.Len(t, out, 2)
			assert.Equal(t, "B-8", out[0].SKU)
			assert.True(t, out[0].At.Equal(at))
			assert.Nil(t, out[1].At)
		})
	}
}

func TestByNameUnknown(t *testing.T) {
	_, err := ByName[int]("yaml", 0)
	assert.Error(t, err)
}

func TestLimitRejectsOversizedPayload(t *testing.T) {
	c, err := ByName[string](NameJSON, 8)
	require.NoError(t, err)

	b, err := c.Encode("a long string value")
	require.NoError(t, err)

	_, err = c.Decode(b)
	assert.Error(t, err)
}

func TestDecodeGarbage(t *testing.T) {
	c, err := ByName[[]row](NameMsgpack, 0)
	require.NoError(t, err)

	_, err = c.Decode([]byte{0xc1, 0x00, 0xff})
	assert.Error(t, err)
}
