package block_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperpolymath/lithoglyph-sub001/pkg/block"
)

func Test_HeaderSize_Is_64_Bytes(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 64, block.HeaderSize)
}

func Test_Size_Is_4096_Bytes(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 4096, block.Size)
	assert.Equal(t, block.Size, block.HeaderSize+block.PayloadSize, "header + payload must equal the total block size")
}

func Test_CRC32C_Matches_Known_Test_Vector(t *testing.T) {
	t.Parallel()

	// Standard Castagnoli CRC32C test vector.
	got := block.CRC32C([]byte("123456789"))

	assert.Equal(t, uint32(0xE3069283), got)
	assert.NotZero(t, block.CRC32C([]byte("hello world")))
}

func Test_EncodeDecode_Roundtrips_For_Various_Payload_Lengths(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		payload []byte
	}{
		{name: "empty", payload: nil},
		{name: "small", payload: []byte("hello document")},
		{name: "max capacity", payload: bytes.Repeat([]byte{0xAB}, block.PayloadSize)},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := block.Header{
				BlockType:   block.TypeDocument,
				BlockID:     42,
				Sequence:    7,
				CreatedAt:   1000,
				ModifiedAt:  1000,
				PrevBlockID: 0,
			}

			buf := block.Encode(h, tt.payload)
			require.Len(t, buf, block.Size, "Encode must always produce a full-size block")

			decoded, err := block.Decode(buf)
			require.NoError(t, err)

			assert.Equal(t, tt.payload, decoded.Payload)
			assert.Equal(t, h.BlockID, decoded.Header.BlockID)
			assert.Equal(t, h.BlockType, decoded.Header.BlockType)
		})
	}
}

func Test_Decode_Rejects_Flipped_Payload_Bit_With_ChecksumMismatch(t *testing.T) {
	t.Parallel()

	buf := block.Encode(block.Header{BlockType: block.TypeDocument, BlockID: 1}, []byte("payload"))

	buf[block.HeaderSize] ^= 0x01 // flip one bit inside the payload region

	_, err := block.Decode(buf)
	require.ErrorIs(t, err, block.ErrChecksumMismatch)
}

func Test_Decode_Rejects_Zeroed_Magic_With_InvalidMagic(t *testing.T) {
	t.Parallel()

	buf := block.Encode(block.Header{BlockType: block.TypeDocument, BlockID: 1}, []byte("payload"))

	buf[0], buf[1], buf[2], buf[3] = 0, 0, 0, 0

	_, err := block.Decode(buf)
	require.ErrorIs(t, err, block.ErrInvalidMagic)
}

func Test_Decode_Rejects_Unsupported_Version(t *testing.T) {
	t.Parallel()

	buf := block.Encode(block.Header{BlockType: block.TypeDocument, BlockID: 1}, []byte("x"))

	buf[4], buf[5] = 0x02, 0x00 // version = 2, little-endian

	_, err := block.Decode(buf)
	require.ErrorIs(t, err, block.ErrUnsupportedVersion)
}

func Test_Decode_Rejects_Short_Buffer(t *testing.T) {
	t.Parallel()

	_, err := block.Decode(make([]byte, block.Size-1))
	require.ErrorIs(t, err, block.ErrShortBuffer)
}

func Test_Type_Name_Renders_Known_And_Unknown_Types(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "document", block.TypeDocument.Name())
	assert.Equal(t, "unknown(0x1234)", block.Type(0x1234).Name())
}

func Test_Header_Flag_Helpers(t *testing.T) {
	t.Parallel()

	h := block.Header{Flags: block.FlagDeleted | block.FlagChained}

	assert.True(t, h.IsDeleted())
	assert.True(t, h.IsChained())
	assert.False(t, (block.Header{}).IsDeleted())
}
