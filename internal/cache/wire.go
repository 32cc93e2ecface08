package cache

import (
	"bytes"
	"encoding/binary"
	"errors"
)

// errCorrupt marks a stored entry that does not parse as an envelope.
var errCorrupt = errors.New("cache: corrupt entry")

const (
	wireVersion byte = 1
	headerLen        = 4 + 1 + 8 + 8 + 4
)

var magic = [...]byte{'S', 'C', 'R', 'C'}

// envelope: magic(4) | ver(1) | storeVersion(u64 be) | writtenAtMs(i64 be) | plen(u32 be) | payload
func encodeEnvelope(storeVersion uint64, writtenAtMs int64, payload []byte) []byte {
	var buf bytes.Buffer
	buf.Grow(headerLen + len(payload))

	buf.Write(magic[:])
	buf.WriteByte(wireVersion)

	var u8 [8]byte
	binary.BigEndian.PutUint64(u8[:], storeVersion)
	buf.Write(u8[:])
	binary.BigEndian.PutUint64(u8[:], uint64(writtenAtMs))
	buf.Write(u8[:])

	var u4 [4]byte
	binary.BigEndian.PutUint32(u4[:], uint32(len(payload)))
	buf.Write(u4[:])

	buf.Write(payload)
	return buf.Bytes()
}

func decodeEnvelope(b []byte) (storeVersion uint64, writtenAtMs int64, payload []byte, err error) {
	if len(b) < headerLen || !bytes.Equal(b[:4], magic[:]) || b[4] != wireVersion {
		return 0, 0, nil, errCorrupt
	}
	off := 5
	storeVersion = binary.BigEndian.Uint64(b[off : off+8])
	off += 8
	writtenAtMs = int64(binary.BigEndian.Uint64(b[off : off+8]))
	off += 8
	plen := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4
	if plen != len(b)-off {
		return 0, 0, nil, errCorrupt
	}
	return storeVersion, writtenAtMs, b[off:], nil
}
