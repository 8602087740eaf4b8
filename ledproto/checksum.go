package ledproto

import (
	"encoding/binary"

	"github.com/sigurn/crc16"
)

// ChecksumSize is the size of the checksum appended to every message.
const ChecksumSize = 2

// Endianness is the byte order of the checksum on the wire.
var Endianness = binary.BigEndian

var arcTable = crc16.MakeTable(crc16.CRC16_ARC)

// Checksum computes the CRC-16/ARC checksum of the given message.
func Checksum(msg []byte) uint16 {
	return crc16.Checksum(msg, arcTable)
}

// appendChecksum appends the checksum of msg to msg.
func appendChecksum(msg []byte) []byte {
	return Endianness.AppendUint16(msg, Checksum(msg))
}
