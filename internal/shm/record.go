package shm

import (
	"encoding/binary"
	"errors"
)

// ErrRecordTooLarge is returned when a payload does not fit its slot.
var ErrRecordTooLarge = errors.New("shm: record too large for slot")

// recordHeaderSize is 16 bytes of message id, 8 bytes of origin timestamp
// (unix nanoseconds, little endian) and 4 bytes of payload length.
const recordHeaderSize = 16 + 8 + 4

// RecordSize returns the slot size needed for payloads up to budget bytes.
func RecordSize(budget int) int {
	return recordHeaderSize + budget
}

// PutRecord writes one message record into slot.
func PutRecord(slot []byte, id [16]byte, originNano int64, payload []byte) error {
	if len(payload) > len(slot)-recordHeaderSize {
		return ErrRecordTooLarge
	}
	copy(slot[:16], id[:])
	binary.LittleEndian.PutUint64(slot[16:24], uint64(originNano))
	binary.LittleEndian.PutUint32(slot[24:28], uint32(len(payload)))
	copy(slot[recordHeaderSize:], payload)
	return nil
}

// GetRecord reads one message record from slot. The returned payload is a
// copy, safe to keep after the slot is overwritten.
func GetRecord(slot []byte) (id [16]byte, originNano int64, payload []byte, err error) {
	copy(id[:], slot[:16])
	originNano = int64(binary.LittleEndian.Uint64(slot[16:24]))
	n := int(binary.LittleEndian.Uint32(slot[24:28]))
	if n > len(slot)-recordHeaderSize {
		return id, 0, nil, ErrRecordTooLarge
	}
	payload = make([]byte, n)
	copy(payload, slot[recordHeaderSize:recordHeaderSize+n])
	return id, originNano, payload, nil
}
