// Package layout reads fixed-width little-endian fields from account buffers.
package layout

import (
	"encoding/binary"
	"errors"
	"fmt"

	"vsr-power-lab/internal/domain"
)

// ErrOutOfBounds is returned when a read extends past the end of the buffer.
var ErrOutOfBounds = errors.New("read out of bounds")

func check(buf []byte, off, width int) error {
	if off < 0 || width < 0 || off > len(buf)-width {
		return fmt.Errorf("%w: %d-byte field at offset %d, buffer length %d", ErrOutOfBounds, width, off, len(buf))
	}
	return nil
}

// ReadU8 reads one byte at off.
func ReadU8(buf []byte, off int) (uint8, error) {
	if err := check(buf, off, 1); err != nil {
		return 0, err
	}
	return buf[off], nil
}

// ReadI8 reads a signed byte at off.
func ReadI8(buf []byte, off int) (int8, error) {
	v, err := ReadU8(buf, off)
	return int8(v), err
}

// ReadBool reads a strict boolean byte. ok is false when the byte is neither 0 nor 1.
func ReadBool(buf []byte, off int) (value bool, ok bool, err error) {
	v, err := ReadU8(buf, off)
	if err != nil {
		return false, false, err
	}
	switch v {
	case 0:
		return false, true, nil
	case 1:
		return true, true, nil
	}
	return false, false, nil
}

// ReadU32 reads a little-endian uint32 at off.
func ReadU32(buf []byte, off int) (uint32, error) {
	if err := check(buf, off, 4); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[off:]), nil
}

// ReadU64 reads a little-endian uint64 at off.
func ReadU64(buf []byte, off int) (uint64, error) {
	if err := check(buf, off, 8); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf[off:]), nil
}

// ReadI64 reads a little-endian two's complement int64 at off.
func ReadI64(buf []byte, off int) (int64, error) {
	v, err := ReadU64(buf, off)
	return int64(v), err
}

// ReadPubKey reads a 32-byte public key at off.
func ReadPubKey(buf []byte, off int) (domain.PubKey, error) {
	if err := check(buf, off, domain.PubKeySize); err != nil {
		return domain.PubKey{}, err
	}
	var pk domain.PubKey
	copy(pk[:], buf[off:off+domain.PubKeySize])
	return pk, nil
}
