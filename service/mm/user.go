package mm

import (
	"encoding/binary"
	"fmt"
)

// chunks walks [va, va+size) page by page, yielding the physical address and
// length of every piece.
func chunks(space Space, pageSize uint64, va uint64, size uint64, fn func(pa uint64, offset, n uint64) error) error {
	var offset uint64
	for offset < size {
		addr := va + offset
		pa, ok := space.Translate(addr)
		if !ok {
			return fmt.Errorf("%w: %#x", ErrUnmapped, addr)
		}
		n := pageSize - addr%pageSize
		if rest := size - offset; n > rest {
			n = rest
		}
		if err := fn(pa, offset, n); err != nil {
			return err
		}
		offset += n
	}
	return nil
}

// Translatable reports whether every byte of [va, va+size) is mapped.
func Translatable(space Space, mem PhysMem, va uint64, size uint64) bool {
	return chunks(space, mem.PageSize(), va, size, func(uint64, uint64, uint64) error { return nil }) == nil
}

// WriteBytes copies data into user memory at va; the range may straddle pages.
func WriteBytes(space Space, mem PhysMem, va uint64, data []byte) error {
	return chunks(space, mem.PageSize(), va, uint64(len(data)), func(pa, offset, n uint64) error {
		return mem.Write(pa, data[offset:offset+n])
	})
}

// ReadBytes copies size bytes of user memory at va.
func ReadBytes(space Space, mem PhysMem, va uint64, size uint64) ([]byte, error) {
	data := make([]byte, size)
	err := chunks(space, mem.PageSize(), va, size, func(pa, offset, n uint64) error {
		return mem.Read(pa, data[offset:offset+n])
	})
	return data, err
}

// WriteUint64 stores a little-endian word at va.
func WriteUint64(space Space, mem PhysMem, va uint64, value uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], value)
	return WriteBytes(space, mem, va, buf[:])
}

// ReadUint64 loads a little-endian word from va.
func ReadUint64(space Space, mem PhysMem, va uint64) (uint64, error) {
	data, err := ReadBytes(space, mem, va, 8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(data), nil
}

// WriteUint32 stores a little-endian 32-bit value at va.
func WriteUint32(space Space, mem PhysMem, va uint64, value uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], value)
	return WriteBytes(space, mem, va, buf[:])
}

// WriteInt32 stores a signed 32-bit value at va.
func WriteInt32(space Space, mem PhysMem, va uint64, value int32) error {
	return WriteUint32(space, mem, va, uint32(value))
}

// ReadInt32 loads a signed 32-bit value from va.
func ReadInt32(space Space, mem PhysMem, va uint64) (int32, error) {
	data, err := ReadBytes(space, mem, va, 4)
	if err != nil {
		return 0, err
	}
	return int32(binary.LittleEndian.Uint32(data)), nil
}

// WriteCString stores s followed by a NUL byte.
func WriteCString(space Space, mem PhysMem, va uint64, s string) error {
	data := make([]byte, len(s)+1)
	copy(data, s)
	return WriteBytes(space, mem, va, data)
}

// ReadCString reads a NUL terminated string of at most limit bytes.
func ReadCString(space Space, mem PhysMem, va uint64, limit int) (string, error) {
	var out []byte
	for i := 0; i < limit; i++ {
		b, err := ReadBytes(space, mem, va+uint64(i), 1)
		if err != nil {
			return "", err
		}
		if b[0] == 0 {
			return string(out), nil
		}
		out = append(out, b[0])
	}
	return "", fmt.Errorf("mm: string at %#x exceeds %d bytes", va, limit)
}
