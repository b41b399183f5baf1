package vectorindex

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io/fs"
	"math"
	"os"
	"path/filepath"

	"ragqa/internal/domain"
)

var magic = [4]byte{'R', 'Q', 'I', 'X'}

const formatVersion uint16 = 1

// header: magic, version, count, dim
const headerSize = 4 + 2 + 4 + 4

// MarshalBinary encodes the index as header, little-endian float32 rows and a CRC32 trailer.
func (f *Flat) MarshalBinary() ([]byte, error) {
	buf := make([]byte, headerSize+4*len(f.data)+4)
	copy(buf[0:4], magic[:])
	binary.LittleEndian.PutUint16(buf[4:6], formatVersion)
	binary.LittleEndian.PutUint32(buf[6:10], uint32(f.Count()))
	binary.LittleEndian.PutUint32(buf[10:14], uint32(f.dim))
	off := headerSize
	for _, v := range f.data {
		binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(v))
		off += 4
	}
	binary.LittleEndian.PutUint32(buf[off:], crc32.ChecksumIEEE(buf[:off]))
	return buf, nil
}

// Decode parses bytes produced by MarshalBinary.
func Decode(data []byte) (*Flat, error) {
	if len(data) < headerSize+4 {
		return nil, fmt.Errorf("index blob too short (%d bytes): %w", len(data), domain.ErrCorruptData)
	}
	if !bytes.Equal(data[0:4], magic[:]) {
		return nil, fmt.Errorf("bad index magic %q: %w", data[0:4], domain.ErrCorruptData)
	}
	if v := binary.LittleEndian.Uint16(data[4:6]); v != formatVersion {
		return nil, fmt.Errorf("unsupported index version %d: %w", v, domain.ErrCorruptData)
	}
	count := int(binary.LittleEndian.Uint32(data[6:10]))
	dim := int(binary.LittleEndian.Uint32(data[10:14]))
	if count == 0 || dim == 0 {
		return nil, fmt.Errorf("empty index shape (%d, %d): %w", count, dim, domain.ErrCorruptData)
	}
	// the shape comes from the file, so it is checked in uint64 before it sizes anything
	payload := len(data) - headerSize - 4
	if payload%4 != 0 || uint64(count)*uint64(dim) != uint64(payload/4) {
		return nil, fmt.Errorf("index blob is %d bytes, too short or long for shape (%d, %d): %w", len(data), count, dim, domain.ErrCorruptData)
	}
	want := len(data)
	body := data[:want-4]
	if sum := binary.LittleEndian.Uint32(data[want-4:]); sum != crc32.ChecksumIEEE(body) {
		return nil, fmt.Errorf("index checksum mismatch: %w", domain.ErrCorruptData)
	}
	vals := make([]float32, count*dim)
	off := headerSize
	for i := range vals {
		vals[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[off:]))
		off += 4
	}
	return &Flat{dim: dim, data: vals}, nil
}

// Save writes the index to path through a temporary file and rename.
func (f *Flat) Save(path string) error {
	blob, err := f.MarshalBinary()
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".index-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp index: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(blob); err != nil {
		tmp.Close()
		return fmt.Errorf("write index: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close index: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename index: %w", err)
	}
	return nil
}

// Load reads an index written by Save.
func Load(path string) (*Flat, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("index %s: %w", path, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("read index %s: %v: %w", path, err, domain.ErrNotFound)
	}
	f, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("index %s: %w", path, err)
	}
	return f, nil
}
