package pmtiles

import (
	"fmt"
	"io"
	"os"
)

// DataSource is a random-access byte source for a single PMTiles archive.
// The toolkit only ever reads archives from local disk or an in-memory
// buffer — there is no network bucket implementation, since remote/object
// storage access is out of scope for this toolkit (see DESIGN.md).
type DataSource interface {
	ReadRange(offset, length uint64) ([]byte, error)
	Size() (uint64, error)
	Close() error
}

// FileDataSource reads archive bytes from an *os.File via io.SectionReader,
// matching the teacher's use of a single open file handle for range reads.
type FileDataSource struct {
	f *os.File
}

// OpenFileDataSource opens path read-only for range reads.
func OpenFileDataSource(path string) (*FileDataSource, error) {
	f, err := os.OpenFile(path, os.O_RDONLY, 0666)
	if err != nil {
		return nil, fmt.Errorf("pmtiles: opening %s: %w", path, err)
	}
	return &FileDataSource{f: f}, nil
}

func (d *FileDataSource) ReadRange(offset, length uint64) ([]byte, error) {
	r := io.NewSectionReader(d.f, int64(offset), int64(length))
	return io.ReadAll(r)
}

func (d *FileDataSource) Size() (uint64, error) {
	info, err := d.f.Stat()
	if err != nil {
		return 0, err
	}
	return uint64(info.Size()), nil
}

func (d *FileDataSource) Close() error { return d.f.Close() }

// MemoryDataSource reads archive bytes from an in-memory buffer, used by
// tests and by pipeline stages that hold a freshly written archive without
// round-tripping it through disk.
type MemoryDataSource struct {
	buf []byte
}

func NewMemoryDataSource(buf []byte) *MemoryDataSource {
	return &MemoryDataSource{buf: buf}
}

func (d *MemoryDataSource) ReadRange(offset, length uint64) ([]byte, error) {
	if offset+length > uint64(len(d.buf)) {
		return nil, fmt.Errorf("pmtiles: range [%d,%d) out of bounds (size %d)", offset, offset+length, len(d.buf))
	}
	return d.buf[offset : offset+length], nil
}

func (d *MemoryDataSource) Size() (uint64, error) { return uint64(len(d.buf)), nil }

func (d *MemoryDataSource) Close() error { return nil }
