package nvram

import (
	"fmt"
	"log"
	"os"
)

// File is a Store backed by a small binary image on disk. Every write
// rewrites the image, mirroring EEPROM semantics where each byte lands
// immediately. The bench app uses it so calibration survives restarts.
type File struct {
	path string
	mem  Memory
}

var _ Store = (*File)(nil)

// OpenFile opens (or creates) the image at path and loads its contents.
func OpenFile(path string, size int) (*File, error) {
	f := &File{path: path}
	f.mem.grow(size)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return f, nil
		}
		return nil, fmt.Errorf("failed to read nvram image: %w", err)
	}
	f.mem.Load(data)
	f.mem.grow(size)

	return f, nil
}

// Write stores v and flushes the whole image to disk.
func (f *File) Write(addr int, v int32) {
	f.mem.Write(addr, v)
	if err := os.WriteFile(f.path, f.mem.Bytes(), 0644); err != nil {
		// The machine has no fault path for storage; log and carry on.
		log.Printf("nvram: failed to write image %s: %v", f.path, err)
	}
}

// Read returns the value stored at the given byte address.
func (f *File) Read(addr int) int32 {
	return f.mem.Read(addr)
}
