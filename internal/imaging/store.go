package imaging

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sync"

	"github.com/disintegration/imaging"
)

// DefaultJPEGQuality matches the quality most image tools use when writing
// JPEG without an explicit setting.
const DefaultJPEGQuality = 95

// ArtifactStore persists named images produced during a run.
//
// Save must not keep a reference to img after it returns, since callers may
// keep drawing on it. Saving under an existing name overwrites it.
type ArtifactStore interface {
	// Save writes img under name and returns where it went.
	Save(name string, img image.Image) (string, error)
}

// DiskStore writes artifacts as files under a directory. The file format
// follows each name's extension.
type DiskStore struct {
	// Dir is created on first write if missing.
	Dir string

	// Quality is the JPEG quality (1-100). Zero selects DefaultJPEGQuality.
	Quality int
}

// NewDiskStore returns a store writing under dir.
func NewDiskStore(dir string) *DiskStore {
	return &DiskStore{Dir: dir, Quality: DefaultJPEGQuality}
}

// Save implements ArtifactStore.
func (s *DiskStore) Save(name string, img image.Image) (string, error) {
	if img == nil {
		return "", fmt.Errorf("failed to save %s: nil image", name)
	}
	dir := s.Dir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	quality := s.Quality
	if quality == 0 {
		quality = DefaultJPEGQuality
	}

	path := filepath.Join(dir, name)
	if err := imaging.Save(img, path, imaging.JPEGQuality(quality)); err != nil {
		return "", fmt.Errorf("failed to save %s: %w", path, err)
	}
	return path, nil
}

// MemoryStore keeps artifacts in memory. It is safe for concurrent use.
type MemoryStore struct {
	mu     sync.Mutex
	images map[string]*image.NRGBA
	writes map[string]int
	order  []string
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		images: make(map[string]*image.NRGBA),
		writes: make(map[string]int),
	}
}

// Save implements ArtifactStore. The stored image is a copy.
func (s *MemoryStore) Save(name string, img image.Image) (string, error) {
	if img == nil {
		return "", fmt.Errorf("failed to save %s: nil image", name)
	}
	cp := imaging.Clone(img)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.images[name]; !ok {
		s.order = append(s.order, name)
	}
	s.images[name] = cp
	s.writes[name]++
	return "mem://" + name, nil
}

// Get returns the last image saved under name.
func (s *MemoryStore) Get(name string) (*image.NRGBA, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	img, ok := s.images[name]
	return img, ok
}

// Writes returns how many times name was saved.
func (s *MemoryStore) Writes(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes[name]
}

// Names returns the saved names in the order they were first written.
func (s *MemoryStore) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.order...)
}

// NopStore discards every artifact.
type NopStore struct{}

// Save implements ArtifactStore.
func (NopStore) Save(string, image.Image) (string, error) { return "", nil }

var (
	_ ArtifactStore = (*DiskStore)(nil)
	_ ArtifactStore = (*MemoryStore)(nil)
	_ ArtifactStore = NopStore{}
)
