package gallery

import (
	"log"
	"sync"

	"github.com/imageforge/sdxl-playground/server/internal/storage"
)

// Persistence slots. One holds the ordered gallery, the other the currently
// selected image-to-image source.
const (
	imagesKey     = "generatedImages"
	inputImageKey = "generationInputImage"
)

type Dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// GeneratedImage is one completed generation. Its identity is its URL.
type GeneratedImage struct {
	URL        string     `json:"url"`
	Dimensions Dimensions `json:"dimensions"`
}

// Store manages the persisted gallery of completed generations and the
// selected input image. Persistence is best-effort: a failing medium degrades
// to in-memory behavior for the life of the process, never to an error.
type Store struct {
	mu         sync.RWMutex
	persist    storage.KV
	images     []GeneratedImage
	inputImage string
}

// NewStore loads persisted state, initializing and persisting the defaults on
// first ever access so subsequent reads are well-defined.
func NewStore(persist storage.KV) *Store {
	s := &Store{
		persist: persist,
		images:  make([]GeneratedImage, 0),
	}

	found, err := persist.Load(imagesKey, &s.images)
	if err != nil {
		log.Printf("gallery: failed to load persisted images: %v", err)
	}
	if !found || err != nil {
		s.images = make([]GeneratedImage, 0)
		s.save(imagesKey, s.images)
	}

	if found, err := persist.Load(inputImageKey, &s.inputImage); !found || err != nil {
		if err != nil {
			log.Printf("gallery: failed to load input image selection: %v", err)
		}
		s.inputImage = ""
		s.save(inputImageKey, s.inputImage)
	}

	return s
}

// List returns the gallery in insertion order.
func (s *Store) List() []GeneratedImage {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]GeneratedImage, len(s.images))
	copy(out, s.images)
	return out
}

// Add appends an image and persists the full sequence. Duplicates are not
// collapsed here; removal by URL handles them together later.
func (s *Store) Add(image GeneratedImage) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.images = append(s.images, image)
	s.save(imagesKey, s.images)
}

// Remove deletes every entry whose URL matches. Removing an absent URL is a
// no-op, not an error.
func (s *Store) Remove(url string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.images[:0]
	for _, img := range s.images {
		if img.URL != url {
			kept = append(kept, img)
		}
	}
	s.images = kept
	s.save(imagesKey, s.images)
}

// SelectInputImage sets the image-to-image source URL; the empty string clears
// the selection.
func (s *Store) SelectInputImage(url string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.inputImage = url
	s.save(inputImageKey, s.inputImage)
}

// InputImage returns the currently selected image-to-image source, or "".
func (s *Store) InputImage() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inputImage
}

func (s *Store) save(key string, value any) {
	if err := s.persist.Save(key, value); err != nil {
		log.Printf("gallery: failed to persist %s: %v", key, err)
	}
}
