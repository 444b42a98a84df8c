package config

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/MrWong99/newscast/pkg/provider/image"
	"github.com/MrWong99/newscast/pkg/provider/llm"
	"github.com/MrWong99/newscast/pkg/provider/stt"
	"github.com/MrWong99/newscast/pkg/provider/tts"
	"github.com/MrWong99/newscast/pkg/provider/vad"
)

// ErrProviderNotRegistered is returned by the Create methods when no factory
// is registered under the entry's name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Factory builds a provider from its config entry.
type Factory[T any] func(ProviderEntry) (T, error)

type factories[T any] map[string]Factory[T]

// Registry maps provider names to factories, one namespace per provider
// kind. It is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	llm   factories[llm.Provider]
	tts   factories[tts.Provider]
	image factories[image.Provider]
	stt   factories[stt.Provider]
	vad   factories[vad.Engine]
}

// NewRegistry returns an empty [Registry].
func NewRegistry() *Registry {
	return &Registry{
		llm:   factories[llm.Provider]{},
		tts:   factories[tts.Provider]{},
		image: factories[image.Provider]{},
		stt:   factories[stt.Provider]{},
		vad:   factories[vad.Engine]{},
	}
}

// RegisterLLM registers the summarisation model factory for name. A later
// registration under the same name wins.
func (r *Registry) RegisterLLM(name string, f Factory[llm.Provider]) { register(r, r.llm, name, f) }

// RegisterTTS registers a speech synthesis factory.
func (r *Registry) RegisterTTS(name string, f Factory[tts.Provider]) { register(r, r.tts, name, f) }

// RegisterImage registers a cover-art factory.
func (r *Registry) RegisterImage(name string, f Factory[image.Provider]) {
	register(r, r.image, name, f)
}

// RegisterSTT registers a dictation factory.
func (r *Registry) RegisterSTT(name string, f Factory[stt.Provider]) { register(r, r.stt, name, f) }

// RegisterVAD registers a silence trimming factory.
func (r *Registry) RegisterVAD(name string, f Factory[vad.Engine]) { register(r, r.vad, name, f) }

// CreateLLM builds the provider registered under entry.Name, or fails with
// [ErrProviderNotRegistered].
func (r *Registry) CreateLLM(entry ProviderEntry) (llm.Provider, error) {
	return create(r, r.llm, "llm", entry)
}

func (r *Registry) CreateTTS(entry ProviderEntry) (tts.Provider, error) {
	return create(r, r.tts, "tts", entry)
}

func (r *Registry) CreateImage(entry ProviderEntry) (image.Provider, error) {
	return create(r, r.image, "image", entry)
}

func (r *Registry) CreateSTT(entry ProviderEntry) (stt.Provider, error) {
	return create(r, r.stt, "stt", entry)
}

func (r *Registry) CreateVAD(entry ProviderEntry) (vad.Engine, error) {
	return create(r, r.vad, "vad", entry)
}

// Registered returns the sorted provider names per kind.
func (r *Registry) Registered() map[string][]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return map[string][]string{
		"llm":   slices.Sorted(maps.Keys(r.llm)),
		"tts":   slices.Sorted(maps.Keys(r.tts)),
		"image": slices.Sorted(maps.Keys(r.image)),
		"stt":   slices.Sorted(maps.Keys(r.stt)),
		"vad":   slices.Sorted(maps.Keys(r.vad)),
	}
}

func register[T any](r *Registry, fs factories[T], name string, f Factory[T]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fs[name] = f
}

func create[T any](r *Registry, fs factories[T], kind string, entry ProviderEntry) (T, error) {
	r.mu.RLock()
	f, ok := fs[entry.Name]
	r.mu.RUnlock()
	if !ok {
		var zero T
		return zero, fmt.Errorf("%w: %s/%q", ErrProviderNotRegistered, kind, entry.Name)
	}
	return f(entry)
}
