package voice

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"sync"
	"time"
)

// Option configures a [Catalog].
type Option func(*Catalog)

// WithClock overrides the time source used for clone ids. Default: time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Catalog) { c.now = now }
}

// WithHidden pre-hides the given ids, typically from voices.hidden in the
// config file. The ids are merged with whatever the store already holds.
func WithHidden(ids ...string) Option {
	return func(c *Catalog) { c.initialHidden = append(c.initialHidden, ids...) }
}

// Catalog is the ordered list of voices: custom clones first (newest first),
// followed by the built-in presets. All methods are safe for concurrent use.
type Catalog struct {
	mu     sync.RWMutex
	voices []Preset
	store  Store
	now    func() time.Time

	initialHidden []string
}

// NewCatalog returns a catalog holding the built-in presets. Call
// [Catalog.Load] to merge persisted clones and hidden flags from store.
func NewCatalog(store Store, opts ...Option) *Catalog {
	if store == nil {
		store = NewMemStore()
	}
	c := &Catalog{
		voices: Builtin(),
		store:  store,
		now:    time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Store returns the backing store.
func (c *Catalog) Store() Store { return c.store }

// Load merges the persisted custom voices and hidden flags into the catalog.
// Ids passed via [WithHidden] are written through to the store first.
func (c *Catalog) Load(ctx context.Context) error {
	for _, id := range c.initialHidden {
		if err := c.store.SetHidden(ctx, id, true); err != nil {
			return fmt.Errorf("voice: load: %w", err)
		}
	}
	custom, err := c.store.ListCustom(ctx)
	if err != nil {
		return fmt.Errorf("voice: load: %w", err)
	}
	hidden, err := c.store.HiddenIDs(ctx)
	if err != nil {
		return fmt.Errorf("voice: load: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	voices := make([]Preset, 0, len(custom)+len(c.voices))
	for _, p := range custom {
		p.IsCustom = true
		voices = append(voices, p)
	}
	for _, p := range c.voices {
		if p.IsCustom {
			continue
		}
		voices = append(voices, p)
	}
	for i := range voices {
		voices[i].IsHidden = slices.Contains(hidden, voices[i].ID)
	}
	c.voices = voices
	return nil
}

// List returns every voice, hidden ones included.
func (c *Catalog) List() []Preset {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.voices)
}

// Visible returns the voices offered to the public, in catalog order.
func (c *Catalog) Visible() []Preset {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Preset, 0, len(c.voices))
	for _, p := range c.voices {
		if !p.IsHidden {
			out = append(out, p)
		}
	}
	return out
}

// Get returns the voice with id, hidden or not.
func (c *Catalog) Get(id string) (Preset, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	i := c.index(id)
	if i < 0 {
		return Preset{}, false
	}
	return c.voices[i], true
}

// AddClone creates a custom voice rendered with baseVoice and prepends it to
// the catalog. An empty baseVoice uses [CloneBaseVoice]. The clone is named
// "My Clone N" where N counts the custom voices including this one.
func (c *Catalog) AddClone(ctx context.Context, baseVoice string) (Preset, error) {
	if baseVoice == "" {
		baseVoice = CloneBaseVoice
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	millis := c.now().UnixMilli()
	id := CloneIDPrefix + strconv.FormatInt(millis, 10)
	for c.index(id) >= 0 {
		millis++
		id = CloneIDPrefix + strconv.FormatInt(millis, 10)
	}

	custom := 0
	for _, p := range c.voices {
		if p.IsCustom {
			custom++
		}
	}

	p := Preset{
		ID:           id,
		Name:         "My Clone " + strconv.Itoa(custom+1),
		Gender:       Male,
		Style:        CloneStyle,
		BaseVoice:    baseVoice,
		Flag:         CloneFlag,
		Description:  CloneDescription,
		DefaultPitch: 0,
		DefaultSpeed: 1.0,
		IsCustom:     true,
	}
	if err := c.store.SaveCustom(ctx, p); err != nil {
		return Preset{}, fmt.Errorf("voice: add clone: %w", err)
	}
	c.voices = slices.Insert(c.voices, 0, p)
	return p, nil
}

// SetHidden hides or reveals the voice with id. Hidden voices stay in the
// catalog and keep working for anyone who already selected them.
func (c *Catalog) SetHidden(ctx context.Context, id string, hidden bool) (Preset, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.index(id)
	if i < 0 {
		return Preset{}, fmt.Errorf("%w: %q", ErrUnknownVoice, id)
	}
	if c.voices[i].IsHidden == hidden {
		return c.voices[i], nil
	}
	if err := c.store.SetHidden(ctx, id, hidden); err != nil {
		return Preset{}, fmt.Errorf("voice: set hidden: %w", err)
	}
	c.voices[i].IsHidden = hidden
	return c.voices[i], nil
}

// ToggleHidden flips the hidden flag of the voice with id.
func (c *Catalog) ToggleHidden(ctx context.Context, id string) (Preset, error) {
	p, ok := c.Get(id)
	if !ok {
		return Preset{}, fmt.Errorf("%w: %q", ErrUnknownVoice, id)
	}
	return c.SetHidden(ctx, id, !p.IsHidden)
}

// ApplyHidden applies a hot-reloaded change of the configured hidden ids.
// Unknown ids are logged and skipped. The first store error is returned
// after all ids have been attempted.
func (c *Catalog) ApplyHidden(ctx context.Context, added, removed []string) error {
	var first error
	apply := func(id string, hidden bool) {
		if _, err := c.SetHidden(ctx, id, hidden); err != nil {
			slog.Warn("voice: cannot apply hidden flag", "id", id, "hidden", hidden, "err", err)
			if first == nil && !isUnknown(err) {
				first = err
			}
		}
	}
	for _, id := range added {
		apply(id, true)
	}
	for _, id := range removed {
		apply(id, false)
	}
	return first
}

func (c *Catalog) index(id string) int {
	return slices.IndexFunc(c.voices, func(p Preset) bool { return p.ID == id })
}
