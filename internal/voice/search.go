package voice

import (
	"cmp"
	"errors"
	"slices"
	"strings"

	"github.com/antzucaro/matchr"
)

// searchThreshold is the minimum Jaro-Winkler score a visible voice must
// reach on its name or style to be returned by [Catalog.Search].
const searchThreshold = 0.80

// Search returns the visible voices whose name or style resembles query,
// best match first. Substring matches always qualify. An empty query returns
// [Catalog.Visible].
func (c *Catalog) Search(query string) []Preset {
	q := strings.ToLower(strings.TrimSpace(query))
	visible := c.Visible()
	if q == "" {
		return visible
	}

	type hit struct {
		p     Preset
		score float64
		order int
	}
	var hits []hit
	for i, p := range visible {
		if s := matchScore(q, p); s >= searchThreshold {
			hits = append(hits, hit{p: p, score: s, order: i})
		}
	}
	slices.SortFunc(hits, func(a, b hit) int {
		if d := cmp.Compare(b.score, a.score); d != 0 {
			return d
		}
		return cmp.Compare(a.order, b.order)
	})

	out := make([]Preset, len(hits))
	for i, h := range hits {
		out[i] = h.p
	}
	return out
}

// matchScore is the best Jaro-Winkler similarity between q and the preset's
// name, style, or any single word of either.
func matchScore(q string, p Preset) float64 {
	best := 0.0
	for _, field := range []string{p.Name, p.Style} {
		f := strings.ToLower(field)
		if strings.Contains(f, q) {
			return 1
		}
		if s := matchr.JaroWinkler(q, f, false); s > best {
			best = s
		}
		for _, word := range strings.Fields(f) {
			if s := matchr.JaroWinkler(q, word, false); s > best {
				best = s
			}
		}
	}
	return best
}

func isUnknown(err error) bool { return errors.Is(err, ErrUnknownVoice) }
