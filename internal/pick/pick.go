// Package pick samples display sets from content path lists.
package pick

import (
	"math/rand"
	"sync"
	"time"
)

// Picker draws random samples. Safe for concurrent use.
type Picker struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// New returns a Picker seeded with the current time.
func New() *Picker {
	return NewWithSeed(time.Now().UnixNano())
}

// NewWithSeed returns a deterministic Picker.
func NewWithSeed(seed int64) *Picker {
	return &Picker{rnd: rand.New(rand.NewSource(seed))}
}

// Subset returns count items from source in random order. When source holds
// at least count items they are drawn without replacement, otherwise with
// replacement. The result is always reshuffled so its order does not lean
// toward insertion order. An empty source yields an empty result.
func (p *Picker) Subset(source []string, count int) []string {
	if len(source) == 0 || count <= 0 {
		return []string{}
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []string
	if len(source) >= count {
		shuffled := make([]string, len(source))
		copy(shuffled, source)
		p.shuffle(shuffled)
		out = shuffled[:count:count]
	} else {
		out = make([]string, 0, count)
		for i := 0; i < count; i++ {
			out = append(out, source[p.rnd.Intn(len(source))])
		}
	}
	p.shuffle(out)
	return out
}

// One returns a single random element, or "" for an empty source.
func (p *Picker) One(source []string) string {
	if len(source) == 0 {
		return ""
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return source[p.rnd.Intn(len(source))]
}

func (p *Picker) shuffle(items []string) {
	for i := len(items) - 1; i > 0; i-- {
		j := p.rnd.Intn(i + 1)
		items[i], items[j] = items[j], items[i]
	}
}
