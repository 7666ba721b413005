package frontier

import (
	"sort"
	"sync"
)

// AdvanceFunc observes a wave promotion: the admitted entries sorted by
// score and the number of held items discarded by the cutoff.
type AdvanceFunc func(wave int, admitted []Entry, pruned int)

// Frontier schedules URLs in waves. Items discovered while crawling wave N
// are held for wave N+1 and only scored and admitted once wave N runs dry.
type Frontier struct {
	mu        sync.Mutex
	scorer    *Scorer
	cutoff    float64
	items     map[string]*Item
	waves     map[int]*URLSet
	queue     *Queue
	wave      int
	pruned    int
	onAdvance AdvanceFunc
}

func New(scorer *Scorer, cutoff float64) *Frontier {
	return &Frontier{
		scorer: scorer,
		cutoff: cutoff,
		items:  make(map[string]*Item),
		waves:  make(map[int]*URLSet),
		queue:  NewQueue(),
	}
}

// OnAdvance installs fn. It runs outside the Frontier's lock.
func (f *Frontier) OnAdvance(fn AdvanceFunc) {
	f.mu.Lock()
	f.onAdvance = fn
	f.mu.Unlock()
}

// Seed queues items directly into wave 0. Seeds are not subject to the cutoff.
func (f *Frontier) Seed(items ...*Item) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := 0
	for _, it := range items {
		if rec, ok := f.items[it.URL]; ok {
			rec.InLinks.Merge(&it.InLinks)
			continue
		}
		rec := it.Clone()
		rec.Wave = 0
		rec.Score = f.scorer.Score(rec)
		f.items[rec.URL] = rec
		f.queue.Enqueue(Entry{Wave: 0, Score: rec.Score, URL: rec.URL})
		n++
	}
	return n
}

// Put holds it for wave. If the URL already has a record the in-links are
// merged into it and false is returned.
func (f *Frontier) Put(it *Item, wave int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if rec, ok := f.items[it.URL]; ok {
		rec.InLinks.Merge(&it.InLinks)
		return false
	}
	rec := it.Clone()
	rec.Wave = wave
	rec.Score = f.scorer.Score(rec)
	f.items[rec.URL] = rec

	hold, ok := f.waves[wave]
	if !ok {
		hold = NewURLSet()
		f.waves[wave] = hold
	}
	hold.Add(rec.URL)
	return true
}

// AddInLink records src as linking to url. It reports false if url has no record.
func (f *Frontier) AddInLink(url, src string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	rec, ok := f.items[url]
	if !ok {
		return false
	}
	rec.InLinks.Add(src)
	return true
}

// Merge folds src's in-links into dst, creating dst's record if needed.
// Nothing already recorded on dst is dropped.
func (f *Frontier) Merge(dst, src string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if dst == src {
		return
	}
	from, ok := f.items[src]
	rec, exists := f.items[dst]
	if !exists {
		rec = &Item{URL: dst}
		if ok {
			rec.Wave = from.Wave
		}
		f.items[dst] = rec
	}
	if ok {
		rec.InLinks.Merge(&from.InLinks)
	}
}

// Pop returns the best entry of the current wave, promoting the next wave
// when the queue is empty. It reports false once the Frontier is drained.
func (f *Frontier) Pop() (Entry, bool) {
	f.mu.Lock()
	var (
		promoted bool
		wave     int
		admitted []Entry
		pruned   int
	)
	if f.queue.Len() == 0 {
		wave = f.wave + 1
		admitted, pruned, promoted = f.advance(wave)
	}
	e, ok := f.queue.Dequeue()
	if ok {
		f.wave = e.Wave
	}
	fn := f.onAdvance
	f.mu.Unlock()

	if promoted && fn != nil {
		fn(wave, admitted, pruned)
	}
	return e, ok
}

// advance rescores every item held for wave and queues those within the
// cutoff. The holding set is consumed either way.
func (f *Frontier) advance(wave int) ([]Entry, int, bool) {
	hold, ok := f.waves[wave]
	if !ok {
		return nil, 0, false
	}
	delete(f.waves, wave)

	admitted := make([]Entry, 0, hold.Len())
	pruned := 0
	for _, u := range hold.List() {
		rec := f.items[u]
		rec.Score = f.scorer.Score(rec)
		if rec.Score > f.cutoff {
			pruned++
			continue
		}
		e := Entry{Wave: wave, Score: rec.Score, URL: u}
		if f.queue.Enqueue(e) {
			admitted = append(admitted, e)
		}
	}
	f.pruned += pruned

	sort.Slice(admitted, func(i, j int) bool { return admitted[i].less(admitted[j]) })
	return admitted, pruned, true
}

// Get returns a copy of url's record.
func (f *Frontier) Get(url string) (*Item, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	rec, ok := f.items[url]
	if !ok {
		return nil, false
	}
	return rec.Clone(), true
}

// Len counts queued plus held URLs.
func (f *Frontier) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := f.queue.Len()
	for _, hold := range f.waves {
		n += hold.Len()
	}
	return n
}

// Drained reports whether nothing is queued or held for a later wave.
func (f *Frontier) Drained() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.queue.Len() > 0 {
		return false
	}
	for w := range f.waves {
		if w > f.wave {
			return false
		}
	}
	return true
}

// Wave is the wave of the most recently popped entry.
func (f *Frontier) Wave() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.wave
}

// Pruned is the total number of held items discarded by the cutoff.
func (f *Frontier) Pruned() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pruned
}

// Admitted is the number of entries ever queued, seeds included.
func (f *Frontier) Admitted() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queue.TotalQueued()
}
