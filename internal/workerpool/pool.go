// Package workerpool implements the fixed-size dispatch pool of
// spec.md §4.6: a size-sorted work queue consumed from both ends by
// head and reverse workers, with strict join semantics.
package workerpool

import (
	"sort"
	"sync"

	"github.com/zfsctool/zfsctool/internal/dataset"
	"github.com/zfsctool/zfsctool/internal/jobinfo"
	"github.com/zfsctool/zfsctool/internal/rewrite"
)

// Item is one unit of dispatch: a file already resolved to its dataset
// state by the caller (Eligibility has already accepted it).
type Item struct {
	Path string
	Size int64
	// State is nil only when item's admin lookup failed and it was not
	// actually eligible, which callers should filter out before Run.
	State *dataset.State
}

// Config controls pool shape per spec.md §4.6.
type Config struct {
	NumWorkers int
	NumReverse int
	SortBySize bool
	Quitting   func() bool
}

// Pool dispatches Items to Rewriter.Rewrite across NumWorkers goroutines.
type Pool struct {
	cfg Config
	rw  *rewrite.Rewriter
	job *jobinfo.JobInfo

	mu    sync.Mutex
	head  int
	tail  int
	items []Item

	results chan rewrite.Outcome
}

// New constructs a Pool bound to rw and job; items are supplied via Run.
func New(cfg Config, rw *rewrite.Rewriter, job *jobinfo.JobInfo) *Pool {
	if cfg.NumWorkers < 1 {
		cfg.NumWorkers = 1
	}
	if cfg.NumReverse > cfg.NumWorkers {
		cfg.NumReverse = cfg.NumWorkers
	}
	return &Pool{cfg: cfg, rw: rw, job: job}
}

// Run enqueues items (optionally sorted ascending by size), starts all
// workers, and blocks until every item has been dispatched and every
// worker has returned — the pool's join is strict. It returns every
// Outcome in completion order (no ordering guarantee across workers).
func (p *Pool) Run(items []Item) []rewrite.Outcome {
	p.items = items
	if p.cfg.SortBySize {
		sort.SliceStable(p.items, func(i, j int) bool {
			return p.items[i].Size < p.items[j].Size
		})
	}
	p.head = 0
	p.tail = len(p.items)

	p.results = make(chan rewrite.Outcome, len(p.items))

	numHead := p.cfg.NumWorkers - p.cfg.NumReverse
	var wg sync.WaitGroup
	for i := 0; i < numHead; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.runWorker(true)
		}()
	}
	for i := 0; i < p.cfg.NumReverse; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.runWorker(false)
		}()
	}
	wg.Wait()
	close(p.results)

	outcomes := make([]rewrite.Outcome, 0, len(p.items))
	for o := range p.results {
		outcomes = append(outcomes, o)
	}
	return outcomes
}

// runWorker repeatedly dequeues from the head (fromHead=true) or tail
// until the shared index pair is exhausted or the quit flag is set,
// running one rewrite per item in queue order for this worker.
func (p *Pool) runWorker(fromHead bool) {
	for {
		if p.cfg.Quitting != nil && p.cfg.Quitting() {
			return
		}
		item, ok := p.dequeue(fromHead)
		if !ok {
			return
		}
		p.results <- p.rw.Rewrite(item.Path, item.State, p.job, p.cfg.Quitting)
	}
}

// dequeue pops the next item from the head or tail under the shared
// mutex; the two indexes are never allowed to cross.
func (p *Pool) dequeue(fromHead bool) (Item, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.head >= p.tail {
		return Item{}, false
	}
	if fromHead {
		item := p.items[p.head]
		p.head++
		return item, true
	}
	p.tail--
	return p.items[p.tail], true
}
