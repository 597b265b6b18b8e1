package queue

import (
	"container/heap"
	"errors"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/headless-crawler/pkg/models"
)

// ErrNotPermutation is returned by Reorder when the given links are not
// exactly the pending set.
var ErrNotPermutation = errors.New("reordered links are not a permutation of the pending set")

// --- Heap Implementation ---

// frontierItem is one pending link in the heap
type frontierItem struct {
	link  models.SiteLink
	seq   uint64 // Lower value is dispatched first; insertion order by default
	index int    // The index of the item in the heap (required by heap interface)
}

// frontierHeap implements heap.Interface ordered by seq
type frontierHeap []*frontierItem

func (h frontierHeap) Len() int { return len(h) }

func (h frontierHeap) Less(i, j int) bool { return h[i].seq < h[j].seq }

func (h frontierHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *frontierHeap) Push(x any) {
	item := x.(*frontierItem)
	item.index = len(*h)
	*h = append(*h, item)
}

func (h *frontierHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil  // avoid memory leak
	item.index = -1 // for safety
	*h = old[0 : n-1]
	return item
}

// Frontier holds the discovered-but-not-yet-attempted links.
// It has a single writer (the crawler's decision loop) and takes no locks.
type Frontier struct {
	h       frontierHeap
	pending map[string]struct{}
	nextSeq uint64
	log     *logrus.Entry
}

// NewFrontier creates an empty frontier
func NewFrontier(log *logrus.Entry) *Frontier {
	f := &Frontier{pending: make(map[string]struct{}), log: log}
	heap.Init(&f.h)
	return f
}

// Push appends link behind every pending link.
// Returns false, leaving the frontier unchanged, if link's URL is already pending.
func (f *Frontier) Push(link models.SiteLink) bool {
	if _, dup := f.pending[link.LinkURL]; dup {
		f.log.Debugf("Frontier: %s already pending, not queued again", link.LinkURL)
		return false
	}
	heap.Push(&f.h, &frontierItem{link: link, seq: f.nextSeq})
	f.nextSeq++
	f.pending[link.LinkURL] = struct{}{}
	return true
}

// Pop removes the next link to dispatch. ok is false when the frontier is empty.
func (f *Frontier) Pop() (link models.SiteLink, ok bool) {
	if len(f.h) == 0 {
		return models.SiteLink{}, false
	}
	item := heap.Pop(&f.h).(*frontierItem)
	delete(f.pending, item.link.LinkURL)
	return item.link, true
}

// Len returns the number of pending links
func (f *Frontier) Len() int { return len(f.h) }

// Contains reports whether url is pending
func (f *Frontier) Contains(url string) bool {
	_, ok := f.pending[url]
	return ok
}

// Pending returns the pending links in dispatch order
func (f *Frontier) Pending() []models.SiteLink {
	items := make([]*frontierItem, len(f.h))
	copy(items, f.h)
	sort.Slice(items, func(i, j int) bool { return items[i].seq < items[j].seq })

	links := make([]models.SiteLink, len(items))
	for i, item := range items {
		links[i] = item.link
	}
	return links
}

// Reorder makes ordered the new dispatch order. ordered must contain every
// pending URL exactly once; otherwise ErrNotPermutation is returned and the
// current order is kept.
func (f *Frontier) Reorder(ordered []models.SiteLink) error {
	if len(ordered) != len(f.h) {
		return ErrNotPermutation
	}
	seen := make(map[string]struct{}, len(ordered))
	for _, link := range ordered {
		if _, ok := f.pending[link.LinkURL]; !ok {
			return ErrNotPermutation
		}
		if _, dup := seen[link.LinkURL]; dup {
			return ErrNotPermutation
		}
		seen[link.LinkURL] = struct{}{}
	}

	// Keep the queued values; the sorter only decides order
	byURL := make(map[string]*frontierItem, len(f.h))
	for _, item := range f.h {
		byURL[item.link.LinkURL] = item
	}
	rebuilt := make(frontierHeap, 0, len(ordered))
	for _, link := range ordered {
		item := byURL[link.LinkURL]
		item.seq = f.nextSeq
		item.index = len(rebuilt)
		f.nextSeq++
		rebuilt = append(rebuilt, item)
	}
	f.h = rebuilt
	heap.Init(&f.h)
	return nil
}

// Drain empties the frontier and returns what was pending, in dispatch order
func (f *Frontier) Drain() []models.SiteLink {
	links := f.Pending()
	f.h = nil
	clear(f.pending)
	return links
}
