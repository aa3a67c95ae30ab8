package index

// topKHeap is a fixed-capacity heap that keeps the k best candidates seen so
// far. The worst retained candidate sits at the root, so replacing it is O(log k)
// with no allocations after construction.
//
// "Worse" means lower score, or equal score with a larger id, which gives the
// deterministic descending-score, ascending-id result order.
type topKHeap struct {
	items []Candidate
	size  int
	cap   int
}

func newTopKHeap(capacity int) *topKHeap {
	return &topKHeap{
		items: make([]Candidate, capacity),
		cap:   capacity,
	}
}

// worse reports whether a ranks below b.
func worse(a, b Candidate) bool {
	if a.Score != b.Score {
		return a.Score < b.Score
	}
	return a.ID > b.ID
}

// Offer considers a candidate, keeping it only if it beats the current worst
// (or the heap is not yet full).
func (h *topKHeap) Offer(c Candidate) {
	if h.cap == 0 {
		return
	}
	if h.size < h.cap {
		h.items[h.size] = c
		h.size++
		h.bubbleUp(h.size - 1)
		return
	}
	if worse(c, h.items[0]) {
		return
	}
	h.items[0] = c
	h.bubbleDown(0)
}

func (h *topKHeap) Len() int {
	return h.size
}

// Drain empties the heap into a slice ordered best-first.
func (h *topKHeap) Drain() []Candidate {
	out := make([]Candidate, h.size)
	for i := h.size - 1; i >= 0; i-- {
		out[i] = h.pop()
	}
	return out
}

func (h *topKHeap) pop() Candidate {
	worst := h.items[0]
	h.size--
	if h.size > 0 {
		h.items[0] = h.items[h.size]
		h.bubbleDown(0)
	}
	return worst
}

func (h *topKHeap) bubbleUp(idx int) {
	for idx > 0 {
		parent := (idx - 1) / 2
		if !worse(h.items[idx], h.items[parent]) {
			break
		}
		h.items[idx], h.items[parent] = h.items[parent], h.items[idx]
		idx = parent
	}
}

func (h *topKHeap) bubbleDown(idx int) {
	for {
		left := 2*idx + 1
		right := 2*idx + 2
		worst := idx

		if left < h.size && worse(h.items[left], h.items[worst]) {
			worst = left
		}
		if right < h.size && worse(h.items[right], h.items[worst]) {
			worst = right
		}
		if worst == idx {
			break
		}
		h.items[idx], h.items[worst] = h.items[worst], h.items[idx]
		idx = worst
	}
}
