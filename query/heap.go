package query

import (
	"sync"

	"github.com/o0olele/quadnav/graph"
)

// heapNode is an open-list entry. A node may be queued more than once; the
// stale entries are skipped when popped.
type heapNode struct {
	node   graph.Node
	fScore float32
	seq    uint64
	index  int
}

// nodeHeap is the heap for the A* algorithm
type nodeHeap []*heapNode

func (h nodeHeap) Len() int { return len(h) }

// Less orders by f, then by insertion so equal f pops first-in first-out.
func (h nodeHeap) Less(i, j int) bool {
	if h[i].fScore != h[j].fScore {
		return h[i].fScore < h[j].fScore
	}
	return h[i].seq < h[j].seq
}

func (h nodeHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

// Push pushes a new node to the heap
func (h *nodeHeap) Push(x any) {
	n := len(*h)
	item := x.(*heapNode)
	item.index = n
	*h = append(*h, item)
}

// Pop pops a node from the heap
func (h *nodeHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*h = old[0 : n-1]
	return item
}

// Clear returns every queued entry to the pool.
func (h *nodeHeap) Clear() {
	for _, node := range *h {
		releaseHeapNode(node)
	}
	*h = (*h)[:0]
}

var heapNodePool = sync.Pool{
	New: func() any {
		return &heapNode{index: -1}
	},
}

func newHeapNode(node graph.Node, fScore float32, seq uint64) *heapNode {
	item := heapNodePool.Get().(*heapNode)
	item.node = node
	item.fScore = fScore
	item.seq = seq
	item.index = -1
	return item
}

func releaseHeapNode(item *heapNode) {
	item.node = nil
	heapNodePool.Put(item)
}
