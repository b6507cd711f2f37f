package game

import "container/heap"

// SearchNode represents a node in the A* search graph.
type SearchNode struct {
	State     *WorldState // The world at this node, including the action log that led here
	Key       string      // State.Key(), computed once
	Cost      float64     // "g(n)": path cost from the start
	Heuristic float64     // "h(n)": estimated cost remaining
	Priority  float64     // "f(n)": g + h. This is what the queue sorts by.
	Seq       int         // insertion order
	ParentSeq int         // expansion order of the parent, -1 for the root
	index     int         // The index of the item in the heap.
}

// PriorityQueue implements a min-heap for SearchNodes.
//
// Ties on f are broken by lower h, then by the most recently expanded parent, then by
// earlier insertion, so the pop order only depends on node fields.
type PriorityQueue []*SearchNode

// Len returns the length of the priority queue.
func (pq PriorityQueue) Len() int { return len(pq) }

// Less compares two SearchNodes based on their priority.
func (pq PriorityQueue) Less(i, j int) bool {
	a, b := pq[i], pq[j]
	if a.Priority != b.Priority {
		return a.Priority < b.Priority
	}
	if a.Heuristic != b.Heuristic {
		return a.Heuristic < b.Heuristic
	}
	if a.ParentSeq != b.ParentSeq {
		return a.ParentSeq > b.ParentSeq
	}
	return a.Seq < b.Seq
}

// Swap swaps two SearchNodes in the priority queue.
func (pq PriorityQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index = i
	pq[j].index = j
}

// Push adds a SearchNode to the priority queue.
func (pq *PriorityQueue) Push(x any) {
	n := len(*pq)
	item := x.(*SearchNode)
	item.index = n
	*pq = append(*pq, item)
}

// Pop removes and returns the best SearchNode from the priority queue.
func (pq *PriorityQueue) Pop() any {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil  // avoid memory leak
	item.index = -1 // for safety
	*pq = old[0 : n-1]
	return item
}

// update re-points an open node at a cheaper path to the same state.
func (pq *PriorityQueue) update(item *SearchNode, state *WorldState, parentSeq int, cost, priority float64) {
	item.State = state
	item.ParentSeq = parentSeq
	item.Cost = cost
	item.Priority = priority
	heap.Fix(pq, item.index)
}
