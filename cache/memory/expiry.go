package memory

// expiryQueue is a min-heap of TTL-bearing entries ordered by expiresAt.
// Entries track their own heap index so overwrites and deletes can fix or
// remove them in place instead of leaving stale timers behind.
type expiryQueue []*entry

func (q expiryQueue) Len() int { return len(q) }

func (q expiryQueue) Less(i, j int) bool { return q[i].expiresAt.Before(q[j].expiresAt) }

func (q expiryQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].heapIndex = i
	q[j].heapIndex = j
}

func (q *expiryQueue) Push(x any) {
	ent := x.(*entry)
	ent.heapIndex = len(*q)
	*q = append(*q, ent)
}

func (q *expiryQueue) Pop() any {
	old := *q
	n := len(old)
	ent := old[n-1]
	old[n-1] = nil
	ent.heapIndex = -1
	*q = old[:n-1]
	return ent
}
