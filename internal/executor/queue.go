package executor

import (
	"container/heap"

	"github.com/asgard/openeyes/internal/guidance"
	"github.com/asgard/openeyes/internal/snapshot"
)

// pendingMessage is one queued Normal/Info-priority instruction awaiting
// the speech collaborator to free up.
type pendingMessage struct {
	instruction guidance.Instruction
	snapshot    snapshot.Snapshot
	priority    SpeechPriority
	seq         int
}

func priorityRank(p SpeechPriority) int {
	switch p {
	case PriorityUrgent:
		return 0
	case PriorityNormal:
		return 1
	default:
		return 2
	}
}

// messageQueue is a priority queue (highest priority, then FIFO, first)
// implementing container/heap.Interface.
type messageQueue []*pendingMessage

func (q messageQueue) Len() int { return len(q) }
func (q messageQueue) Less(i, j int) bool {
	ri, rj := priorityRank(q[i].priority), priorityRank(q[j].priority)
	if ri != rj {
		return ri < rj
	}
	return q[i].seq < q[j].seq
}
func (q messageQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *messageQueue) Push(x any) {
	*q = append(*q, x.(*pendingMessage))
}

func (q *messageQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}

func newMessageQueue() *messageQueue {
	q := &messageQueue{}
	heap.Init(q)
	return q
}

func (q *messageQueue) enqueue(m *pendingMessage) {
	heap.Push(q, m)
}

func (q *messageQueue) dequeue() (*pendingMessage, bool) {
	if q.Len() == 0 {
		return nil, false
	}
	return heap.Pop(q).(*pendingMessage), true
}
