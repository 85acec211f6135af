package scheduler

import (
	"github.com/google/btree"
	"github.com/libp2p/go-libp2p-core/peer"
)

const defaultTreeDegree = 2

var _ btree.LessFunc[*entry] = (*entry).Less

// entry is a queued node. Seq is the logical time the node (re-)entered the queue.
type entry struct {
	seq uint64
	id  peer.ID
}

// Less orders entries by logical entry time, then by node id.
func (e *entry) Less(than *entry) bool {
	if e.seq != than.seq {
		return e.seq < than.seq
	}
	return e.id < than.id
}

type queue struct {
	tree    *btree.BTreeG[*entry]
	entries map[peer.ID]*entry
}

func newQueue() *queue {
	return &queue{
		tree:    btree.NewG(defaultTreeDegree, (*entry).Less),
		entries: make(map[peer.ID]*entry),
	}
}

// push enqueues id at seq. A node that is already queued keeps its place.
func (q *queue) push(id peer.ID, seq uint64) bool {
	if _, ok := q.entries[id]; ok {
		return false
	}
	e := &entry{seq: seq, id: id}
	q.entries[id] = e
	q.tree.ReplaceOrInsert(e)
	return true
}

func (q *queue) remove(id peer.ID) bool {
	e, ok := q.entries[id]
	if !ok {
		return false
	}
	q.tree.Delete(e)
	delete(q.entries, id)
	return true
}

func (q *queue) pop() (peer.ID, bool) {
	e, ok := q.tree.DeleteMin()
	if !ok {
		return "", false
	}
	delete(q.entries, e.id)
	return e.id, true
}

func (q *queue) contains(id peer.ID) bool {
	_, ok := q.entries[id]
	return ok
}

func (q *queue) len() int {
	return q.tree.Len()
}

// ordered returns the queued ids, head first.
func (q *queue) ordered() []peer.ID {
	result := make([]peer.ID, 0, q.tree.Len())
	q.tree.Ascend(func(e *entry) bool {
		result = append(result, e.id)
		return true
	})
	return result
}
