package devserver

import (
	"errors"
	"sync"
)

// CellType is the kind of cell an edit touches.
type CellType string

const (
	CellNode CellType = "node"
	CellEdge CellType = "edge"
)

// ActionType is the kind of edit.
type ActionType string

const (
	ActionCreate ActionType = "create"
	ActionUpdate ActionType = "update"
	ActionRemove ActionType = "remove"
)

// ErrQueueFull is returned by Enqueue when the queue is at capacity and the
// action does not merge into a pending one.
var ErrQueueFull = errors.New("devserver: pending edit queue is full")

// Action is one editor change: the cell's JSON as the editor last saw it.
type Action struct {
	Type       CellType       `json:"type"`
	ActionType ActionType     `json:"actionType"`
	Data       map[string]any `json:"data"`
}

func (a Action) key() actionKey {
	id, _ := a.Data["id"].(string)
	return actionKey{a.Type, a.ActionType, id}
}

type actionKey struct {
	cell   CellType
	action ActionType
	id     string
}

// valid reports whether the action is worth persisting: any node, or an edge
// connected at both ends.
func (a Action) valid() bool {
	switch a.Type {
	case CellNode:
		return a.Data != nil
	case CellEdge:
		return endpointCell(a.Data, "source") != "" && endpointCell(a.Data, "target") != ""
	default:
		return false
	}
}

func endpointCell(data map[string]any, side string) string {
	end, _ := data[side].(map[string]any)
	cell, _ := end["cell"].(string)
	return cell
}

// Queue holds pending edits in arrival order. An edit with the same cell
// type, action and cell id as a pending one is merged into it and moved to
// the back, so a burst of moves on one node costs one write.
type Queue struct {
	mu    sync.Mutex
	items []Action
	max   int
}

// NewQueue creates a queue holding at most max distinct edits.
func NewQueue(max int) *Queue {
	if max <= 0 {
		max = 1
	}
	return &Queue{max: max}
}

// Enqueue adds a. It reports false for edits that are not persistable.
func (q *Queue) Enqueue(a Action) (bool, error) {
	if !a.valid() {
		return false, nil
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	if i := q.find(a.key()); i >= 0 {
		prev := q.items[i]
		q.items = append(q.items[:i], q.items[i+1:]...)
		a.Data = deepMerge(cloneMap(prev.Data), a.Data)
	} else if len(q.items) >= q.max {
		return false, ErrQueueFull
	}
	q.items = append(q.items, a)
	return true, nil
}

// Drain removes and returns every pending edit.
func (q *Queue) Drain() []Action {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.items
	q.items = nil
	return out
}

// Restore puts a batch that failed to persist back at the front. Edits that
// arrived since are newer and win on merge.
func (q *Queue) Restore(batch []Action) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var front []Action
	for _, a := range batch {
		if i := q.find(a.key()); i >= 0 {
			q.items[i].Data = deepMerge(cloneMap(a.Data), q.items[i].Data)
			continue
		}
		front = append(front, a)
	}
	q.items = append(front, q.items...)
}

// Len returns the number of pending edits.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *Queue) find(k actionKey) int {
	for i, it := range q.items {
		if it.key() == k {
			return i
		}
	}
	return -1
}

// deepMerge copies src into dst, recursing into nested objects. Other values,
// arrays included, are replaced.
func deepMerge(dst, src map[string]any) map[string]any {
	if dst == nil {
		dst = make(map[string]any, len(src))
	}
	for k, v := range src {
		sv, sok := v.(map[string]any)
		dv, dok := dst[k].(map[string]any)
		if sok && dok {
			dst[k] = deepMerge(dv, sv)
			continue
		}
		dst[k] = v
	}
	return dst
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if nested, ok := v.(map[string]any); ok {
			out[k] = cloneMap(nested)
			continue
		}
		out[k] = v
	}
	return out
}
