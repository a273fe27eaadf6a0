package ancestry

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/bits-and-blooms/bitset"
)

// ErrUnknownParent indicates a commit was added before one of its parents.
var ErrUnknownParent = errors.New("unknown parent")

// UnknownParentError is returned by [Index.Add] when a parent id has not been
// added yet.
type UnknownParentError struct {
	ID     string
	Parent string
}

func (e *UnknownParentError) Error() string {
	return fmt.Sprintf("commit %s: parent %s is not in the index", e.ID, e.Parent)
}

func (e *UnknownParentError) Unwrap() error {
	return ErrUnknownParent
}

// Index answers reachability queries over the commits added to it.
// It is safe for concurrent use.
type Index struct {
	mu      sync.RWMutex
	pos     map[string]uint
	ids     []string
	parents [][]string
	sets    []*bitset.BitSet
}

// New returns an empty Index.
func New() *Index {
	return &Index{pos: make(map[string]uint)}
}

// Add appends a commit whose parents are already in the index.
//
// Adding an id again with the same parents is a no-op. Adding it with
// different parents, or adding an empty id, panics: both mean the caller is
// feeding inconsistent history.
func (idx *Index) Add(id string, parents ...string) error {
	if id == "" {
		panic("ancestry: empty commit id")
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if p, ok := idx.pos[id]; ok {
		if !sameParents(idx.parents[p], parents) {
			panic(fmt.Sprintf("ancestry: commit %s re-added with parents %v, previously %v", id, parents, idx.parents[p]))
		}
		return nil
	}

	n := uint(len(idx.ids))
	set := bitset.New(n + 1)
	for _, parent := range parents {
		pp, ok := idx.pos[parent]
		if !ok {
			return &UnknownParentError{ID: id, Parent: parent}
		}
		set.InPlaceUnion(idx.sets[pp])
	}
	set.Set(n)

	idx.pos[id] = n
	idx.ids = append(idx.ids, id)
	idx.parents = append(idx.parents, slices.Clone(parents))
	idx.sets = append(idx.sets, set)
	return nil
}

func sameParents(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	x, y := slices.Clone(a), slices.Clone(b)
	slices.Sort(x)
	slices.Sort(y)
	return slices.Equal(x, y)
}

// Len returns the number of commits in the index.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.ids)
}

// Has reports whether id has been added.
func (idx *Index) Has(id string) bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	_, ok := idx.pos[id]
	return ok
}

// Position returns the insertion position of id. Positions are a topological
// order: a commit's position is greater than those of all its ancestors.
func (idx *Index) Position(id string) (int, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	p, ok := idx.pos[id]
	return int(p), ok
}

// Parents returns the parents id was added with.
func (idx *Index) Parents(id string) []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	p, ok := idx.pos[id]
	if !ok {
		return nil
	}
	return slices.Clone(idx.parents[p])
}

// IsAncestor reports whether x is reachable from y by following parent
// links. Every commit is its own ancestor. Unknown ids are never ancestors.
func (idx *Index) IsAncestor(x, y string) bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	px, ok := idx.pos[x]
	if !ok {
		return false
	}
	py, ok := idx.pos[y]
	if !ok {
		return false
	}
	return idx.sets[py].Test(px)
}

// Ancestors returns every ancestor of node, node included, oldest first.
func (idx *Index) Ancestors(node string) []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	p, ok := idx.pos[node]
	if !ok {
		return nil
	}
	return idx.members(idx.sets[p])
}

// AncestorsAmong returns the candidates that are ancestors of node, oldest
// first and without duplicates. Unknown candidates are ignored.
func (idx *Index) AncestorsAmong(node string, candidates []string) []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	p, ok := idx.pos[node]
	if !ok {
		return nil
	}
	mask := bitset.New(uint(len(idx.ids)))
	for _, c := range candidates {
		if pc, ok := idx.pos[c]; ok {
			mask.Set(pc)
		}
	}
	return idx.members(idx.sets[p].Intersection(mask))
}

// SuccessorsAmong returns the candidates that have node as an ancestor, in
// the order given. node itself qualifies if it is a candidate.
func (idx *Index) SuccessorsAmong(node string, candidates []string) []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	p, ok := idx.pos[node]
	if !ok {
		return nil
	}
	var out []string
	for _, c := range candidates {
		if pc, ok := idx.pos[c]; ok && idx.sets[pc].Test(p) {
			out = append(out, c)
		}
	}
	return out
}

// Frontier returns the members of ids that are not strict ancestors of any
// other member, oldest first. For a set of commits on one line of history it
// is the single newest commit.
func (idx *Index) Frontier(ids []string) []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	members := bitset.New(uint(len(idx.ids)))
	for _, id := range ids {
		if p, ok := idx.pos[id]; ok {
			members.Set(p)
		}
	}
	var out []string
	for i, ok := members.NextSet(0); ok; i, ok = members.NextSet(i + 1) {
		dominated := false
		for j, ok := members.NextSet(i + 1); ok; j, ok = members.NextSet(j + 1) {
			if idx.sets[j].Test(i) {
				dominated = true
				break
			}
		}
		if !dominated {
			out = append(out, idx.ids[i])
		}
	}
	return out
}

// members lists the ids whose positions are set in s, in position order.
// Callers hold idx.mu.
func (idx *Index) members(s *bitset.BitSet) []string {
	var out []string
	for i, ok := s.NextSet(0); ok; i, ok = s.NextSet(i + 1) {
		out = append(out, idx.ids[i])
	}
	return out
}
