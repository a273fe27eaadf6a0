// Package ancestry provides an append-only reachability index over a commit
// DAG.
//
// Every commit is assigned a position in insertion order, and stores the set
// of positions of all of its ancestors (itself included) as a bitset. Because
// a commit can only be added after all of its parents, insertion order is a
// topological order and a commit's set is simply its own bit united with the
// sets of its parents.
//
// # Building an Index
//
// Commits must be added oldest-first, as produced by
// `git log --reverse --topo-order`:
//
//	idx := ancestry.New()
//	for _, c := range commits {
//		if err := idx.Add(c.SHA, c.Parents...); err != nil {
//			return err
//		}
//	}
//
// # Queries
//
//	idx.IsAncestor(a, b)              // a reaches b (reflexive)
//	idx.AncestorsAmong(tip, tagged)   // which tagged commits are behind tip
//	idx.SuccessorsAmong(base, branch) // which branch commits come after base
//
// # Cost
//
// Answers are exact. The price is O(N) bits per commit and O(N²) bits in
// total, which is fine for repositories with up to a few hundred thousand
// commits. Queries never copy the stored sets to the caller.
package ancestry
