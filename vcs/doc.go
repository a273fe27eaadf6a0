// Package vcs drives the git executable on behalf of voom.
//
// A [Runner] executes git under a bounded timeout and turns failures into
// typed errors ([CommandError], [TimeoutError]). A [Repo] is a handle to one
// local clone: it reads history through [Repo.Log], reads blobs, lists and
// writes tags, and serializes the operations that touch the working tree.
//
// History is consumed as a stream:
//
//	s, err := repo.Log(ctx, vcs.LogOptions{Revs: []string{"origin/main"}, Reverse: true})
//	if err != nil {
//		return err
//	}
//	defer s.Close()
//	for s.Next() {
//		c := s.Commit()
//		...
//	}
//	return s.Err()
package vcs
