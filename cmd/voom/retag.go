package main

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/albertocavalcante/go-voom"
)

func newRetagCmd(a *app) *cobra.Command {
	var (
		fetch    bool
		progress bool
	)
	cmd := &cobra.Command{
		Use:   "retag",
		Short: "Tag new descriptor changes in every repository",
		Long: `Scan the commits added to every remote-tracking branch since the last run
and write a tag for each build descriptor change. With --fetch, repositories
are fetched first. A repository that fails does not stop the others.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			repos, err := a.repositories()
			if err != nil {
				return err
			}
			var extra []voom.Option
			if progress {
				var mu sync.Mutex
				extra = append(extra, voom.WithProgress(func(ev voom.ProgressEvent) {
					mu.Lock()
					defer mu.Unlock()
					fmt.Fprintf(a.errOut, "%s %s %s: %d commits, %d tags\n", ev.Stage, ev.Repository, ev.Branch, ev.Commits, ev.Tags)
				}, 2*time.Second))
			}
			opts := a.options(extra...)

			var errs []error
			if fetch {
				if err := voom.FetchAll(cmd.Context(), repos, opts...); err != nil {
					errs = append(errs, err)
				}
			}
			results, err := voom.ScanAll(cmd.Context(), repos, opts...)
			if err != nil {
				errs = append(errs, err)
			}
			var done []*voom.ScanResult
			for _, r := range results {
				if r != nil {
					done = append(done, r)
				}
			}
			if err := a.render(done, func(w io.Writer) error {
				for _, r := range done {
					if _, err := fmt.Fprintf(w, "%s: %d commits, %d tags (%d deletions), %d unreadable\n",
						r.Repository, r.Commits, r.Tags, r.Deletions, r.Unreadable); err != nil {
						return err
					}
				}
				return nil
			}); err != nil {
				return err
			}
			return errors.Join(errs...)
		},
	}
	cmd.Flags().BoolVar(&fetch, "fetch", false, "fetch every repository before scanning")
	cmd.Flags().BoolVar(&progress, "progress", false, "report progress on stderr")
	return cmd
}
