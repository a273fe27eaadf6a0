package main

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/albertocavalcante/go-voom"
	"github.com/albertocavalcante/go-voom/label"
	"github.com/albertocavalcante/go-voom/manifest"
	"github.com/albertocavalcante/go-voom/vcs"
)

func newVersionCmd(a *app) *cobra.Command {
	var (
		manifestPath string
		long         bool
	)
	cmd := &cobra.Command{
		Use:   "version [dir]",
		Short: "Print the qualified version of a checkout's own project",
		Long: `Print the version declared by the checkout's build descriptor, qualified
with the time and sha of HEAD. The descriptor is read as committed at HEAD.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			rel, err := manifestIn(dir, manifestPath)
			if err != nil {
				return err
			}
			repo := voom.GitRepository(vcs.Open(dir, a.runner()))
			v, err := voom.SelfVersion(cmd.Context(), repo, rel, a.options(voom.WithLongSHA(long))...)
			if err != nil {
				return err
			}
			return a.render(map[string]string{"version": v}, func(w io.Writer) error {
				_, err := fmt.Fprintln(w, v)
				return err
			})
		},
	}
	cmd.Flags().StringVar(&manifestPath, "manifest", "", "descriptor path relative to dir (default: first one found)")
	cmd.Flags().BoolVar(&long, "long", false, "use the full commit sha")
	return cmd
}

// manifestIn returns the descriptor path relative to dir.
func manifestIn(dir, given string) (string, error) {
	if given != "" {
		return filepath.ToSlash(filepath.Clean(given)), nil
	}
	found, _, err := manifest.NewReader().Find(dir)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(dir, found)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}

type parsedVersion struct {
	Base string `json:"base" yaml:"base"`
	Time string `json:"time" yaml:"time"`
	SHA  string `json:"sha" yaml:"sha"`
}

func newParseVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "parse-version <version>",
		Short: "Split a qualified version into base version, commit time and sha",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := label.ParseVersion(args[0])
			if err != nil {
				return err
			}
			p := parsedVersion{Base: v.Base, Time: v.Time.UTC().Format("2006-01-02T15:04:05Z"), SHA: v.SHA}
			return a.render(p, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "%s\t%s\t%s\n", p.Base, p.Time, p.SHA)
				return err
			})
		},
	}
}
