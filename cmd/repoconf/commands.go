package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/e2llm/repoconf/pkg/editscript"
	"github.com/e2llm/repoconf/pkg/interact"
	"github.com/e2llm/repoconf/pkg/record"
	"github.com/e2llm/repoconf/pkg/workflow"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured repositories and services",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()
			format, _ := cmd.Flags().GetString("output")
			return a.list(cmd.Context(), format)
		},
	}
}

type listing struct {
	Repositories []record.Repository `json:"repositories"`
	Services     []record.Service    `json:"services"`
}

func (a *app) list(ctx context.Context, format string) error {
	repos, err := a.mgr.ListRepositories(ctx)
	if err != nil {
		return err
	}
	services, err := a.mgr.ListServices(ctx)
	if err != nil {
		return err
	}
	switch format {
	case "text":
		writeRepositories(a.out, repos)
		if len(services) > 0 {
			fmt.Fprintln(a.out)
			writeServices(a.out, services)
		}
	case "json":
		if err := json.NewEncoder(a.out).Encode(listing{Repositories: repos, Services: services}); err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
	return nil
}

func writeRepositories(w io.Writer, repos []record.Repository) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tALIAS\tNAME\tENABLED\tAUTOREFRESH\tPRIORITY\tSERVICE\tURL")
	for _, r := range repos {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			r.ID, r.Alias, r.Name, yesNo(r.Enabled), yesNo(r.Autorefresh), r.Priority, r.ServiceAlias, record.Join(r.URL, r.ProductDir))
	}
	tw.Flush()
}

func writeServices(w io.Writer, services []record.Service) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SERVICE\tNAME\tTYPE\tENABLED\tAUTOREFRESH\tURL")
	for _, s := range services {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", s.Alias, s.Name, s.Type, yesNo(s.Enabled), yesNo(s.Autorefresh), s.URL)
	}
	tw.Flush()
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

// prompter answers questions on the terminal, or with yes to everything
// when assumeYes is set.
func prompter(cmd *cobra.Command, assumeYes bool) interact.Prompter {
	if assumeYes {
		return &interact.Scripted{
			Answers:        map[interact.Kind]bool{interact.PlainDirFallback: true},
			AcceptLicenses: true,
			SelectAll:      true,
		}
	}
	return interact.NewTerminal(cmd.InOrStdin(), cmd.OutOrStdout())
}

func newAddCmd() *cobra.Command {
	var name, product string
	var assumeYes bool
	cmd := &cobra.Command{
		Use:   "add <url>",
		Short: "Add the repositories or service found at a URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()
			ctx := cmd.Context()
			s, err := a.session(ctx)
			if err != nil {
				return err
			}
			prompt := prompter(cmd, assumeYes)
			res := a.workflow(prompt).Run(ctx, s, workflow.Request{URL: args[0], Name: name, ProductHint: product})
			switch res.Outcome {
			case workflow.Next:
				fmt.Fprintln(a.out, "nothing to add")
				return nil
			case workflow.Again:
				return fmt.Errorf("cannot use %s: %w", args[0], res.Err)
			case workflow.Abort:
				return errors.New("aborted")
			}
			if err := a.commit(ctx, s, retryPrompt(prompt, assumeYes)); err != nil {
				return err
			}
			if res.Service != "" {
				fmt.Fprintf(a.out, "added service %s\n", res.Service)
			}
			for _, id := range res.Added {
				if r, ok := s.Repos.Get(id); ok {
					fmt.Fprintf(a.out, "added repository %s\n", r.Alias)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "name of the new repository or service")
	cmd.Flags().StringVar(&product, "product", "", "list products matching this name first")
	cmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "accept licenses and plain directories without asking")
	return cmd
}

// retryPrompt disables retry questions for unattended runs.
func retryPrompt(p interact.Prompter, assumeYes bool) interact.Prompter {
	if assumeYes {
		return nil
	}
	return p
}

func newApplyCmd() *cobra.Command {
	var assumeYes bool
	cmd := &cobra.Command{
		Use:   "apply <script.yaml|->",
		Short: "Apply a YAML edit script and write the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var in io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			sc, err := editscript.Parse(in)
			if err != nil {
				return err
			}

			a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()
			ctx := cmd.Context()
			s, err := a.session(ctx)
			if err != nil {
				return err
			}
			prompt := prompter(cmd, assumeYes)
			res, applyErr := editscript.Apply(ctx, s, sc, a.workflow(prompt))
			fmt.Fprintf(a.out, "%d operations applied, %d failed\n", res.Applied, res.Failed)
			if err := a.commit(ctx, s, retryPrompt(prompt, assumeYes)); err != nil {
				return errors.Join(applyErr, err)
			}
			return applyErr
		},
	}
	cmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "accept licenses and plain directories without asking")
	return cmd
}

func newRefreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh [alias...]",
		Short: "Refresh repository metadata (all enabled repositories without arguments)",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()
			if len(args) == 0 {
				return a.refreshEnabled(cmd.Context())
			}
			return a.refreshAliases(cmd.Context(), args)
		},
	}
}

func (a *app) refreshEnabled(ctx context.Context) error {
	report := a.engine.RefreshEnabled(ctx)
	fmt.Fprintf(a.out, "%d repositories refreshed\n", len(report.Refreshed))
	return report.Err
}

// refreshAliases stages a refresh of each alias and writes it.
func (a *app) refreshAliases(ctx context.Context, aliases []string) error {
	s, err := a.session(ctx)
	if err != nil {
		return err
	}
	for _, al := range aliases {
		r, ok := s.Repos.ByAlias(al)
		if !ok {
			return fmt.Errorf("unknown repository %q", al)
		}
		if err := s.Repos.SetDoRefresh(r.ID, true); err != nil {
			return err
		}
	}
	return a.commit(ctx, s, nil)
}

func newPackagesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "packages <alias>",
		Short: "Show the cached package list of a repository",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()
			return a.packages(cmd.Context(), args[0])
		},
	}
}

func (a *app) packages(ctx context.Context, alias string) error {
	if a.cache == nil {
		return errors.New("no package cache configured")
	}
	st, ok, err := a.cache.Status(ctx, alias)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s has not been refreshed", alias)
	}
	pkgs, err := a.cache.Packages(ctx, alias)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s: revision %s, %d packages, refreshed %s\n", alias, st.Revision, st.Packages, st.RefreshedAt.Format("2006-01-02 15:04"))
	for _, p := range pkgs {
		fmt.Fprintln(a.out, p.NEVRA())
	}
	return nil
}

func newKeysCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keys",
		Short: "List trusted repository signing keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()
			for _, fp := range a.keys.Trusted() {
				fmt.Fprintln(a.out, fp)
			}
			return nil
		},
	}
}
