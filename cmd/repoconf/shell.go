package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/e2llm/repoconf/pkg/guard"
	"github.com/e2llm/repoconf/pkg/interact"
	"github.com/e2llm/repoconf/pkg/record"
	"github.com/e2llm/repoconf/pkg/staged"
	"github.com/e2llm/repoconf/pkg/workflow"
)

const shellHelp = `Commands:
  list                              show the staged repositories and services
  add <url> [name]                  add repositories or a service from a URL
  enable|disable <alias>            toggle a repository
  priority <alias> <n>              set a repository priority (0..200)
  set <alias> <field> <value>       set enabled, autorefresh, priority, keep_packages, name, url or refresh
  refresh <alias>                   refresh the repository on the next write
  delete <alias>                    delete a repository
  service-enable|service-disable <alias>
  service-delete <alias>            delete a service and its repositories
  write                             write all staged changes
  discard                           drop all staged changes
  quit                              leave, discarding unwritten changes
`

var errQuit = errors.New("quit")

// shell is the interactive editor. Edits are staged in one session and
// reach the backend only on write.
type shell struct {
	app  *app
	term *interact.Terminal
	s    *staged.Session
}

func newShell(a *app, term *interact.Terminal) *shell {
	return &shell{app: a, term: term}
}

func (sh *shell) run(ctx context.Context) error {
	s, err := sh.app.session(ctx)
	if err != nil {
		return err
	}
	sh.s = s
	fmt.Fprintln(sh.app.out, `repoconf: type "help" for commands`)
	for {
		line, ok := sh.term.Line(ctx, "repoconf> ")
		if !ok {
			return ctx.Err()
		}
		err := sh.exec(ctx, line)
		if errors.Is(err, errQuit) {
			return nil
		}
		if err != nil {
			fmt.Fprintf(sh.app.out, "error: %v\n", err)
		}
	}
}

func (sh *shell) exec(ctx context.Context, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	cmd, args := fields[0], fields[1:]
	switch cmd {
	case "help", "?":
		fmt.Fprint(sh.app.out, shellHelp)
		return nil
	case "quit", "exit", "q":
		return errQuit
	case "list", "ls":
		if err := sh.app.engine.Adopt(ctx, sh.s); err != nil {
			return err
		}
		writeRepositories(sh.app.out, sh.s.Repos.Working())
		if svcs := sh.s.Services.Working(); len(svcs) > 0 {
			fmt.Fprintln(sh.app.out)
			writeServices(sh.app.out, svcs)
		}
		return nil
	case "add":
		if len(args) < 1 || len(args) > 2 {
			return errors.New("usage: add <url> [name]")
		}
		req := workflow.Request{URL: args[0]}
		if len(args) == 2 {
			req.Name = args[1]
		}
		return sh.add(ctx, req)
	case "enable", "disable":
		return sh.withRepo(args, 1, func(r record.Repository) error {
			return sh.s.Repos.SetEnabled(r.ID, cmd == "enable")
		})
	case "priority":
		return sh.withRepo(args, 2, func(r record.Repository) error {
			p, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("priority: %w", err)
			}
			return sh.s.Repos.SetPriority(r.ID, p)
		})
	case "set":
		return sh.withRepo(args, 3, func(r record.Repository) error {
			return sh.s.Repos.SetField(r.ID, staged.Field(args[1]), strings.Join(args[2:], " "))
		})
	case "refresh":
		return sh.withRepo(args, 1, func(r record.Repository) error {
			return sh.s.Repos.SetDoRefresh(r.ID, true)
		})
	case "delete", "rm":
		return sh.withRepo(args, 1, func(r record.Repository) error {
			if !sh.term.Confirm(ctx, interact.Question{Kind: interact.ConfirmDelete, Subject: r.Alias}) {
				return nil
			}
			return sh.s.Repos.Delete(r.ID)
		})
	case "service-enable", "service-disable":
		if len(args) != 1 {
			return fmt.Errorf("usage: %s <alias>", cmd)
		}
		return sh.denied(sh.s.Services.SetEnabled(args[0], cmd == "service-enable"))
	case "service-delete":
		if len(args) != 1 {
			return errors.New("usage: service-delete <alias>")
		}
		if !sh.term.Confirm(ctx, interact.Question{Kind: interact.ConfirmDelete, Subject: args[0]}) {
			return nil
		}
		return sh.denied(sh.s.Services.Delete(args[0]))
	case "write":
		if err := sh.app.commit(ctx, sh.s, sh.term); err != nil {
			return err
		}
		fmt.Fprintln(sh.app.out, "written")
		return nil
	case "discard":
		sh.s.Discard()
		return nil
	}
	return fmt.Errorf("unknown command %q (try help)", cmd)
}

// withRepo resolves args[0] to a working repository and calls fn. Guard
// refusals are shown with their canned message.
func (sh *shell) withRepo(args []string, n int, fn func(record.Repository) error) error {
	if len(args) < n {
		return errors.New("missing arguments (try help)")
	}
	r, ok := sh.s.Repos.ByAlias(args[0])
	if !ok {
		return fmt.Errorf("unknown repository %q", args[0])
	}
	return sh.denied(fn(r))
}

// denied prints a guard refusal as its canned message and swallows it.
func (sh *shell) denied(err error) error {
	var v *guard.Violation
	if errors.As(err, &v) {
		fmt.Fprintln(sh.app.out, v.Error())
		return nil
	}
	return err
}

func (sh *shell) add(ctx context.Context, req workflow.Request) error {
	res := sh.app.workflow(sh.term).Run(ctx, sh.s, req)
	switch res.Outcome {
	case workflow.OK:
		if res.Service != "" {
			fmt.Fprintf(sh.app.out, "staged service %s\n", res.Service)
		}
		for _, id := range res.Added {
			if r, ok := sh.s.Repos.Get(id); ok {
				fmt.Fprintf(sh.app.out, "added repository %s\n", r.Alias)
			}
		}
		return nil
	case workflow.Next:
		fmt.Fprintln(sh.app.out, "nothing added")
		return nil
	case workflow.Abort:
		fmt.Fprintln(sh.app.out, "aborted")
		return nil
	}
	if res.Err != nil {
		return fmt.Errorf("cannot use %s: %w", req.URL, res.Err)
	}
	return fmt.Errorf("cannot use %s", req.URL)
}
