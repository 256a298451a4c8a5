// Package workflow turns a source URL entered by the operator into staged
// services or repositories.
package workflow

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/rs/zerolog"

	"github.com/e2llm/repoconf/pkg/alias"
	"github.com/e2llm/repoconf/pkg/interact"
	"github.com/e2llm/repoconf/pkg/media"
	"github.com/e2llm/repoconf/pkg/products"
	"github.com/e2llm/repoconf/pkg/record"
	"github.com/e2llm/repoconf/pkg/staged"
	"github.com/e2llm/repoconf/pkg/storage"
)

// Outcome is how a run ended.
type Outcome int

const (
	// OK: at least one repository or service was kept.
	OK Outcome = iota
	// Again: nothing was kept; the operator should fix the URL and retry.
	Again
	Abort
	// Next: nothing to do.
	Next
)

func (o Outcome) String() string {
	switch o {
	case OK:
		return "ok"
	case Again:
		return "again"
	case Abort:
		return "abort"
	case Next:
		return "next"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// Backend is the part of the package manager the workflow talks to.
type Backend interface {
	ListRepositories(ctx context.Context) ([]record.Repository, error)
	ProbeService(ctx context.Context, url string) (bool, error)
	ProbeRepository(ctx context.Context, url, dir string) (string, error)
	AddRepository(ctx context.Context, repo record.Repository) (int64, error)
	DeleteRepository(ctx context.Context, id int64) error
	RepositoryLicense(ctx context.Context, id int64) (string, error)
}

// ProductFinder lists the products on an attached medium.
type ProductFinder interface {
	Discover(ctx context.Context, medium storage.Backend, hint string) ([]products.Product, error)
}

type Workflow struct {
	Backend  Backend
	Media    media.Attacher
	Products ProductFinder
	Prompt   interact.Prompter
	Vars     Vars
	// AutorefreshRemote turns autorefresh on for network sources.
	AutorefreshRemote bool
	Logger            zerolog.Logger
}

// Request is one "add source" action.
type Request struct {
	URL  string
	Name string
	// ProductHint puts matching products first in the selection.
	ProductHint string
}

type Result struct {
	Outcome Outcome
	// Service is the alias of the staged service, if one was detected.
	Service string
	// Added lists the ids of the repositories kept.
	Added []int64
	// Err explains an Again or Abort.
	Err error
}

// candidate is a repository about to be created.
type candidate struct {
	name string
	dir  string
	typ  string
}

// Run executes the workflow against s. Repositories are created in the
// backend right away and added to the working copy; a detected service is
// only staged and reaches the backend on the next write.
func (w *Workflow) Run(ctx context.Context, s *staged.Session, req Request) Result {
	u, err := ExpandURL(req.URL, w.Vars)
	if err != nil {
		w.Logger.Warn().Err(err).Str("url", req.URL).Msg("invalid source url")
		return Result{Outcome: Again, Err: err}
	}
	log := w.Logger.With().Str("url", u).Logger()

	isService, err := w.Backend.ProbeService(ctx, u)
	if err != nil {
		log.Debug().Err(err).Msg("service probe failed")
	}
	if isService {
		return w.addService(s, u, req)
	}

	medium, err := w.Media.Attach(ctx, u)
	if err != nil {
		log.Warn().Err(err).Msg("cannot attach medium")
		return Result{Outcome: Again, Err: err}
	}
	defer medium.Release()

	prods, err := w.Products.Discover(ctx, medium, req.ProductHint)
	if err != nil {
		log.Warn().Err(err).Msg("product discovery failed")
		return Result{Outcome: Again, Err: err}
	}

	var chosen []products.Product
	switch len(prods) {
	case 0:
		chosen = []products.Product{{Name: req.Name}}
	case 1:
		chosen = prods
	default:
		sel, ok := w.Prompt.SelectProducts(ctx, prods)
		if !ok {
			return Result{Outcome: Abort}
		}
		if len(sel) == 0 {
			return Result{Outcome: Next}
		}
		for _, i := range sel {
			chosen = append(chosen, prods[i])
		}
	}

	var cands []candidate
	for _, p := range chosen {
		typ, err := w.Backend.ProbeRepository(ctx, u, p.Dir)
		if err != nil {
			log.Debug().Err(err).Str("dir", p.Dir).Msg("repository probe failed")
		}
		if typ == "" {
			if !isDirURL(u) {
				log.Info().Str("dir", p.Dir).Msg("no repository found, skipping product")
				continue
			}
			q := interact.Question{Kind: interact.PlainDirFallback, Subject: record.Join(u, p.Dir)}
			if !w.Prompt.Confirm(ctx, q) {
				return Result{Outcome: Again, Err: fmt.Errorf("no repository at %s", q.Subject)}
			}
			typ = record.TypePlainDir
		}
		name := p.Label()
		if name == "" {
			name = req.Name
		}
		cands = append(cands, candidate{name: name, dir: p.Dir, typ: typ})
	}
	if len(cands) == 0 {
		return Result{Outcome: Again, Err: fmt.Errorf("no repository found at %s", u)}
	}

	added := w.addRepositories(ctx, s, u, cands)
	if len(added) == 0 {
		return Result{Outcome: Again, Err: fmt.Errorf("no repository could be added from %s", u)}
	}
	kept := w.licenseGate(ctx, s, added)
	if len(kept) == 0 {
		return Result{Outcome: Abort, Err: fmt.Errorf("license rejected")}
	}
	return Result{Outcome: OK, Added: kept}
}

func (w *Workflow) addService(s *staged.Session, u string, req Request) Result {
	svc := record.Service{
		Alias:       alias.Propose(preferredName(req.Name, u), s.Services.Aliases()),
		Name:        req.Name,
		URL:         u,
		Enabled:     true,
		Autorefresh: w.AutorefreshRemote && isRemote(u),
		Type:        record.ServiceRIS,
	}
	if svc.Name == "" {
		svc.Name = svc.Alias
	}
	if err := s.Services.Add(svc); err != nil {
		w.Logger.Warn().Err(err).Str("alias", svc.Alias).Msg("cannot stage service")
		return Result{Outcome: Again, Err: err}
	}
	w.Logger.Info().Str("alias", svc.Alias).Str("url", u).Msg("service staged")
	return Result{Outcome: OK, Service: svc.Alias}
}

// takenAliases lists the aliases a new repository must avoid: the working
// copy, the baseline (pending deletes are still in the backend) and
// whatever the backend holds now.
func (w *Workflow) takenAliases(ctx context.Context, s *staged.Session) []string {
	taken := s.Repos.Aliases()
	for _, r := range s.Repos.Baseline() {
		taken = append(taken, r.Alias)
	}
	live, err := w.Backend.ListRepositories(ctx)
	if err != nil {
		w.Logger.Warn().Err(err).Msg("cannot list live repositories for alias allocation")
	}
	for _, r := range live {
		taken = append(taken, r.Alias)
	}
	return taken
}

func (w *Workflow) addRepositories(ctx context.Context, s *staged.Session, u string, cands []candidate) []int64 {
	var added []int64
	taken := w.takenAliases(ctx, s)
	for _, c := range cands {
		repo := record.Repository{
			Alias:       alias.Propose(preferredName(c.name, record.Join(u, c.dir)), taken),
			Name:        c.name,
			Enabled:     true,
			Autorefresh: w.AutorefreshRemote && isRemote(u),
			Priority:    record.DefaultPriority,
			URL:         u,
			ProductDir:  c.dir,
			Type:        c.typ,
		}
		if repo.Name == "" {
			repo.Name = repo.Alias
		}
		if err := repo.Validate(); err != nil {
			w.Logger.Warn().Err(err).Str("alias", repo.Alias).Msg("invalid repository")
			continue
		}
		id, err := w.Backend.AddRepository(ctx, repo)
		if err != nil {
			w.Logger.Error().Err(err).Str("alias", repo.Alias).Msg("add repository failed")
			continue
		}
		repo.ID = id
		if err := s.Repos.Add(repo); err != nil {
			w.Logger.Error().Err(err).Str("alias", repo.Alias).Msg("cannot stage repository, removing it again")
			if err := w.Backend.DeleteRepository(ctx, id); err != nil {
				w.Logger.Error().Err(err).Int64("id", id).Msg("delete repository failed")
			}
			continue
		}
		w.Logger.Info().Int64("id", id).Str("alias", repo.Alias).Str("type", repo.Type).Msg("repository added")
		taken = append(taken, repo.Alias)
		added = append(added, id)
	}
	return added
}

// licenseGate asks for every repository that ships a license. Rejected
// repositories are removed again.
func (w *Workflow) licenseGate(ctx context.Context, s *staged.Session, ids []int64) []int64 {
	var kept []int64
	for _, id := range ids {
		repo, _ := s.Repos.Get(id)
		text, err := w.Backend.RepositoryLicense(ctx, id)
		if err != nil {
			w.Logger.Warn().Err(err).Str("alias", repo.Alias).Msg("cannot read license")
		}
		if text == "" || w.Prompt.AcceptLicense(ctx, repo.Alias, text) {
			kept = append(kept, id)
			continue
		}
		w.Logger.Info().Str("alias", repo.Alias).Msg("license rejected, removing repository")
		if err := w.Backend.DeleteRepository(ctx, id); err != nil {
			w.Logger.Error().Err(err).Str("alias", repo.Alias).Msg("delete repository failed")
		}
		s.Repos.Forget(id)
	}
	return kept
}

func isDirURL(u string) bool {
	return strings.HasPrefix(u, "dir:")
}

func isRemote(u string) bool {
	parsed, err := url.Parse(u)
	if err != nil {
		return false
	}
	switch parsed.Scheme {
	case "http", "https", "ftp", "s3":
		return true
	}
	return false
}

// preferredName is name, or the last path element or host of u.
func preferredName(name, u string) string {
	if strings.TrimSpace(name) != "" {
		return name
	}
	parsed, err := url.Parse(u)
	if err != nil {
		return ""
	}
	if base := path.Base(strings.TrimSuffix(parsed.Path, "/")); base != "." && base != "/" && base != "" {
		return base
	}
	return parsed.Host
}
