// Package usersync keeps the identity provider in line with the local users
// and offers user management that writes to both sides.
package usersync

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	"geoadmin-control/internal/db/repository"
	"geoadmin-control/internal/domain"
	"geoadmin-control/internal/reconcile"
)

// Job is the name of the job in logs and metrics.
const Job = "cognito-sync"

// ClearPrompt is shown before all remote managed users are deleted.
const ClearPrompt = "This deletes every managed user from the identity provider. Type 'yes' to continue: "

// Options control a sync run.
type Options struct {
	Clear  bool
	DryRun bool
}

// Service synchronises local users to the remote directory.
type Service struct {
	users   domain.UserRepository
	dir     domain.Directory
	confirm func(prompt string) bool
	logger  *slog.Logger
}

// New creates a Service. confirm is asked before a clear and must return true
// only for an explicit "yes".
func New(db *sql.DB, dir domain.Directory, confirm func(prompt string) bool, logger *slog.Logger) *Service {
	return &Service{
		users:   repository.NewUserRepo(db),
		dir:     dir,
		confirm: confirm,
		logger:  logger.With("component", Job),
	}
}

// Sync runs the three-way diff keyed by username. Local-only users are
// created remotely, remote-only managed users are deleted, and users on both
// sides get their attributes and enabled state aligned. A dry run makes no
// remote calls besides listing.
func (s *Service) Sync(ctx context.Context, opts Options, w io.Writer) (*reconcile.Counter, error) {
	out := reconcile.NewOutput(w, s.logger)
	counter := reconcile.NewCounter()

	if opts.Clear && (s.confirm == nil || !s.confirm(ClearPrompt)) {
		out.Printf("clear cancelled, nothing changed")
		return counter, nil
	}

	start := time.Now()
	s.logger.Info("sync started", "dry_run", opts.DryRun, "clear", opts.Clear)

	if err := s.sync(ctx, opts, counter, out); err != nil {
		s.logger.Error("sync failed", "error", err, "duration", time.Since(start))
		return nil, err
	}

	out.Report(counter)
	if opts.DryRun {
		out.Printf("dry run, nothing changed")
	}
	s.logger.Info("sync finished", "dry_run", opts.DryRun, "duration", time.Since(start))
	return counter, nil
}

func (s *Service) sync(ctx context.Context, opts Options, counter *reconcile.Counter, out *reconcile.Output) error {
	remoteList, err := s.dir.ListUsers(ctx)
	if err != nil {
		return err
	}
	remote := make(map[string]domain.RemoteUser, len(remoteList))
	for _, u := range remoteList {
		remote[u.Username] = u
	}

	if opts.Clear {
		for _, name := range sortedKeys(remote) {
			out.Printf("deleting user %s", name)
			ok, err := s.apply(ctx, opts, out, "delete", name, s.dir.DeleteUser)
			if err != nil {
				return err
			}
			if ok {
				counter.Increment(domain.EntityUser, reconcile.OpCleared)
			}
		}
		remote = map[string]domain.RemoteUser{}
	}

	localList, err := s.users.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("list local users: %w", err)
	}
	local := make(map[string]domain.User, len(localList))
	for _, u := range localList {
		local[u.Username] = u
	}

	for _, name := range sortedKeys(local) {
		u := local[name]
		r, exists := remote[name]
		if !exists {
			if err := s.add(ctx, &u, opts, counter, out); err != nil {
				return err
			}
			continue
		}
		if err := s.align(ctx, &u, r, opts, counter, out); err != nil {
			return err
		}
	}

	for _, name := range sortedKeys(remote) {
		if _, ok := local[name]; ok {
			continue
		}
		out.Printf("deleting user %s", name)
		ok, err := s.apply(ctx, opts, out, "delete", name, s.dir.DeleteUser)
		if err != nil {
			return err
		}
		if ok {
			counter.Increment(domain.EntityUser, reconcile.OpRemoved)
		}
	}
	return nil
}

func (s *Service) add(ctx context.Context, u *domain.User, opts Options, counter *reconcile.Counter, out *reconcile.Output) error {
	out.Printf("adding user %s", u.Username)
	if !opts.DryRun {
		created, err := s.dir.CreateUser(ctx, u.Username, u.DisplayName(), u.Email)
		if err != nil {
			return err
		}
		if !created {
			out.Warnf("could not create user %s, it already exists", u.Username)
			return nil
		}
	}
	counter.Increment(domain.EntityUser, reconcile.OpAdded)

	if u.IsActive() {
		return nil
	}
	out.Printf("disabling user %s", u.Username)
	ok, err := s.apply(ctx, opts, out, "disable", u.Username, s.dir.DisableUser)
	if ok {
		counter.Increment(domain.EntityUser, reconcile.OpDisabled)
	}
	return err
}

// align runs the attribute check and the enabled check independently.
func (s *Service) align(ctx context.Context, u *domain.User, r domain.RemoteUser, opts Options, counter *reconcile.Counter, out *reconcile.Output) error {
	if u.Email != r.Email || u.DisplayName() != r.DisplayName {
		out.Printf("updating user %s", u.Username)
		ok, err := s.apply(ctx, opts, out, "update", u.Username, func(ctx context.Context, name string) (bool, error) {
			return s.dir.UpdateUser(ctx, name, u.DisplayName(), u.Email)
		})
		if err != nil {
			return err
		}
		if ok {
			counter.Increment(domain.EntityUser, reconcile.OpUpdated)
		}
	}

	var (
		op   reconcile.Operation
		verb string
		call func(context.Context, string) (bool, error)
	)
	switch {
	case u.IsActive() && !r.Enabled:
		op, verb, call = reconcile.OpEnabled, "enable", s.dir.EnableUser
		out.Printf("enabling user %s", u.Username)
	case !u.IsActive() && r.Enabled:
		op, verb, call = reconcile.OpDisabled, "disable", s.dir.DisableUser
		out.Printf("disabling user %s", u.Username)
	default:
		return nil
	}
	ok, err := s.apply(ctx, opts, out, verb, u.Username, call)
	if ok {
		counter.Increment(domain.EntityUser, op)
	}
	return err
}

// apply runs a directory mutation unless this is a dry run and reports
// whether it took effect. A target that vanished or is not managed is
// reported as a warning.
func (s *Service) apply(ctx context.Context, opts Options, out *reconcile.Output, verb, username string, call func(context.Context, string) (bool, error)) (bool, error) {
	if opts.DryRun {
		return true, nil
	}
	ok, err := call(ctx, username)
	if err != nil {
		return false, err
	}
	if !ok {
		out.Warnf("could not %s user %s, it does not exist or is not managed", verb, username)
	}
	return ok, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
