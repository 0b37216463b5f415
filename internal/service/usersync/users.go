package usersync

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"geoadmin-control/internal/db"
	"geoadmin-control/internal/db/repository"
	"geoadmin-control/internal/domain"
)

// Users manages local users and mirrors every write to the remote directory
// inside the same transaction. A failing remote call rolls the local write
// back.
type Users struct {
	db     *sql.DB
	dir    domain.Directory
	logger *slog.Logger
}

// errNoDirectory rejects writes when no identity provider is configured.
var errNoDirectory = domain.ErrUnavailable("cognito", errors.New("identity provider not configured"))

// NewUsers creates a Users service. With a nil dir the service is read-only
// and writes fail with an *UnavailableError.
func NewUsers(db *sql.DB, dir domain.Directory, logger *slog.Logger) *Users {
	return &Users{db: db, dir: dir, logger: logger.With("component", "users")}
}

// List returns a page of active users.
func (s *Users) List(ctx context.Context, page domain.PageRequest) ([]domain.User, int64, error) {
	return repository.NewUserRepo(s.db).List(ctx, page)
}

// Get returns an active user.
func (s *Users) Get(ctx context.Context, username string) (*domain.User, error) {
	u, err := repository.NewUserRepo(s.db).GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if !u.IsActive() {
		return nil, domain.ErrNotFound("user %q not found", username)
	}
	return u, nil
}

// Create persists a new user and creates its remote account.
func (s *Users) Create(ctx context.Context, req domain.CreateUserRequest) (*domain.User, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if s.dir == nil {
		return nil, errNoDirectory
	}
	u := &domain.User{
		Username:   req.Username,
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		Email:      req.Email,
		ProviderID: req.ProviderID,
	}

	err := db.RunInTx(ctx, s.db, func(tx *sql.Tx) (bool, error) {
		if err := checkProvider(ctx, tx, u.ProviderID); err != nil {
			return false, err
		}
		if err := repository.NewUserRepo(tx).Insert(ctx, u); err != nil {
			return false, err
		}
		created, err := s.dir.CreateUser(ctx, u.Username, u.DisplayName(), u.Email)
		if err != nil {
			return false, err
		}
		if !created {
			return false, domain.ErrConflict("user %q already exists in the identity provider", u.Username)
		}
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("user created", "username", u.Username)
	return u, nil
}

// Update changes the attributes of an active user and pushes them remotely.
func (s *Users) Update(ctx context.Context, username string, req domain.UpdateUserRequest) (*domain.User, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if s.dir == nil {
		return nil, errNoDirectory
	}

	var u *domain.User
	err := db.RunInTx(ctx, s.db, func(tx *sql.Tx) (bool, error) {
		repo := repository.NewUserRepo(tx)
		var err error
		if u, err = repo.GetByUsername(ctx, username); err != nil {
			return false, err
		}
		if !u.IsActive() {
			return false, domain.ErrNotFound("user %q not found", username)
		}
		if req.FirstName != nil {
			u.FirstName = *req.FirstName
		}
		if req.LastName != nil {
			u.LastName = *req.LastName
		}
		if req.Email != nil {
			u.Email = *req.Email
		}
		if req.ProviderID != nil {
			if err := checkProvider(ctx, tx, *req.ProviderID); err != nil {
				return false, err
			}
			u.ProviderID = *req.ProviderID
		}
		if err := repo.Update(ctx, u); err != nil {
			return false, err
		}
		updated, err := s.dir.UpdateUser(ctx, u.Username, u.DisplayName(), u.Email)
		if err != nil {
			return false, err
		}
		if !updated {
			s.logger.Warn("remote user missing or not managed", "username", u.Username)
		}
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return u, nil
}

// Delete soft-deletes a user and disables its remote account.
func (s *Users) Delete(ctx context.Context, username string) error {
	if s.dir == nil {
		return errNoDirectory
	}
	return db.RunInTx(ctx, s.db, func(tx *sql.Tx) (bool, error) {
		repo := repository.NewUserRepo(tx)
		u, err := repo.GetByUsername(ctx, username)
		if err != nil {
			return false, err
		}
		if !u.IsActive() {
			return false, domain.ErrNotFound("user %q not found", username)
		}
		now := time.Now().UTC()
		u.DeletedAt = &now
		if err := repo.Update(ctx, u); err != nil {
			return false, err
		}
		disabled, err := s.dir.DisableUser(ctx, username)
		if err != nil {
			return false, err
		}
		if !disabled {
			s.logger.Warn("remote user missing", "username", username)
		}
		return true, nil
	})
}

func checkProvider(ctx context.Context, q db.DBTX, providerID string) error {
	_, err := repository.NewProviderRepo(q).GetByID(ctx, providerID)
	var nf *domain.NotFoundError
	if errors.As(err, &nf) {
		return domain.ErrValidation("provider %q does not exist", providerID)
	}
	return err
}
