package testutil

import (
	"context"
	"sort"

	"geoadmin-control/internal/domain"
)

// FakeDirectory is an in-memory domain.Directory. Every call is recorded in
// Calls; Err, when set, is returned by every operation instead.
type FakeDirectory struct {
	Users map[string]*domain.RemoteUser
	Calls []string
	Err   error
}

// NewFakeDirectory returns a directory holding the given users.
func NewFakeDirectory(users ...domain.RemoteUser) *FakeDirectory {
	d := &FakeDirectory{Users: map[string]*domain.RemoteUser{}}
	for i := range users {
		u := users[i]
		d.Users[u.Username] = &u
	}
	return d
}

func (d *FakeDirectory) managed(username string) *domain.RemoteUser {
	u, ok := d.Users[username]
	if !ok || !u.Managed {
		return nil
	}
	return u
}

// ListUsers implements the interface method for testing.
func (d *FakeDirectory) ListUsers(_ context.Context) ([]domain.RemoteUser, error) {
	d.Calls = append(d.Calls, "list")
	if d.Err != nil {
		return nil, d.Err
	}
	var out []domain.RemoteUser
	for _, u := range d.Users {
		if u.Managed {
			out = append(out, *u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

// GetUser implements the interface method for testing.
func (d *FakeDirectory) GetUser(_ context.Context, username string, managedOnly bool) (*domain.RemoteUser, error) {
	if d.Err != nil {
		return nil, d.Err
	}
	u, ok := d.Users[username]
	if !ok || (managedOnly && !u.Managed) {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

// CreateUser implements the interface method for testing.
func (d *FakeDirectory) CreateUser(_ context.Context, username, displayName, email string) (bool, error) {
	d.Calls = append(d.Calls, "create "+username)
	if d.Err != nil {
		return false, d.Err
	}
	if _, ok := d.Users[username]; ok {
		return false, nil
	}
	d.Users[username] = &domain.RemoteUser{
		Username: username, DisplayName: displayName, Email: email, Enabled: true, Managed: true,
	}
	return true, nil
}

// DeleteUser implements the interface method for testing.
func (d *FakeDirectory) DeleteUser(_ context.Context, username string) (bool, error) {
	d.Calls = append(d.Calls, "delete "+username)
	if d.Err != nil {
		return false, d.Err
	}
	if d.managed(username) == nil {
		return false, nil
	}
	delete(d.Users, username)
	return true, nil
}

// UpdateUser implements the interface method for testing.
func (d *FakeDirectory) UpdateUser(_ context.Context, username, displayName, email string) (bool, error) {
	d.Calls = append(d.Calls, "update "+username)
	if d.Err != nil {
		return false, d.Err
	}
	u := d.managed(username)
	if u == nil {
		return false, nil
	}
	u.DisplayName, u.Email = displayName, email
	return true, nil
}

// EnableUser implements the interface method for testing.
func (d *FakeDirectory) EnableUser(_ context.Context, username string) (bool, error) {
	d.Calls = append(d.Calls, "enable "+username)
	return d.setEnabled(username, true)
}

// DisableUser implements the interface method for testing.
func (d *FakeDirectory) DisableUser(_ context.Context, username string) (bool, error) {
	d.Calls = append(d.Calls, "disable "+username)
	return d.setEnabled(username, false)
}

func (d *FakeDirectory) setEnabled(username string, enabled bool) (bool, error) {
	if d.Err != nil {
		return false, d.Err
	}
	u := d.managed(username)
	if u == nil {
		return false, nil
	}
	u.Enabled = enabled
	return true, nil
}

// MutatingCalls returns the recorded calls other than listings.
func (d *FakeDirectory) MutatingCalls() []string {
	var out []string
	for _, c := range d.Calls {
		if c != "list" {
			out = append(out, c)
		}
	}
	return out
}
