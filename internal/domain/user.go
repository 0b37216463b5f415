package domain

import (
	"net/mail"
	"strings"
	"time"
)

// User is an account managed by this system and mirrored to the identity provider.
type User struct {
	ID         string
	Username   string
	FirstName  string
	LastName   string
	Email      string
	ProviderID string
	DeletedAt  *time.Time // soft delete; the remote account is disabled
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// DisplayName is the name pushed to the identity provider.
func (u *User) DisplayName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// IsActive reports whether the user is not soft-deleted.
func (u *User) IsActive() bool {
	return u.DeletedAt == nil
}

// CreateUserRequest holds parameters for creating a user.
type CreateUserRequest struct {
	Username   string
	FirstName  string
	LastName   string
	Email      string
	ProviderID string
}

// Validate checks that the request is well-formed.
func (r *CreateUserRequest) Validate() error {
	if strings.TrimSpace(r.Username) == "" {
		return ErrValidation("username is required")
	}
	if r.ProviderID == "" {
		return ErrValidation("provider_id is required")
	}
	if _, err := mail.ParseAddress(r.Email); err != nil {
		return ErrValidation("invalid email %q", r.Email)
	}
	return nil
}

// UpdateUserRequest holds the mutable attributes of a user.
type UpdateUserRequest struct {
	FirstName  *string
	LastName   *string
	Email      *string
	ProviderID *string
}

// Validate checks that the request is well-formed.
func (r *UpdateUserRequest) Validate() error {
	if r.Email != nil {
		if _, err := mail.ParseAddress(*r.Email); err != nil {
			return ErrValidation("invalid email %q", *r.Email)
		}
	}
	if r.ProviderID != nil && *r.ProviderID == "" {
		return ErrValidation("provider_id must not be empty")
	}
	return nil
}

// RemoteUser is an entry of the external identity provider directory.
type RemoteUser struct {
	Username    string
	Email       string
	DisplayName string
	Enabled     bool
	Managed     bool // carries the marker attribute of this system
}
