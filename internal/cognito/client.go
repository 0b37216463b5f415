// Package cognito manages the remote user accounts of this system in an AWS
// Cognito user pool. Only accounts carrying the managed marker attribute are
// ever listed or mutated.
package cognito

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	cip "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"
	"github.com/aws/smithy-go"

	"geoadmin-control/internal/domain"
)

// PageSize is the number of users requested per ListUsers call.
const PageSize = 60

// DefaultManagedFlag is the custom attribute marking managed accounts.
const DefaultManagedFlag = "custom:managed_by_service"

const (
	attrEmail         = "email"
	attrEmailVerified = "email_verified"
	attrName          = "name"
)

// API is the subset of the Cognito identity provider client used here.
type API interface {
	ListUsers(ctx context.Context, in *cip.ListUsersInput, optFns ...func(*cip.Options)) (*cip.ListUsersOutput, error)
	AdminGetUser(ctx context.Context, in *cip.AdminGetUserInput, optFns ...func(*cip.Options)) (*cip.AdminGetUserOutput, error)
	AdminCreateUser(ctx context.Context, in *cip.AdminCreateUserInput, optFns ...func(*cip.Options)) (*cip.AdminCreateUserOutput, error)
	AdminDeleteUser(ctx context.Context, in *cip.AdminDeleteUserInput, optFns ...func(*cip.Options)) (*cip.AdminDeleteUserOutput, error)
	AdminUpdateUserAttributes(ctx context.Context, in *cip.AdminUpdateUserAttributesInput, optFns ...func(*cip.Options)) (*cip.AdminUpdateUserAttributesOutput, error)
	AdminResetUserPassword(ctx context.Context, in *cip.AdminResetUserPasswordInput, optFns ...func(*cip.Options)) (*cip.AdminResetUserPasswordOutput, error)
	AdminEnableUser(ctx context.Context, in *cip.AdminEnableUserInput, optFns ...func(*cip.Options)) (*cip.AdminEnableUserOutput, error)
	AdminDisableUser(ctx context.Context, in *cip.AdminDisableUserInput, optFns ...func(*cip.Options)) (*cip.AdminDisableUserOutput, error)
}

// Config holds the connection settings of a user pool.
type Config struct {
	UserPoolID  string
	Region      string
	Endpoint    string // optional, e.g. a local emulator
	KeyID       string
	Secret      string
	ManagedFlag string
}

// Client implements domain.Directory on a Cognito user pool.
type Client struct {
	api         API
	poolID      string
	managedFlag string
}

var _ domain.Directory = (*Client)(nil)

// New creates a Client with static credentials.
func New(cfg Config) *Client {
	opts := cip.Options{
		Region:      cfg.Region,
		Credentials: credentials.NewStaticCredentialsProvider(cfg.KeyID, cfg.Secret, ""),
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return NewWithAPI(cip.New(opts), cfg.UserPoolID, cfg.ManagedFlag)
}

// NewWithAPI creates a Client on an existing API implementation.
func NewWithAPI(api API, poolID, managedFlag string) *Client {
	if managedFlag == "" {
		managedFlag = DefaultManagedFlag
	}
	return &Client{api: api, poolID: poolID, managedFlag: managedFlag}
}

// ListUsers returns every managed user of the pool.
func (c *Client) ListUsers(ctx context.Context) ([]domain.RemoteUser, error) {
	var out []domain.RemoteUser
	var token *string
	for {
		resp, err := c.api.ListUsers(ctx, &cip.ListUsersInput{
			UserPoolId:      aws.String(c.poolID),
			Limit:           aws.Int32(PageSize),
			PaginationToken: token,
		})
		if err != nil {
			return nil, c.wrap("list users", err)
		}
		for _, u := range resp.Users {
			ru := c.remoteUser(aws.ToString(u.Username), u.Attributes, u.Enabled)
			if ru.Managed {
				out = append(out, ru)
			}
		}
		if aws.ToString(resp.PaginationToken) == "" {
			return out, nil
		}
		token = resp.PaginationToken
	}
}

// GetUser returns the user, or nil when it does not exist or, with
// managedOnly, is not managed by this system.
func (c *Client) GetUser(ctx context.Context, username string, managedOnly bool) (*domain.RemoteUser, error) {
	resp, err := c.api.AdminGetUser(ctx, &cip.AdminGetUserInput{
		UserPoolId: aws.String(c.poolID),
		Username:   aws.String(username),
	})
	if err != nil {
		var nf *types.UserNotFoundException
		if errors.As(err, &nf) {
			return nil, nil
		}
		return nil, c.wrap("get user", err)
	}
	ru := c.remoteUser(aws.ToString(resp.Username), resp.UserAttributes, resp.Enabled)
	if managedOnly && !ru.Managed {
		return nil, nil
	}
	return &ru, nil
}

// CreateUser creates a managed user and reports whether it was created.
// Cognito sends the invitation mail with a temporary password.
func (c *Client) CreateUser(ctx context.Context, username, displayName, email string) (bool, error) {
	_, err := c.api.AdminCreateUser(ctx, &cip.AdminCreateUserInput{
		UserPoolId: aws.String(c.poolID),
		Username:   aws.String(username),
		UserAttributes: []types.AttributeType{
			attribute(attrName, displayName),
			attribute(attrEmail, email),
			attribute(attrEmailVerified, "true"),
			attribute(c.managedFlag, "true"),
		},
		DesiredDeliveryMediums: []types.DeliveryMediumType{types.DeliveryMediumTypeEmail},
	})
	if err != nil {
		var exists *types.UsernameExistsException
		if errors.As(err, &exists) {
			return false, nil
		}
		return false, c.wrap("create user", err)
	}
	return true, nil
}

// DeleteUser deletes a managed user.
func (c *Client) DeleteUser(ctx context.Context, username string) (bool, error) {
	return c.withManaged(ctx, username, "delete user", func() error {
		_, err := c.api.AdminDeleteUser(ctx, &cip.AdminDeleteUserInput{
			UserPoolId: aws.String(c.poolID),
			Username:   aws.String(username),
		})
		return err
	})
}

// UpdateUser sends the attributes that differ from the remote user. A new
// email address is marked verified and forces a password reset. A managed
// user already holding the given attributes counts as updated.
func (c *Client) UpdateUser(ctx context.Context, username, displayName, email string) (bool, error) {
	current, err := c.GetUser(ctx, username, true)
	if err != nil || current == nil {
		return false, err
	}

	var attrs []types.AttributeType
	if current.DisplayName != displayName {
		attrs = append(attrs, attribute(attrName, displayName))
	}
	emailChanged := current.Email != email
	if emailChanged {
		attrs = append(attrs, attribute(attrEmail, email), attribute(attrEmailVerified, "true"))
	}
	if len(attrs) == 0 {
		return true, nil
	}

	if _, err := c.api.AdminUpdateUserAttributes(ctx, &cip.AdminUpdateUserAttributesInput{
		UserPoolId:     aws.String(c.poolID),
		Username:       aws.String(username),
		UserAttributes: attrs,
	}); err != nil {
		return false, c.wrap("update user", err)
	}
	if emailChanged {
		if _, err := c.api.AdminResetUserPassword(ctx, &cip.AdminResetUserPasswordInput{
			UserPoolId: aws.String(c.poolID),
			Username:   aws.String(username),
		}); err != nil {
			return false, c.wrap("reset password", err)
		}
	}
	return true, nil
}

// EnableUser enables a managed user.
func (c *Client) EnableUser(ctx context.Context, username string) (bool, error) {
	return c.withManaged(ctx, username, "enable user", func() error {
		_, err := c.api.AdminEnableUser(ctx, &cip.AdminEnableUserInput{
			UserPoolId: aws.String(c.poolID),
			Username:   aws.String(username),
		})
		return err
	})
}

// DisableUser disables a managed user.
func (c *Client) DisableUser(ctx context.Context, username string) (bool, error) {
	return c.withManaged(ctx, username, "disable user", func() error {
		_, err := c.api.AdminDisableUser(ctx, &cip.AdminDisableUserInput{
			UserPoolId: aws.String(c.poolID),
			Username:   aws.String(username),
		})
		return err
	})
}

// withManaged runs call when username is a managed user and reports whether
// it ran.
func (c *Client) withManaged(ctx context.Context, username, op string, call func() error) (bool, error) {
	u, err := c.GetUser(ctx, username, true)
	if err != nil || u == nil {
		return false, err
	}
	if err := call(); err != nil {
		var nf *types.UserNotFoundException
		if errors.As(err, &nf) {
			return false, nil
		}
		return false, c.wrap(op, err)
	}
	return true, nil
}

func (c *Client) remoteUser(username string, attrs []types.AttributeType, enabled bool) domain.RemoteUser {
	u := domain.RemoteUser{Username: username, Enabled: enabled}
	for _, a := range attrs {
		switch aws.ToString(a.Name) {
		case attrEmail:
			u.Email = aws.ToString(a.Value)
		case attrName:
			u.DisplayName = aws.ToString(a.Value)
		case c.managedFlag:
			u.Managed = aws.ToString(a.Value) == "true"
		}
	}
	return u
}

// wrap keeps service errors as they are and reports everything else, which
// failed before Cognito answered, as unavailable.
func (c *Client) wrap(op string, err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("cognito %s: %w", op, err)
	}
	return domain.ErrUnavailable("cognito", err)
}

func attribute(name, value string) types.AttributeType {
	return types.AttributeType{Name: aws.String(name), Value: aws.String(value)}
}
