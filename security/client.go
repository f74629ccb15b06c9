// Package security is the client side of the external permission, role and
// secret delegate. Roles and permissions live in the delegate's REST API;
// secrets live in Vault. The registry composes the two halves behind the
// systems.SecurityService interface.
package security

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/gridpath/systems"
	ierrors "github.com/gridpath/systems/kit/errors"
)

// AdminRoleName is the delegate-side role marking tenant administrators.
const AdminRoleName = "tenant_admin"

var _ systems.SecurityService = (*Client)(nil)

// Client implements systems.SecurityService against a delegate base URL and a
// vault secret store. All calls are synchronous round trips bounded by the
// HTTP client timeout.
type Client struct {
	baseURL *url.URL
	token   string
	httpc   *http.Client
	secrets *SecretStore
}

// ClientConfig configures the delegate client. Zero values take defaults.
type ClientConfig struct {
	// BaseURL is the root of the delegate's REST API, e.g.
	// https://security.internal/v3.
	BaseURL string

	// Token authenticates the registry to the delegate.
	Token string

	Timeout time.Duration
}

// NewClient builds a delegate client from cfg and the given secret store.
func NewClient(cfg ClientConfig, secrets *SecretStore) (*Client, error) {
	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid delegate base URL %q: %w", cfg.BaseURL, err)
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		baseURL: u,
		token:   cfg.Token,
		httpc:   &http.Client{Timeout: timeout},
		secrets: secrets,
	}, nil
}

// CreateRole defines a role in the tenant. Creating a role that already
// exists is not an error.
func (c *Client) CreateRole(ctx context.Context, tenant, role, description string) error {
	return c.do(ctx, http.MethodPost, "/roles", map[string]string{
		"tenant":      tenant,
		"roleName":    role,
		"description": description,
	}, nil)
}

// DeleteRole removes a role and all its assignments.
func (c *Client) DeleteRole(ctx context.Context, tenant, role string) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/roles/%s/%s", tenant, role), nil, nil)
}

// GrantRole assigns the role to a user.
func (c *Client) GrantRole(ctx context.Context, tenant, user, role string) error {
	return c.do(ctx, http.MethodPost, "/roles/grant", map[string]string{
		"tenant":   tenant,
		"user":     user,
		"roleName": role,
	}, nil)
}

// RevokeRole removes the role from a user.
func (c *Client) RevokeRole(ctx context.Context, tenant, user, role string) error {
	return c.do(ctx, http.MethodPost, "/roles/revoke", map[string]string{
		"tenant":   tenant,
		"user":     user,
		"roleName": role,
	}, nil)
}

// GrantRolePermission attaches a permission spec to a role.
func (c *Client) GrantRolePermission(ctx context.Context, tenant, role, permSpec string) error {
	return c.do(ctx, http.MethodPost, "/roles/perms", map[string]string{
		"tenant":   tenant,
		"roleName": role,
		"permSpec": permSpec,
	}, nil)
}

// RolesForUser lists every role the user holds in the tenant.
func (c *Client) RolesForUser(ctx context.Context, tenant, user string) ([]string, error) {
	var out struct {
		Roles []string `json:"roles"`
	}
	err := c.do(ctx, http.MethodGet,
		fmt.Sprintf("/users/%s/%s/roles", tenant, user), nil, &out)
	if err != nil {
		return nil, err
	}
	return out.Roles, nil
}

// HasAdminRole reports whether the user holds the tenant admin role. An
// unknown user simply has no roles.
func (c *Client) HasAdminRole(ctx context.Context, tenant, user string) (bool, error) {
	roles, err := c.RolesForUser(ctx, tenant, user)
	if err != nil {
		return false, err
	}
	for _, r := range roles {
		if r == AdminRoleName {
			return true, nil
		}
	}
	return false, nil
}

// GrantPermission grants a permission spec directly to a user.
func (c *Client) GrantPermission(ctx context.Context, tenant, user, permSpec string) error {
	return c.do(ctx, http.MethodPost, "/perms/grant", map[string]string{
		"tenant":   tenant,
		"user":     user,
		"permSpec": permSpec,
	}, nil)
}

// RevokePermission removes a permission spec from a user. Revoking a grant
// the user does not hold is not an error.
func (c *Client) RevokePermission(ctx context.Context, tenant, user, permSpec string) error {
	return c.do(ctx, http.MethodPost, "/perms/revoke", map[string]string{
		"tenant":   tenant,
		"user":     user,
		"permSpec": permSpec,
	}, nil)
}

// IsPermitted reports whether the user's grants imply the spec.
func (c *Client) IsPermitted(ctx context.Context, tenant, user, permSpec string) (bool, error) {
	return c.IsPermittedAny(ctx, tenant, user, []string{permSpec})
}

// IsPermittedAny reports whether the user's grants imply any of the specs.
func (c *Client) IsPermittedAny(ctx context.Context, tenant, user string, permSpecs []string) (bool, error) {
	var out struct {
		IsAuthorized bool `json:"isAuthorized"`
	}
	err := c.do(ctx, http.MethodPost, "/perms/isPermittedAny", map[string]interface{}{
		"tenant":    tenant,
		"user":      user,
		"permSpecs": permSpecs,
	}, &out)
	if err != nil {
		return false, err
	}
	return out.IsAuthorized, nil
}

// UsersWithPermission lists users whose grants match the (possibly wildcard)
// spec.
func (c *Client) UsersWithPermission(ctx context.Context, tenant, permSpec string) ([]string, error) {
	var out struct {
		Users []string `json:"users"`
	}
	err := c.do(ctx, http.MethodPost, "/perms/users", map[string]string{
		"tenant":   tenant,
		"permSpec": permSpec,
	}, &out)
	if err != nil {
		return nil, err
	}
	return out.Users, nil
}

// WriteSecret stores a credential in vault.
func (c *Client) WriteSecret(ctx context.Context, tenant, systemID, targetUser string, method systems.AuthnMethod, cred *systems.Credential) error {
	return c.secrets.WriteSecret(ctx, tenant, systemID, targetUser, method, cred)
}

// ReadSecret fetches a credential from vault, nil when absent.
func (c *Client) ReadSecret(ctx context.Context, tenant, systemID, targetUser string, method systems.AuthnMethod) (*systems.Credential, error) {
	return c.secrets.ReadSecret(ctx, tenant, systemID, targetUser, method)
}

// DeleteSecret removes a credential from vault.
func (c *Client) DeleteSecret(ctx context.Context, tenant, systemID, targetUser string) error {
	return c.secrets.DeleteSecret(ctx, tenant, systemID, targetUser)
}

// do performs one JSON round trip. Non-2xx responses become EDelegate errors
// carrying the delegate's status; 404 on GET resolves to an empty result so
// read paths can treat missing artifacts as absent.
func (c *Client) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	u := *c.baseURL
	u.Path = u.Path + path

	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), rdr)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return &ierrors.Error{
			Code: ierrors.EDelegate,
			Msg:  fmt.Sprintf("delegate request %s %s failed", method, path),
			Err:  err,
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound && method == http.MethodGet {
		// missing artifacts read as empty
		return nil
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &ierrors.Error{
			Code: ierrors.EDelegate,
			Msg:  fmt.Sprintf("delegate request %s %s returned status %d: %s", method, path, resp.StatusCode, msg),
		}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return &ierrors.Error{
				Code: ierrors.EDelegate,
				Msg:  fmt.Sprintf("unable to decode delegate response for %s %s", method, path),
				Err:  err,
			}
		}
	}
	return nil
}
