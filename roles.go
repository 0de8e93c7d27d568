package identity

import (
	"context"

	"github.com/goliatone/go-errors"
)

const (
	// RoleCustomer is the default self-service role
	RoleCustomer = "customer"
	// RoleMember is an internal member role
	RoleMember = "member"
	// RoleAdmin is the administrative role
	RoleAdmin = "admin"
)

// RoleAssignment reports the outcome of a reconciliation: the roles newly
// added and the requested names that were skipped (unknown to the
// directory or already held).
type RoleAssignment struct {
	Assigned []string `json:"assigned"`
	Skipped  []string `json:"skipped,omitempty"`
}

// RoleAssigner reconciles requested role names against the RoleDirectory
// and the account's current membership. Unknown names are skipped, never
// fatal; repeating a call is a no-op.
type RoleAssigner struct {
	store     CredentialStore
	directory RoleDirectory
	logger    Logger
}

// NewRoleAssigner creates a RoleAssigner.
func NewRoleAssigner(store CredentialStore, directory RoleDirectory) *RoleAssigner {
	return &RoleAssigner{
		store:     store,
		directory: directory,
		logger:    defLogger{},
	}
}

func (ra *RoleAssigner) WithLogger(logger Logger) *RoleAssigner {
	if logger != nil {
		ra.logger = logger
	}
	return ra
}

// AssignRoles adds each requested role the directory knows about and the
// account does not already hold. The returned assignment lists what was
// actually added; it may be empty.
func (ra *RoleAssigner) AssignRoles(ctx context.Context, requested []string, account *Account) (*RoleAssignment, error) {
	if account == nil {
		return nil, errors.New("account must not be nil", errors.CategoryInternal)
	}

	current, err := ra.store.GetRoles(ctx, account.ID)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to load current roles")
	}

	held := make(map[string]struct{}, len(current))
	for _, role := range current {
		held[role] = struct{}{}
	}

	assignment := &RoleAssignment{Assigned: []string{}}

	for _, role := range requested {
		exists, err := ra.directory.RoleExists(ctx, role)
		if err != nil {
			return nil, errors.Wrap(err, errors.CategoryInternal, "role directory lookup failed")
		}

		if !exists {
			ra.logger.Debug("skipping unknown role %q", role)
			assignment.Skipped = append(assignment.Skipped, role)
			continue
		}

		if _, ok := held[role]; ok {
			assignment.Skipped = append(assignment.Skipped, role)
			continue
		}

		if err := ra.store.AssignRole(ctx, account.ID, role); err != nil {
			return nil, errors.Wrap(err, errors.CategoryInternal, "failed to assign role").
				WithMetadata(map[string]any{"role": role})
		}

		held[role] = struct{}{}
		assignment.Assigned = append(assignment.Assigned, role)
	}

	account.Roles = append(account.Roles[:0:0], current...)
	account.Roles = append(account.Roles, assignment.Assigned...)

	return assignment, nil
}

func knownRole(role string) bool {
	switch role {
	case RoleCustomer, RoleMember, RoleAdmin:
		return true
	}
	return false
}

// StaticRoleDirectory is a RoleDirectory over a fixed name set.
type StaticRoleDirectory struct {
	roles map[string]struct{}
}

var _ RoleDirectory = (*StaticRoleDirectory)(nil)

// NewStaticRoleDirectory builds a directory from the given names. With no
// arguments it knows the package defaults.
func NewStaticRoleDirectory(roles ...string) *StaticRoleDirectory {
	if len(roles) == 0 {
		roles = []string{RoleCustomer, RoleMember, RoleAdmin}
	}

	set := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		set[role] = struct{}{}
	}

	return &StaticRoleDirectory{roles: set}
}

// RoleExists reports whether the directory knows the role name.
func (d *StaticRoleDirectory) RoleExists(_ context.Context, role string) (bool, error) {
	_, ok := d.roles[role]
	return ok, nil
}
