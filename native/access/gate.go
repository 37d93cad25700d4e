package access

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"ratemint/core/events"
)

var (
	errNilState = errors.New("access: state not configured")
	// ErrRenounceForOther is returned when renounceRole names another account.
	ErrRenounceForOther = errors.New("AccessControl: can only renounce roles for self")
)

type gateState interface {
	SetRole(role common.Hash, addr common.Address) (bool, error)
	RemoveRole(role common.Hash, addr common.Address) (bool, error)
	HasRole(role common.Hash, addr common.Address) (bool, error)
	RoleMembers(role common.Hash) ([]common.Address, error)
}

// Gate is the capability table guarding every privileged entry point. Role
// membership lives in state; the gate only interprets it.
type Gate struct {
	state   gateState
	emitter events.Emitter
}

// NewGate constructs a gate with a no-op emitter.
func NewGate() *Gate {
	return &Gate{emitter: events.NoopEmitter{}}
}

// SetState configures the state backend used by the gate.
func (g *Gate) SetState(state gateState) { g.state = state }

// SetEmitter configures the event emitter used by the gate.
func (g *Gate) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		g.emitter = events.NoopEmitter{}
		return
	}
	g.emitter = emitter
}

func (g *Gate) ready() error {
	if g == nil || g.state == nil {
		return errNilState
	}
	return nil
}

// HasRole reports whether account holds role.
func (g *Gate) HasRole(role Role, account common.Address) (bool, error) {
	if err := g.ready(); err != nil {
		return false, err
	}
	if !role.Valid() {
		return false, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	return g.state.HasRole(role.ID(), account)
}

// RequireRole fails with an *UnauthorizedError when caller lacks role.
func (g *Gate) RequireRole(role Role, caller common.Address) error {
	ok, err := g.HasRole(role, caller)
	if err != nil {
		return err
	}
	if !ok {
		return &UnauthorizedError{Account: caller, Role: role}
	}
	return nil
}

// Members lists the holders of role in ascending byte order.
func (g *Gate) Members(role Role) ([]common.Address, error) {
	if err := g.ready(); err != nil {
		return nil, err
	}
	if !role.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	return g.state.RoleMembers(role.ID())
}

// Grant assigns role to account without checking the sender. It is used by
// initialisation paths that run before any admin exists.
func (g *Gate) Grant(role Role, account, sender common.Address) error {
	if err := g.ready(); err != nil {
		return err
	}
	if !role.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	changed, err := g.state.SetRole(role.ID(), account)
	if err != nil {
		return err
	}
	if changed {
		g.emitter.Emit(RoleGranted{Role: role, Account: account, Sender: sender})
	}
	return nil
}

func (g *Gate) revoke(role Role, account, sender common.Address) error {
	changed, err := g.state.RemoveRole(role.ID(), account)
	if err != nil {
		return err
	}
	if changed {
		g.emitter.Emit(RoleRevoked{Role: role, Account: account, Sender: sender})
	}
	return nil
}

// GrantRole assigns role to account when caller holds the role's admin role.
// Granting a role that is already held is a no-op.
func (g *Gate) GrantRole(caller common.Address, role Role, account common.Address) error {
	if !role.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	if err := g.RequireRole(role.AdminRole(), caller); err != nil {
		return err
	}
	return g.Grant(role, account, caller)
}

// RevokeRole removes role from account when caller holds the role's admin
// role. Revoking a role that is not held is a no-op.
func (g *Gate) RevokeRole(caller common.Address, role Role, account common.Address) error {
	if !role.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	if err := g.RequireRole(role.AdminRole(), caller); err != nil {
		return err
	}
	return g.revoke(role, account, caller)
}

// RenounceRole lets caller drop one of its own roles.
func (g *Gate) RenounceRole(caller common.Address, role Role, account common.Address) error {
	if err := g.ready(); err != nil {
		return err
	}
	if !role.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	if account != caller {
		return ErrRenounceForOther
	}
	return g.revoke(role, account, caller)
}
