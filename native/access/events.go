package access

import (
	"github.com/ethereum/go-ethereum/common"

	"ratemint/core/events"
	"ratemint/core/types"
)

const (
	TypeRoleGranted = "access.role.granted"
	TypeRoleRevoked = "access.role.revoked"
)

// RoleGranted is emitted when an account gains a role.
type RoleGranted struct {
	Role    Role
	Account common.Address
	Sender  common.Address
}

func (RoleGranted) EventType() string { return TypeRoleGranted }

func (e RoleGranted) Event() *types.Event {
	return roleEvent(TypeRoleGranted, e.Role, e.Account, e.Sender)
}

// RoleRevoked is emitted when an account loses a role, including renounces.
type RoleRevoked struct {
	Role    Role
	Account common.Address
	Sender  common.Address
}

func (RoleRevoked) EventType() string { return TypeRoleRevoked }

func (e RoleRevoked) Event() *types.Event {
	return roleEvent(TypeRoleRevoked, e.Role, e.Account, e.Sender)
}

func roleEvent(kind string, role Role, account, sender common.Address) *types.Event {
	return &types.Event{Type: kind, Attributes: map[string]string{
		"role":    role.String(),
		"roleId":  role.ID().Hex(),
		"account": events.FormatAddress(account),
		"sender":  events.FormatAddress(sender),
	}}
}
