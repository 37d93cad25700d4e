package access

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// Role names a permission set.
type Role string

const (
	// RoleAdmin may change rates and addresses, claim funds and administer
	// both roles.
	RoleAdmin Role = "ADMIN"
	// RoleUpgrader may authorise a new engine implementation.
	RoleUpgrader Role = "UPGRADER"
)

var (
	// ErrUnauthorized is matched by every role check failure.
	ErrUnauthorized = errors.New("access: unauthorized")
	// ErrInvalidRole is returned for role names outside the known set.
	ErrInvalidRole = errors.New("access: invalid role")
)

var roleIDs = map[Role]common.Hash{
	RoleAdmin:    common.BytesToHash(ethcrypto.Keccak256([]byte("ADMIN_ROLE"))),
	RoleUpgrader: common.BytesToHash(ethcrypto.Keccak256([]byte("UPGRADER_ROLE"))),
}

// Roles lists the known roles in a stable order.
func Roles() []Role {
	return []Role{RoleAdmin, RoleUpgrader}
}

// ID returns the 32-byte identifier stored in state for the role.
func (r Role) ID() common.Hash {
	return roleIDs[r]
}

// Valid reports whether the role is one of the known roles.
func (r Role) Valid() bool {
	_, ok := roleIDs[r]
	return ok
}

// AdminRole returns the role whose holders may grant and revoke r.
func (r Role) AdminRole() Role {
	return RoleAdmin
}

func (r Role) String() string { return string(r) }

// ParseRole accepts the role name in any case, with or without a "_ROLE"
// suffix, or its 0x-prefixed identifier.
func ParseRole(value string) (Role, error) {
	trimmed := strings.TrimSpace(value)
	if strings.HasPrefix(trimmed, "0x") || strings.HasPrefix(trimmed, "0X") {
		id := common.HexToHash(trimmed)
		for role, known := range roleIDs {
			if known == id {
				return role, nil
			}
		}
		return "", fmt.Errorf("%w: %s", ErrInvalidRole, value)
	}
	name := strings.TrimSuffix(strings.ToUpper(trimmed), "_ROLE")
	role := Role(name)
	if !role.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidRole, value)
	}
	return role, nil
}

// UnauthorizedError reports which account was missing which role.
type UnauthorizedError struct {
	Account common.Address
	Role    Role
}

func (e *UnauthorizedError) Error() string {
	return fmt.Sprintf("AccessControl: account %s is missing role %s",
		strings.ToLower(e.Account.Hex()), e.Role.ID().Hex())
}

// Is allows errors.Is(err, ErrUnauthorized).
func (e *UnauthorizedError) Is(target error) bool {
	return target == ErrUnauthorized
}
