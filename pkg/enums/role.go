package enums

import "slices"

// Role identifies which principal table a token was issued for.
type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
)

var roles = []Role{RoleBuyer, RoleSeller}

func (r Role) String() string { return string(r) }

func (r Role) IsValid() bool { return slices.Contains(roles, r) }
