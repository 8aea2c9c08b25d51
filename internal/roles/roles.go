package roles

import (
	"fmt"
	"strings"
)

// Role is the account role of a portal user.
type Role string

const (
	Admin    Role = "admin"
	Employer Role = "employer"
	Broker   Role = "broker"
	Employee Role = "employee"
	Customer Role = "customer"
)

// All lists every role in display order.
var All = []Role{Admin, Employer, Broker, Employee, Customer}

// Portal identifies the portal an account signed up through.
type Portal string

const (
	PortalAdmin    Portal = "admin"
	PortalBusiness Portal = "business"
	PortalPartner  Portal = "partner"
	PortalEmployee Portal = "employee"
	PortalPrivate  Portal = "private"
)

// Parse converts a raw string into a Role.
func Parse(raw string) (Role, error) {
	role := Role(strings.ToLower(strings.TrimSpace(raw)))
	if !role.Valid() {
		return "", fmt.Errorf("unknown role %q", raw)
	}
	return role, nil
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case Admin, Employer, Broker, Employee, Customer:
		return true
	default:
		return false
	}
}

func (r Role) String() string { return string(r) }

// Portal returns the portal an account of this role belongs to.
func (r Role) Portal() (Portal, bool) {
	switch r {
	case Admin:
		return PortalAdmin, true
	case Employer:
		return PortalBusiness, true
	case Broker:
		return PortalPartner, true
	case Employee:
		return PortalEmployee, true
	case Customer:
		return PortalPrivate, true
	default:
		return "", false
	}
}

// FromPortal returns the role expected for accounts of the given portal.
func FromPortal(p Portal) (Role, bool) {
	switch Portal(strings.ToLower(strings.TrimSpace(string(p)))) {
	case PortalAdmin:
		return Admin, true
	case PortalBusiness:
		return Employer, true
	case PortalPartner:
		return Broker, true
	case PortalEmployee:
		return Employee, true
	case PortalPrivate:
		return Customer, true
	default:
		return "", false
	}
}
