package roles

// Permission names an action guarded by role.
type Permission string

const (
	ManageUsers           Permission = "users.manage"
	ManageCompanies       Permission = "companies.manage"
	ManageEmployees       Permission = "companies.employees"
	ManageRootBrokers     Permission = "brokers.root"
	InviteSubBrokers      Permission = "brokers.invite"
	AllocateCommission    Permission = "brokers.allocate"
	ReviseCommission      Permission = "brokers.revise"
	ViewLedger            Permission = "brokers.ledger"
	ManageVehicles        Permission = "vehicles.manage"
	ViewVehicles          Permission = "vehicles.view"
	RequestVehicles       Permission = "vehicle_requests.create"
	DecideVehicleRequests Permission = "vehicle_requests.decide"
	ViewVehicleRequests   Permission = "vehicle_requests.view"
	ManageSettings        Permission = "settings.manage"
)

// Can reports whether role r is allowed to perform p.
func Can(r Role, p Permission) bool {
	switch r {
	case Admin:
		return r.Valid()
	case Employer:
		switch p {
		case ManageEmployees, ViewVehicles, DecideVehicleRequests, ViewVehicleRequests:
			return true
		}
		return false
	case Broker:
		switch p {
		case InviteSubBrokers, AllocateCommission, ViewLedger, ViewVehicles:
			return true
		}
		return false
	case Employee:
		switch p {
		case ViewVehicles, RequestVehicles, ViewVehicleRequests:
			return true
		}
		return false
	case Customer:
		switch p {
		case ViewVehicles, RequestVehicles, ViewVehicleRequests:
			return true
		}
		return false
	default:
		return false
	}
}
