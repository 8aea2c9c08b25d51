package models

import (
	"encoding/json"

	"github.com/vilonda/portal/internal/roles"
)

// UserInfo represents public user information
type UserInfo struct {
	ID          string       `json:"id"`
	Email       string       `json:"email"`
	FirstName   string       `json:"first_name"`
	LastName    string       `json:"last_name"`
	Role        roles.Role   `json:"role"`
	Portal      roles.Portal `json:"portal"`
	IsActive    bool         `json:"is_active"`
	IsVerified  bool         `json:"is_verified"`
	CompanyID   *string      `json:"company_id,omitempty"`
	CompanyName string       `json:"company_name,omitempty"`
	BrokerID    *string      `json:"broker_id,omitempty"`
}

// LoginRequest represents login credentials
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse represents the response after successful login
type LoginResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresIn    int       `json:"expires_in"`
	TokenType    string    `json:"token_type"`
	User         *UserInfo `json:"user"`
}

// RefreshTokenRequest represents refresh token request
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// RegisterRequest represents self-service registration of a private customer.
type RegisterRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone,omitempty"`
}

// CreateUserInput is used by administrators to provision accounts of any role.
type CreateUserInput struct {
	Email     string     `json:"email"`
	Password  string     `json:"password"`
	FirstName string     `json:"first_name"`
	LastName  string     `json:"last_name"`
	Role      roles.Role `json:"role"`
	CompanyID *string    `json:"company_id,omitempty"`
}

// RegisterCompanyInput captures company registration together with its first employer account.
type RegisterCompanyInput struct {
	Name          string  `json:"name"`
	LegalForm     string  `json:"legal_form"`
	VATID         string  `json:"vat_id"`
	Street        string  `json:"street"`
	PostalCode    string  `json:"postal_code"`
	City          string  `json:"city"`
	Country       string  `json:"country"`
	ContactEmail  string  `json:"contact_email"`
	EmployeeCount int     `json:"employee_count"`
	BrokerID      *string `json:"broker_id,omitempty"`

	Employer RegisterRequest `json:"employer"`
}

// AddEmployeeInput adds an employee account to the caller's company.
type AddEmployeeInput struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// CreateRootBrokerInput provisions a top-level broker.
type CreateRootBrokerInput struct {
	DisplayName string      `json:"display_name"`
	Email       string      `json:"email"`
	Commission  json.Number `json:"commission"`
	UserID      *string     `json:"user_id,omitempty"`
}

// InviteSubBrokerInput describes a sub-broker invitation.
type InviteSubBrokerInput struct {
	DisplayName string      `json:"display_name"`
	Email       string      `json:"email"`
	Commission  json.Number `json:"commission"`
}

// AcceptInviteInput completes a broker invitation.
type AcceptInviteInput struct {
	Token     string `json:"token"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// AllocateCommissionInput sets the allocation of one sub-broker.
type AllocateCommissionInput struct {
	Commission json.Number `json:"commission"`
}

// InviteResult is returned after an invitation was stored.
type InviteResult struct {
	Invite    *BrokerInvite `json:"invite"`
	Broker    *Broker       `json:"broker"`
	EmailSent bool          `json:"email_sent"`
}

// VehicleInput creates or replaces a vehicle.
type VehicleInput struct {
	Brand       string      `json:"brand"`
	Model       string      `json:"model"`
	Variant     string      `json:"variant"`
	FuelType    string      `json:"fuel_type"`
	ListPrice   int64       `json:"list_price"`
	MonthlyRate int64       `json:"monthly_rate"`
	Categories  []string    `json:"categories"`
	PriceMatrix PriceMatrix `json:"price_matrix,omitempty"`
	ImageURL    string      `json:"image_url"`
	IsActive    *bool       `json:"is_active,omitempty"`
}

// VehicleFilter narrows vehicle listings.
type VehicleFilter struct {
	Category   string
	OnlyActive bool
}

// CreateVehicleRequestInput places a lease request.
type CreateVehicleRequestInput struct {
	VehicleID      string `json:"vehicle_id"`
	DurationMonths int    `json:"duration_months"`
	AnnualMileage  int    `json:"annual_mileage"`
	Note           string `json:"note"`
}

// DecideVehicleRequestInput approves or rejects a request.
type DecideVehicleRequestInput struct {
	Approve bool   `json:"approve"`
	Note    string `json:"note"`
}

// LedgerView is the commission ledger of one broker.
type LedgerView struct {
	BrokerID             string           `json:"broker_id"`
	OriginalCommission   int64            `json:"original_commission"`
	AvailableCommission  int64            `json:"available_commission"`
	SubBrokerCommissions map[string]int64 `json:"sub_broker_commissions"`
}
