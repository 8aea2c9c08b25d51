package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/vilonda/portal/internal/mail"
	"github.com/vilonda/portal/internal/models"
	"github.com/vilonda/portal/internal/repository"
	"github.com/vilonda/portal/internal/roles"
	"github.com/vilonda/portal/internal/session"
	"go.uber.org/zap"
)

var (
	ErrVehicleRequestNotFound = errors.New("vehicle request not found")
	ErrRequestNotPending      = errors.New("vehicle request is no longer pending")
)

// VehicleRequestService handles lease requests placed by employees and customers.
type VehicleRequestService struct {
	vehicles  *repository.VehicleRepository
	users     *repository.UserRepository
	companies *repository.CompanyRepository
	notify    Notifier
	templates mail.Templates
}

// NewVehicleRequestService constructs the service.
func NewVehicleRequestService(
	vehicles *repository.VehicleRepository,
	users *repository.UserRepository,
	companies *repository.CompanyRepository,
	n Notifier,
	templates mail.Templates,
) *VehicleRequestService {
	return &VehicleRequestService{
		vehicles:  vehicles,
		users:     users,
		companies: companies,
		notify:    n,
		templates: templates,
	}
}

// CreateRequest places a request for a vehicle. Its type follows the vehicle's
// categories; salary requests need an employee of an active company.
func (s *VehicleRequestService) CreateRequest(ctx context.Context, actor *session.Session, input *models.CreateVehicleRequestInput) (*models.VehicleRequest, error) {
	if !actor.Can(roles.RequestVehicles) {
		return nil, ErrForbidden
	}
	if input == nil {
		return nil, fmt.Errorf("input required")
	}
	vehicleID := strings.TrimSpace(input.VehicleID)
	if vehicleID == "" {
		return nil, invalid("vehicle_id", "is required")
	}

	vehicle, err := s.vehicles.GetByID(ctx, vehicleID)
	if err != nil {
		return nil, err
	}
	if vehicle == nil || !vehicle.IsActive {
		return nil, ErrVehicleNotFound
	}
	requestType, ok := vehicle.RequestType()
	if !ok {
		return nil, invalid("vehicle_id", "vehicle has no category")
	}

	var company *models.Company
	if actor.CompanyID != "" {
		company, err = s.companies.GetByID(ctx, actor.CompanyID)
		if err != nil {
			return nil, err
		}
	}
	if requestType == models.VehicleRequestType(models.CategorySalary) {
		if actor.Role != roles.Employee || company == nil {
			return nil, invalid("vehicle_id", "salary conversion vehicles can only be requested by employees")
		}
		if !company.IsActive {
			return nil, invalid("company", "is not active")
		}
	}

	rate, err := priceFor(vehicle, input.DurationMonths, input.AnnualMileage)
	if err != nil {
		return nil, err
	}

	req := &models.VehicleRequest{
		UserID:         actor.UserID,
		VehicleID:      vehicle.ID,
		Type:           requestType,
		DurationMonths: input.DurationMonths,
		AnnualMileage:  input.AnnualMileage,
		MonthlyRate:    rate,
		Status:         models.VehicleRequestPending,
		Note:           strings.TrimSpace(input.Note),
	}
	if company != nil {
		req.CompanyID = &company.ID
	}
	if err := s.vehicles.CreateRequest(ctx, req); err != nil {
		return nil, fmt.Errorf("create vehicle request: %w", err)
	}
	req.Vehicle = vehicle

	if company != nil {
		s.notifyEmployers(ctx, company, actor, req)
	}
	return req, nil
}

func (s *VehicleRequestService) notifyEmployers(ctx context.Context, company *models.Company, actor *session.Session, req *models.VehicleRequest) {
	employerRole := roles.Employer
	employers, err := s.users.ListByCompany(ctx, company.ID, &employerRole)
	if err != nil {
		s.notify.warn("Failed to load employers for notification", zap.String("company_id", company.ID), zap.Error(err))
		return
	}
	for _, employer := range employers {
		if !employer.IsActive {
			continue
		}
		s.notify.send(ctx, mail.Message{
			Template:   mail.TemplateVehicleRequest,
			TemplateID: s.templates.VehicleRequest,
			To:         mail.Recipient{Email: employer.Email, Name: employer.FullName()},
			Params: map[string]any{
				"companyName":    company.Name,
				"requesterEmail": actor.Email,
				"vehicle":        strings.TrimSpace(req.Vehicle.Brand + " " + req.Vehicle.Model),
				"durationMonths": req.DurationMonths,
				"annualMileage":  req.AnnualMileage,
				"monthlyRate":    req.MonthlyRate,
				"requestId":      req.ID,
			},
		})
	}
}

// DecideRequest approves or rejects a pending request of the employer's company.
func (s *VehicleRequestService) DecideRequest(ctx context.Context, actor *session.Session, id string, input *models.DecideVehicleRequestInput) (*models.VehicleRequest, error) {
	if !actor.Can(roles.DecideVehicleRequests) {
		return nil, ErrForbidden
	}
	if input == nil {
		return nil, fmt.Errorf("input required")
	}
	req, err := s.vehicles.GetRequestByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, ErrVehicleRequestNotFound
	}
	if !actor.IsAdmin() && (req.CompanyID == nil || *req.CompanyID != actor.CompanyID) {
		return nil, ErrForbidden
	}

	status := models.VehicleRequestRejected
	if input.Approve {
		status = models.VehicleRequestApproved
	}
	decidedBy := actor.UserID
	note := strings.TrimSpace(input.Note)
	changed, err := s.vehicles.TransitionRequest(ctx, req.ID, status, &decidedBy, note)
	if err != nil {
		return nil, err
	}
	if !changed {
		return nil, ErrRequestNotPending
	}

	req.Status = status
	req.DecidedBy = &decidedBy
	if note != "" {
		req.Note = note
	}
	return req, nil
}

// CancelRequest withdraws the caller's own pending request.
func (s *VehicleRequestService) CancelRequest(ctx context.Context, actor *session.Session, id string) error {
	if actor == nil {
		return session.ErrNoSession
	}
	req, err := s.vehicles.GetRequestByID(ctx, id)
	if err != nil {
		return err
	}
	if req == nil {
		return ErrVehicleRequestNotFound
	}
	if !actor.IsAdmin() && req.UserID != actor.UserID {
		return ErrForbidden
	}
	changed, err := s.vehicles.TransitionRequest(ctx, req.ID, models.VehicleRequestCancelled, nil, "")
	if err != nil {
		return err
	}
	if !changed {
		return ErrRequestNotPending
	}
	return nil
}

// GetRequest returns a request visible to the caller.
func (s *VehicleRequestService) GetRequest(ctx context.Context, actor *session.Session, id string) (*models.VehicleRequest, error) {
	if !actor.Can(roles.ViewVehicleRequests) {
		return nil, ErrForbidden
	}
	req, err := s.vehicles.GetRequestByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, ErrVehicleRequestNotFound
	}
	if !canSeeRequest(actor, req) {
		return nil, ErrVehicleRequestNotFound
	}
	return req, nil
}

func canSeeRequest(actor *session.Session, req *models.VehicleRequest) bool {
	switch actor.Role {
	case roles.Admin:
		return true
	case roles.Employer:
		return req.CompanyID != nil && *req.CompanyID == actor.CompanyID
	case roles.Employee, roles.Customer:
		return req.UserID == actor.UserID
	case roles.Broker:
		return false
	default:
		return false
	}
}

// ListRequests returns the requests visible to the caller, optionally by status.
func (s *VehicleRequestService) ListRequests(ctx context.Context, actor *session.Session, status *models.VehicleRequestStatus) ([]*models.VehicleRequest, error) {
	if !actor.Can(roles.ViewVehicleRequests) {
		return nil, ErrForbidden
	}
	q := repository.RequestQuery{Status: status}
	switch actor.Role {
	case roles.Admin:
	case roles.Employer:
		if actor.CompanyID == "" {
			return nil, ErrForbidden
		}
		companyID := actor.CompanyID
		q.CompanyID = &companyID
	case roles.Employee, roles.Customer:
		userID := actor.UserID
		q.UserID = &userID
	case roles.Broker:
		return nil, ErrForbidden
	default:
		return nil, ErrForbidden
	}
	return s.vehicles.ListRequests(ctx, q)
}
