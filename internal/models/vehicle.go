package models

import (
	"slices"
	"sort"
	"strconv"
)

// Vehicle categories.
const (
	CategorySalary   = "salary"
	CategoryBusiness = "business"
	CategoryPrivate  = "private"
)

// KnownCategories lists the accepted vehicle categories.
var KnownCategories = []string{CategorySalary, CategoryBusiness, CategoryPrivate}

// PriceMatrix maps lease duration (months) to annual mileage (km) to the monthly
// rate in cents. Keys are strings so the matrix round-trips through JSON.
type PriceMatrix map[string]map[string]int64

// Rate looks up the monthly rate for a duration and mileage.
func (m PriceMatrix) Rate(durationMonths, annualMileage int) (int64, bool) {
	row, ok := m[strconv.Itoa(durationMonths)]
	if !ok {
		return 0, false
	}
	rate, ok := row[strconv.Itoa(annualMileage)]
	return rate, ok
}

// Durations returns the sorted durations present in the matrix.
func (m PriceMatrix) Durations() []int {
	out := make([]int, 0, len(m))
	for k := range m {
		if v, err := strconv.Atoi(k); err == nil {
			out = append(out, v)
		}
	}
	sort.Ints(out)
	return out
}

// Vehicle is a catalog entry.
type Vehicle struct {
	Record
	Brand       string      `gorm:"size:128;not null;index" json:"brand"`
	Model       string      `gorm:"size:128;not null" json:"model"`
	Variant     string      `gorm:"size:255" json:"variant,omitempty"`
	FuelType    string      `gorm:"size:32" json:"fuel_type,omitempty"`
	ListPrice   int64       `json:"list_price"`
	MonthlyRate int64       `json:"monthly_rate"`
	Categories  []string    `gorm:"serializer:json" json:"categories"`
	PriceMatrix PriceMatrix `gorm:"serializer:json" json:"price_matrix,omitempty"`
	ImageURL    string      `gorm:"size:1024" json:"image_url,omitempty"`
	IsActive    bool        `gorm:"default:true" json:"is_active"`
}

// HasCategory reports whether the vehicle is listed under category.
func (v *Vehicle) HasCategory(category string) bool {
	return slices.Contains(v.Categories, category)
}

// RequestType is the vehicle-request type implied by this vehicle's categories.
func (v *Vehicle) RequestType() (VehicleRequestType, bool) {
	if v == nil || len(v.Categories) == 0 {
		return "", false
	}
	if v.HasCategory(CategorySalary) {
		return VehicleRequestType(CategorySalary), true
	}
	return VehicleRequestType(v.Categories[0]), true
}

// VehicleRequestType mirrors the vehicle category a request was placed under.
type VehicleRequestType string

// VehicleRequestStatus tracks a vehicle request.
type VehicleRequestStatus string

const (
	VehicleRequestPending   VehicleRequestStatus = "pending"
	VehicleRequestApproved  VehicleRequestStatus = "approved"
	VehicleRequestRejected  VehicleRequestStatus = "rejected"
	VehicleRequestCancelled VehicleRequestStatus = "cancelled"
)

// VehicleRequest is an employee's or customer's request to lease a vehicle.
type VehicleRequest struct {
	Record
	UserID         string               `gorm:"type:varchar(36);index;not null" json:"user_id"`
	CompanyID      *string              `gorm:"type:varchar(36);index" json:"company_id,omitempty"`
	VehicleID      string               `gorm:"type:varchar(36);index;not null" json:"vehicle_id"`
	Vehicle        *Vehicle             `gorm:"constraint:OnDelete:RESTRICT" json:"vehicle,omitempty"`
	Type           VehicleRequestType   `gorm:"size:32;index" json:"type"`
	DurationMonths int                  `json:"duration_months"`
	AnnualMileage  int                  `json:"annual_mileage"`
	MonthlyRate    int64                `json:"monthly_rate"`
	Status         VehicleRequestStatus `gorm:"size:16;index;not null" json:"status"`
	DecidedBy      *string              `gorm:"type:varchar(36)" json:"decided_by,omitempty"`
	Note           string               `gorm:"size:1024" json:"note,omitempty"`
}
