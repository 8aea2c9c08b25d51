package models

// Company represents an employer registered on the portal.
type Company struct {
	Record
	Name          string  `gorm:"size:255;not null" json:"name"`
	LegalForm     string  `gorm:"size:64" json:"legal_form,omitempty"`
	VATID         string  `gorm:"column:vat_id;size:64;uniqueIndex" json:"vat_id"`
	Street        string  `gorm:"size:255" json:"street,omitempty"`
	PostalCode    string  `gorm:"size:16" json:"postal_code,omitempty"`
	City          string  `gorm:"size:128" json:"city,omitempty"`
	Country       string  `gorm:"size:2;default:'DE'" json:"country"`
	ContactEmail  string  `gorm:"size:255" json:"contact_email"`
	EmployeeCount int     `json:"employee_count,omitempty"`
	BrokerID      *string `gorm:"type:varchar(36);index" json:"broker_id,omitempty"`
	IsActive      bool    `gorm:"default:true" json:"is_active"`
}
