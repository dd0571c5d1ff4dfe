package employee

import "context"

type EmployeeRepository interface {
	// GetByID returns a non-deleted employee of the company.
	GetByID(ctx context.Context, id string, companyID string) (Employee, error)
	CountActiveByCompanyID(ctx context.Context, companyID string) (int, error)
}
