package payroll

import "context"

// PayrollService is the request-facing payroll API. School and acting user
// are taken from the JWT claims carried by ctx.
type PayrollService interface {
	// Config
	GetConfig(ctx context.Context) (ConfigResponse, error)
	UpsertConfig(ctx context.Context, req UpsertConfigRequest) (ConfigResponse, error)

	// Periods
	CreatePeriod(ctx context.Context, req CreatePeriodRequest) (PeriodResponse, error)
	GetPeriod(ctx context.Context, periodID string) (PeriodResponse, error)
	PreviewPeriod(ctx context.Context, periodID string) (PreviewResponse, error)
	ProcessPeriod(ctx context.Context, periodID string) (ProcessPeriodResponse, error)

	// Items
	ListItems(ctx context.Context, periodID string) ([]ItemResponse, error)
	GetItem(ctx context.Context, periodID, employeeID string) (PayrollPeriod, PayrollItem, error)
	ListPeriodItems(ctx context.Context, periodID string) (PayrollPeriod, []PayrollItem, error)
}
