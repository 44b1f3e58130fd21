package domain

import "context"

// RateSource supplies already fetched quotes for one feed.
type RateSource interface {
	Name() string
	FetchRates(ctx context.Context) ([]RateEntry, error)
}

// ScanRepository defines storage operations for scan reports.
type ScanRepository interface {
	SaveScan(ctx context.Context, report *ScanReport) error
	GetLatestScan(ctx context.Context) (*ScanReport, error)
	ListScans(ctx context.Context, limit int) ([]*ScanReport, error)
}

// Notifier pushes a finished scan to an outside channel.
type Notifier interface {
	Notify(ctx context.Context, report *ScanReport) error
}
