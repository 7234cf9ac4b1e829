package types

import "time"

// DiskRow is one guest volume of one VM, in megabytes.
type DiskRow struct {
	VM         string `json:"vm"`
	Path       string `json:"path"`
	CapacityMB int64  `json:"capacity_mb"`
	FreeMB     int64  `json:"free_mb"`
	// FreePercent is meaningful only when PercentKnown is set; a disk that
	// reports zero capacity has no percentage.
	FreePercent  int  `json:"free_percent"`
	PercentKnown bool `json:"percent_known"`
}

// Report is the top-level structure rendered and delivered by a run.
type Report struct {
	Title     string    `json:"title"`
	Endpoint  string    `json:"endpoint"`
	Product   string    `json:"product,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	// WarnBelowPercent marks rows whose free space is under this value.
	WarnBelowPercent int       `json:"warn_below_percent"`
	Rows             []DiskRow `json:"rows"`
}
