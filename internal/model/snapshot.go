package model

// UpdateStatus is the package-manager view of pending updates.
type UpdateStatus struct {
	Total          uint
	Security       uint
	RebootRequired bool
}

// Snapshot is one complete set of host metrics for a single cycle. The JSON
// names are the collector's wire format and must stay stable.
type Snapshot struct {
	Hostname      string  `json:"hostname"`
	IPAddress     string  `json:"ip_address"`
	CPUPercent    float64 `json:"cpu_percent"` // percent 0-100
	CPUCount      uint    `json:"cpu_count"`
	MemTotal      uint64  `json:"mem_total"`
	MemUsed       uint64  `json:"mem_used"`
	DiskTotal     uint64  `json:"disk_total"`
	DiskFree      uint64  `json:"disk_free"`
	UptimeSeconds uint64  `json:"uptime_seconds"`

	TotalUpdates    uint `json:"total_updates"`
	SecurityUpdates uint `json:"security_updates"`
	RebootRequired  bool `json:"reboot_required"`
}

// WithUpdates returns a copy of s carrying the given update status.
func (s Snapshot) WithUpdates(u UpdateStatus) Snapshot {
	s.TotalUpdates = u.Total
	s.SecurityUpdates = u.Security
	s.RebootRequired = u.RebootRequired
	return s
}

// Updates extracts the update status fields.
func (s Snapshot) Updates() UpdateStatus {
	return UpdateStatus{
		Total:          s.TotalUpdates,
		Security:       s.SecurityUpdates,
		RebootRequired: s.RebootRequired,
	}
}
