package audit

import "time"

// AdminUser is an operator account for the Admin API, mirroring the
// teacher's models.User shape but trimmed to what the Admin API needs.
type AdminUser struct {
	ID           uint   `gorm:"primaryKey"`
	Username     string `gorm:"uniqueIndex;not null"`
	PasswordHash string `gorm:"not null"`
	Role         string `gorm:"not null"`
	IsActive     bool   `gorm:"not null;default:true"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ScanRun mirrors one completed Scanner invocation.
type ScanRun struct {
	ID           uint   `gorm:"primaryKey"`
	Kind         string `gorm:"not null"`
	Outcome      string `gorm:"not null"`
	ScannedFiles int64
	SkippedFiles int64
	ThreatCount  int64
	StartedAt    time.Time
	FinishedAt   time.Time
	CreatedAt    time.Time
}

// ThreatRecord mirrors one Threat Finding emitted by the Scanner or the
// File Monitor.
type ThreatRecord struct {
	ID              uint `gorm:"primaryKey"`
	ScanRunID       *uint `gorm:"index"`
	Path            string `gorm:"not null"`
	RuleName        string `gorm:"not null"`
	Severity        int    `gorm:"not null"`
	FileSize        int64
	DetectedAt      time.Time
	AutoQuarantined bool
	CreatedAt       time.Time
}

// Agent is a placeholder record for a future multi-endpoint deployment
// of this engine; kept minimal since the core is currently single-host.
type Agent struct {
	ID        uint   `gorm:"primaryKey"`
	Hostname  string `gorm:"uniqueIndex;not null"`
	Platform  string
	LastSeen  time.Time
	CreatedAt time.Time
}
