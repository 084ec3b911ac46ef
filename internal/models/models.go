// Package models defines the data structures used across the application.
// These map to the PostgreSQL schema in internal/database/schema.sql.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Severity is the citizen-reported urgency of a complaint
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
)

// Valid reports whether s is one of the four known severities
func (s Severity) Valid() bool {
	switch s {
	case SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow:
		return true
	}
	return false
}

// Role is the caller role supplied by the authentication layer
type Role string

const (
	RoleCitizen   Role = "citizen"
	RoleAuthority Role = "authority"
	RoleAdmin     Role = "admin"
)

// Actor is an authenticated caller
type Actor struct {
	ID   uuid.UUID `json:"id"`
	Role Role      `json:"role"`
}

// Complaint is a citizen-filed civic issue
type Complaint struct {
	ID                  uuid.UUID         `json:"id" db:"id"`
	CitizenID           uuid.UUID         `json:"citizen_id" db:"citizen_id"`
	Category            string            `json:"category" db:"category"`
	Description         string            `json:"description,omitempty" db:"description"`
	Latitude            float64           `json:"lat" db:"lat"`
	Longitude           float64           `json:"lng" db:"lng"`
	PhotoURL            *string           `json:"photo_url,omitempty" db:"photo_url"`
	Severity            Severity          `json:"severity" db:"severity"`
	PriorityScore       int               `json:"priority_score" db:"priority_score"`
	PriorityBreakdown   PriorityBreakdown `json:"priority_breakdown" db:"priority_breakdown"`
	Status              Status            `json:"status" db:"status"`
	DepartmentID        string            `json:"department_id" db:"department_id"`
	HoursAllowed        int               `json:"hours_allowed" db:"hours_allowed"`
	SLADeadline         time.Time         `json:"sla_deadline" db:"sla_deadline"`
	SLABreached         bool              `json:"sla_breached" db:"sla_breached"`
	IsDuplicate         bool              `json:"is_duplicate" db:"is_duplicate"`
	ResolvedAt          *time.Time        `json:"resolved_at,omitempty" db:"resolved_at"`
	AssignedAuthorityID *uuid.UUID        `json:"assigned_authority_id,omitempty" db:"assigned_authority_id"`
	CreatedAt           time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time         `json:"updated_at" db:"updated_at"`
}

// PriorityBreakdown is the auditable per-factor split of a priority score.
// Stored as JSONB and never rewritten after intake.
type PriorityBreakdown struct {
	Severity   int     `json:"severity"`
	Zone       int     `json:"zone"`
	ZoneLabel  *string `json:"zone_label"`
	Population int     `json:"population"`
	Duplicates int     `json:"duplicates"`
}

// PriorityResult is the output of the priority scorer
type PriorityResult struct {
	Total     int               `json:"total"`
	Breakdown PriorityBreakdown `json:"breakdown"`
}

// SLAAssignment is the deadline computed at intake
type SLAAssignment struct {
	Deadline     time.Time `json:"deadline"`
	HoursAllowed int       `json:"hours_allowed"`
}

// ComplaintSubmission is the request body for filing a new complaint
type ComplaintSubmission struct {
	Category    string   `json:"category" validate:"required,max=64"`
	Description string   `json:"description,omitempty" validate:"max=4000"`
	Latitude    *float64 `json:"lat" validate:"required,latitude"`
	Longitude   *float64 `json:"lng" validate:"required,longitude"`
	Severity    Severity `json:"severity" validate:"required,oneof=CRITICAL HIGH MEDIUM LOW"`
	PhotoURL    string   `json:"photo_url,omitempty" validate:"omitempty,url"`
}

// SubmissionResult is returned to the intake collaborator
type SubmissionResult struct {
	Complaint         *Complaint        `json:"complaint"`
	PriorityScore     int               `json:"priority_score"`
	PriorityBreakdown PriorityBreakdown `json:"priority_breakdown"`
	SLADeadline       time.Time         `json:"sla_deadline"`
	HoursAllowed      int               `json:"hours_allowed"`
	DepartmentID      string            `json:"department_id"`
	CoinsAwarded      []CoinAward       `json:"coins_awarded"`
	BadgesEarned      []Badge           `json:"badges_earned,omitempty"`
}

// StatusUpdate is the request body for an authority status change
type StatusUpdate struct {
	Status              Status     `json:"status" validate:"required,oneof=ASSIGNED IN_PROGRESS RESOLVED CLOSED"`
	Note                string     `json:"note,omitempty" validate:"max=2000"`
	AssignedAuthorityID *uuid.UUID `json:"assigned_authority_id,omitempty"`
	DuplicateOf         *uuid.UUID `json:"duplicate_of,omitempty"`
}

// StatusUpdateResult is returned to the status-update collaborator
type StatusUpdateResult struct {
	Complaint    *Complaint  `json:"complaint"`
	CoinsAwarded []CoinAward `json:"coins_awarded,omitempty"`
	BadgesEarned []Badge     `json:"badges_earned,omitempty"`
}

// StatusHistoryEntry is an append-only record of one status transition.
// ActorID is nil for entries written by the SLA sweep.
type StatusHistoryEntry struct {
	ID          uuid.UUID  `json:"id" db:"id"`
	ComplaintID uuid.UUID  `json:"complaint_id" db:"complaint_id"`
	Status      Status     `json:"status" db:"status"`
	Note        string     `json:"note,omitempty" db:"note"`
	ActorID     *uuid.UUID `json:"actor_id,omitempty" db:"actor_id"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
}

// AnalyticsTrend represents aggregated complaint trend data
type AnalyticsTrend struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// CategoryDistribution for pie/bar charts
type CategoryDistribution struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

// DepartmentHeatmap for department analysis
type DepartmentHeatmap struct {
	Department  string  `json:"department"`
	Count       int     `json:"count"`
	AvgPriority float64 `json:"avg_priority"`
	Breached    int     `json:"breached"`
}

// HealthStatus represents the server health check response
type HealthStatus struct {
	Status     string `json:"status"`
	Version    string `json:"version"`
	Uptime     string `json:"uptime"`
	Database   string `json:"database,omitempty"`
	Cache      string `json:"cache,omitempty"`
	LedgerRoot string `json:"ledger_root,omitempty"`
}
