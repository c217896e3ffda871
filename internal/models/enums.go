package models

import (
	"complaintdesk/backend/internal/apperr"
	"fmt"
)

// Status is the lifecycle state of a complaint.
type Status string

const (
	StatusOpen       Status = "Open"
	StatusInProgress Status = "In Progress"
	StatusResolved   Status = "Resolved"
	StatusClosed     Status = "Closed"
)

// Statuses lists every status in display order.
var Statuses = []Status{StatusOpen, StatusInProgress, StatusResolved, StatusClosed}

func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusResolved, StatusClosed:
		return true
	}
	return false
}

// IsResolution reports whether entering s stamps resolved_at.
func (s Status) IsResolution() bool {
	return s == StatusResolved || s == StatusClosed
}

// ParseStatus validates a raw status value.
func ParseStatus(v string) (Status, error) {
	s := Status(v)
	if !s.Valid() {
		return "", fmt.Errorf("status %q: %w", v, apperr.ErrInvalidEnumValue)
	}
	return s, nil
}

// Priority is the triage urgency of a complaint.
type Priority string

const (
	PriorityLow    Priority = "Low"
	PriorityMedium Priority = "Medium"
	PriorityHigh   Priority = "High"
)

var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh}

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

func ParsePriority(v string) (Priority, error) {
	p := Priority(v)
	if !p.Valid() {
		return "", fmt.Errorf("priority %q: %w", v, apperr.ErrInvalidEnumValue)
	}
	return p, nil
}

// Category classifies what a complaint is about.
type Category string

const (
	CategoryTechnical Category = "Technical"
	CategoryAcademics Category = "Academics"
	CategoryHostel    Category = "Hostel"
	CategoryCanteen   Category = "Canteen"
	CategoryLibrary   Category = "Library"
	CategoryAdmin     Category = "Admin"
	CategoryOther     Category = "Other"
)

var Categories = []Category{
	CategoryTechnical, CategoryAcademics, CategoryHostel, CategoryCanteen,
	CategoryLibrary, CategoryAdmin, CategoryOther,
}

func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

func ParseCategory(v string) (Category, error) {
	c := Category(v)
	if !c.Valid() {
		return "", fmt.Errorf("category %q: %w", v, apperr.ErrInvalidEnumValue)
	}
	return c, nil
}

// Role is the single active role of a user.
type Role string

const (
	RoleStudent Role = "student"
	RoleStaff   Role = "staff"
	RoleAdmin   Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleStaff, RoleAdmin:
		return true
	}
	return false
}

// IsStaff reports whether the role may triage complaints.
func (r Role) IsStaff() bool {
	return r == RoleStaff || r == RoleAdmin
}

func ParseRole(v string) (Role, error) {
	r := Role(v)
	if !r.Valid() {
		return "", fmt.Errorf("role %q: %w", v, apperr.ErrInvalidEnumValue)
	}
	return r, nil
}
