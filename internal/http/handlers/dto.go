package handlers

import "time"

type reassignRequest struct {
	ShipperID *int64 `json:"shipper_id,omitempty"`
	Notes     string `json:"notes,omitempty"`
}

type confirmPickupRequest struct {
	ShipperID int64 `json:"shipper_id"`
}

type assignResponse struct {
	Assigned    bool       `json:"assigned"`
	Outcome     string     `json:"outcome"`
	OrderID     int64      `json:"order_id"`
	ShipperID   int64      `json:"shipper_id,omitempty"`
	ShipperName string     `json:"shipper_name,omitempty"`
	AssignedAt  *time.Time `json:"assigned_at,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	JobID       string     `json:"job_id,omitempty"`
}

type reassignResponse struct {
	Reassigned        bool           `json:"reassigned"`
	Outcome           string         `json:"outcome"`
	OrderID           int64          `json:"order_id"`
	PreviousShipperID int64          `json:"previous_shipper_id,omitempty"`
	Next              assignResponse `json:"next"`
}

type confirmResponse struct {
	Confirmed    bool       `json:"confirmed"`
	Outcome      string     `json:"outcome"`
	OrderID      int64      `json:"order_id"`
	ShipperID    int64      `json:"shipper_id"`
	ConfirmedAt  *time.Time `json:"confirmed_at,omitempty"`
	ActiveOrders int        `json:"active_orders"`
}

type historyDTO struct {
	ShipperID   int64      `json:"shipper_id"`
	AssignedAt  time.Time  `json:"assigned_at"`
	Response    string     `json:"response,omitempty"`
	RespondedAt *time.Time `json:"responded_at,omitempty"`
	Notes       string     `json:"notes,omitempty"`
}

type assignmentsResponse struct {
	OrderID           int64        `json:"order_id"`
	Status            string       `json:"status"`
	ShipperID         *int64       `json:"shipper_id"`
	ShipperStatus     string       `json:"shipper_status"`
	AssignedAt        *time.Time   `json:"assigned_at,omitempty"`
	ConfirmedAt       *time.Time   `json:"confirmed_at,omitempty"`
	ReassignmentJobID *string      `json:"reassignment_job_id,omitempty"`
	History           []historyDTO `json:"history"`
}

type shipperDTO struct {
	UserID              int64      `json:"user_id"`
	Name                string     `json:"name"`
	Phone               string     `json:"phone,omitempty"`
	IsWorking           bool       `json:"is_working"`
	CurrentActiveOrders int        `json:"current_active_orders"`
	MaxActiveOrders     int        `json:"max_active_orders"`
	LastAssignedAt      *time.Time `json:"last_assigned_at,omitempty"`
}

type registerShipperRequest struct {
	UserID          int64  `json:"user_id"`
	Name            string `json:"name"`
	Phone           string `json:"phone"`
	IsWorking       bool   `json:"is_working"`
	MaxActiveOrders int    `json:"max_active_orders"`
}

type setWorkingRequest struct {
	IsWorking *bool `json:"is_working"`
}

type sweepResponse struct {
	Scanned  int `json:"scanned"`
	Assigned int `json:"assigned"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
}

type urgencyResponse struct {
	Scanned   int `json:"scanned"`
	Escalated int `json:"escalated"`
}
