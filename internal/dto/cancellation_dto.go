// FILE: internal/dto/cancellation_dto.go
package dto

import "time"

// --- Member-initiated cancellation ---

type CancelMembershipRequest struct {
	Reason string `json:"reason" validate:"required,min=3,max=500"`
}

// CancellationPreviewResponse is what a cancellation would do if requested now
type CancellationPreviewResponse struct {
	CancellationType string    `json:"cancellation_type"`
	CancelDate       time.Time `json:"cancel_date"`
	RefundPercentage float64   `json:"refund_percentage"`
	EstimatedRefund  *float64  `json:"estimated_refund,omitempty"`
	Immediate        bool      `json:"immediate"`
}

type CancelMembershipResponse struct {
	Status           string    `json:"status"`
	CancellationType string    `json:"cancellation_type"`
	CancelDate       time.Time `json:"cancel_date"`
	RefundPercentage float64   `json:"refund_percentage"`
	RefundAmount     *float64  `json:"refund_amount,omitempty"`
	Message          string    `json:"message"`
}
