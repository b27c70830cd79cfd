// Package utils provides utility functions for the event bridge.
//
// This package contains common utilities for correlation ID generation and
// bounded retry loops used throughout the application.
package utils

import (
	"github.com/google/uuid"
)

// NewCorrelationID generates a fresh correlation identifier.
//
// The identifier is a random UUID v4 and is attached to every canonical
// payload as its guid; it doubles as the contact key in the outgoing
// event envelope.
func NewCorrelationID() string {
	return uuid.NewString()
}
