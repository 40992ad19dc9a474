package models

import (
	"errors"
	"fmt"
	"strings"
)

// Domain errors shared across the service and HTTP layers
var (
	ErrInvoiceNotFound    = errors.New("invoice not found")
	ErrForwardingDisabled = errors.New("erpnext forwarding is not configured")
	ErrAlreadySubmitted   = errors.New("invoice already submitted to erpnext")
)

// InvalidFormatError reports missing or mistyped fields in structured
// invoice input. It escapes only ParseStructured; the extraction ladder
// never surfaces it.
type InvalidFormatError struct {
	Fields []string
}

func (e *InvalidFormatError) Error() string {
	return fmt.Sprintf("invalid invoice format: %s", strings.Join(e.Fields, ", "))
}
