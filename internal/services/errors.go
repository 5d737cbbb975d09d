package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrTransport     = errors.New("transport error")
	ErrBackend       = errors.New("backend rejected request")
	ErrAuth          = errors.New("authentication failed")
	ErrOrphanedOrder = errors.New("orphaned outbound order")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrExhausted     = errors.New("attempts exhausted")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransport
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// OrphanedOrder describes an outbound order that was created on the warehouse
// system but never confirmed because a later saga step failed.
type OrphanedOrder struct {
	SONo string
	SN   string
	Step string
	Err  error
}

func (o *OrphanedOrder) Error() string {
	msg := fmt.Sprintf("%s: order %s for sn %s left unconfirmed at %s", ErrOrphanedOrder, o.SONo, o.SN, o.Step)
	if o.Err != nil {
		msg += ": " + o.Err.Error()
	}
	return msg
}

func (o *OrphanedOrder) Unwrap() []error {
	if o.Err == nil {
		return []error{ErrOrphanedOrder}
	}
	return []error{ErrOrphanedOrder, o.Err}
}

// AsOrphanedOrder extracts orphan details when err carries them.
func AsOrphanedOrder(err error) (*OrphanedOrder, bool) {
	var orphan *OrphanedOrder
	if errors.As(err, &orphan) {
		return orphan, true
	}
	return nil, false
}

// FailureKind maps an error to a short label used in run reports and the ledger.
func FailureKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrOrphanedOrder):
		return "orphaned_order"
	case errors.Is(err, ErrAuth):
		return "auth"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrExhausted):
		return "exhausted"
	case errors.Is(err, ErrBackend):
		return "backend"
	case errors.Is(err, ErrTransport):
		return "transport"
	default:
		return "unknown"
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
