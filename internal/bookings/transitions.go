package bookings

import (
	"fmt"

	"github.com/gigbridge/gigbridge-backend/pkg/enums"
	pkgerrors "github.com/gigbridge/gigbridge-backend/pkg/errors"
)

// transitions is the closed lifecycle graph. Any edge not listed is illegal.
var transitions = map[enums.BookingStatus][]enums.BookingStatus{
	enums.BookingStatusRequested:         {enums.BookingStatusAccepted, enums.BookingStatusCancelled},
	enums.BookingStatusAccepted:          {enums.BookingStatusInProgress, enums.BookingStatusCancelled},
	enums.BookingStatusInProgress:        {enums.BookingStatusCompletionPending, enums.BookingStatusCancelled},
	enums.BookingStatusCompletionPending: {enums.BookingStatusCompleted, enums.BookingStatusDisputed},
	enums.BookingStatusCompleted:         {enums.BookingStatusSettlementPending, enums.BookingStatusDisputed},
	enums.BookingStatusSettlementPending: {enums.BookingStatusSettled},
}

// CanTransition reports whether from -> to is an edge of the lifecycle graph.
func CanTransition(from, to enums.BookingStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func checkTransition(from, to enums.BookingStatus) error {
	if CanTransition(from, to) {
		return nil
	}
	return pkgerrors.New(
		pkgerrors.CodeInvalidTransition,
		fmt.Sprintf("booking cannot move from %s to %s", from, to),
	).WithDetails(map[string]string{"from": string(from), "to": string(to)})
}
