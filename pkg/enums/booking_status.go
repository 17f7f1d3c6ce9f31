package enums

// BookingStatus maps to the booking_status enum in Postgres.
type BookingStatus string

const (
	BookingStatusRequested         BookingStatus = "requested"
	BookingStatusAccepted          BookingStatus = "accepted"
	BookingStatusInProgress        BookingStatus = "in_progress"
	BookingStatusCompletionPending BookingStatus = "completion_pending"
	BookingStatusCompleted         BookingStatus = "completed"
	BookingStatusSettlementPending BookingStatus = "settlement_pending"
	BookingStatusSettled           BookingStatus = "settled"
	BookingStatusCancelled         BookingStatus = "cancelled"
	BookingStatusDisputed          BookingStatus = "disputed"
)

var bookingStatuses = []BookingStatus{
	BookingStatusRequested,
	BookingStatusAccepted,
	BookingStatusInProgress,
	BookingStatusCompletionPending,
	BookingStatusCompleted,
	BookingStatusSettlementPending,
	BookingStatusSettled,
	BookingStatusCancelled,
	BookingStatusDisputed,
}

func (s BookingStatus) IsValid() bool { return oneOf(s, bookingStatuses) }

// IsTerminal reports whether no automatic transition leaves this status.
func (s BookingStatus) IsTerminal() bool {
	return oneOf(s, []BookingStatus{BookingStatusSettled, BookingStatusCancelled, BookingStatusDisputed})
}

func ParseBookingStatus(value string) (BookingStatus, error) {
	return parse("booking status", value, bookingStatuses, nil)
}
