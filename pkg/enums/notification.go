package enums

// NotificationType classifies messages sent to booking parties.
type NotificationType string

const (
	NotificationTypeCompletionRequested NotificationType = "completion_requested"
	NotificationTypeCompletionConfirmed NotificationType = "completion_confirmed"
	NotificationTypePaymentRequested    NotificationType = "payment_requested"
	NotificationTypeBookingSettled      NotificationType = "booking_settled"
	NotificationTypePaymentFailed       NotificationType = "payment_failed"
	NotificationTypeBookingCancelled    NotificationType = "booking_cancelled"
	NotificationTypeBookingDisputed     NotificationType = "booking_disputed"
)

var notificationTypes = []NotificationType{
	NotificationTypeCompletionRequested,
	NotificationTypeCompletionConfirmed,
	NotificationTypePaymentRequested,
	NotificationTypeBookingSettled,
	NotificationTypePaymentFailed,
	NotificationTypeBookingCancelled,
	NotificationTypeBookingDisputed,
}

func (n NotificationType) IsValid() bool { return oneOf(n, notificationTypes) }

func ParseNotificationType(value string) (NotificationType, error) {
	return parse("notification type", value, notificationTypes, nil)
}
