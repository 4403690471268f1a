package enums

// NotificationTemplate names a customer-facing message template.
type NotificationTemplate string

const (
	NotificationPendingPayment         NotificationTemplate = "pending-payment"
	NotificationPaymentConfirmed       NotificationTemplate = "payment-confirmed"
	NotificationInTransit              NotificationTemplate = "in-transit"
	NotificationReadyForPickup         NotificationTemplate = "ready-for-pickup"
	NotificationAcceptedForPreparation NotificationTemplate = "accepted-for-preparation"
	NotificationCompleted              NotificationTemplate = "completed"
	NotificationCancelled              NotificationTemplate = "cancelled"
)

var validNotificationTemplates = []NotificationTemplate{
	NotificationPendingPayment,
	NotificationPaymentConfirmed,
	NotificationInTransit,
	NotificationReadyForPickup,
	NotificationAcceptedForPreparation,
	NotificationCompleted,
	NotificationCancelled,
}

// NotificationTemplates returns the fixed template set.
func NotificationTemplates() []NotificationTemplate {
	out := make([]NotificationTemplate, len(validNotificationTemplates))
	copy(out, validNotificationTemplates)
	return out
}

// String implements fmt.Stringer.
func (n NotificationTemplate) String() string {
	return string(n)
}

// IsValid checks whether the template is part of the fixed set.
func (n NotificationTemplate) IsValid() bool {
	for _, candidate := range validNotificationTemplates {
		if candidate == n {
			return true
		}
	}
	return false
}
