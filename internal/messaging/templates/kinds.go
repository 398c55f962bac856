package templates

import "fmt"

// Kind selects the template text and the audit classification of a message.
type Kind string

const (
	KindBookingConfirmation Kind = "booking_confirmation"
	KindOwnerNotification   Kind = "owner_notification"
	KindCampaign            Kind = "campaign"
	KindCancellation        Kind = "cancellation"
	KindReminder            Kind = "reminder"
)

// Kinds lists the supported template kinds.
var Kinds = []Kind{
	KindBookingConfirmation,
	KindOwnerNotification,
	KindCampaign,
	KindCancellation,
	KindReminder,
}

// ParseKind validates a kind received from the outside world.
func ParseKind(raw string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == raw {
			return k, nil
		}
	}
	return "", fmt.Errorf("templates: unknown kind %q", raw)
}

// Set maps kinds to template text.
type Set map[Kind]string

// DefaultSet returns the built-in templates used when a site has no override.
func DefaultSet() Set {
	return Set{
		KindBookingConfirmation: "Hi {{customer_name}}, your {{boat_type}} rental with {{business_name}} is confirmed for {{date}} ({{time_slot}}). " +
			"Boats: {{boat_count}}, guests: {{guest_count}}, add-ons: {{addons}}. Total ${{total}} ({{payment_status}}). Meet us at {{location}}. Reply STOP to opt out.",
		KindOwnerNotification: "New booking: {{customer_name}} ({{customer_phone}}) booked {{boat_count}} x {{boat_type}} on {{date}} {{time_slot}}. " +
			"Guests: {{guest_count}}. Total ${{total}} - {{payment_status}}.",
		KindCampaign:     "{{business_name}}: {{customer_name}}, book your next day on the water with us! Reply STOP to opt out.",
		KindCancellation: "Hi {{customer_name}}, your {{boat_type}} rental with {{business_name}} on {{date}} ({{time_slot}}) has been cancelled.",
		KindReminder:     "Reminder from {{business_name}}: your {{boat_type}} rental is on {{date}} ({{time_slot}}) at {{location}}. See you soon!",
	}
}

// Merge returns a new set with overrides applied on top of s. Blank overrides are ignored.
func (s Set) Merge(overrides Set) Set {
	out := make(Set, len(s)+len(overrides))
	for k, v := range s {
		out[k] = v
	}
	for k, v := range overrides {
		if v != "" {
			out[k] = v
		}
	}
	return out
}
