package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/wolfman30/charter-notify/internal/messaging/templates"
	"github.com/wolfman30/charter-notify/internal/store"
	"github.com/wolfman30/charter-notify/pkg/logging"
)

const dateLayout = "Monday, January 2, 2006"

// Booking is the record a notification is rendered from.
type Booking struct {
	ID            string   `json:"id"`
	CustomerName  string   `json:"customer_name"`
	CustomerPhone string   `json:"customer_phone"`
	CustomerEmail string   `json:"customer_email"`
	BookingDate   string   `json:"booking_date"`
	BookingTime   string   `json:"booking_time"`
	TimeSlotID    string   `json:"time_slot_id"`
	FleetTypeID   string   `json:"fleet_type_id"`
	Quantity      int      `json:"qty"`
	PartySize     int      `json:"party_size"`
	Addons        []string `json:"addons"`
	Total         float64  `json:"total"`
	Paid          bool     `json:"paid"`
}

// ReferenceData reads the records joined into a token context. Every lookup is
// scoped to the site.
type ReferenceData interface {
	GetBusiness(ctx context.Context, siteID string) (*store.Business, error)
	GetAddress(ctx context.Context, siteID string) (*store.Address, error)
	GetFleetType(ctx context.Context, siteID, id string) (*store.FleetType, error)
	GetTimeSlot(ctx context.Context, siteID, id string) (*store.TimeSlot, error)
}

// Builder assembles token contexts. A failed or empty lookup degrades that
// token to its fallback and never aborts the build.
type Builder struct {
	ref    ReferenceData
	logger *logging.Logger
}

func NewBuilder(ref ReferenceData, logger *logging.Logger) *Builder {
	if logger == nil {
		logger = logging.Default()
	}
	return &Builder{ref: ref, logger: logger}
}

// Build returns a complete context for the booking.
func (b *Builder) Build(ctx context.Context, siteID string, booking Booking) templates.Context {
	tc, _ := b.build(ctx, siteID, booking)
	return tc
}

// build also returns the business record so callers can reuse its sender and
// notify numbers. The business is nil when the lookup failed.
func (b *Builder) build(ctx context.Context, siteID string, booking Booking) (templates.Context, *store.Business) {
	values := map[templates.Token]string{
		templates.TokenCustomerName:  booking.CustomerName,
		templates.TokenCustomerPhone: booking.CustomerPhone,
		templates.TokenCustomerEmail: booking.CustomerEmail,
		templates.TokenBusinessName:  "",
		templates.TokenDate:          formatBookingDate(booking.BookingDate),
		templates.TokenTimeSlot:      booking.BookingTime,
		templates.TokenBoatCount:     "1",
		templates.TokenBoatType:      "",
		templates.TokenAddons:        "None",
		templates.TokenGuestCount:    "1",
		templates.TokenTotal:         fmt.Sprintf("%.2f", booking.Total),
		templates.TokenLocation:      "",
		templates.TokenPaymentStatus: "Pending",
	}

	if booking.Quantity > 0 {
		values[templates.TokenBoatCount] = strconv.Itoa(booking.Quantity)
	}
	switch {
	case booking.PartySize > 0:
		values[templates.TokenGuestCount] = strconv.Itoa(booking.PartySize)
	case booking.Quantity > 0:
		values[templates.TokenGuestCount] = strconv.Itoa(booking.Quantity)
	}
	if addons := joinNonEmpty(booking.Addons); addons != "" {
		values[templates.TokenAddons] = addons
	}
	if booking.Paid {
		values[templates.TokenPaymentStatus] = "Paid"
	}

	var business *store.Business
	if b.ref != nil {
		if biz, err := b.ref.GetBusiness(ctx, siteID); b.usable(err, siteID, "business") && biz != nil {
			business = biz
			values[templates.TokenBusinessName] = biz.Name
		}
		if addr, err := b.ref.GetAddress(ctx, siteID); b.usable(err, siteID, "address") && addr != nil {
			values[templates.TokenLocation] = strings.Join(addr.Parts(), ", ")
		}
		if booking.FleetTypeID != "" {
			if fleet, err := b.ref.GetFleetType(ctx, siteID, booking.FleetTypeID); b.usable(err, siteID, "fleet type") && fleet != nil {
				values[templates.TokenBoatType] = fleet.Name
			}
		}
		if booking.TimeSlotID != "" {
			if slot, err := b.ref.GetTimeSlot(ctx, siteID, booking.TimeSlotID); b.usable(err, siteID, "time slot") && slot != nil {
				values[templates.TokenTimeSlot] = fmt.Sprintf("%s (%s - %s)", slot.Name, slot.StartTime, slot.EndTime)
			}
		}
	}

	tc := templates.NewContext()
	for tok, v := range values {
		// Every key above is in the vocabulary.
		_ = tc.Set(tok, v)
	}
	return tc, business
}

func (b *Builder) usable(err error, siteID, what string) bool {
	if err == nil {
		return true
	}
	if !errors.Is(err, store.ErrNotFound) {
		b.logger.Warn("context lookup failed; using fallback", "site_id", siteID, "record", what, "error", err)
	}
	return false
}

// formatBookingDate renders YYYY-MM-DD (optionally followed by a time part)
// at noon UTC so the weekday never shifts across timezones.
func formatBookingDate(raw string) string {
	raw = strings.TrimSpace(raw)
	if len(raw) < 10 {
		return ""
	}
	day, err := time.Parse("2006-01-02", raw[:10])
	if err != nil {
		return ""
	}
	noon := time.Date(day.Year(), day.Month(), day.Day(), 12, 0, 0, 0, time.UTC)
	return noon.Format(dateLayout)
}

func joinNonEmpty(parts []string) string {
	var kept []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, ", ")
}
