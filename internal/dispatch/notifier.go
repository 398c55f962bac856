package dispatch

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/wolfman30/charter-notify/internal/messaging/templates"
	"github.com/wolfman30/charter-notify/internal/notify"
	"github.com/wolfman30/charter-notify/internal/store"
	"github.com/wolfman30/charter-notify/pkg/logging"
)

// TemplateSource returns the effective template text for a site and kind.
type TemplateSource interface {
	Template(ctx context.Context, siteID string, kind templates.Kind) (string, error)
}

// Notifier turns business events into dispatches.
type Notifier struct {
	sender      Sender
	builder     *Builder
	templates   TemplateSource
	defaults    templates.Set
	concurrency int
	email       notify.EmailSender
	logger      *logging.Logger
}

func NewNotifier(sender Sender, builder *Builder, source TemplateSource, concurrency int, logger *logging.Logger) *Notifier {
	if logger == nil {
		logger = logging.Default()
	}
	if builder == nil {
		builder = NewBuilder(nil, logger)
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Notifier{
		sender:      sender,
		builder:     builder,
		templates:   source,
		defaults:    templates.DefaultSet(),
		concurrency: concurrency,
		logger:      logger,
	}
}

// WithOwnerEmail enables the owner email copy of booking confirmations.
func (n *Notifier) WithOwnerEmail(sender notify.EmailSender) *Notifier {
	n.email = sender
	return n
}

// template falls back to the built-in text when the site's set is unreadable.
func (n *Notifier) template(ctx context.Context, siteID string, kind templates.Kind) string {
	if n.templates != nil {
		tmpl, err := n.templates.Template(ctx, siteID, kind)
		if err == nil && tmpl != "" {
			return tmpl
		}
		if err != nil {
			n.logger.Warn("template lookup failed; using default", "site_id", siteID, "kind", kind, "error", err)
		}
	}
	return n.defaults[kind]
}

// DispatchBooking renders the site's template of the given kind for the
// booking and sends it to the booking's customer.
func (n *Notifier) DispatchBooking(ctx context.Context, siteID string, kind templates.Kind, booking Booking) Result {
	tc, business := n.builder.build(ctx, siteID, booking)
	req := Request{
		SiteID:    siteID,
		Kind:      kind,
		To:        booking.CustomerPhone,
		Body:      templates.Render(n.template(ctx, siteID, kind), tc),
		RelatedID: booking.ID,
	}
	if business != nil {
		req.From = business.SenderNumber
	}
	return n.sender.Send(ctx, req)
}

// BookingResults holds the customer confirmation and, when the site has a
// notify phone, the owner notification.
type BookingResults struct {
	Customer     Result  `json:"customer"`
	Owner        *Result `json:"owner,omitempty"`
	OwnerEmailed bool    `json:"owner_emailed,omitempty"`
}

// BookingConfirmed sends the customer confirmation and the owner notification.
func (n *Notifier) BookingConfirmed(ctx context.Context, siteID string, booking Booking) BookingResults {
	tc, business := n.builder.build(ctx, siteID, booking)
	from := ""
	if business != nil {
		from = business.SenderNumber
	}

	out := BookingResults{
		Customer: n.sender.Send(ctx, Request{
			SiteID:    siteID,
			Kind:      templates.KindBookingConfirmation,
			To:        booking.CustomerPhone,
			Body:      templates.Render(n.template(ctx, siteID, templates.KindBookingConfirmation), tc),
			From:      from,
			RelatedID: booking.ID,
		}),
	}
	if business != nil && strings.TrimSpace(business.NotifyPhone) != "" {
		owner := n.sender.Send(ctx, Request{
			SiteID:    siteID,
			Kind:      templates.KindOwnerNotification,
			To:        business.NotifyPhone,
			Body:      templates.Render(n.template(ctx, siteID, templates.KindOwnerNotification), tc),
			From:      from,
			RelatedID: booking.ID,
		})
		out.Owner = &owner
	}
	out.OwnerEmailed = n.emailOwner(ctx, siteID, business, booking, tc)
	return out
}

// emailOwner is best-effort; failures are logged and never audited.
func (n *Notifier) emailOwner(ctx context.Context, siteID string, business *store.Business, booking Booking, tc templates.Context) bool {
	if n.email == nil || business == nil || strings.TrimSpace(business.NotifyEmail) == "" {
		return false
	}
	subject := "New booking"
	if booking.CustomerName != "" {
		subject = "New booking: " + booking.CustomerName
	}
	err := n.email.Send(ctx, notify.EmailMessage{
		To:       business.NotifyEmail,
		ToName:   business.Name,
		Subject:  subject,
		Body:     templates.Render(n.template(ctx, siteID, templates.KindOwnerNotification), tc),
		SiteID:   siteID,
		Category: string(templates.KindOwnerNotification),
	})
	if err != nil {
		n.logger.Warn("owner email failed", "site_id", siteID, "booking_id", booking.ID, "error", err)
		return false
	}
	return true
}

func (n *Notifier) BookingCancelled(ctx context.Context, siteID string, booking Booking) Result {
	return n.DispatchBooking(ctx, siteID, templates.KindCancellation, booking)
}

func (n *Notifier) Reminder(ctx context.Context, siteID string, booking Booking) Result {
	return n.DispatchBooking(ctx, siteID, templates.KindReminder, booking)
}

// Recipient is one campaign target.
type Recipient struct {
	Phone string `json:"phone"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Campaign is a one-off marketing send. An empty Template uses the site's
// campaign template.
type Campaign struct {
	ID         string      `json:"id"`
	Template   string      `json:"template"`
	Recipients []Recipient `json:"recipients"`
}

// Campaign dispatches to every recipient with at most the configured number of
// sends in flight. Results are returned in recipient order.
func (n *Notifier) Campaign(ctx context.Context, siteID string, campaign Campaign) []Result {
	tmpl := campaign.Template
	if strings.TrimSpace(tmpl) == "" {
		tmpl = n.template(ctx, siteID, templates.KindCampaign)
	}
	// Business fields are shared by every recipient.
	base, business := n.builder.build(ctx, siteID, Booking{})
	from := ""
	if business != nil {
		from = business.SenderNumber
	}

	results := make([]Result, len(campaign.Recipients))
	var g errgroup.Group
	g.SetLimit(n.concurrency)
	for i, r := range campaign.Recipients {
		g.Go(func() error {
			tc := base.Clone()
			_ = tc.Set(templates.TokenCustomerName, r.Name)
			_ = tc.Set(templates.TokenCustomerPhone, r.Phone)
			_ = tc.Set(templates.TokenCustomerEmail, r.Email)
			results[i] = n.sender.Send(ctx, Request{
				SiteID:    siteID,
				Kind:      templates.KindCampaign,
				To:        r.Phone,
				Body:      templates.Render(tmpl, tc),
				From:      from,
				RelatedID: campaign.ID,
			})
			return nil
		})
	}
	_ = g.Wait()

	var sent int
	for _, res := range results {
		if res.Success {
			sent++
		}
	}
	n.logger.Info("campaign dispatched", "site_id", siteID, "campaign_id", campaign.ID, "recipients", len(results), "sent", sent)
	return results
}

// SendRendered dispatches a body the caller already rendered.
func (n *Notifier) SendRendered(ctx context.Context, siteID string, kind templates.Kind, to, body, relatedID string) Result {
	return n.sender.Send(ctx, Request{
		SiteID:    siteID,
		Kind:      kind,
		To:        to,
		Body:      body,
		RelatedID: relatedID,
	})
}
