package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/flardop/Advanced-Retro-sub001/internal/common"
)

// SpinResolved is emitted once a mystery spin has been committed.
type SpinResolved struct {
	SpinID           string    `json:"spin_id"`
	UserID           string    `json:"user_id"`
	Email            string    `json:"-"`
	BoxID            string    `json:"box_id"`
	BoxName          string    `json:"box_name"`
	PrizeID          string    `json:"prize_id,omitempty"`
	PrizeLabel       string    `json:"prize_label"`
	PrizeType        string    `json:"prize_type,omitempty"`
	Won              bool      `json:"won"`
	CouponCode       string    `json:"coupon_code,omitempty"`
	CreditCents      int64     `json:"credit_cents,omitempty"`
	RemainingTickets int       `json:"remaining_tickets"`
	At               time.Time `json:"at"`
}

// SaleCredited is emitted when a seller is paid for a delivered listing.
type SaleCredited struct {
	ListingID       string    `json:"listing_id"`
	SellerID        string    `json:"seller_id"`
	SellerEmail     string    `json:"-"`
	Title           string    `json:"title"`
	GrossCents      int64     `json:"gross_cents"`
	CommissionCents int64     `json:"commission_cents"`
	NetCents        int64     `json:"net_cents"`
	At              time.Time `json:"at"`
}

// OrderPaid is emitted after an order is marked paid.
type OrderPaid struct {
	OrderID        string    `json:"order_id"`
	UserID         string    `json:"user_id"`
	Email          string    `json:"-"`
	TotalCents     int64     `json:"total_cents"`
	TicketsGranted int       `json:"tickets_granted"`
	At             time.Time `json:"at"`
}

// WalletDrift is raised by the reconcile job.
type WalletDrift struct {
	UserID        string `json:"user_id"`
	StoredCents   int64  `json:"stored_cents"`
	ComputedCents int64  `json:"computed_cents"`
}

// Notifier turns domain events into dispatched tasks.
type Notifier struct {
	dispatcher *Dispatcher
	mailer     Mailer
	staff      StaffNotifier
	events     Publisher
	loc        *time.Location
}

// NewNotifier wires the sinks to a dispatcher.
func NewNotifier(d *Dispatcher, mailer Mailer, staff StaffNotifier, events Publisher, loc *time.Location) *Notifier {
	if loc == nil {
		loc = time.UTC
	}
	return &Notifier{dispatcher: d, mailer: mailer, staff: staff, events: events, loc: loc}
}

func (n *Notifier) publish(subject string, payload any) {
	n.dispatcher.Dispatch(Task{
		Name: "event:" + subject,
		Run: func(ctx context.Context) error {
			return n.events.Publish(ctx, subject, payload)
		},
	})
}

func (n *Notifier) mail(name, to, subject, body string) {
	if strings.TrimSpace(to) == "" {
		return
	}
	n.dispatcher.Dispatch(Task{
		Name: name,
		Run: func(ctx context.Context) error {
			return n.mailer.Send(ctx, to, subject, body)
		},
	})
}

func (n *Notifier) tellStaff(name, text string) {
	n.dispatcher.Dispatch(Task{
		Name: name,
		Run: func(ctx context.Context) error {
			return n.staff.NotifyStaff(ctx, text)
		},
	})
}

// SpinResolved publishes the spin, e-mails the player and alerts staff about physical prizes.
func (n *Notifier) SpinResolved(e SpinResolved) {
	n.publish(SubjectSpinResolved, e)

	var body strings.Builder
	fmt.Fprintf(&body, "Your spin on %s is in.\n\n", e.BoxName)
	switch {
	case !e.Won:
		body.WriteString("No prize this time. Better luck on the next one!\n")
	case e.CouponCode != "":
		fmt.Fprintf(&body, "You won %s. Your coupon code is %s.\n", e.PrizeLabel, e.CouponCode)
	case e.CreditCents > 0:
		fmt.Fprintf(&body, "You won %s. %s has been added to your wallet.\n", e.PrizeLabel, common.FormatCents(e.CreditCents))
	default:
		fmt.Fprintf(&body, "You won %s. We will contact you to arrange delivery.\n", e.PrizeLabel)
	}
	fmt.Fprintf(&body, "\nTickets left: %s\n", common.FormatTickets(int64(e.RemainingTickets)))
	n.mail("email:spin", e.Email, "Your Mystery Box result", body.String())

	if e.PrizeType == "physical" {
		n.tellStaff("staff:physical_prize", fmt.Sprintf(
			"Physical prize won\nBox: %s\nPrize: %s\nUser: %s\nSpin: %s\nAt: %s",
			e.BoxName, e.PrizeLabel, e.UserID, e.SpinID, common.FormatDateTime(e.At, n.loc)))
	}
}

// SaleCredited publishes the settlement and e-mails the seller.
func (n *Notifier) SaleCredited(e SaleCredited) {
	n.publish(SubjectSaleCredited, e)
	n.mail("email:sale_credited", e.SellerEmail, "Your sale has been paid out", fmt.Sprintf(
		"Your listing \"%s\" was delivered.\n\nSale price: %s\nCommission: %s\nCredited to your wallet: %s\n",
		e.Title, common.FormatCents(e.GrossCents), common.FormatCents(e.CommissionCents), common.FormatCents(e.NetCents)))
}

// OrderPaid publishes the payment and confirms it to the customer.
func (n *Notifier) OrderPaid(e OrderPaid) {
	n.publish(SubjectOrderPaid, e)

	body := fmt.Sprintf("We received the payment for order %s (%s).\n", e.OrderID, common.FormatCents(e.TotalCents))
	if e.TicketsGranted > 0 {
		body += fmt.Sprintf("You now have %s to spin.\n", common.FormatTickets(int64(e.TicketsGranted)))
	}
	n.mail("email:order_paid", e.Email, "Payment confirmed", body)
}

// WalletDrift alerts staff that an account disagrees with its ledger.
func (n *Notifier) WalletDrift(e WalletDrift) {
	n.publish(SubjectWalletDrift, e)
	n.tellStaff("staff:wallet_drift", fmt.Sprintf(
		"Wallet drift for user %s\nStored balance: %s\nLedger balance: %s\nDifference: %s",
		e.UserID, common.FormatCents(e.StoredCents), common.FormatCents(e.ComputedCents),
		common.FormatSignedCents(e.StoredCents-e.ComputedCents)))
}
