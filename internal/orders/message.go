package orders

import (
	"fmt"
	"strings"

	"github.com/imrishuroy/storykeeper/internal/notify"
)

// ConfirmationMessage builds the email sent to the buyer once o is stored.
func ConfirmationMessage(o *Order) notify.Message {
	name := o.Name
	if name == "" {
		name = o.Email
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\nWe received your order %s.\n\n", name, o.ID)
	for _, it := range o.Items {
		title := it.Title
		if title == "" {
			title = it.PrintID
		}
		fmt.Fprintf(&b, "  %d x %s  %.2f\n", it.Quantity, title, it.Price)
	}
	fmt.Fprintf(&b, "\nTotal: %.2f\n", o.Total)
	if o.TransactionID != "" {
		fmt.Fprintf(&b, "Payment reference: %s\n", o.TransactionID)
	}
	b.WriteString("\nWe will let you know when it ships.\n")

	return notify.Message{
		Kind:    notify.KindOrderConfirmation,
		To:      o.Email,
		Subject: fmt.Sprintf("Order %s received", o.ID),
		Body:    b.String(),
		OrderID: o.ID,
	}
}
