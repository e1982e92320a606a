package billing

import (
	"fmt"
	"html"

	"github.com/stripe/stripe-go/v76"
)

type receipt struct {
	ContactName     string
	BusinessName    string
	Amount          string
	MonthlyPlan     string
	WantsGoogleAds  bool
	PaymentIntentID string
}

func newReceipt(pi *stripe.PaymentIntent, amount string) receipt {
	plan := pi.Metadata["monthlyPlan"]
	if plan == "" {
		plan = fmt.Sprint(PlanStandard)
	}
	return receipt{
		ContactName:     pi.Metadata["contactName"],
		BusinessName:    pi.Metadata["businessName"],
		Amount:          amount,
		MonthlyPlan:     plan,
		WantsGoogleAds:  pi.Metadata["wantsGoogleAds"] == "yes",
		PaymentIntentID: pi.ID,
	}
}

// buildReceiptEmail returns the email content confirming a paid Express Build.
func buildReceiptEmail(r receipt) (subject, htmlBody, plainText string) {
	subject = fmt.Sprintf("Your Express Build for %s is confirmed", r.BusinessName)

	adsLine := "Website hosting, care and updates"
	if r.WantsGoogleAds {
		adsLine = "Website hosting, care and updates plus Google Ads management"
	}

	name := r.ContactName
	if name == "" {
		name = "there"
	}

	htmlBody = fmt.Sprintf(`
		<html>
		<body>
			<h2>Payment Received</h2>
			<p>Hi %s,</p>
			<p>Thanks for choosing Verdant Digital. We've received your payment of <strong>%s</strong> for the Express Build of <strong>%s</strong>.</p>
			<h3>What happens next:</h3>
			<ul>
				<li>We'll be in touch within one business day to kick off your build</li>
				<li>Your site goes live within 7 days</li>
				<li>Monthly plan after launch: <strong>$%s/month</strong> (%s)</li>
			</ul>
			<p>Payment reference: %s</p>
			<p>Thanks,<br>The Verdant Digital Team</p>
		</body>
		</html>
	`, html.EscapeString(name), r.Amount, html.EscapeString(r.BusinessName), r.MonthlyPlan, adsLine, r.PaymentIntentID)

	plainText = fmt.Sprintf(`Hi %s,

Thanks for choosing Verdant Digital. We've received your payment of %s for the Express Build of %s.

What happens next:
- We'll be in touch within one business day to kick off your build
- Your site goes live within 7 days
- Monthly plan after launch: $%s/month (%s)

Payment reference: %s

Thanks,
The Verdant Digital Team
`, name, r.Amount, r.BusinessName, r.MonthlyPlan, adsLine, r.PaymentIntentID)

	return
}
