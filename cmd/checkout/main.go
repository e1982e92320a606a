// Command checkout walks through the Express Build purchase in a terminal, driving
// the same wizard and modal flow the website uses against a running API.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/verdantdigital/expressbuild/config"
	"github.com/verdantdigital/expressbuild/pkg/billing"
	"github.com/verdantdigital/expressbuild/pkg/checkout"
	"github.com/verdantdigital/expressbuild/pkg/models"
)

func main() {
	cfg := config.Load()

	apiURL := flag.String("api", "http://localhost:"+cfg.APIPort, "Express Build API base URL")
	publishableKey := flag.String("publishable-key", cfg.StripePublishableKey, "Stripe publishable key (pk_test_...)")
	cardToken := flag.String("card", "tok_visa", "Stripe test card token used to pay")
	timeout := flag.Duration("timeout", 30*time.Second, "Timeout for one payment attempt")
	flag.Parse()

	if *publishableKey == "" {
		log.Fatal("❌ Publishable key required: set STRIPE_PUBLISHABLE_KEY or pass -publishable-key")
	}

	wizard := checkout.NewWizard(
		checkout.NewIssuerClient(*apiURL),
		checkout.NewStripeConfirmer(*publishableKey, nil),
	)
	form := &checkout.ConsultationForm{}
	modal := checkout.NewOrchestrator(wizard, form)

	s := &session{
		in:      bufio.NewScanner(os.Stdin),
		out:     os.Stdout,
		wizard:  wizard,
		modal:   modal,
		form:    form,
		card:    checkout.Card{Token: *cardToken},
		timeout: *timeout,
	}
	if err := s.run(); err != nil && !errors.Is(err, io.EOF) {
		log.Fatalf("❌ %v", err)
	}
}

type session struct {
	in      *bufio.Scanner
	out     io.Writer
	wizard  *checkout.Wizard
	modal   *checkout.Orchestrator
	form    *checkout.ConsultationForm
	card    checkout.Card
	timeout time.Duration
}

func (s *session) run() error {
	if err := s.modal.StartProject(); err != nil {
		return err
	}

	for {
		var err error
		switch s.modal.Visible() {
		case checkout.ModalClosed:
			fmt.Fprintln(s.out, "👋 Checkout closed.")
			return nil
		case checkout.ModalPathChoice:
			err = s.pathChoice()
		case checkout.ModalConsultation:
			err = s.consultation()
		case checkout.ModalExpress:
			err = s.express()
		}
		if err != nil {
			return err
		}
	}
}

func (s *session) pathChoice() error {
	switch choice, err := s.ask("Express Build ($299 + monthly plan) or free consultation? [e/c/q]"); {
	case err != nil:
		return err
	case choice == "e":
		return s.modal.ChooseExpress()
	case choice == "c":
		return s.modal.ChooseConsultation()
	case choice == "q":
		s.modal.Close()
	}
	return nil
}

func (s *session) consultation() error {
	fmt.Fprintln(s.out, "📞 Book a free call. Leave a field blank and type q to close.")
	name, err := s.ask("Your name")
	if err != nil || name == "q" {
		s.modal.Close()
		return err
	}
	email, err := s.ask("Email")
	if err != nil {
		return err
	}
	s.form.Fill(name, email, "", "", "")
	fmt.Fprintf(s.out, "Thanks %s, booking requests are handled on the website.\n", name)
	s.modal.Close()
	return nil
}

func (s *session) express() error {
	switch s.wizard.State() {
	case checkout.StateScopeCheck:
		return s.scopeCheck()
	case checkout.StateAdsUpsell:
		return s.adsUpsell()
	case checkout.StateBusinessInfo:
		return s.businessInfo()
	case checkout.StatePayment:
		return s.payment()
	case checkout.StateConfirmation:
		return s.confirmation()
	}
	return nil
}

func (s *session) scopeCheck() error {
	fmt.Fprintln(s.out, "✅ Express Build: 5-page site, live in 7 days, hosting and care included.")
	switch choice, err := s.ask("Does that cover what you need? [y = continue / n = I need custom features / q]"); {
	case err != nil:
		return err
	case choice == "y":
		return s.wizard.ConfirmFit()
	case choice == "n":
		return s.wizard.RequestCustomFeatures()
	case choice == "q":
		s.modal.Close()
	}
	return nil
}

func (s *session) adsUpsell() error {
	fmt.Fprintf(s.out, "📈 Add Google Ads management? Monthly plan $%d instead of $%d.\n", billing.PlanWithAds, billing.PlanStandard)
	switch choice, err := s.ask("[y/n/q]"); {
	case err != nil:
		return err
	case choice == "y":
		return s.wizard.ChooseAds(true)
	case choice == "n":
		return s.wizard.ChooseAds(false)
	case choice == "q":
		s.modal.Close()
	}
	return nil
}

func (s *session) businessInfo() error {
	prev := s.wizard.BusinessInfo()
	var info models.BusinessInfo
	fields := []struct {
		label    string
		dst      *string
		current  string
		optional bool
	}{
		{"Business name", &info.BusinessName, prev.BusinessName, false},
		{"Your name", &info.ContactName, prev.ContactName, false},
		{"Email", &info.Email, prev.Email, false},
		{"Phone", &info.Phone, prev.Phone, false},
		{"Trade (e.g. plumber)", &info.Trade, prev.Trade, false},
		{"Current website", &info.Website, prev.Website, true},
		{"Business address", &info.Address, prev.Address, false},
		{"Anything else we should know", &info.AdditionalInfo, prev.AdditionalInfo, true},
	}

	for _, f := range fields {
		label := f.label
		if f.optional {
			label += " (optional)"
		}
		if f.current != "" {
			label += fmt.Sprintf(" [%s]", f.current)
		}
		v, err := s.ask(label)
		if err != nil {
			return err
		}
		if v == "" {
			v = f.current
		}
		*f.dst = v
	}

	if err := s.wizard.SubmitBusinessInfo(info); err != nil {
		if errors.Is(err, checkout.ErrIncompleteBusinessInfo) {
			fmt.Fprintf(s.out, "⚠️  %s\n", checkout.UserMessage(err))
			return nil
		}
		return err
	}
	return nil
}

func (s *session) payment() error {
	sel := s.wizard.Selection()
	fmt.Fprintf(s.out, "💳 Pay %s today, then $%d/month after launch.\n",
		billing.FormatAmount(billing.ExpressBuildAmount, billing.Currency), sel.MonthlyPlan())

	switch choice, err := s.ask("[p = pay / b = back / q]"); {
	case err != nil:
		return err
	case choice == "b":
		return s.wizard.Back()
	case choice == "q":
		s.modal.Close()
	case choice == "p":
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()

		fmt.Fprintln(s.out, "⏳ Processing...")
		if err := s.wizard.SubmitPayment(ctx, s.card); err != nil {
			if errors.Is(err, checkout.ErrSessionClosed) {
				return nil
			}
			fmt.Fprintf(s.out, "❌ %s\n", checkout.UserMessage(err))
		}
	}
	return nil
}

func (s *session) confirmation() error {
	info := s.wizard.BusinessInfo()
	fmt.Fprintf(s.out, "🎉 Payment submitted for %s (ref %s). We'll email %s within one business day.\n",
		info.BusinessName, s.wizard.PaymentIntentID(), info.Email)
	if _, err := s.ask("Press enter to finish"); err != nil {
		return err
	}
	return s.wizard.Done()
}

func (s *session) ask(prompt string) (string, error) {
	fmt.Fprintf(s.out, "%s: ", prompt)
	if !s.in.Scan() {
		if err := s.in.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return strings.TrimSpace(s.in.Text()), nil
}
