// Package billing issues Express Build payment intents and processes the
// processor's webhook notifications for them.
package billing

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/verdantdigital/expressbuild/pkg/models"
	"github.com/verdantdigital/expressbuild/pkg/phone"
)

const (
	// ExpressBuildAmount is the only upfront price accepted, in cents.
	ExpressBuildAmount int64 = 29900
	// Currency of every Express Build charge
	Currency = "aud"

	// PlanStandard and PlanWithAds are the monthly plan prices recorded on the intent.
	PlanStandard = 99
	PlanWithAds  = 499
)

var (
	// ErrInvalidRequest is returned when the amount, business info or a required field is missing
	ErrInvalidRequest = errors.New("missing required fields")
	// ErrInvalidAmount is returned when the requested amount is not the fixed price
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrInvalidPaymentIntentID is returned for ids that cannot be payment intents
	ErrInvalidPaymentIntentID = errors.New("invalid payment intent id")
)

// ProcessorError wraps a failure reported by the payment processor
type ProcessorError struct {
	Op  string
	Err error
}

func (e *ProcessorError) Error() string {
	return fmt.Sprintf("payment processor %s failed: %v", e.Op, e.Err)
}

func (e *ProcessorError) Unwrap() error {
	return e.Err
}

// SignatureError is returned when a webhook payload cannot be authenticated.
// Its message is the verification failure reason.
type SignatureError struct {
	Err error
}

func (e *SignatureError) Error() string {
	return e.Err.Error()
}

func (e *SignatureError) Unwrap() error {
	return e.Err
}

// MonthlyPlan returns the monthly plan price for the add-on choice
func MonthlyPlan(wantsGoogleAds bool) int {
	if wantsGoogleAds {
		return PlanWithAds
	}
	return PlanStandard
}

// Description is the product description recorded on the intent
func Description(businessName string) string {
	return "Verdant Digital - Express Build for " + businessName
}

// Metadata builds the intent metadata from the captured business info.
// Optional fields are only included when present.
func Metadata(info models.BusinessInfo, wantsGoogleAds bool) map[string]string {
	ads := "no"
	if wantsGoogleAds {
		ads = "yes"
	}

	md := map[string]string{
		"businessName":   info.BusinessName,
		"contactName":    info.ContactName,
		"email":          info.Email,
		"phone":          info.Phone,
		"trade":          info.Trade,
		"address":        info.Address,
		"wantsGoogleAds": ads,
		"monthlyPlan":    strconv.Itoa(MonthlyPlan(wantsGoogleAds)),
	}
	if info.Website != "" {
		md["website"] = info.Website
	}
	if info.AdditionalInfo != "" {
		md["additionalInfo"] = info.AdditionalInfo
	}
	if e164, err := phone.NormalizePhone(info.Phone, phone.DefaultRegion); err == nil {
		md["phoneE164"] = e164
	}
	return md
}

// FormatAmount renders an amount in the smallest currency unit for people, e.g. in receipts
func FormatAmount(amount int64, code string) string {
	unit, err := currency.ParseISO(code)
	if err != nil {
		return fmt.Sprintf("%.2f %s", float64(amount)/100, strings.ToUpper(code))
	}
	p := message.NewPrinter(language.MustParse("en-AU"))
	return p.Sprint(currency.Symbol(unit.Amount(float64(amount) / 100)))
}
