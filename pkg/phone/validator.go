package phone

import (
	"fmt"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// DefaultRegion is used when a number is entered without an international prefix
const DefaultRegion = "AU"

// ValidationResult contains the result of phone number validation.
type ValidationResult struct {
	IsValid             bool   `json:"is_valid"`
	E164Format          string `json:"e164_format"`
	InternationalFormat string `json:"international_format"`
	CountryCode         string `json:"country_code"`
}

// ValidatePhone parses a phone number and returns its formats.
func ValidatePhone(phone, countryCode string) (*ValidationResult, error) {
	if strings.TrimSpace(phone) == "" {
		return nil, fmt.Errorf("phone number cannot be empty")
	}

	if countryCode == "" {
		countryCode = DefaultRegion
	}

	parsed, err := phonenumbers.Parse(phone, countryCode)
	if err != nil {
		return nil, fmt.Errorf("failed to parse phone number: %w", err)
	}

	return &ValidationResult{
		IsValid:             phonenumbers.IsValidNumber(parsed),
		E164Format:          phonenumbers.Format(parsed, phonenumbers.E164),
		InternationalFormat: phonenumbers.Format(parsed, phonenumbers.INTERNATIONAL),
		CountryCode:         phonenumbers.GetRegionCodeForNumber(parsed),
	}, nil
}

// NormalizePhone normalizes a phone number to E.164 format.
func NormalizePhone(phone, countryCode string) (string, error) {
	result, err := ValidatePhone(phone, countryCode)
	if err != nil {
		return "", err
	}
	if !result.IsValid {
		return "", fmt.Errorf("invalid phone number")
	}
	return result.E164Format, nil
}

// BillingPhone returns the E.164 form when the number parses and is valid, otherwise
// the input trimmed. Checkout never rejects a phone number on format.
func BillingPhone(phone string) string {
	if e164, err := NormalizePhone(phone, DefaultRegion); err == nil {
		return e164
	}
	return strings.TrimSpace(phone)
}
