package policy

import (
	"regexp"
	"strings"
)

// Pattern-based detection of identifying data in request metadata values.
// Only string values from the request context are scanned; content fields
// never reach this service at all.

var (
	emailPattern = regexp.MustCompile(`\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Z|a-z]{2,}\b`)

	// US format. International patterns match too many plain numbers to be
	// safe on arbitrary metadata.
	phonePattern = regexp.MustCompile(`\b(\+?1[-.]?)?\(?([0-9]{3})\)?[-.]?([0-9]{3})[-.]?([0-9]{4})\b`)

	ssnPattern = regexp.MustCompile(`\b[0-9]{3}-[0-9]{2}-[0-9]{4}\b`)

	creditCardPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\b4[0-9]{12}(?:[0-9]{3})?\b`),          // Visa
		regexp.MustCompile(`\b5[1-5][0-9]{14}\b`),                  // MasterCard
		regexp.MustCompile(`\b3[47][0-9]{13}\b`),                   // American Express
		regexp.MustCompile(`\b6(?:011|5[0-9]{2})[0-9]{12}\b`),      // Discover
	}
)

// containsIdentifyingData reports whether any string value in the metadata
// map looks like an email address, US phone number, SSN, or credit card
// number. Nested maps and lists are walked the same way the forbidden-field
// scan walks them.
func containsIdentifyingData(metadata map[string]interface{}) bool {
	for _, value := range metadata {
		if valueHasIdentifyingData(value) {
			return true
		}
	}
	return false
}

func valueHasIdentifyingData(value interface{}) bool {
	switch v := value.(type) {
	case string:
		return stringHasIdentifyingData(v)
	case map[string]interface{}:
		return containsIdentifyingData(v)
	case []interface{}:
		for _, item := range v {
			if valueHasIdentifyingData(item) {
				return true
			}
		}
	}
	return false
}

func stringHasIdentifyingData(s string) bool {
	if emailPattern.MatchString(s) {
		return true
	}
	if phonePattern.MatchString(s) {
		return true
	}
	if ssnPattern.MatchString(s) {
		return true
	}
	for _, pattern := range creditCardPatterns {
		for _, match := range pattern.FindAllString(s, -1) {
			if luhnValid(match) {
				return true
			}
		}
	}
	return false
}

// luhnValid checks a candidate card number with the Luhn algorithm to filter
// out plain numbers that happen to match a card prefix.
func luhnValid(cardNumber string) bool {
	cardNumber = strings.ReplaceAll(cardNumber, " ", "")
	cardNumber = strings.ReplaceAll(cardNumber, "-", "")

	if len(cardNumber) < 13 || len(cardNumber) > 19 {
		return false
	}

	sum := 0
	isSecond := false
	for i := len(cardNumber) - 1; i >= 0; i-- {
		digit := int(cardNumber[i] - '0')
		if isSecond {
			digit *= 2
			if digit > 9 {
				digit -= 9
			}
		}
		sum += digit
		isSecond = !isSecond
	}
	return sum%10 == 0
}
