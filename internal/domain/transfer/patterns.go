package transfer

import (
	"regexp"
	"strings"
)

// cardPaymentPatterns are the phrasings card issuers use for a payment
// received on the card account.
var cardPaymentPatterns = compile(
	`payment\s*[-–—]?\s*thank\s*you`,
	`autopay\s*payment`,
	`automatic\s*payment`,
	`online\s*payment`,
	`mobile\s*payment`,
	`ach\s*payment`,
	`payment\s*received`,
	`payment\s*from`,
	`credit\s*card\s*payment`,
	`card\s*payment`,
	`bill\s*payment`,
	`epay`,
	`web\s*payment`,
	`internet\s*payment`,
	`^payment$`,
)

// bankTransferPatterns are the phrasings banks use for money sent out.
var bankTransferPatterns = compile(
	`transfer\s*to`,
	`online\s*transfer`,
	`ach\s*transfer`,
	`bill\s*pay`,
	`payment\s*to`,
)

func compile(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, e := range exprs {
		out[i] = regexp.MustCompile(e)
	}
	return out
}

func matchAny(patterns []*regexp.Regexp, name string) bool {
	normalized := strings.ToLower(strings.TrimSpace(name))
	if normalized == "" {
		return false
	}
	for _, p := range patterns {
		if p.MatchString(normalized) {
			return true
		}
	}
	return false
}

// IsCardPayment reports whether name reads like a payment posted to a card.
func IsCardPayment(name string) bool {
	return matchAny(cardPaymentPatterns, name)
}

// IsBankTransfer reports whether name reads like an outgoing bank transfer.
func IsBankTransfer(name string) bool {
	return matchAny(bankTransferPatterns, name)
}

// looksLikePayment is the relaxed bank-side test used with a fuzzy amount.
func looksLikePayment(name string) bool {
	return IsBankTransfer(name) || strings.Contains(strings.ToLower(name), "payment")
}
