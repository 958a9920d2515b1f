package types

import "strings"

// taxIDLength is the number of digits in a natural-person tax id.
const taxIDLength = 11

// NormalizeTaxID strips everything but digits from a tax id, so both the
// plain ("12345678909") and the masked ("123.456.789-09") input formats
// normalize to the canonical digits-only representation.
func NormalizeTaxID(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// FormatTaxID renders an 11-digit tax id in the masked 000.000.000-00 form.
// Used for the legacy-row fallback lookup; returns the input unchanged when
// it is not exactly 11 digits.
func FormatTaxID(digits string) string {
	if len(digits) != taxIDLength {
		return digits
	}
	return digits[0:3] + "." + digits[3:6] + "." + digits[6:9] + "-" + digits[9:11]
}

// ValidTaxID reports whether the digits-only tax id is structurally valid:
// exactly 11 digits, not a repetition of a single digit, and both mod-11
// check digits match. Remainders of 10 or 11 map to a check digit of 0.
func ValidTaxID(digits string) bool {
	if len(digits) != taxIDLength {
		return false
	}
	allSame := true
	for i := 1; i < taxIDLength; i++ {
		if digits[i] < '0' || digits[i] > '9' {
			return false
		}
		if digits[i] != digits[0] {
			allSame = false
		}
	}
	if digits[0] < '0' || digits[0] > '9' {
		return false
	}
	// Sequences like 00000000000 pass the checksum arithmetic but are not
	// real tax ids.
	if allSame {
		return false
	}

	return checkDigit(digits, 9) == int(digits[9]-'0') &&
		checkDigit(digits, 10) == int(digits[10]-'0')
}

// checkDigit computes the mod-11 check digit over the first n digits, with
// weights descending from n+1 to 2.
func checkDigit(digits string, n int) int {
	sum := 0
	for i := 0; i < n; i++ {
		sum += int(digits[i]-'0') * (n + 1 - i)
	}
	rest := (sum * 10) % 11
	if rest >= 10 {
		return 0
	}
	return rest
}

// phoneLength is the digits-only length of a valid phone: a 2-digit area
// code followed by a 9-digit subscriber number.
const phoneLength = 11

// NormalizePhone strips everything but digits from a phone number.
func NormalizePhone(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// SplitPhone decomposes a digits-only phone into area code and subscriber
// number. ok is false when the phone does not decompose into a 2-digit area
// code plus a 9-digit number.
func SplitPhone(digits string) (area, number string, ok bool) {
	if len(digits) != phoneLength {
		return "", "", false
	}
	return digits[0:2], digits[2:], true
}
