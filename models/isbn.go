package models

import "strings"

// ValidISBN reports whether isbn is a checksum-valid ISBN-10 or ISBN-13.
// Hyphens and spaces are ignored.
func ValidISBN(isbn string) bool {
	clean := strings.NewReplacer("-", "", " ", "").Replace(isbn)
	switch len(clean) {
	case 10:
		return validISBN10(clean)
	case 13:
		return validISBN13(clean)
	default:
		return false
	}
}

func validISBN10(isbn string) bool {
	sum := 0
	for i := 0; i < 9; i++ {
		d, ok := digit(isbn[i])
		if !ok {
			return false
		}
		sum += d * (10 - i)
	}
	check, ok := digit(isbn[9])
	if isbn[9] == 'X' {
		check, ok = 10, true
	}
	if !ok {
		return false
	}
	return (sum+check)%11 == 0
}

func validISBN13(isbn string) bool {
	sum := 0
	for i := 0; i < 12; i++ {
		d, ok := digit(isbn[i])
		if !ok {
			return false
		}
		if i%2 == 0 {
			sum += d
		} else {
			sum += d * 3
		}
	}
	last, ok := digit(isbn[12])
	if !ok {
		return false
	}
	return (10-sum%10)%10 == last
}

func digit(c byte) (int, bool) {
	if c < '0' || c > '9' {
		return 0, false
	}
	return int(c - '0'), true
}
