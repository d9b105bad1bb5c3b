package pattern

// Luhn reports whether the digits in s pass the mod-10 weighted-digit
// checksum. Separator characters (spaces, dashes) are skipped; any other
// non-digit fails. Used to gate card-number candidates so that arbitrary
// 16-digit runs are not reported as card matches.
func Luhn(s string) bool {
	var digits []int
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digits = append(digits, int(r-'0'))
		case r == ' ' || r == '-':
			// separator
		default:
			return false
		}
	}
	if len(digits) < 13 {
		return false
	}

	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := digits[i]
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}
