package detect

import "strings"

// digitsOnly strips everything but ASCII digits.
func digitsOnly(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

func allSameDigit(s string) bool {
	for i := 1; i < len(s); i++ {
		if s[i] != s[0] {
			return false
		}
	}
	return true
}

// ValidateCPF checks the two verification digits of a Brazilian CPF.
// Formatting characters are ignored; malformed input just fails validation.
func ValidateCPF(value string) bool {
	d := digitsOnly(value)
	if len(d) != 11 || allSameDigit(d) {
		return false
	}

	calc := func(weight int) byte {
		sum := 0
		for i := 0; i < weight-1; i++ {
			sum += int(d[i]-'0') * (weight - i)
		}
		r := sum % 11
		if r < 2 {
			return '0'
		}
		return byte('0' + 11 - r)
	}

	return d[9] == calc(10) && d[10] == calc(11)
}

var (
	cnpjWeights1 = []int{5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
	cnpjWeights2 = []int{6, 5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
)

// ValidateCNPJ checks the two verification digits of a Brazilian CNPJ.
func ValidateCNPJ(value string) bool {
	d := digitsOnly(value)
	if len(d) != 14 || allSameDigit(d) {
		return false
	}

	calc := func(base string, weights []int) byte {
		sum := 0
		for i, w := range weights {
			sum += int(base[i]-'0') * w
		}
		r := sum % 11
		if r < 2 {
			return '0'
		}
		return byte('0' + 11 - r)
	}

	d1 := calc(d[:12], cnpjWeights1)
	d2 := calc(d[:12]+string(d1), cnpjWeights2)
	return d[12] == d1 && d[13] == d2
}
