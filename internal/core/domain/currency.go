package domain

import "strings"

// CurrencyTable maps an upper-cased region code to the currency codes valid
// there. Built once at startup and never mutated afterwards.
type CurrencyTable map[string][]string

func DefaultCurrencyTable() CurrencyTable {
	return CurrencyTable{
		"EU":   {"EUR"},
		"US":   {"USD"},
		"APAC": {"SGD", "JPY", "AUD", "HKD", "CNY", "KRW", "THB", "MYR", "IDR", "PHP", "VND", "INR"},
	}
}

func (t CurrencyTable) Valid(region, currency string) bool {
	currencies, ok := t[strings.ToUpper(strings.TrimSpace(region))]
	if !ok {
		return false
	}
	currency = strings.ToUpper(strings.TrimSpace(currency))
	for _, c := range currencies {
		if c == currency {
			return true
		}
	}
	return false
}
