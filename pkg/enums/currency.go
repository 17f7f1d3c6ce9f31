package enums

// Currency is an ISO 4217 code accepted by the payment gateway.
type Currency string

const (
	CurrencyINR Currency = "INR"
	CurrencyUSD Currency = "USD"
	CurrencyEUR Currency = "EUR"
)

var currencies = []Currency{CurrencyINR, CurrencyUSD, CurrencyEUR}

func (c Currency) String() string { return string(c) }

func (c Currency) IsValid() bool { return oneOf(c, currencies) }

// MinorUnitExponent is the number of decimal places between major and minor
// units. Every supported currency uses two (paise, cents).
func (c Currency) MinorUnitExponent() int32 {
	return 2
}

// ParseCurrency accepts any case and surrounding whitespace.
func ParseCurrency(value string) (Currency, error) {
	return parse("currency", value, currencies, upperTrim)
}
