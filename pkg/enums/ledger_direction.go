package enums

// LedgerDirection maps to the ledger_direction enum in Postgres.
type LedgerDirection string

const (
	LedgerDirectionCredit LedgerDirection = "credit"
	LedgerDirectionDebit  LedgerDirection = "debit"
)

var ledgerDirections = []LedgerDirection{LedgerDirectionCredit, LedgerDirectionDebit}

func (d LedgerDirection) IsValid() bool { return oneOf(d, ledgerDirections) }

// Sign is +1 for credits and -1 for debits.
func (d LedgerDirection) Sign() int64 {
	if d == LedgerDirectionDebit {
		return -1
	}
	return 1
}

func ParseLedgerDirection(value string) (LedgerDirection, error) {
	return parse("ledger direction", value, ledgerDirections, nil)
}
