package common

// FeeAccount is the distinguished virtual owner that collects trading fees
// (spec §4.H treats it as an ordinary balances row, not a separate ledger).
const FeeAccount = "~fee"
