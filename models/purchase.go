package models

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/shopspring/decimal"
)

// DateLayout is the calendar-date format used on the wire.
const DateLayout = "2006-01-02"

// Date is a calendar date that tolerates the assorted formats bank sandboxes
// and model output use.
type Date struct {
	time.Time
}

// NewDate truncates t to its calendar day.
func NewDate(t time.Time) Date {
	y, m, d := t.Date()
	return Date{time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses any format dateparse understands.
func ParseDate(s string) (Date, error) {
	t, err := dateparse.ParseAny(strings.TrimSpace(s))
	if err != nil {
		return Date{}, err
	}
	return NewDate(t), nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON leaves the date zero when the value is empty or unparseable;
// a bad date on one purchase must not drop the whole history.
func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil || s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		*d = Date{}
		return nil
	}
	*d = parsed
	return nil
}

func (d Date) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

// PurchaseRecord is one entry of the user's purchase history at the bank.
type PurchaseRecord struct {
	ID          string          `json:"_id,omitempty" yaml:"id,omitempty"`
	Description string          `json:"description" yaml:"description"`
	Amount      decimal.Decimal `json:"amount" yaml:"amount"`
	Date        Date            `json:"purchase_date" yaml:"purchase_date"`
}

// PurchaseInfo is what a confirmation page says was just bought.
type PurchaseInfo struct {
	Amount      decimal.Decimal `json:"amount" yaml:"amount"`
	Description string          `json:"description" yaml:"description"`
}

// BankData is the balance plus recent purchases of the linked account.
type BankData struct {
	Balance   decimal.Decimal  `json:"balance" yaml:"balance"`
	Purchases []PurchaseRecord `json:"purchases" yaml:"purchases"`
}
