package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	PaymentPIX         PaymentMethod = "pix"
	PaymentMealVoucher PaymentMethod = "vr"
	PaymentFoodVoucher PaymentMethod = "va"
	PaymentCash        PaymentMethod = "dinheiro"
	PaymentCreditCard  PaymentMethod = "cartao_credito"
	PaymentDebitCard   PaymentMethod = "cartao_debito"
)

const (
	CategoryHousing   BillCategory = "moradia"
	CategoryTransport BillCategory = "transporte"
	CategoryFood      BillCategory = "alimentacao"
	CategoryHealth    BillCategory = "saude"
	CategoryEducation BillCategory = "educacao"
	CategoryLeisure   BillCategory = "lazer"
	CategoryOther     BillCategory = "outros"
)

const (
	BillFixed    BillType = "fixo"
	BillVariable BillType = "variavel"
)

type (
	PaymentMethod string
	BillCategory  string
	BillType      string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// Purchase is a single grocery shopping trip.
	Purchase struct {
		ID              string
		UserID          string
		Date            Date
		Total           Money
		DurationMinutes int // time spent in the store
		PaymentMethod   PaymentMethod
		CreatedAt       time.Time
	}

	// Bill is a recurring monthly expense. Only active bills count towards totals.
	Bill struct {
		ID        string
		UserID    string
		Name      string
		Amount    Money
		Category  BillCategory
		Type      BillType
		DueDay    int // 1-31
		Active    bool
		CreatedAt time.Time
	}

	Salary struct {
		ID        string
		UserID    string
		Amount    Money
		Month     int // 1-12
		Year      int
		CreatedAt time.Time
	}

	// Tithe is derived from a Salary when the salary is registered.
	// Its amount is fixed at creation and never recomputed.
	Tithe struct {
		ID        string
		UserID    string
		SalaryID  string
		Amount    Money
		Paid      bool
		PaidAt    *time.Time
		CreatedAt time.Time
	}
)

var (
	ErrInvalidDay       = errors.New("invalid day")
	ErrInvalidMonth     = errors.New("invalid month")
	ErrInvalidYear      = errors.New("invalid year")
	ErrInvalidDate      = errors.New("invalid date")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidDuration  = errors.New("invalid duration")
	ErrInvalidPayment   = errors.New("invalid payment method")
	ErrInvalidCategory  = errors.New("invalid bill category")
	ErrInvalidBillType  = errors.New("invalid bill type")
	ErrInvalidDueDay    = errors.New("invalid due day")
	ErrEmptyName        = errors.New("empty name")
	ErrMissingUser      = errors.New("missing user")
	ErrTitheAlreadyPaid = errors.New("tithe already paid")
)

// ValidationError ties a validation failure to the offending field.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func invalid(field string, err error) error {
	return &ValidationError{Field: field, Err: err}
}

var paymentLabels = map[PaymentMethod]string{
	PaymentPIX:         "PIX",
	PaymentMealVoucher: "Vale Refeição",
	PaymentFoodVoucher: "Vale Alimentação",
	PaymentCash:        "Dinheiro",
	PaymentCreditCard:  "Cartão de Crédito",
	PaymentDebitCard:   "Cartão de Débito",
}

var categoryLabels = map[BillCategory]string{
	CategoryHousing:   "Moradia",
	CategoryTransport: "Transporte",
	CategoryFood:      "Alimentação",
	CategoryHealth:    "Saúde",
	CategoryEducation: "Educação",
	CategoryLeisure:   "Lazer",
	CategoryOther:     "Outros",
}

var billTypeLabels = map[BillType]string{
	BillFixed:    "Fixo",
	BillVariable: "Variável",
}

// PaymentMethods lists every accepted payment method in display order.
func PaymentMethods() []PaymentMethod {
	return []PaymentMethod{PaymentPIX, PaymentMealVoucher, PaymentFoodVoucher, PaymentCash, PaymentCreditCard, PaymentDebitCard}
}

// BillCategories lists every bill category in display order.
func BillCategories() []BillCategory {
	return []BillCategory{CategoryHousing, CategoryTransport, CategoryFood, CategoryHealth, CategoryEducation, CategoryLeisure, CategoryOther}
}

func (p PaymentMethod) Valid() bool {
	_, ok := paymentLabels[p]
	return ok
}

// Label returns the pt-BR display name, or the raw value when unknown.
func (p PaymentMethod) Label() string {
	if l, ok := paymentLabels[p]; ok {
		return l
	}
	return string(p)
}

func (c BillCategory) Valid() bool {
	_, ok := categoryLabels[c]
	return ok
}

// Label returns the pt-BR display name, or the raw value when unknown.
func (c BillCategory) Label() string {
	if l, ok := categoryLabels[c]; ok {
		return l
	}
	return string(c)
}

func (t BillType) Valid() bool {
	_, ok := billTypeLabels[t]
	return ok
}

func (t BillType) Label() string {
	if l, ok := billTypeLabels[t]; ok {
		return l
	}
	return string(t)
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	_, month, day := d.Date()
	if day < 1 || day > 31 {
		return ErrInvalidDay
	}
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

// Day returns the day of the month
func (d Date) Day() int {
	return d.Time.Day()
}

// Month returns the month
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Year returns the year
func (d Date) Year() int {
	return d.Time.Year()
}

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	return d.Format(time.DateOnly)
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

// DateOf truncates t to its calendar day in UTC.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

// Validate rejects negative amounts. Zero is a legal amount for every record kind.
func (m Money) Validate() error {
	if m.Cents < 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (m Money) Add(o Money) Money { return Money{Cents: m.Cents + o.Cents} }
func (m Money) Sub(o Money) Money { return Money{Cents: m.Cents - o.Cents} }
func (m Money) IsZero() bool      { return m.Cents == 0 }

func (p Purchase) Validate() error {
	if strings.TrimSpace(p.UserID) == "" {
		return invalid("user_id", ErrMissingUser)
	}
	if err := p.Date.Validate(); err != nil {
		return invalid("date", err)
	}
	if err := p.Total.Validate(); err != nil {
		return invalid("total", err)
	}
	if p.DurationMinutes < 0 {
		return invalid("duration_minutes", ErrInvalidDuration)
	}
	if !p.PaymentMethod.Valid() {
		return invalid("payment_method", ErrInvalidPayment)
	}
	return nil
}

func (b Bill) Validate() error {
	if strings.TrimSpace(b.UserID) == "" {
		return invalid("user_id", ErrMissingUser)
	}
	if len(strings.TrimSpace(b.Name)) == 0 {
		return invalid("name", ErrEmptyName)
	}
	if len(b.Name) > 200 {
		return invalid("name", errors.New("name too long (max 200 characters)"))
	}
	if err := b.Amount.Validate(); err != nil {
		return invalid("amount", err)
	}
	if !b.Category.Valid() {
		return invalid("category", ErrInvalidCategory)
	}
	if !b.Type.Valid() {
		return invalid("type", ErrInvalidBillType)
	}
	if b.DueDay < 1 || b.DueDay > 31 {
		return invalid("due_day", ErrInvalidDueDay)
	}
	return nil
}

func (s Salary) Validate() error {
	if strings.TrimSpace(s.UserID) == "" {
		return invalid("user_id", ErrMissingUser)
	}
	if err := s.Amount.Validate(); err != nil {
		return invalid("amount", err)
	}
	if s.Month < 1 || s.Month > 12 {
		return invalid("month", ErrInvalidMonth)
	}
	if s.Year < 1900 || s.Year > 9999 {
		return invalid("year", ErrInvalidYear)
	}
	return nil
}
