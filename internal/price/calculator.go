package price

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"housekeeper/internal/models"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidRange = errors.New("check-out must be after check-in")
	ErrStayTooLong  = errors.New("stay exceeds the maximum number of nights")
	ErrStartInPast  = errors.New("check-in date is in the past")
)

// DatesUnavailableError lists every night that has no usable rate. Callers
// rely on the list being complete, not just the first offender.
type DatesUnavailableError struct {
	Dates []string
}

func (e *DatesUnavailableError) Error() string {
	return fmt.Sprintf("dates unavailable: %s", strings.Join(e.Dates, ", "))
}

// InconsistentCurrencyError is a data error: nights of one stay priced in
// different currencies.
type InconsistentCurrencyError struct {
	Currencies []string
}

func (e *InconsistentCurrencyError) Error() string {
	return fmt.Sprintf("inconsistent currencies in rate data: %s", strings.Join(e.Currencies, ", "))
}

type Request struct {
	RoomID     int64
	PropertyID int64
	StartDate  time.Time
	EndDate    time.Time
}

type Result struct {
	RoomID       int64
	PropertyID   int64
	RoomName     string
	CheckIn      time.Time
	CheckOut     time.Time
	Nights       int
	Breakdown    map[string]decimal.Decimal
	TotalAmount  decimal.Decimal
	Currency     string
	CalculatedAt time.Time
}

// Calculator turns a date range plus a rate snapshot into a validated
// total. Pure: rates are passed in, the clock is passed in.
type Calculator struct {
	maxNights int
}

func NewCalculator(maxNights int) *Calculator {
	if maxNights <= 0 {
		maxNights = models.DefaultMaxNights
	}
	return &Calculator{maxNights: maxNights}
}

// ValidateRange runs the stay preconditions without any rate data, so
// callers can reject a request before paying for an upstream fetch.
func (c *Calculator) ValidateRange(startDate, endDate, now time.Time) error {
	start := models.DateOnly(startDate)
	end := models.DateOnly(endDate)

	if !start.Before(end) {
		return ErrInvalidRange
	}
	if int(end.Sub(start).Hours()/24) > c.maxNights {
		return ErrStayTooLong
	}
	if start.Before(models.DateOnly(now)) {
		return ErrStartInPast
	}
	return nil
}

func (c *Calculator) Calculate(req Request, rates map[string]models.RateEntry, now time.Time) (*Result, error) {
	start := models.DateOnly(req.StartDate)
	end := models.DateOnly(req.EndDate)

	if err := c.ValidateRange(start, end, now); err != nil {
		return nil, err
	}
	nights := int(end.Sub(start).Hours() / 24)

	var (
		missing    []string
		currencies = make(map[string]bool)
		breakdown  = make(map[string]decimal.Decimal, nights)
		total      = decimal.Zero
		roomName   string
	)

	for night := start; night.Before(end); night = night.AddDate(0, 0, 1) {
		key := night.Format(models.DateFormat)
		entry, ok := rates[key]
		if !ok || !entry.Available {
			missing = append(missing, key)
			continue
		}

		breakdown[key] = entry.Price
		total = total.Add(entry.Price)
		currencies[entry.Currency] = true
		if roomName == "" {
			roomName = entry.RoomName
		}
	}

	// Every violating night is reported; availability gaps take precedence
	// over currency inconsistencies.
	if len(missing) > 0 {
		return nil, &DatesUnavailableError{Dates: missing}
	}
	if len(currencies) > 1 {
		return nil, &InconsistentCurrencyError{Currencies: sortedKeys(currencies)}
	}

	var currency string
	for cur := range currencies {
		currency = cur
	}

	return &Result{
		RoomID:       req.RoomID,
		PropertyID:   req.PropertyID,
		RoomName:     roomName,
		CheckIn:      start,
		CheckOut:     end,
		Nights:       nights,
		Breakdown:    breakdown,
		TotalAmount:  total,
		Currency:     currency,
		CalculatedAt: now,
	}, nil
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
