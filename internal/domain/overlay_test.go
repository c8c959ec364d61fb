package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func strPtr(s string) *string { return &s }

func decPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func timePtr(t time.Time) *time.Time { return &t }

func ruleDefaults() OccurrenceDefaults {
	return OccurrenceDefaults{
		Date:        Date(2026, time.March, 15),
		Amount:      decimal.RequireFromString("-49.90"),
		Description: "Gym membership",
	}
}

func TestResolveOccurrence_NoException(t *testing.T) {
	res := ResolveOccurrence(ruleDefaults(), nil, nil)

	assert.False(t, res.Skipped)
	assert.Equal(t, Date(2026, time.March, 15), res.Date)
	assert.True(t, res.Amount.Equal(decimal.RequireFromString("-49.90")))
	assert.Equal(t, "Gym membership", res.Description)
}

func TestResolveOccurrence_Skip(t *testing.T) {
	exc := &Exception{Type: ExceptionSkipped}
	res := ResolveOccurrence(ruleDefaults(), exc, nil)
	assert.True(t, res.Skipped)

	// Skip wins even when a request carries overrides.
	res = ResolveOccurrence(ruleDefaults(), exc, &Overrides{Amount: decPtr("-1.00")})
	assert.True(t, res.Skipped)
}

func TestResolveOccurrence_ExceptionOverridesRule(t *testing.T) {
	exc := &Exception{
		Type:        ExceptionModified,
		Date:        timePtr(Date(2026, time.March, 17)),
		Amount:      decPtr("-55.00"),
		Description: strPtr("Gym membership (price increase)"),
	}

	res := ResolveOccurrence(ruleDefaults(), exc, nil)
	assert.False(t, res.Skipped)
	assert.Equal(t, Date(2026, time.March, 17), res.Date)
	assert.True(t, res.Amount.Equal(decimal.RequireFromString("-55.00")))
	assert.Equal(t, "Gym membership (price increase)", res.Description)
}

func TestResolveOccurrence_RequestOverridesException(t *testing.T) {
	exc := &Exception{
		Type:   ExceptionModified,
		Amount: decPtr("-55.00"),
	}
	req := &Overrides{
		Amount: decPtr("-60.00"),
		Date:   timePtr(Date(2026, time.March, 20)),
	}

	res := ResolveOccurrence(ruleDefaults(), exc, req)
	assert.False(t, res.Skipped)
	// Request beats exception for amount.
	assert.True(t, res.Amount.Equal(decimal.RequireFromString("-60.00")))
	// Request supplies date; exception did not.
	assert.Equal(t, Date(2026, time.March, 20), res.Date)
	// Neither overrode description; rule default survives.
	assert.Equal(t, "Gym membership", res.Description)
}

func TestResolveOccurrence_PartialExceptionFields(t *testing.T) {
	exc := &Exception{
		Type:        ExceptionModified,
		Description: strPtr("Annual plan"),
	}

	res := ResolveOccurrence(ruleDefaults(), exc, nil)
	assert.Equal(t, "Annual plan", res.Description)
	assert.Equal(t, Date(2026, time.March, 15), res.Date)
	assert.True(t, res.Amount.Equal(decimal.RequireFromString("-49.90")))
}

func TestResolveOccurrence_Deterministic(t *testing.T) {
	exc := &Exception{Type: ExceptionModified, Amount: decPtr("-12.34")}
	req := &Overrides{Description: strPtr("override")}

	a := ResolveOccurrence(ruleDefaults(), exc, req)
	b := ResolveOccurrence(ruleDefaults(), exc, req)
	assert.Equal(t, a, b)
}
