package pipeline

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hillwinds/benetl/internal/source"
)

func TestCleanEmployee_Normalizes(t *testing.T) {
	got := CleanEmployee(source.RawEmployee{
		PersonID:   "  P001  ",
		FullName:   "  john smith ",
		Title:      " Engineer ",
		Email:      "  John@EXAMPLE.com ",
		CompanyEIN: " 11-111 ",
		StartDate:  "2024-01-15",
		Notes:      " note ",
	})

	assert.Equal(t, "P001", got.PersonID)
	assert.Equal(t, "John Smith", got.FullName)
	assert.Equal(t, "Engineer", got.Title)
	assert.Equal(t, "john@example.com", got.Email)
	assert.Equal(t, "11-111", got.CompanyEIN)
	assert.True(t, got.StartDate.Valid)
	assert.Equal(t, "2024-01-15", got.StartDate.String())
	assert.Equal(t, "note", got.Notes)
}

func TestCleanEmployee_Idempotent(t *testing.T) {
	raw := source.RawEmployee{
		PersonID:  "P002",
		FullName:  "jane DOE",
		Email:     " Jane.Doe@Corp.IO ",
		StartDate: "03/15/2024",
	}
	once := CleanEmployee(raw)
	twice := CleanEmployee(source.RawEmployee{
		PersonID:  once.PersonID,
		FullName:  once.FullName,
		Title:     once.Title,
		Email:     once.Email,
		StartDate: once.StartDate.String(),
		Notes:     once.Notes,
	})

	assert.Equal(t, once.FullName, twice.FullName)
	assert.Equal(t, once.Email, twice.Email)
	assert.Equal(t, once.StartDate.String(), twice.StartDate.String())
}

func TestCleanEmployee_BadDateBecomesSentinel(t *testing.T) {
	got := CleanEmployee(source.RawEmployee{PersonID: "P003", StartDate: "February 30th"})
	assert.False(t, got.StartDate.Valid)
	assert.True(t, got.StartDate.Malformed())
	assert.Equal(t, "February 30th", got.StartDate.Raw)
}

func TestCleanPlan_LowercasesType(t *testing.T) {
	got := CleanPlan(source.RawPlan{PlanID: " PL1 ", PlanType: " Medical ", Carrier: " Acme "})
	assert.Equal(t, "PL1", got.PlanID)
	assert.Equal(t, "medical", string(got.PlanType))
	assert.Equal(t, "Acme", got.Carrier)
}

func TestCleanClaim_Amounts(t *testing.T) {
	ok := CleanClaim(source.RawClaim{ClaimID: "C1", Amount: " 123.45 "})
	assert.Equal(t, 123.45, ok.Amount)

	bad := CleanClaim(source.RawClaim{ClaimID: "C2", Amount: "twelve"})
	assert.True(t, math.IsNaN(bad.Amount))

	empty := CleanClaim(source.RawClaim{ClaimID: "C3"})
	assert.True(t, math.IsNaN(empty.Amount))
}
