package commission

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ledgerWith(original int64, allocations map[string]int64) Ledger {
	l := Ledger{OriginalCommission: original, SubBrokerCommissions: map[string]int64{}}
	for k, v := range allocations {
		l.SubBrokerCommissions[k] = v
	}
	l.AvailableCommission = l.Remaining()
	return l
}

func TestAllocate_AddsSubBroker(t *testing.T) {
	l := ledgerWith(500, map[string]int64{"A": 200})

	next, err := Allocate(l, "B", 250)
	require.NoError(t, err)

	assert.Equal(t, map[string]int64{"A": 200, "B": 250}, next.SubBrokerCommissions)
	assert.Equal(t, int64(50), next.AvailableCommission)
	assert.NoError(t, next.Check())

	// the input ledger is untouched
	assert.Equal(t, map[string]int64{"A": 200}, l.SubBrokerCommissions)
	assert.Equal(t, int64(300), l.AvailableCommission)
}

func TestAllocate_RejectsOverAllocation(t *testing.T) {
	l := ledgerWith(500, map[string]int64{"A": 200})

	_, err := Allocate(l, "B", 400)
	require.Error(t, err)

	var insufficient *InsufficientCommissionError
	require.True(t, errors.As(err, &insufficient))
	assert.Equal(t, int64(400), insufficient.Requested)
	assert.Equal(t, int64(300), insufficient.Remaining)
	assert.ErrorIs(t, err, ErrInsufficientCommission)
}

func TestAllocate_SetsAbsoluteValue(t *testing.T) {
	l := ledgerWith(500, map[string]int64{"A": 200, "B": 250})

	raised, err := Allocate(l, "A", 250)
	require.NoError(t, err)
	assert.Equal(t, int64(0), raised.AvailableCommission)

	lowered, err := Allocate(l, "A", 50)
	require.NoError(t, err)
	assert.Equal(t, int64(200), lowered.AvailableCommission)
	assert.Equal(t, int64(50), lowered.SubBrokerCommissions["A"])

	_, err = Allocate(l, "A", 251)
	assert.ErrorIs(t, err, ErrInsufficientCommission)
}

func TestAllocate_RejectsNegative(t *testing.T) {
	l := ledgerWith(500, nil)

	_, err := Allocate(l, "A", -1)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = Allocate(l, "  ", 1)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestAllocate_Idempotent(t *testing.T) {
	l := ledgerWith(500, map[string]int64{"A": 200})

	once, err := Allocate(l, "B", 120)
	require.NoError(t, err)
	twice, err := Allocate(once, "B", 120)
	require.NoError(t, err)

	assert.Equal(t, once, twice)
}

func TestAllocate_PreservesInvariant(t *testing.T) {
	l, err := NewLedger(1000)
	require.NoError(t, err)

	steps := []struct {
		id     string
		amount int64
	}{
		{"A", 300}, {"B", 300}, {"C", 500}, {"A", 0}, {"C", 700}, {"B", 301}, {"D", 0},
	}
	for _, step := range steps {
		next, err := Allocate(l, step.id, step.amount)
		if err != nil {
			assert.ErrorIs(t, err, ErrInsufficientCommission)
			continue
		}
		l = next
		require.NoError(t, l.Check())
		assert.Equal(t, l.OriginalCommission, l.AvailableCommission+l.TotalAllocated())
		assert.LessOrEqual(t, l.TotalAllocated(), l.OriginalCommission)
	}
}

func TestRevise(t *testing.T) {
	l := ledgerWith(500, map[string]int64{"A": 200})

	next, err := l.Revise(800)
	require.NoError(t, err)
	assert.Equal(t, int64(600), next.AvailableCommission)

	next, err = l.Revise(200)
	require.NoError(t, err)
	assert.Equal(t, int64(0), next.AvailableCommission)

	_, err = l.Revise(199)
	assert.ErrorIs(t, err, ErrInsufficientCommission)

	_, err = l.Revise(-5)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestCheck_DetectsDrift(t *testing.T) {
	l := ledgerWith(500, map[string]int64{"A": 200})
	l.AvailableCommission = 310
	assert.Error(t, l.Check())
}

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"250", 250, false},
		{"0", 0, false},
		{"2.0", 2, false},
		{"1e3", 1000, false},
		{"2.5", 0, true},
		{"-1", 0, true},
		{"abc", 0, true},
		{"", 0, true},
		{"99999999999999999999", 0, true},
		{"1E2", 100, false},
		{"0x10", 0, true},
		{"1/2", 0, true},
		{"+5", 0, true},
		{"05", 0, true},
		{"1_000", 0, true},
		{" 7 ", 7, false},
		{"1e999999999", 0, true},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseAmount(json.Number(tc.in))
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrInvalidAmount)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}
