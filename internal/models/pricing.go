package models

import "strconv"

// SettingSalaryPriceMatrix is the settings key holding the default PriceFactors.
const SettingSalaryPriceMatrix = "salaryPriceMatrix"

// PriceFactors maps duration (months) to annual mileage (km) to a per-mille factor
// applied to a vehicle's base monthly rate. 1000 keeps the rate unchanged.
type PriceFactors map[string]map[string]int64

// DefaultPriceFactors is used when no salaryPriceMatrix setting is stored.
func DefaultPriceFactors() PriceFactors {
	return PriceFactors{
		"24": {"10000": 1080, "15000": 1120, "20000": 1170},
		"36": {"10000": 1000, "15000": 1040, "20000": 1090},
		"48": {"10000": 950, "15000": 990, "20000": 1030},
	}
}

// Valid reports whether every factor is positive and every key is a positive integer.
func (f PriceFactors) Valid() bool {
	if len(f) == 0 {
		return false
	}
	for duration, row := range f {
		if n, err := strconv.Atoi(duration); err != nil || n <= 0 || len(row) == 0 {
			return false
		}
		for mileage, factor := range row {
			if n, err := strconv.Atoi(mileage); err != nil || n <= 0 || factor <= 0 {
				return false
			}
		}
	}
	return true
}

// Apply builds a price matrix from a base monthly rate, rounding half up to whole cents.
func (f PriceFactors) Apply(monthlyRate int64) PriceMatrix {
	matrix := make(PriceMatrix, len(f))
	for duration, row := range f {
		out := make(map[string]int64, len(row))
		for mileage, factor := range row {
			out[mileage] = (monthlyRate*factor + 500) / 1000
		}
		matrix[duration] = out
	}
	return matrix
}
