package medallion

import (
	"fmt"

	"github.com/estategraph/estate-engine/pkg/models"
)

// validator accumulates range-rule violations while cleaning one row.
// A violated field is nulled, never dropped with its row.
type validator struct {
	issues []models.ValidationIssue
}

func newValidator() *validator {
	return &validator{}
}

func (v *validator) add(field, rule, message string) {
	v.issues = append(v.issues, models.ValidationIssue{
		Field:   field,
		Rule:    rule,
		Message: message,
	})
}

// inRange nulls values outside [lo, hi].
func (v *validator) inRange(field string, val *float64, lo, hi float64) *float64 {
	if val == nil {
		return nil
	}
	if *val < lo || *val > hi {
		v.add(field, "range", fmt.Sprintf("%v outside [%v, %v]", *val, lo, hi))
		return nil
	}
	return val
}

// positive nulls values that are not strictly greater than zero.
func (v *validator) positive(field string, val *float64) *float64 {
	if val == nil {
		return nil
	}
	if *val <= 0 {
		v.add(field, "positive", fmt.Sprintf("%v is not positive", *val))
		return nil
	}
	return val
}

// nonNegative nulls values below zero.
func (v *validator) nonNegative(field string, val *float64) *float64 {
	if val == nil {
		return nil
	}
	if *val < 0 {
		v.add(field, "non_negative", fmt.Sprintf("%v is negative", *val))
		return nil
	}
	return val
}

// intInRange nulls integer values outside [lo, hi].
func (v *validator) intInRange(field string, val *int, lo, hi int) *int {
	if val == nil {
		return nil
	}
	if *val < lo || *val > hi {
		v.add(field, "range", fmt.Sprintf("%d outside [%d, %d]", *val, lo, hi))
		return nil
	}
	return val
}
