package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SearchField names the identifier a record lookup filters on.
type SearchField string

const (
	SearchFieldDNI   SearchField = "dni"
	SearchFieldPhone SearchField = "phone"
)

// Record columns read by the answer composer.
const (
	FieldFirstName   = "first_name"
	FieldStatus      = "status"
	FieldAmount      = "amount"
	FieldTotalDebt   = "total_debt"
	FieldPrincipal   = "principal_debt"
	FieldInterest    = "interest"
	FieldFee         = "organizational_fee"
	FieldPenalty     = "penalty_charge"
	FieldDueDate     = "due_date"
	FieldOTPCode     = "otp_code"
	FieldPhoneNumber = "phone_number"
	FieldDocumentNum = "doc_num"
)

const dateLayoutDisplay = "02/01/2006"

// DebtFields are the only columns exposed to answer generation.
var DebtFields = []string{
	FieldFirstName, FieldStatus, FieldAmount, FieldTotalDebt, FieldPrincipal,
	FieldInterest, FieldFee, FieldPenalty, FieldDueDate,
}

// Record is one row returned by a record search.
type Record map[string]any

// String renders a field for display. Missing or null fields return "".
func (r Record) String(field string) string {
	v, ok := r[field]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case time.Time:
		return t.Format(dateLayoutDisplay)
	case float64:
		return strconv.FormatFloat(t, 'f', 2, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', 2, 32)
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

// Subset keeps only the listed fields that have a value.
func (r Record) Subset(fields []string) map[string]string {
	out := make(map[string]string, len(fields))
	for _, f := range fields {
		if v := r.String(f); v != "" {
			out[f] = v
		}
	}
	return out
}
