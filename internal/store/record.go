package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/LopeviaKochis/ai-virtual-assistant/internal/model"
	"github.com/jackc/pgx/v5"
)

const recordSearchLimit = 10

// searchColumns maps the searchable identifiers onto their table columns.
// Anything outside this map is rejected before a query is built.
var searchColumns = map[model.SearchField]string{
	model.SearchFieldDNI:   "doc_num",
	model.SearchFieldPhone: "phone_number",
}

// Values are rendered as text server-side so the composer never deals with
// numeric or date types.
const recordSelect = `SELECT
	first_name,
	status,
	amount::text             AS amount,
	total_debt::text         AS total_debt,
	principal_debt::text     AS principal_debt,
	interest::text           AS interest,
	organizational_fee::text AS organizational_fee,
	penalty_charge::text     AS penalty_charge,
	to_char(due_date, 'DD/MM/YYYY') AS due_date,
	otp_code,
	phone_number,
	doc_num
FROM debt_records
WHERE %s = $1
ORDER BY due_date NULLS LAST
LIMIT %d`

// Querier is the subset of *db.DB the record search needs.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type recordSearch struct {
	q Querier
}

func NewRecordSearch(q Querier) RecordSearch {
	return &recordSearch{q: q}
}

// Search returns up to ten records whose identifier column equals value exactly.
func (s *recordSearch) Search(ctx context.Context, field model.SearchField, value string) ([]model.Record, error) {
	column, ok := searchColumns[field]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedField, field)
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}

	rows, err := s.q.Query(ctx, fmt.Sprintf(recordSelect, column, recordSearchLimit), value)
	if err != nil {
		return nil, fmt.Errorf("search records by %s: %w", field, err)
	}
	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Record, error) {
		m, err := pgx.RowToMap(row)
		if err != nil {
			return nil, err
		}
		return model.Record(m), nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan records: %w", err)
	}
	return records, nil
}
