package postgres

import (
	"database/sql"
	"fmt"

	ierr "github.com/innkeep/loyalty/internal/errors"
	"github.com/innkeep/loyalty/internal/postgres"
	"github.com/innkeep/loyalty/internal/types"
	"github.com/samber/lo"
)

// sortableColumns are the only columns list endpoints may sort on
var sortableColumns = []string{"created_at", "updated_at", "enrolled_at", "priority", "points", "name", "points_cost"}

func sortOrder(order string) string {
	if order == types.OrderAsc {
		return "ASC"
	}
	return "DESC"
}

// orderBy builds a safe ORDER BY body from the filter, falling back to fallback
func orderBy(filter *types.QueryFilter, fallback string) string {
	if filter == nil {
		return fmt.Sprintf("%s DESC, id DESC", fallback)
	}
	column := filter.GetSort()
	if !lo.Contains(sortableColumns, column) {
		column = fallback
	}
	order := sortOrder(filter.GetOrder())
	return fmt.Sprintf("%s %s, id %s", column, order, order)
}

// pagination appends LIMIT/OFFSET placeholders unless the filter is unlimited
func pagination(filter *types.QueryFilter, params map[string]interface{}) string {
	if filter == nil || filter.IsUnlimited() {
		return ""
	}
	params["limit"] = filter.GetLimit()
	params["offset"] = filter.GetOffset()
	return " LIMIT :limit OFFSET :offset"
}

func timeRangeConditions(column string, window *types.TimeRangeFilter, params map[string]interface{}) []string {
	if window == nil {
		return nil
	}
	conds := []string{}
	if window.StartTime != nil {
		conds = append(conds, column+" >= :start_time")
		params["start_time"] = *window.StartTime
	}
	if window.EndTime != nil {
		conds = append(conds, column+" <= :end_time")
		params["end_time"] = *window.EndTime
	}
	return conds
}

// expectAffected returns notFound when an update touched no rows
func expectAffected(result sql.Result, notFound error) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return postgres.WrapError(err, "rows affected")
	}
	if rows == 0 {
		return notFound
	}
	return nil
}

func notFoundError(kind error, hint string, details map[string]any) error {
	return ierr.NewError(hint).
		WithHint(hint).
		WithReportableDetails(details).
		Mark(kind)
}
