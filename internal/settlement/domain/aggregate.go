package settlement

import (
	"sort"
	"time"
)

// UnitFee is the billed amount per answered request, in KRW. The fee
// schedule is fixed for all evaluators.
const UnitFee = 15000

// VAT returns the value-added tax for an amount: 10%, truncated toward
// zero. Integer division keeps the original floor semantics exactly.
func VAT(amount int64) int64 {
	return amount / 10
}

// Period is the closed-open date range covered by one settlement month.
type Period struct {
	Year  int
	Month int
	Start time.Time // inclusive
	End   time.Time // exclusive, first day of the next month
}

// NewPeriod derives [start, end) from a year/month pair, rolling the
// year over at December.
func NewPeriod(year, month int) (Period, error) {
	if year < 2000 || year > 2100 || month < 1 || month > 12 {
		return Period{}, ErrInvalidPeriod
	}
	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	nextYear, nextMonth := year, month+1
	if nextMonth > 12 {
		nextMonth = 1
		nextYear++
	}
	end := time.Date(nextYear, time.Month(nextMonth), 1, 0, 0, 0, 0, time.UTC)
	return Period{Year: year, Month: month, Start: start, End: end}, nil
}

// StartDate returns the inclusive period start as YYYY-MM-DD.
func (p Period) StartDate() string { return p.Start.Format("2006-01-02") }

// EndDate returns the inclusive period end (last day of month).
func (p Period) EndDate() string { return p.End.AddDate(0, 0, -1).Format("2006-01-02") }

// SourceRow is one grouped count from storage: answered requests per
// (answer day, evaluator display name).
type SourceRow struct {
	Date          string
	EvaluatorID   int64
	EvaluatorName string
	Count         int
}

// Row is one billed line of the aggregation. Field names preserve the
// persisted payload format.
type Row struct {
	Date          string `json:"settlement_date"`
	EvaluatorID   int64  `json:"evaluator_id,omitempty"`
	EvaluatorName string `json:"evaluator_name"`
	Count         int    `json:"count"`
	Amount        int64  `json:"amount"`
	VAT           int64  `json:"vat"`
	TotalAmount   int64  `json:"total_amount"`
}

// Totals accumulates counts and amounts across rows.
type Totals struct {
	Count       int   `json:"count"`
	Amount      int64 `json:"amount"`
	VAT         int64 `json:"vat"`
	TotalAmount int64 `json:"total_amount"`
}

func (t *Totals) add(r Row) {
	t.Count += r.Count
	t.Amount += r.Amount
	t.VAT += r.VAT
	t.TotalAmount += r.TotalAmount
}

// Day groups one settlement day's rows with their subtotal.
type Day struct {
	Date     string `json:"date"`
	Rows     []Row  `json:"rows"`
	Subtotal Totals `json:"subtotal"`
}

// Aggregation is the full settlement computation for one period.
type Aggregation struct {
	Year      int    `json:"year"`
	Month     int    `json:"month"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Days      []Day  `json:"days"`
	Totals    Totals `json:"totals"`
}

// BuildAggregation computes billed rows, day subtotals and the grand
// total from grouped source counts. Days are ordered ascending and rows
// within a day ascending by evaluator name, so exports reproduce
// byte-identically. Subtotal and grand-total VAT are sums of their row
// VATs; the grand total is never re-floored from the overall amount.
func BuildAggregation(p Period, source []SourceRow) *Aggregation {
	byDay := make(map[string][]Row)
	for _, src := range source {
		amount := int64(src.Count) * UnitFee
		row := Row{
			Date:          src.Date,
			EvaluatorID:   src.EvaluatorID,
			EvaluatorName: src.EvaluatorName,
			Count:         src.Count,
			Amount:        amount,
			VAT:           VAT(amount),
		}
		row.TotalAmount = row.Amount + row.VAT
		byDay[src.Date] = append(byDay[src.Date], row)
	}

	dates := make([]string, 0, len(byDay))
	for date := range byDay {
		dates = append(dates, date)
	}
	sort.Strings(dates)

	agg := &Aggregation{
		Year:      p.Year,
		Month:     p.Month,
		StartDate: p.StartDate(),
		EndDate:   p.EndDate(),
		Days:      make([]Day, 0, len(dates)),
	}
	for _, date := range dates {
		rows := byDay[date]
		sort.Slice(rows, func(i, j int) bool {
			if rows[i].EvaluatorName != rows[j].EvaluatorName {
				return rows[i].EvaluatorName < rows[j].EvaluatorName
			}
			return rows[i].EvaluatorID < rows[j].EvaluatorID
		})
		day := Day{Date: date, Rows: rows}
		for _, row := range rows {
			day.Subtotal.add(row)
		}
		agg.Days = append(agg.Days, day)
		for _, row := range rows {
			agg.Totals.add(row)
		}
	}
	return agg
}
