package settlement

import "testing"

func TestNewPeriodBounds(t *testing.T) {
	p, err := NewPeriod(2024, 3)
	if err != nil {
		t.Fatalf("NewPeriod: %v", err)
	}
	if got := p.StartDate(); got != "2024-03-01" {
		t.Fatalf("start = %s", got)
	}
	if got := p.EndDate(); got != "2024-03-31" {
		t.Fatalf("end = %s", got)
	}
	if got := p.End.Format("2006-01-02"); got != "2024-04-01" {
		t.Fatalf("exclusive end = %s", got)
	}
}

func TestNewPeriodDecemberRollover(t *testing.T) {
	p, err := NewPeriod(2024, 12)
	if err != nil {
		t.Fatalf("NewPeriod: %v", err)
	}
	if got := p.End.Format("2006-01-02"); got != "2025-01-01" {
		t.Fatalf("exclusive end = %s", got)
	}
	if got := p.EndDate(); got != "2024-12-31" {
		t.Fatalf("end = %s", got)
	}
}

func TestNewPeriodInvalid(t *testing.T) {
	for _, tc := range []struct{ year, month int }{
		{2024, 0}, {2024, 13}, {1999, 5}, {2101, 5},
	} {
		if _, err := NewPeriod(tc.year, tc.month); err == nil {
			t.Fatalf("NewPeriod(%d, %d): expected error", tc.year, tc.month)
		}
	}
}

func TestVATFloors(t *testing.T) {
	if got := VAT(15000); got != 1500 {
		t.Fatalf("VAT(15000) = %d", got)
	}
	if got := VAT(12345); got != 1234 {
		t.Fatalf("VAT(12345) = %d", got)
	}
	if got := VAT(9); got != 0 {
		t.Fatalf("VAT(9) = %d", got)
	}
}

func TestBuildAggregationScenario(t *testing.T) {
	p, _ := NewPeriod(2024, 3)
	source := []SourceRow{
		{Date: "2024-03-05", EvaluatorID: 2, EvaluatorName: "김평가", Count: 3},
		{Date: "2024-03-05", EvaluatorID: 3, EvaluatorName: "박평가", Count: 1},
		{Date: "2024-03-02", EvaluatorID: 2, EvaluatorName: "김평가", Count: 2},
	}

	agg := BuildAggregation(p, source)

	if len(agg.Days) != 2 {
		t.Fatalf("days = %d, want 2", len(agg.Days))
	}
	if agg.Days[0].Date != "2024-03-02" || agg.Days[1].Date != "2024-03-05" {
		t.Fatalf("day order = %s, %s", agg.Days[0].Date, agg.Days[1].Date)
	}

	first := agg.Days[0].Rows[0]
	if first.Count != 2 || first.Amount != 30000 || first.VAT != 3000 || first.TotalAmount != 33000 {
		t.Fatalf("first row = %+v", first)
	}

	day2 := agg.Days[1]
	if len(day2.Rows) != 2 {
		t.Fatalf("rows on 03-05 = %d", len(day2.Rows))
	}
	if day2.Rows[0].EvaluatorName != "김평가" || day2.Rows[1].EvaluatorName != "박평가" {
		t.Fatalf("row name order = %s, %s", day2.Rows[0].EvaluatorName, day2.Rows[1].EvaluatorName)
	}
	if day2.Subtotal.Count != 4 || day2.Subtotal.Amount != 60000 || day2.Subtotal.VAT != 6000 {
		t.Fatalf("03-05 subtotal = %+v", day2.Subtotal)
	}

	if agg.Totals.Count != 6 || agg.Totals.Amount != 90000 || agg.Totals.VAT != 9000 || agg.Totals.TotalAmount != 99000 {
		t.Fatalf("totals = %+v", agg.Totals)
	}
}

func TestBuildAggregationDeterministicOrder(t *testing.T) {
	p, _ := NewPeriod(2024, 3)
	shuffled := []SourceRow{
		{Date: "2024-03-09", EvaluatorName: "다", Count: 1},
		{Date: "2024-03-01", EvaluatorName: "나", Count: 1},
		{Date: "2024-03-09", EvaluatorName: "가", Count: 1},
	}

	agg := BuildAggregation(p, shuffled)
	if agg.Days[0].Date != "2024-03-01" {
		t.Fatalf("first day = %s", agg.Days[0].Date)
	}
	day := agg.Days[1]
	if day.Rows[0].EvaluatorName != "가" || day.Rows[1].EvaluatorName != "다" {
		t.Fatalf("name order = %s, %s", day.Rows[0].EvaluatorName, day.Rows[1].EvaluatorName)
	}
}

// Grand-total VAT is the sum of row VATs, not a re-floor of the total
// amount, so totals always reconcile with their constituent rows.
func TestBuildAggregationVATAdditive(t *testing.T) {
	p, _ := NewPeriod(2024, 3)
	agg := BuildAggregation(p, []SourceRow{
		{Date: "2024-03-01", EvaluatorName: "가", Count: 1},
		{Date: "2024-03-01", EvaluatorName: "나", Count: 1},
	})

	var rowVAT int64
	for _, day := range agg.Days {
		for _, row := range day.Rows {
			rowVAT += row.VAT
		}
	}
	if agg.Totals.VAT != rowVAT {
		t.Fatalf("totals VAT = %d, sum of rows = %d", agg.Totals.VAT, rowVAT)
	}
}

func TestBuildAggregationEmpty(t *testing.T) {
	p, _ := NewPeriod(2024, 2)
	agg := BuildAggregation(p, nil)
	if len(agg.Days) != 0 {
		t.Fatalf("days = %d", len(agg.Days))
	}
	if agg.Totals != (Totals{}) {
		t.Fatalf("totals = %+v", agg.Totals)
	}
	if agg.StartDate != "2024-02-01" || agg.EndDate != "2024-02-29" {
		t.Fatalf("period = %s ~ %s", agg.StartDate, agg.EndDate)
	}
}
