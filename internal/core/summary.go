package core

// OtherBucketCode and OtherBucketName label the remainder in structure breakdowns.
const (
	OtherBucketCode = "other"
	OtherBucketName = "Інше"
)

// PeriodAmounts is the approved/plan/actual sum for one reporting period.
type PeriodAmounts struct {
	RepPeriod string  `json:"rep_period"`
	Approved  float64 `json:"zat"`
	Plan      float64 `json:"plan"`
	Actual    float64 `json:"fact"`
}

// QuarterAmounts is the latest-period snapshot of one quarter.
type QuarterAmounts struct {
	Quarter   string  `json:"quarter"`
	RepPeriod string  `json:"rep_period"`
	Approved  float64 `json:"zat"`
	Plan      float64 `json:"plan"`
	Actual    float64 `json:"fact"`
}

// YearTotals summarizes one budget, classification and year.
type YearTotals struct {
	Approved         float64 `json:"zat"`
	Plan             float64 `json:"plan"`
	PlanFinal        float64 `json:"plan_final"`
	Actual           float64 `json:"fact"`
	ExecutionPercent float64 `json:"execution_percent"`
}

// CodeAmount is the actual amount attributed to one classification code.
type CodeAmount struct {
	Code   string  `json:"code"`
	Name   string  `json:"name"`
	Amount float64 `json:"total"`
}

// CodeSnapshot is one classification code as of its latest reporting
// period. Plan is the revised plan, or the approved amount when there is
// none.
type CodeSnapshot struct {
	Code               string  `json:"code"`
	Name               string  `json:"name"`
	Approved           float64 `json:"zat"`
	Plan               float64 `json:"plan"`
	Actual             float64 `json:"fact"`
	RepPeriod          string  `json:"rep_period"`
	ClassificationType string  `json:"classification_type"`
}

// StructureItem is one slice of a percentage breakdown.
type StructureItem struct {
	Code    string  `json:"code"`
	Name    string  `json:"name"`
	Amount  float64 `json:"amount"`
	Percent float64 `json:"percent"`
}

// YearAmount is a single point of a yearly series.
type YearAmount struct {
	Year   int     `json:"year"`
	Amount float64 `json:"value"`
}
