package entity

// TrendStatus describes how a position moved between two analyses.
type TrendStatus string

const (
	TrendNew     TrendStatus = "new"
	TrendUp      TrendStatus = "up"
	TrendDown    TrendStatus = "down"
	TrendStable  TrendStatus = "stable"
	TrendEntered TrendStatus = "entered"
	TrendLost    TrendStatus = "lost"
)

// PositionTrend is the movement of a website for one query. Change is always >= 0.
type PositionTrend struct {
	Status TrendStatus `json:"status"`
	Change int         `json:"change"`
}

// ComparePositions compares the current row against the previous one (nil when none exists).
// A lower position number is a better rank.
func ComparePositions(prev, cur *SeoResult) PositionTrend {
	if prev == nil {
		return PositionTrend{Status: TrendNew}
	}
	switch {
	case cur.Position != nil && prev.Position != nil:
		change := *prev.Position - *cur.Position
		switch {
		case change > 0:
			return PositionTrend{Status: TrendUp, Change: change}
		case change < 0:
			return PositionTrend{Status: TrendDown, Change: -change}
		}
	case cur.Position != nil:
		return PositionTrend{Status: TrendEntered}
	case prev.Position != nil:
		return PositionTrend{Status: TrendLost}
	}
	return PositionTrend{Status: TrendStable}
}
