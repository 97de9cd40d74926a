package domain

import "time"

// Window is a half-open time range [From, To).
type Window struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// LastWindow returns the window of length d ending at now.
func LastWindow(now time.Time, d time.Duration) Window {
	return Window{From: now.Add(-d), To: now}
}

func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.From) && t.Before(w.To)
}

// PerformanceMetrics is derived, time-windowed statistics for one strategy.
type PerformanceMetrics struct {
	Strategy                 string        `json:"strategy"`
	Window                   Window        `json:"window"`
	Impressions              int64         `json:"impressions"`
	Clicks                   int64         `json:"clicks"`
	Plays                    int64         `json:"plays"`
	ConversionRate           float64       `json:"conversion_rate"`
	ClickThroughRate         float64       `json:"click_through_rate"`
	Precision                float64       `json:"precision"`
	Recall                   float64       `json:"recall"`
	AvgResponseTime          time.Duration `json:"avg_response_time"`
	Coverage                 float64       `json:"coverage"`
	Diversity                float64       `json:"diversity"`
	RevenuePerRecommendation float64       `json:"revenue_per_recommendation"`
}

// StrategyRanking is a point-in-time position of one strategy.
type StrategyRanking struct {
	Strategy string             `json:"strategy"`
	Score    float64            `json:"score"`
	Rank     int                `json:"rank"`
	Metrics  PerformanceMetrics `json:"metrics"`
}
