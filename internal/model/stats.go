package model

import (
	"encoding/json"
	"fmt"
)

// trendEntities maps each DashboardStats counter to its wire prefix.
var trendEntities = []string{"patients", "doctors", "pending_reviews", "consultations", "prescriptions"}

type dashboardStatsAlias DashboardStats

func (s *DashboardStats) trends() []*TrendStat {
	return []*TrendStat{&s.Patients, &s.Doctors, &s.PendingReviews, &s.Consultations, &s.Prescriptions}
}

func (s *DashboardStats) UnmarshalJSON(data []byte) error {
	var alias dashboardStatsAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*s = DashboardStats(alias)
	for i, dst := range s.trends() {
		name := trendEntities[i]
		body, ok := raw[name]
		if !ok || string(body) == "null" {
			continue
		}
		stat, err := decodeTrend(name, body)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		*dst = stat
	}
	return nil
}

func (s DashboardStats) MarshalJSON() ([]byte, error) {
	base, err := json.Marshal(dashboardStatsAlias(s))
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(base, &out); err != nil {
		return nil, err
	}
	for i, stat := range s.trends() {
		out[trendEntities[i]] = encodeTrend(trendEntities[i], *stat)
	}
	return json.Marshal(out)
}

func decodeTrend(name string, body []byte) (TrendStat, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return TrendStat{}, err
	}

	var st TrendStat
	targets := map[string]any{
		"total_" + name:                      &st.Total,
		name + "_this_week":                  &st.ThisWeek,
		name + "_last_week":                  &st.LastWeek,
		name + "_percentage_since_last_week": &st.Percentage,
		"positive":                           &st.Positive,
	}
	for key, dst := range targets {
		v, ok := fields[key]
		if !ok {
			continue
		}
		if err := json.Unmarshal(v, dst); err != nil {
			return TrendStat{}, fmt.Errorf("%s: %w", key, err)
		}
	}
	return st, nil
}

func encodeTrend(name string, st TrendStat) map[string]any {
	return map[string]any{
		"total_" + name:                      st.Total,
		name + "_this_week":                  st.ThisWeek,
		name + "_last_week":                  st.LastWeek,
		name + "_percentage_since_last_week": st.Percentage,
		"positive":                           st.Positive,
	}
}
