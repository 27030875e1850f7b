package model

import (
	"encoding/json"
	"testing"
)

const statsPayload = `{
  "patients": {"total_patients": 120, "patients_this_week": 9, "patients_last_week": 6, "patients_percentage_since_last_week": 50, "positive": true},
  "doctors": {"total_doctors": 14, "doctors_this_week": 1, "doctors_last_week": 2, "doctors_percentage_since_last_week": -50, "positive": false},
  "pending_reviews": {"total_pending_reviews": 3, "pending_reviews_this_week": 3, "pending_reviews_last_week": 0, "pending_reviews_percentage_since_last_week": 100, "positive": true},
  "consultations": {"total_consultations": 300, "consultations_this_week": 20, "consultations_last_week": 20, "consultations_percentage_since_last_week": 0, "positive": true},
  "prescriptions": {"total_prescriptions": 210, "prescriptions_this_week": 11, "prescriptions_last_week": 10, "prescriptions_percentage_since_last_week": 10, "positive": true},
  "active_doctors_vs_patients": {"categories": ["Jan", "Feb"], "series": [{"name": "Doctors", "data": [1, 2]}]},
  "consultationOverTime": [{"month": "Jan", "count": 4}],
  "prescriptionVolumeTrend": [{"month": "Jan", "count": 7}],
  "top_specialities_in_demand": [{"speciality": "Cardiology", "count": 5}]
}`

func TestDashboardStats_DecodesPrefixedTrends(t *testing.T) {
	var s DashboardStats
	if err := json.Unmarshal([]byte(statsPayload), &s); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if s.Patients.Total != 120 || s.Patients.ThisWeek != 9 || !s.Patients.Positive {
		t.Fatalf("unexpected patients: %+v", s.Patients)
	}
	if s.Doctors.Percentage != -50 || s.Doctors.Positive {
		t.Fatalf("unexpected doctors: %+v", s.Doctors)
	}
	if s.PendingReviews.Total != 3 {
		t.Fatalf("unexpected pending reviews: %+v", s.PendingReviews)
	}
	if len(s.ActiveDoctorsVsPatients.Series) != 1 || s.ActiveDoctorsVsPatients.Series[0].Name != "Doctors" {
		t.Fatalf("unexpected series: %+v", s.ActiveDoctorsVsPatients)
	}
	if len(s.TopSpecialities) != 1 || s.TopSpecialities[0].Speciality != "Cardiology" {
		t.Fatalf("unexpected specialities: %+v", s.TopSpecialities)
	}
}

func TestDashboardStats_EncodesServerShape(t *testing.T) {
	s := DashboardStats{Prescriptions: TrendStat{Total: 5, ThisWeek: 2, Positive: true}}
	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var raw map[string]map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if raw["prescriptions"]["total_prescriptions"] != float64(5) {
		t.Fatalf("expected total_prescriptions=5, got %v", raw["prescriptions"])
	}
	if raw["prescriptions"]["prescriptions_this_week"] != float64(2) {
		t.Fatalf("expected prescriptions_this_week=2, got %v", raw["prescriptions"])
	}
}

func TestIdentity_RolesAndDisplayName(t *testing.T) {
	first := "Ada"
	id := &Identity{ID: 1, Email: "ada@example.com", FirstName: &first, Roles: []Role{{ID: 1, Name: "Admin", Slug: RoleSlugAdmin}}}
	if !id.HasRole(RoleSlugAdmin) {
		t.Fatalf("expected admin role")
	}
	if id.DisplayName() != "Ada" {
		t.Fatalf("unexpected display name %q", id.DisplayName())
	}

	var nilID *Identity
	if nilID.HasRole(RoleSlugAdmin) {
		t.Fatalf("nil identity must not have roles")
	}
	if (&Identity{Email: "x@example.com"}).DisplayName() != "x@example.com" {
		t.Fatalf("expected email fallback")
	}
}
