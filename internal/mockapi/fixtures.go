package mockapi

import (
	"fmt"
	"time"

	"iprescribe-console/internal/model"
)

type account struct {
	identity model.Identity
	password string
}

func strPtr(s string) *string { return &s }

func defaultAccounts() []account {
	return []account{
		{
			identity: model.Identity{
				ID:        1,
				Email:     "admin@iprescribe.online",
				FirstName: strPtr("Amaka"),
				LastName:  strPtr("Obi"),
				Roles:     []model.Role{{ID: 1, Name: "Admin", Slug: model.RoleSlugAdmin, Default: 0}},
			},
			password: "password",
		},
		{
			identity: model.Identity{
				ID:    2,
				Email: "doctor@iprescribe.online",
				Roles: []model.Role{{ID: 2, Name: "Doctor", Slug: "doctor", Default: 1}},
			},
			password: "password",
		},
	}
}

var (
	firstNames = []string{"Chinedu", "Aisha", "Tunde", "Ngozi", "Emeka", "Fatima", "Bola", "Kelechi"}
	lastNames  = []string{"Okafor", "Bello", "Adeyemi", "Eze", "Ibrahim", "Nwosu", "Lawal", "Okoro"}
	states     = []string{"Lagos", "Abuja", "Kano", "Enugu", "Oyo"}
)

// defaultPatients returns n patients, the newest first by created_at.
func defaultPatients(n int, now time.Time) []model.Patient {
	out := make([]model.Patient, 0, n)
	for i := 1; i <= n; i++ {
		first := firstNames[i%len(firstNames)]
		last := lastNames[(i*3)%len(lastNames)]
		email := fmt.Sprintf("%s.%s%d@example.com", first, last, i)
		gender := "female"
		if i%2 == 0 {
			gender = "male"
		}
		status := "active"
		if i%7 == 0 {
			status = "inactive"
		}
		created := now.Add(-time.Duration(i) * 36 * time.Hour)
		out = append(out, model.Patient{
			ID:             int64(i),
			UserID:         int64(100 + i),
			FirstName:      strPtr(first),
			LastName:       strPtr(last),
			Gender:         strPtr(gender),
			Email:          strPtr(email),
			PatientID:      fmt.Sprintf("IPR-%05d", i),
			DOB:            fmt.Sprintf("19%02d-%02d-%02d", 60+i%40, 1+i%12, 1+i%28),
			State:          strPtr(states[i%len(states)]),
			PrimaryAccount: 1,
			CreatedAt:      created.UTC().Format(time.RFC3339),
			Status:         status,
			LastSeen:       created.Add(12 * time.Hour).UTC().Format(time.RFC3339),
			User: model.PatientUser{
				ID:        int64(100 + i),
				FirstName: strPtr(first),
				LastName:  strPtr(last),
				Email:     strPtr(email),
				Devices:   []model.Device{{Platform: "android", DeviceName: "Pixel"}},
			},
		})
	}
	return out
}

func trend(total, thisWeek, lastWeek int) model.TrendStat {
	st := model.TrendStat{Total: total, ThisWeek: thisWeek, LastWeek: lastWeek, Positive: thisWeek >= lastWeek}
	if lastWeek > 0 {
		st.Percentage = float64(thisWeek-lastWeek) / float64(lastWeek) * 100
	}
	return st
}

func statsFor(patients []model.Patient, now time.Time) model.DashboardStats {
	weekAgo := now.Add(-7 * 24 * time.Hour)
	twoWeeksAgo := now.Add(-14 * 24 * time.Hour)
	thisWeek, lastWeek := 0, 0
	for _, p := range patients {
		created, err := time.Parse(time.RFC3339, p.CreatedAt)
		if err != nil {
			continue
		}
		switch {
		case created.After(weekAgo):
			thisWeek++
		case created.After(twoWeeksAgo):
			lastWeek++
		}
	}

	return model.DashboardStats{
		Patients:       trend(len(patients), thisWeek, lastWeek),
		Doctors:        trend(42, 3, 2),
		PendingReviews: trend(7, 2, 4),
		Consultations:  trend(318, 41, 37),
		Prescriptions:  trend(276, 35, 39),
		ActiveDoctorsVsPatients: model.CategorySeries{
			Categories: []string{"Jan", "Feb", "Mar", "Apr", "May", "Jun"},
			Series: []model.Series{
				{Name: "Doctors", Data: []int{20, 24, 27, 31, 38, 42}},
				{Name: "Patients", Data: []int{110, 150, 190, 240, 300, len(patients)}},
			},
		},
		ConsultationOverTime: []model.MonthlyCount{{Month: "Apr", Count: 51}, {Month: "May", Count: 64}, {Month: "Jun", Count: 72}},
		PrescriptionVolume:   []model.MonthlyCount{{Month: "Apr", Count: 44}, {Month: "May", Count: 58}, {Month: "Jun", Count: 61}},
		TopSpecialities: []model.SpecialityCount{
			{Speciality: "General Practice", Count: 120},
			{Speciality: "Paediatrics", Count: 64},
			{Speciality: "Dermatology", Count: 31},
		},
	}
}
