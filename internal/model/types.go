package model

// Envelope is the response wrapper used by every iPrescribe API endpoint.
type Envelope[T any] struct {
	Data    T      `json:"data"`
	Message string `json:"message"`
	Status  int    `json:"status"`
}

type Role struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Slug    string `json:"slug"`
	Default int    `json:"default"`
}

const RoleSlugAdmin = "admin"

// Identity is the authenticated principal as returned by the login endpoint.
type Identity struct {
	ID        int64   `json:"id"`
	Email     string  `json:"email"`
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Roles     []Role  `json:"roles"`
}

func (i *Identity) HasRole(slug string) bool {
	if i == nil {
		return false
	}
	for _, r := range i.Roles {
		if r.Slug == slug {
			return true
		}
	}
	return false
}

func (i *Identity) DisplayName() string {
	if i == nil {
		return ""
	}
	name := ""
	if i.FirstName != nil {
		name = *i.FirstName
	}
	if i.LastName != nil && *i.LastName != "" {
		if name != "" {
			name += " "
		}
		name += *i.LastName
	}
	if name == "" {
		return i.Email
	}
	return name
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginData struct {
	User      Identity `json:"user"`
	Token     string   `json:"token"`
	TokenType string   `json:"token_type"`
}

// TrendStat is a weekly counter. On the wire its field names carry the
// entity prefix (total_patients, patients_this_week, ...), see stats.go.
type TrendStat struct {
	Total      int
	ThisWeek   int
	LastWeek   int
	Percentage float64
	Positive   bool
}

type Series struct {
	Name string `json:"name"`
	Data []int  `json:"data"`
}

type CategorySeries struct {
	Categories []string `json:"categories"`
	Series     []Series `json:"series"`
}

type MonthlyCount struct {
	Month string `json:"month"`
	Count int    `json:"count"`
}

type SpecialityCount struct {
	Speciality string `json:"speciality"`
	Count      int    `json:"count"`
}

type DashboardStats struct {
	Patients                TrendStat         `json:"-"`
	Doctors                 TrendStat         `json:"-"`
	PendingReviews          TrendStat         `json:"-"`
	Consultations           TrendStat         `json:"-"`
	Prescriptions           TrendStat         `json:"-"`
	ActiveDoctorsVsPatients CategorySeries    `json:"active_doctors_vs_patients"`
	ConsultationOverTime    []MonthlyCount    `json:"consultationOverTime"`
	PrescriptionVolume      []MonthlyCount    `json:"prescriptionVolumeTrend"`
	TopSpecialities         []SpecialityCount `json:"top_specialities_in_demand"`
}

type Device struct {
	Platform   string `json:"platform"`
	DeviceName string `json:"device_name"`
}

type PatientUser struct {
	ID        int64    `json:"id"`
	FirstName *string  `json:"first_name"`
	LastName  *string  `json:"last_name"`
	Email     *string  `json:"email"`
	DOB       string   `json:"dob"`
	Phone     *string  `json:"phone"`
	State     *string  `json:"state"`
	LGA       *string  `json:"lga"`
	Address1  *string  `json:"address1"`
	Address2  *string  `json:"address2"`
	Devices   []Device `json:"devices"`
}

type Patient struct {
	ID             int64       `json:"id"`
	UserID         int64       `json:"user_id"`
	FirstName      *string     `json:"first_name"`
	MiddleName     *string     `json:"middle_name"`
	LastName       *string     `json:"last_name"`
	Gender         *string     `json:"gender"`
	Phone          *string     `json:"phone"`
	PatientID      string      `json:"patient_id"`
	Email          *string     `json:"email"`
	ParentID       string      `json:"parent_id"`
	Relationship   *string     `json:"relationship"`
	DOB            string      `json:"dob"`
	MaritalStatus  *string     `json:"marital_status"`
	Address1       *string     `json:"address1"`
	Address2       *string     `json:"address2"`
	State          *string     `json:"state"`
	LGA            *string     `json:"lga"`
	AttendedTo     int         `json:"attended_to"`
	PrimaryAccount int         `json:"primary_account"`
	CreatedAt      string      `json:"created_at"`
	Status         string      `json:"status"`
	LastSeen       string      `json:"last_seen"`
	User           PatientUser `json:"user"`
}

func (p Patient) FullName() string {
	name := ""
	for _, part := range []*string{p.FirstName, p.MiddleName, p.LastName} {
		if part == nil || *part == "" {
			continue
		}
		if name != "" {
			name += " "
		}
		name += *part
	}
	if name == "" {
		return p.PatientID
	}
	return name
}

type PatientPage struct {
	CurrentPage int       `json:"current_page"`
	Data        []Patient `json:"data"`
	PerPage     int       `json:"per_page"`
	Total       int       `json:"total"`
	LastPage    int       `json:"last_page"`
}

type PatientStatusUpdate struct {
	Status string `json:"status"`
}
