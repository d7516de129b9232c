package okr

// DateLayout is the ISO-8601 calendar date layout used by request dates.
const DateLayout = "2006-01-02"

// Request is the OKR form submitted to the goal generator.
type Request struct {
	Department      string `json:"department" yaml:"department" validate:"required"`
	JobTitle        string `json:"jobTitle" yaml:"job_title" validate:"required"`
	GoalDescription string `json:"goalDescription" yaml:"goal_description" validate:"required"`
	KeyResult       string `json:"keyResult" yaml:"key_result" validate:"required"`
	ManagersGoal    string `json:"managersGoal" yaml:"managers_goal" validate:"required"`
	StartDate       string `json:"startDate" yaml:"start_date" validate:"required,isodate"`
	DueDate         string `json:"dueDate" yaml:"due_date" validate:"required,isodate"`
}

// GeneratedGoal is a single SMART goal suggestion.
type GeneratedGoal struct {
	Title                  string `json:"title" yaml:"title"`
	Description            string `json:"description" yaml:"description"`
	KPI                    string `json:"kpi" yaml:"kpi"`
	CompanyTopBetAlignment string `json:"companyTopBetAlignment" yaml:"company_top_bet_alignment"`
	Framework3E            string `json:"framework3E" yaml:"framework_3e"`
	CoreValue              string `json:"coreValue" yaml:"core_value"`
}

// GoalSet is an ordered list of suggestions produced from one request.
type GoalSet []GeneratedGoal

// Clone returns a copy that shares no backing array with s.
func (s GoalSet) Clone() GoalSet {
	if s == nil {
		return nil
	}
	out := make(GoalSet, len(s))
	copy(out, s)
	return out
}

// Merge overlays the non-empty fields of revised onto g.
func (g GeneratedGoal) Merge(revised GeneratedGoal) GeneratedGoal {
	return GeneratedGoal{
		Title:                  firstNonEmpty(revised.Title, g.Title),
		Description:            firstNonEmpty(revised.Description, g.Description),
		KPI:                    firstNonEmpty(revised.KPI, g.KPI),
		CompanyTopBetAlignment: firstNonEmpty(revised.CompanyTopBetAlignment, g.CompanyTopBetAlignment),
		Framework3E:            firstNonEmpty(revised.Framework3E, g.Framework3E),
		CoreValue:              firstNonEmpty(revised.CoreValue, g.CoreValue),
	}
}

// Fields returns the goal as ordered label/value pairs for display and diffs.
func (g GeneratedGoal) Fields() [][2]string {
	return [][2]string{
		{"title", g.Title},
		{"description", g.Description},
		{"kpi", g.KPI},
		{"companyTopBetAlignment", g.CompanyTopBetAlignment},
		{"framework3E", g.Framework3E},
		{"coreValue", g.CoreValue},
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
