// Package fallback synthesizes placeholder SMART goals from a request when the
// goal service cannot be reached.
package fallback

import (
	"fmt"

	"okrdraft/internal/okr"
)

// DisplayDateLayout renders dates as US short dates (M/D/YYYY).
const DisplayDateLayout = "1/2/2006"

// FormatDueDate renders the request's due date for goal text. Unparsable dates
// are returned as entered.
func FormatDueDate(value string) string {
	t, err := okr.ParseDate(value)
	if err != nil {
		return value
	}
	return t.Format(DisplayDateLayout)
}

// Generate returns exactly three goals templated from req. It performs no I/O.
func Generate(req okr.Request) okr.GoalSet {
	due := FormatDueDate(req.DueDate)
	return okr.GoalSet{
		{
			Title:                  fmt.Sprintf("Establish a comprehensive %s tracking system for %s with automated reporting", req.KeyResult, req.Department),
			Description:            fmt.Sprintf("Create a structured approach to monitor progress toward %s through quantifiable metrics, providing regular visibility to all stakeholders.", req.GoalDescription),
			KPI:                    fmt.Sprintf("100%% completion of %s by %s", req.KeyResult, due),
			CompanyTopBetAlignment: "Operational Excellence - Streamlines decision-making through data-driven insights",
			Framework3E:            "Efficiency - Reduces manual reporting time while improving data quality",
			CoreValue:              fmt.Sprintf("Accountability & Transparency - Demonstrates commitment to %s through consistent, accurate reporting", req.ManagersGoal),
		},
		{
			Title:                  fmt.Sprintf("Create measurable milestone checkpoints for %s objectives aligned with %s responsibilities", req.Department, req.JobTitle),
			Description:            fmt.Sprintf("Define specific, quantifiable milestones with clear success criteria for tracking progress on %s toward %s. Each milestone includes resource allocation and risk assessment.", req.GoalDescription, req.KeyResult),
			KPI:                    fmt.Sprintf("90%% of milestones achieved on schedule by %s", due),
			CompanyTopBetAlignment: "Customer Centricity - Ensures deliverables meet stakeholder expectations through regular validation",
			Framework3E:            "Effectiveness - Validates that efforts are producing intended business outcomes",
			CoreValue:              "Excellence & Customer Focus - Strives for high-quality deliverables while maintaining strong stakeholder relationships",
		},
		{
			Title:                  fmt.Sprintf("Develop cross-functional collaboration framework for %s to achieve %s", req.Department, req.KeyResult),
			Description:            "Establish clear communication channels, role definitions, and escalation procedures across all teams involved in achieving the goal. Include regular sync meetings and shared documentation.",
			KPI:                    fmt.Sprintf("Team collaboration score above 4.2/5, with %s achieved by %s", req.KeyResult, due),
			CompanyTopBetAlignment: "Innovation Culture - Fosters collaborative environment that drives creative problem-solving",
			Framework3E:            "Engagement - Increases team satisfaction and reduces project delivery risks through clear communication",
			CoreValue:              "Collaboration & Respect - Promotes inclusive teamwork and values diverse perspectives",
		},
	}
}
