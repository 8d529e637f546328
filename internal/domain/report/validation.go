package report

import (
	"fmt"
	"strings"
)

// Validate applies the submit guard: team member and role set, at least one
// row, and every required row field populated.
func Validate(r Report) error {
	var problems []string
	if blank(r.TeamMember) {
		problems = append(problems, "teamMember is required")
	}
	if blank(r.TeamRole) {
		problems = append(problems, "teamRole is required")
	}
	if len(r.Entries) == 0 {
		problems = append(problems, "at least one row is required")
	}

	for i, e := range r.Entries {
		for _, field := range e.missing() {
			problems = append(problems, fmt.Sprintf("row %d: %s is required", i+1, field))
		}
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

func (e Entry) missing() []string {
	required := []struct {
		name  string
		value string
	}{
		{FieldPlatform, e.Platform},
		{FieldProjectInitiative, e.ProjectInitiative},
		{FieldSDLCStep, e.SDLCStep},
		{FieldSDLCTask, e.SDLCTask},
		{FieldTaskCategory, e.TaskCategory},
		{FieldEstimatedTime, e.EstimatedTimeWithoutAI},
		{FieldActualTime, e.ActualTimeWithAI},
		{FieldComplexity, e.Complexity},
		{FieldQualityImpact, e.QualityImpact},
	}

	var out []string
	for _, f := range required {
		if blank(f.value) {
			out = append(out, f.name)
		}
	}
	if len(e.AIToolsUsed) == 0 {
		out = append(out, FieldAIToolsUsed)
	}
	if blank(e.TaskDetails) {
		out = append(out, FieldTaskDetails)
	}
	return out
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}
