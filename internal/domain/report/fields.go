package report

import (
	"fmt"
	"strings"

	"github.com/rpggio/prodreport/internal/catalog"
)

// Report-level field names accepted by SetField.
const (
	FieldTeamName   = "teamName"
	FieldTeamMember = "teamMember"
	FieldTeamRole   = "teamRole"
)

// Row field names accepted by Entry.Set.
const (
	FieldPlatform          = "platform"
	FieldProjectInitiative = "projectInitiative"
	FieldSDLCStep          = "sdlcStep"
	FieldSDLCTask          = "sdlcTask"
	FieldTaskCategory      = "taskCategory"
	FieldEstimatedTime     = "estimatedTimeWithoutAI"
	FieldActualTime        = "actualTimeWithAI"
	FieldComplexity        = "complexity"
	FieldQualityImpact     = "qualityImpact"
	FieldAIToolsUsed       = "aiToolsUsed"
	FieldTaskDetails       = "taskDetails"
	FieldNotesHowAIHelped  = "notesHowAIHelped"
)

// SetField updates a report-level field in place.
func (r *Report) SetField(field, value string) error {
	switch field {
	case FieldTeamName:
		r.TeamName = value
	case FieldTeamMember:
		r.TeamMember = value
	case FieldTeamRole:
		r.TeamRole = value
	default:
		return fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
	return nil
}

// Set returns a copy of e with field updated. Changing the SDLC step clears
// the task, and changing either time recomputes TimeSaved. The AI tools field
// takes a comma separated list.
func (e Entry) Set(field, value string) (Entry, error) {
	out := e.Clone()
	switch field {
	case FieldPlatform:
		out.Platform = value
	case FieldProjectInitiative:
		out.ProjectInitiative = value
	case FieldSDLCStep:
		if value != out.SDLCStep {
			out.SDLCTask = ""
		}
		out.SDLCStep = value
	case FieldSDLCTask:
		out.SDLCTask = value
	case FieldTaskCategory:
		out.TaskCategory = value
	case FieldEstimatedTime:
		out.EstimatedTimeWithoutAI = value
		out.TimeSaved = ComputeTimeSaved(out.EstimatedTimeWithoutAI, out.ActualTimeWithAI)
	case FieldActualTime:
		out.ActualTimeWithAI = value
		out.TimeSaved = ComputeTimeSaved(out.EstimatedTimeWithoutAI, out.ActualTimeWithAI)
	case FieldComplexity:
		out.Complexity = value
	case FieldQualityImpact:
		out.QualityImpact = value
	case FieldAIToolsUsed:
		out.AIToolsUsed = SplitTools(value)
	case FieldTaskDetails:
		out.TaskDetails = value
	case FieldNotesHowAIHelped:
		out.NotesHowAIHelped = value
	default:
		return e, fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
	return out, nil
}

// CatalogCategory maps a row field to the pick-list category that feeds it.
// Fields with free text return false.
func CatalogCategory(field string) (string, bool) {
	switch field {
	case FieldPlatform:
		return catalog.Platforms, true
	case FieldProjectInitiative:
		return catalog.ProjectInitiatives, true
	case FieldSDLCStep:
		return catalog.SDLCSteps, true
	case FieldTaskCategory:
		return catalog.TaskCategories, true
	case FieldComplexity:
		return catalog.Complexities, true
	case FieldQualityImpact:
		return catalog.QualityImpacts, true
	case FieldAIToolsUsed:
		return catalog.AITools, true
	case FieldTeamRole:
		return catalog.TeamRoles, true
	}
	return "", false
}

// SplitTools parses a comma separated tool list, dropping blanks.
func SplitTools(value string) Tools {
	out := Tools{}
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
