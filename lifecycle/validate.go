package lifecycle

import (
	"strings"

	"github.com/resolvehq/tribunal-api/models"
)

// Validation bounds for case payloads
const (
	TitleMinLen       = 5
	TitleMaxLen       = 200
	DescriptionMinLen = 10
	DescriptionMaxLen = 2000
	ResponseMinLen    = 10
	ResponseMaxLen    = 2000
)

var caseCategories = map[string]bool{
	"noise":       true,
	"property":    true,
	"harassment":  true,
	"pets":        true,
	"parking":     true,
	"cleanliness": true,
	"other":       true,
}

var casePriorities = map[string]bool{
	"low":      true,
	"medium":   true,
	"high":     true,
	"critical": true,
}

var voteChoices = map[string]bool{
	"yes": true,
	"no":  true,
}

// ValidateCasePayload checks a new case payload against the schema bounds and
// returns a *ValidationError with field-level detail when anything is off.
// Rejection happens before any state mutation.
func ValidateCasePayload(d models.CaseDetails) error {
	fields := map[string]string{}

	title := strings.TrimSpace(d.Title)
	if len(title) < TitleMinLen || len(title) > TitleMaxLen {
		fields["title"] = "must be between 5 and 200 characters"
	}
	desc := strings.TrimSpace(d.Description)
	if len(desc) < DescriptionMinLen || len(desc) > DescriptionMaxLen {
		fields["description"] = "must be between 10 and 2000 characters"
	}
	if !caseCategories[d.Category] {
		fields["category"] = "unknown category"
	}
	if !casePriorities[d.Priority] {
		fields["priority"] = "unknown priority"
	}
	if email := strings.TrimSpace(d.TargetInfo.Email); email != "" && !strings.Contains(email, "@") {
		fields["targetInfo.email"] = "malformed email"
	}
	// building and flat only match together, a flat without a building is useless
	if d.TargetInfo.Flat != "" && d.TargetInfo.Building == "" {
		fields["targetInfo.building"] = "required when flat is set"
	}

	return newValidationError(fields)
}

// ValidateResponseText checks a target's response statement
func ValidateResponseText(text string) error {
	t := strings.TrimSpace(text)
	if len(t) < ResponseMinLen || len(t) > ResponseMaxLen {
		return &ValidationError{Fields: map[string]string{
			"response": "must be between 10 and 2000 characters",
		}}
	}
	return nil
}

// ValidateVoteChoice checks a vote choice against the yes/no enum
func ValidateVoteChoice(choice string) error {
	if !voteChoices[choice] {
		return &ValidationError{Fields: map[string]string{
			"choice": "must be yes or no",
		}}
	}
	return nil
}

// ValidateVerdict checks a verdict value against the yes/no enum
func ValidateVerdict(verdict string) error {
	if !voteChoices[verdict] {
		return &ValidationError{Fields: map[string]string{
			"verdict": "must be yes or no",
		}}
	}
	return nil
}

// ValidateCommentText checks a discussion comment
func ValidateCommentText(text string) error {
	t := strings.TrimSpace(text)
	if len(t) == 0 || len(t) > DescriptionMaxLen {
		return &ValidationError{Fields: map[string]string{
			"text": "must be between 1 and 2000 characters",
		}}
	}
	return nil
}
