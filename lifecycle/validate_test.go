package lifecycle

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/resolvehq/tribunal-api/models"
)

func validDetails() models.CaseDetails {
	return models.CaseDetails{
		Title:       "Loud music every night",
		Description: "The neighbours in flat 4B play loud music past midnight on weekdays.",
		Category:    "noise",
		Priority:    "medium",
	}
}

func TestValidateCasePayloadOK(t *testing.T) {
	assert.NoError(t, ValidateCasePayload(validDetails()))
}

func TestValidateCasePayloadFields(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*models.CaseDetails)
		field  string
	}{
		{"short title", func(d *models.CaseDetails) { d.Title = "hey" }, "title"},
		{"long title", func(d *models.CaseDetails) { d.Title = strings.Repeat("x", 201) }, "title"},
		{"short description", func(d *models.CaseDetails) { d.Description = "too short" }, "description"},
		{"long description", func(d *models.CaseDetails) { d.Description = strings.Repeat("y", 2001) }, "description"},
		{"unknown category", func(d *models.CaseDetails) { d.Category = "weather" }, "category"},
		{"empty category", func(d *models.CaseDetails) { d.Category = "" }, "category"},
		{"unknown priority", func(d *models.CaseDetails) { d.Priority = "urgent" }, "priority"},
		{"malformed target email", func(d *models.CaseDetails) { d.TargetInfo.Email = "not-an-email" }, "targetInfo.email"},
		{"flat without building", func(d *models.CaseDetails) { d.TargetInfo.Flat = "4B" }, "targetInfo.building"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := validDetails()
			tt.mutate(&d)
			err := ValidateCasePayload(d)

			var vErr *ValidationError
			assert.ErrorAs(t, err, &vErr)
			assert.Contains(t, vErr.Fields, tt.field)
		})
	}
}

func TestValidateCasePayloadCollectsAllFields(t *testing.T) {
	err := ValidateCasePayload(models.CaseDetails{})
	var vErr *ValidationError
	assert.ErrorAs(t, err, &vErr)
	assert.Contains(t, vErr.Fields, "title")
	assert.Contains(t, vErr.Fields, "description")
	assert.Contains(t, vErr.Fields, "category")
	assert.Contains(t, vErr.Fields, "priority")
}

func TestValidateResponseText(t *testing.T) {
	assert.NoError(t, ValidateResponseText("I was not at home that evening."))
	assert.Error(t, ValidateResponseText("nope"))
	assert.Error(t, ValidateResponseText(strings.Repeat("z", 2001)))
	assert.Error(t, ValidateResponseText("         "))
}

func TestValidateVoteChoice(t *testing.T) {
	assert.NoError(t, ValidateVoteChoice("yes"))
	assert.NoError(t, ValidateVoteChoice("no"))
	assert.Error(t, ValidateVoteChoice("abstain"))
	assert.Error(t, ValidateVoteChoice(""))
	assert.Error(t, ValidateVoteChoice("Yes"))
}

func TestValidateVerdict(t *testing.T) {
	assert.NoError(t, ValidateVerdict("yes"))
	assert.NoError(t, ValidateVerdict("no"))
	assert.Error(t, ValidateVerdict("guilty"))
}

func TestValidateCommentText(t *testing.T) {
	assert.NoError(t, ValidateCommentText("Seen this happen twice last week."))
	assert.Error(t, ValidateCommentText(""))
	assert.Error(t, ValidateCommentText("   "))
	assert.Error(t, ValidateCommentText(strings.Repeat("c", 2001)))
}

func TestValidationErrorMessage(t *testing.T) {
	err := &ValidationError{Fields: map[string]string{
		"title":    "too short",
		"category": "unknown category",
	}}
	// fields are sorted so the message is stable
	assert.Equal(t, "validation failed: category: unknown category; title: too short", err.Error())
}
