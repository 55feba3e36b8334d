package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"

	"github.com/resolvehq/tribunal-api/api"
	"github.com/resolvehq/tribunal-api/config"
	"github.com/resolvehq/tribunal-api/databases"
	"github.com/resolvehq/tribunal-api/lifecycle"
	"github.com/resolvehq/tribunal-api/models"
)

const suggestionPlaceholder = "no suggestion available"

// Suggestion drafts a non-binding verdict suggestion for judges reviewing a
// case, via an OpenAI-compatible chat completion endpoint. The suggestion is
// advisory text only; it never touches the case record.
type Suggestion struct {
	DB databases.CaseDatabase
}

// SuggestVerdictHandler returns a drafted verdict suggestion for the case.
// Judge/admin only. Any upstream failure degrades to a fixed placeholder so
// the review flow never blocks on the AI service.
func (s Suggestion) SuggestVerdictHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := api.Actor(r)
	if !ok || !lifecycle.Authorize(actor.Role, lifecycle.RoleJudge, lifecycle.RoleAdmin) {
		writeLifecycleError(w, lifecycle.ErrForbidden)
		return
	}

	bID, err := caseIDFromRequest(r)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	caseDoc, err := s.DB.FindOne(ctx, bson.M{"_id": bID})
	if err != nil {
		config.ErrorStatus("failed to find case", http.StatusNotFound, w, err)
		return
	}

	suggestion := suggestionPlaceholder
	if text, err := draftVerdictSuggestion(r.Context(), caseDoc.Details); err != nil {
		zap.S().Warnw("verdict suggestion unavailable", "caseID", bID.Hex(), "error", err)
	} else if strings.TrimSpace(text) != "" {
		suggestion = strings.TrimSpace(text)
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"id":         bID.Hex(),
		"suggestion": suggestion,
	})
}

// draftVerdictSuggestion calls the configured chat-completion API with the
// case narrative and the target's response, if any.
func draftVerdictSuggestion(ctx context.Context, details models.CaseDetails) (string, error) {
	baseURL := os.Getenv("SUGGESTION_API_URL")
	if baseURL == "" {
		return "", fmt.Errorf("SUGGESTION_API_URL is not set")
	}
	model := os.Getenv("SUGGESTION_MODEL")
	if model == "" {
		model = "gpt-4o-mini"
	}

	response := "The named party has not responded."
	if details.TargetResponse.Received {
		response = details.TargetResponse.Text
	}
	prompt := fmt.Sprintf(
		"A community tribunal case of category %q is under review.\n\nComplaint: %s\n\nResponse from the named party: %s\n\nDraft a short, neutral verdict suggestion for the judges.",
		details.Category, details.Description, response)

	payload := map[string]interface{}{
		"model": model,
		"messages": []map[string]string{
			{"role": "system", "content": "You draft concise, impartial verdict suggestions for a community dispute tribunal."},
			{"role": "user", "content": prompt},
		},
		"max_tokens":  512,
		"temperature": 0.3,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	url := strings.TrimRight(baseURL, "/") + "/chat/completions"
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if key := os.Getenv("SUGGESTION_API_KEY"); key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("suggestion api returned %d", resp.StatusCode)
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("suggestion api returned no choices")
	}
	return result.Choices[0].Message.Content, nil
}
