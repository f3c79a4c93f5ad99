package main

import (
	"time"

	"github.com/ontolink/ontolink/dsl"
	"github.com/ontolink/ontolink/store"
)

// API request and response models.

// ValidateRequest carries a raw DSL query.
type ValidateRequest struct {
	Text string `json:"text"`
}

// SectionPayload is the text of one contract section.
type SectionPayload struct {
	Heading string `json:"heading"`
	Body    string `json:"body"`
}

// EvaluateRequest validates a query and matches it against a section.
type EvaluateRequest struct {
	Text     string         `json:"text"`
	FamilyID string         `json:"family_id,omitempty"`
	Section  SectionPayload `json:"section"`
}

// EvaluateResponse pairs the validation outcome with the match verdict.
// Evaluation is omitted when validation produced errors.
type EvaluateResponse struct {
	Validation dsl.ValidationResult `json:"validation"`
	Evaluation *dsl.Evaluation      `json:"evaluation,omitempty"`
}

// CounterfactualRequest asks what happens if the node at MutedPath were
// relaxed to always-true.
type CounterfactualRequest struct {
	Text      string `json:"text"`
	FamilyID  string `json:"family_id,omitempty"`
	MutedPath []int  `json:"muted_path"`
}

// CounterfactualResponse carries the corpus deltas; Result is omitted when
// the query failed validation.
type CounterfactualResponse struct {
	Validation dsl.ValidationResult      `json:"validation"`
	Result     *dsl.CounterfactualResult `json:"result,omitempty"`
}

// CreateRuleRequest creates a rule binding a family to a query.
type CreateRuleRequest struct {
	Name     string `json:"name"`
	FamilyID string `json:"family_id,omitempty"`
	Query    string `json:"query"`
	Active   bool   `json:"active"`
}

// UpdateRuleRequest patches a rule; empty fields keep their current value.
type UpdateRuleRequest struct {
	Name   string `json:"name,omitempty"`
	Query  string `json:"query,omitempty"`
	Active *bool  `json:"active,omitempty"`
}

// RuleResponse represents a rule in API responses.
type RuleResponse struct {
	ID        string    `json:"id"`
	FamilyID  string    `json:"family_id"`
	Name      string    `json:"name"`
	Query     string    `json:"query"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateRuleResponse returns the stored rule plus the validation of its
// query, so the UI can surface diagnostics on a just-saved draft.
type CreateRuleResponse struct {
	Rule       RuleResponse         `json:"rule"`
	Validation dsl.ValidationResult `json:"validation"`
}

// RulesListResponse lists active rules.
type RulesListResponse struct {
	Rules []RuleResponse `json:"rules"`
}

// CreateMacroRequest creates a macro; empty FamilyID means global scope.
type CreateMacroRequest struct {
	Name     string `json:"name"`
	FamilyID string `json:"family_id,omitempty"`
	Body     string `json:"body"`
}

// MacroResponse represents a macro in API responses.
type MacroResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	FamilyID  string    `json:"family_id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MacrosListResponse lists macros across all scopes.
type MacrosListResponse struct {
	Macros []MacroResponse `json:"macros"`
}

func toRuleResponse(r *store.Rule) RuleResponse {
	return RuleResponse{
		ID:        r.ID,
		FamilyID:  r.FamilyID,
		Name:      r.Name,
		Query:     r.Query,
		Active:    r.Active,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func toMacroResponse(m *store.Macro) MacroResponse {
	return MacroResponse{
		ID:        m.ID,
		Name:      m.Name,
		FamilyID:  m.FamilyID,
		Body:      m.Body,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}
