package main

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ontolink/ontolink/config"
	"github.com/ontolink/ontolink/dsl"
	"github.com/ontolink/ontolink/store"
)

// validationPayload mirrors dsl.ValidationResult on the wire; Trees stays raw
// because Node is an interface and cannot be unmarshaled directly.
type validationPayload struct {
	Trees          map[string]json.RawMessage `json:"per_field_trees"`
	NormalizedText string                     `json:"normalized_text"`
	Errors         []dsl.Error                `json:"errors"`
	QueryCost      int                        `json:"query_cost"`
}

func (v validationPayload) valid() bool { return len(v.Errors) == 0 }

type evaluatePayload struct {
	Validation validationPayload `json:"validation"`
	Evaluation *dsl.Evaluation   `json:"evaluation"`
}

type counterfactualPayload struct {
	Validation validationPayload         `json:"validation"`
	Result     *dsl.CounterfactualResult `json:"result"`
}

type createRulePayload struct {
	Rule       RuleResponse      `json:"rule"`
	Validation validationPayload `json:"validation"`
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	s, err := NewServer(config.Default(), log)
	if err != nil {
		t.Fatalf("NewServer() failed: %v", err)
	}
	return s
}

func doJSON(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("Failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(w.Body).Decode(&v); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	return v
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(t, s, http.MethodGet, "/api/v1/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health returned %d, want 200", w.Code)
	}
	body := decode[map[string]string](t, w)
	if body["status"] != "healthy" {
		t.Errorf("status = %q, want healthy", body["status"])
	}
}

func TestValidateEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(t, s, http.MethodPost, "/api/v1/validate", ValidateRequest{
		Text: `heading: "Indebtedness" | "Liens"`,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("POST /validate returned %d, want 200", w.Code)
	}
	result := decode[validationPayload](t, w)
	if !result.valid() {
		t.Errorf("clean query reported errors: %v", result.Errors)
	}
	if result.QueryCost == 0 {
		t.Error("query cost should be positive for a non-empty query")
	}
	if _, ok := result.Trees["heading"]; !ok {
		t.Error("per-field trees should contain the heading tree")
	}
}

func TestValidateEndpointDiagnosticsAre200(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(t, s, http.MethodPost, "/api/v1/validate", ValidateRequest{
		Text: `bogus_field: "x"`,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("malformed query returned %d, want 200 with diagnostics", w.Code)
	}
	result := decode[validationPayload](t, w)
	if len(result.Errors) == 0 {
		t.Error("unknown field should produce a diagnostic")
	}
}

func TestValidateEndpointBadBody(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/validate", bytes.NewBufferString("{not json"))
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("invalid body returned %d, want 400", w.Code)
	}
}

func TestRuleLifecycle(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(t, s, http.MethodPost, "/api/v1/rules", CreateRuleRequest{
		Name:   "Debt headings",
		Query:  `heading:   "Indebtedness"`,
		Active: true,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("POST /rules returned %d, want 201: %s", w.Code, w.Body.String())
	}
	created := decode[createRulePayload](t, w)
	if created.Rule.ID == "" {
		t.Fatal("created rule has no ID")
	}
	if created.Rule.Query != `heading: "Indebtedness"` {
		t.Errorf("query was not normalized: %q", created.Rule.Query)
	}
	if !created.Validation.valid() {
		t.Errorf("validation on create reported errors: %v", created.Validation.Errors)
	}

	w = doJSON(t, s, http.MethodGet, "/api/v1/rules/"+created.Rule.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET rule returned %d, want 200", w.Code)
	}

	w = doJSON(t, s, http.MethodGet, "/api/v1/rules", nil)
	list := decode[RulesListResponse](t, w)
	if len(list.Rules) != 1 {
		t.Fatalf("ListActive returned %d rules, want 1", len(list.Rules))
	}

	inactive := false
	w = doJSON(t, s, http.MethodPut, "/api/v1/rules/"+created.Rule.ID, UpdateRuleRequest{Active: &inactive})
	if w.Code != http.StatusOK {
		t.Fatalf("PUT rule returned %d, want 200", w.Code)
	}
	w = doJSON(t, s, http.MethodGet, "/api/v1/rules", nil)
	list = decode[RulesListResponse](t, w)
	if len(list.Rules) != 0 {
		t.Errorf("deactivated rule still listed as active")
	}

	w = doJSON(t, s, http.MethodDelete, "/api/v1/rules/"+created.Rule.ID, nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("DELETE rule returned %d, want 204", w.Code)
	}
	w = doJSON(t, s, http.MethodGet, "/api/v1/rules/"+created.Rule.ID, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("GET deleted rule returned %d, want 404", w.Code)
	}
}

func TestCreateRuleRequiresNameAndQuery(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(t, s, http.MethodPost, "/api/v1/rules", CreateRuleRequest{Name: "no query"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("rule without query returned %d, want 400", w.Code)
	}
}

func TestMacroLifecycleAndScoping(t *testing.T) {
	s := newTestServer(t)

	// Global macro plus a family override with the same name.
	w := doJSON(t, s, http.MethodPost, "/api/v1/macros", CreateMacroRequest{
		Name: "debt_terms",
		Body: `"indebtedness" | "liens"`,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("POST /macros returned %d, want 201: %s", w.Code, w.Body.String())
	}
	w = doJSON(t, s, http.MethodPost, "/api/v1/macros", CreateMacroRequest{
		Name:     "debt_terms",
		FamilyID: "fam-debt",
		Body:     `"secured indebtedness"`,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("POST scoped macro returned %d, want 201: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, s, http.MethodGet, "/api/v1/macros", nil)
	list := decode[MacrosListResponse](t, w)
	if len(list.Macros) != 2 {
		t.Fatalf("List returned %d macros, want 2", len(list.Macros))
	}

	// The snapshot must pick up the new macros without a restart.
	w = doJSON(t, s, http.MethodPost, "/api/v1/validate", ValidateRequest{
		Text: `clause: @debt_terms`,
	})
	result := decode[validationPayload](t, w)
	if !result.valid() {
		t.Fatalf("macro reference did not resolve after create: %v", result.Errors)
	}

	w = doJSON(t, s, http.MethodPost, "/api/v1/macros", CreateMacroRequest{
		Name: "heading",
		Body: `"x"`,
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("macro named after a field returned %d, want 400", w.Code)
	}

	w = doJSON(t, s, http.MethodDelete, "/api/v1/macros/debt_terms?family_id=fam-debt", nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("DELETE scoped macro returned %d, want 204", w.Code)
	}
	w = doJSON(t, s, http.MethodDelete, "/api/v1/macros/debt_terms", nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("DELETE global macro returned %d, want 204", w.Code)
	}

	w = doJSON(t, s, http.MethodPost, "/api/v1/validate", ValidateRequest{
		Text: `clause: @debt_terms`,
	})
	result = decode[validationPayload](t, w)
	if result.valid() {
		t.Error("macro reference should fail to resolve after delete")
	}
}

func TestValidateForRuleUsesFamilyScope(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(t, s, http.MethodPost, "/api/v1/macros", CreateMacroRequest{
		Name:     "debt_terms",
		FamilyID: "fam-debt",
		Body:     `"indebtedness"`,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("POST macro returned %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, s, http.MethodPost, "/api/v1/rules", CreateRuleRequest{
		Name:     "Debt rule",
		FamilyID: "fam-debt",
		Query:    `heading: "Indebtedness"`,
		Active:   true,
	})
	created := decode[createRulePayload](t, w)

	w = doJSON(t, s, http.MethodPost, "/api/v1/rules/"+created.Rule.ID+"/validate", ValidateRequest{
		Text: `clause: @debt_terms`,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("POST /rules/{id}/validate returned %d, want 200", w.Code)
	}
	result := decode[validationPayload](t, w)
	if !result.valid() {
		t.Errorf("family-scoped macro should resolve through the rule's family: %v", result.Errors)
	}

	w = doJSON(t, s, http.MethodPost, "/api/v1/rules/nope/validate", ValidateRequest{Text: `clause: "x"`})
	if w.Code != http.StatusNotFound {
		t.Errorf("validate for unknown rule returned %d, want 404", w.Code)
	}
}

func TestEvaluateEndpoint(t *testing.T) {
	s := newTestServer(t)

	cases := []struct {
		name    string
		section SectionPayload
		matched bool
		light   dsl.Light
	}{
		{
			name:    "green",
			section: SectionPayload{Heading: "Limitation on Indebtedness", Body: "shall not incur indebtedness"},
			matched: true,
			light:   dsl.Green,
		},
		{
			name:    "yellow",
			section: SectionPayload{Heading: "Limitation on Indebtedness", Body: "payments only"},
			matched: false,
			light:   dsl.Yellow,
		},
		{
			name:    "red",
			section: SectionPayload{Heading: "Payments", Body: "payments only"},
			matched: false,
			light:   dsl.Red,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := doJSON(t, s, http.MethodPost, "/api/v1/evaluate", EvaluateRequest{
				Text:    `heading: "Indebtedness" clause: "incur"`,
				Section: tc.section,
			})
			if w.Code != http.StatusOK {
				t.Fatalf("POST /evaluate returned %d, want 200", w.Code)
			}
			resp := decode[evaluatePayload](t, w)
			if resp.Evaluation == nil {
				t.Fatal("evaluation missing for a valid query")
			}
			if resp.Evaluation.Matched != tc.matched {
				t.Errorf("Matched = %v, want %v", resp.Evaluation.Matched, tc.matched)
			}
			if resp.Evaluation.TrafficLight != tc.light {
				t.Errorf("TrafficLight = %q, want %q", resp.Evaluation.TrafficLight, tc.light)
			}
		})
	}
}

func TestEvaluateSkipsOnInvalidQuery(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(t, s, http.MethodPost, "/api/v1/evaluate", EvaluateRequest{
		Text:    `bogus_field: "x"`,
		Section: SectionPayload{Heading: "h", Body: "b"},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("POST /evaluate returned %d, want 200", w.Code)
	}
	resp := decode[evaluatePayload](t, w)
	if resp.Evaluation != nil {
		t.Error("evaluation should be omitted when validation fails")
	}
	if len(resp.Validation.Errors) == 0 {
		t.Error("validation diagnostics missing")
	}
}

func TestCounterfactualEndpoint(t *testing.T) {
	s := newTestServer(t)
	s.sections = store.NewInMemorySectionSource([]dsl.Section{
		{ID: "s1", Heading: "Limitation on Indebtedness", Body: "shall not incur indebtedness"},
		{ID: "s2", Heading: "Indebtedness Definitions", Body: "definitions only", PinnedNegative: true},
		{ID: "s3", Heading: "Payments", Body: "incur costs"},
	})

	// Two fields combine in sorted order, so path [0] is the clause leaf.
	w := doJSON(t, s, http.MethodPost, "/api/v1/counterfactual", CounterfactualRequest{
		Text:      `heading: "Indebtedness" clause: "incur"`,
		MutedPath: []int{0},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("POST /counterfactual returned %d, want 200: %s", w.Code, w.Body.String())
	}
	resp := decode[counterfactualPayload](t, w)
	if resp.Result == nil {
		t.Fatal("result missing for a valid query")
	}
	if resp.Result.TotalMatched != 2 {
		t.Errorf("TotalMatched = %d, want 2", resp.Result.TotalMatched)
	}
	if resp.Result.NewHits != 1 {
		t.Errorf("NewHits = %d, want 1", resp.Result.NewHits)
	}
	if resp.Result.FalsePositives != 1 {
		t.Errorf("FalsePositives = %d, want 1", resp.Result.FalsePositives)
	}
}

func TestCounterfactualInvalidQuery(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(t, s, http.MethodPost, "/api/v1/counterfactual", CounterfactualRequest{
		Text:      `clause: @missing_macro`,
		MutedPath: []int{0},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("POST /counterfactual returned %d, want 200 with diagnostics", w.Code)
	}
	resp := decode[counterfactualPayload](t, w)
	if resp.Result != nil {
		t.Error("result should be omitted when validation fails")
	}
	if len(resp.Validation.Errors) == 0 {
		t.Error("validation diagnostics missing")
	}
}
