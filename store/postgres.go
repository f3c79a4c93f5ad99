package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/ontolink/ontolink/dsl"
)

// PostgresRuleStore implements RuleStore backed by PostgreSQL.
type PostgresRuleStore struct {
	db *sql.DB
}

func NewPostgresRuleStore(db *sql.DB) *PostgresRuleStore {
	return &PostgresRuleStore{db: db}
}

func (s *PostgresRuleStore) Add(rule *Rule) error {
	var exists bool
	err := s.db.QueryRow(`
		SELECT EXISTS(SELECT 1 FROM rules WHERE id = $1)
	`, rule.ID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check rule existence: %w", err)
	}
	if exists {
		return fmt.Errorf("rule with ID %s already exists", rule.ID)
	}

	_, err = s.db.Exec(`
		INSERT INTO rules (id, family_id, name, query, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
	`, rule.ID, rule.FamilyID, rule.Name, rule.Query, rule.Active)
	if err != nil {
		return fmt.Errorf("failed to insert rule: %w", err)
	}
	return nil
}

func (s *PostgresRuleStore) Get(id string) (*Rule, error) {
	var rule Rule
	err := s.db.QueryRow(`
		SELECT id, family_id, name, query, active, created_at, updated_at
		FROM rules
		WHERE id = $1
	`, id).Scan(
		&rule.ID, &rule.FamilyID, &rule.Name, &rule.Query, &rule.Active,
		&rule.CreatedAt, &rule.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("rule with ID %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query rule: %w", err)
	}
	return &rule, nil
}

func (s *PostgresRuleStore) ListActive() ([]*Rule, error) {
	rows, err := s.db.Query(`
		SELECT id, family_id, name, query, active, created_at, updated_at
		FROM rules
		WHERE active = true
		ORDER BY created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}
	defer rows.Close()

	var rules []*Rule
	for rows.Next() {
		var rule Rule
		if err := rows.Scan(
			&rule.ID, &rule.FamilyID, &rule.Name, &rule.Query, &rule.Active,
			&rule.CreatedAt, &rule.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		rules = append(rules, &rule)
	}
	return rules, rows.Err()
}

func (s *PostgresRuleStore) Update(rule *Rule) error {
	result, err := s.db.Exec(`
		UPDATE rules
		SET family_id = $2, name = $3, query = $4, active = $5, updated_at = NOW()
		WHERE id = $1
	`, rule.ID, rule.FamilyID, rule.Name, rule.Query, rule.Active)
	if err != nil {
		return fmt.Errorf("failed to update rule: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("rule with ID %s not found", rule.ID)
	}
	return nil
}

func (s *PostgresRuleStore) Delete(id string) error {
	result, err := s.db.Exec(`DELETE FROM rules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete rule: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("rule with ID %s not found", id)
	}
	return nil
}

// PostgresMacroStore implements MacroStore backed by PostgreSQL. The scope
// column stores the empty string for global macros, matching the in-memory
// convention.
type PostgresMacroStore struct {
	db *sql.DB
}

func NewPostgresMacroStore(db *sql.DB) *PostgresMacroStore {
	return &PostgresMacroStore{db: db}
}

func (s *PostgresMacroStore) Create(m *Macro) error {
	var exists bool
	err := s.db.QueryRow(`
		SELECT EXISTS(SELECT 1 FROM macros WHERE name = $1 AND family_id = $2)
	`, m.Name, m.FamilyID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check macro existence: %w", err)
	}
	if exists {
		return fmt.Errorf("macro %s already exists in scope %q", m.Name, scopeLabel(m.FamilyID))
	}

	_, err = s.db.Exec(`
		INSERT INTO macros (id, name, family_id, body, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
	`, m.ID, m.Name, m.FamilyID, m.Body)
	if err != nil {
		return fmt.Errorf("failed to insert macro: %w", err)
	}
	return nil
}

func (s *PostgresMacroStore) Get(familyID, name string) (*Macro, error) {
	var m Macro
	err := s.db.QueryRow(`
		SELECT id, name, family_id, body, created_at, updated_at
		FROM macros
		WHERE name = $1 AND family_id = $2
	`, name, familyID).Scan(
		&m.ID, &m.Name, &m.FamilyID, &m.Body, &m.CreatedAt, &m.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("macro %s not found in scope %q", name, scopeLabel(familyID))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query macro: %w", err)
	}
	return &m, nil
}

func (s *PostgresMacroStore) List() ([]*Macro, error) {
	rows, err := s.db.Query(`
		SELECT id, name, family_id, body, created_at, updated_at
		FROM macros
		ORDER BY family_id, name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list macros: %w", err)
	}
	defer rows.Close()

	var macros []*Macro
	for rows.Next() {
		var m Macro
		if err := rows.Scan(
			&m.ID, &m.Name, &m.FamilyID, &m.Body, &m.CreatedAt, &m.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan macro: %w", err)
		}
		macros = append(macros, &m)
	}
	return macros, rows.Err()
}

func (s *PostgresMacroStore) Delete(familyID, name string) error {
	result, err := s.db.Exec(`
		DELETE FROM macros WHERE name = $1 AND family_id = $2
	`, name, familyID)
	if err != nil {
		return fmt.Errorf("failed to delete macro: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("macro %s not found in scope %q", name, scopeLabel(familyID))
	}
	return nil
}

// PostgresSectionSource serves the classified-section corpus for
// counterfactual scans. Read-only: the analyzer never writes corpus state.
type PostgresSectionSource struct {
	db *sql.DB
}

func NewPostgresSectionSource(db *sql.DB) *PostgresSectionSource {
	return &PostgresSectionSource{db: db}
}

func (s *PostgresSectionSource) ListSections(ctx context.Context) ([]dsl.Section, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_id, heading, body, pinned_negative
		FROM sections
		ORDER BY document_id, id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sections: %w", err)
	}
	defer rows.Close()

	var sections []dsl.Section
	for rows.Next() {
		var sec dsl.Section
		if err := rows.Scan(&sec.ID, &sec.DocumentID, &sec.Heading, &sec.Body, &sec.PinnedNegative); err != nil {
			return nil, fmt.Errorf("failed to scan section: %w", err)
		}
		sections = append(sections, sec)
	}
	return sections, rows.Err()
}
