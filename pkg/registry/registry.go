// pkg/registry/registry.go
package registry

import (
	"context"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/lib/pq"
)

var validKinds = map[string]bool{
	"delivery_time":  true,
	"courier_demand": true,
}

func LoadRegistry(path string) (*ModelRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var reg ModelRegistry
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("parse registry %s: %w", path, err)
	}
	if err := reg.Validate(); err != nil {
		return nil, err
	}
	return &reg, nil
}

// Save writes the registry as indented JSON.
func (r *ModelRegistry) Save(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

const selectModelsQuery = `
	SELECT name, display_name, kind, version, uri, sha256, preload, tags
	FROM model_artifacts
	WHERE active = true
	ORDER BY name`

// LoadFromDB reads active rows of the model_artifacts table.
func LoadFromDB(ctx context.Context, db *sql.DB) (*ModelRegistry, error) {
	rows, err := db.QueryContext(ctx, selectModelsQuery)
	if err != nil {
		return nil, fmt.Errorf("query model_artifacts: %w", err)
	}
	defer rows.Close()

	reg := &ModelRegistry{Version: "db"}
	for rows.Next() {
		var (
			m      Model
			sha    sql.NullString
			tags   pq.StringArray
			dispNm sql.NullString
		)
		if err := rows.Scan(&m.Name, &dispNm, &m.Kind, &m.Version, &m.URI, &sha, &m.Preload, &tags); err != nil {
			return nil, fmt.Errorf("scan model_artifacts: %w", err)
		}
		m.DisplayName = dispNm.String
		m.SHA256 = sha.String
		m.Tags = []string(tags)
		reg.Models = append(reg.Models, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := reg.Validate(); err != nil {
		return nil, err
	}
	return reg, nil
}

// Find returns the entry for name.
func (r *ModelRegistry) Find(name string) (*Model, bool) {
	for i := range r.Models {
		if r.Models[i].Name == name {
			return &r.Models[i], true
		}
	}
	return nil, false
}

// Upsert replaces the entry with the same name or appends a new one.
func (r *ModelRegistry) Upsert(m Model) {
	for i := range r.Models {
		if r.Models[i].Name == m.Name {
			r.Models[i] = m
			return
		}
	}
	r.Models = append(r.Models, m)
}

func (r *ModelRegistry) Validate() error {
	seen := make(map[string]bool, len(r.Models))
	var problems []string
	for i, m := range r.Models {
		switch {
		case m.Name == "":
			problems = append(problems, fmt.Sprintf("models[%d]: name is required", i))
		case seen[m.Name]:
			problems = append(problems, fmt.Sprintf("models[%d]: duplicate name %q", i, m.Name))
		}
		seen[m.Name] = true

		if !validKinds[m.Kind] {
			problems = append(problems, fmt.Sprintf("models[%d]: kind %q must be delivery_time or courier_demand", i, m.Kind))
		}
		if m.URI == "" {
			problems = append(problems, fmt.Sprintf("models[%d]: uri is required", i))
		}
		if m.SHA256 != "" {
			if b, err := hex.DecodeString(m.SHA256); err != nil || len(b) != 32 {
				problems = append(problems, fmt.Sprintf("models[%d]: sha256 must be 64 hex characters", i))
			}
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid registry: %s", strings.Join(problems, "; "))
	}
	return nil
}
