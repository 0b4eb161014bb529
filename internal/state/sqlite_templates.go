package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/leapstack-labs/datarush/internal/templates"
	"github.com/leapstack-labs/datarush/pkg/core"
)

var _ templates.Store = (*SQLiteStore)(nil)

// List returns stored template names in lexical order.
func (s *SQLiteStore) List(ctx context.Context) ([]string, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	return s.queryStrings(ctx, `SELECT DISTINCT name FROM templates ORDER BY name`)
}

// ListVersions returns the versions of a template in lexical order.
func (s *SQLiteStore) ListVersions(ctx context.Context, name string) ([]string, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	return s.queryStrings(ctx, `SELECT version FROM templates WHERE name = ? ORDER BY version`, name)
}

// Read loads one template version.
func (s *SQLiteStore) Read(ctx context.Context, name, version string) (*templates.Template, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	var body string
	err := s.db.QueryRowContext(ctx,
		`SELECT body FROM templates WHERE name = ? AND version = ?`, name, version,
	).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &core.TemplateNotFoundError{Name: name, Version: version}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read template: %w", err)
	}
	return templates.Decode([]byte(body), templates.FormatJSON)
}

// Write stores t as a new version.
func (s *SQLiteStore) Write(ctx context.Context, t *templates.Template, name, version string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if name == "" || version == "" {
		return fmt.Errorf("template name and version are required")
	}

	body, err := templates.Encode(t)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO templates (name, version, body, datarush_version, created_at)
		 VALUES (?, ?, ?, ?, ?) ON CONFLICT (name, version) DO NOTHING`,
		name, version, string(body), t.DatarushVersion, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to write template: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to write template: %w", err)
	}
	if n == 0 {
		return &core.TemplateAlreadyExistsError{Name: name, Version: version}
	}

	s.logger.Debug("template stored", slog.String("name", name), slog.String("version", version))
	return nil
}

func (s *SQLiteStore) queryStrings(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query templates: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := []string{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to scan template row: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
