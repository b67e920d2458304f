package elements

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"

	"github.com/matthewbaird/mllabeler/internal/types"
)

// Table and column names shared with query builders in other packages.
const (
	ElementsTable   = "elements"
	ModelsTable     = "models"
	CategoriesTable = "categories"
	ClassesTable    = "classes"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS models (
		id   TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS categories (
		id          TEXT PRIMARY KEY,
		user_label  TEXT NOT NULL DEFAULT '',
		code_value  TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS classes (
		id   TEXT PRIMARY KEY,
		name TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS elements (
		id            TEXT PRIMARY KEY,
		model_id      TEXT NOT NULL,
		category_id   TEXT NOT NULL,
		class_id      TEXT NOT NULL,
		user_label    TEXT NOT NULL DEFAULT '',
		code_value    TEXT NOT NULL DEFAULT '',
		parent_id     TEXT NOT NULL DEFAULT '',
		aspect_class  TEXT NOT NULL DEFAULT '',
		geometry      BLOB,
		geometry_size INTEGER NOT NULL DEFAULT 0,
		min_x REAL NOT NULL DEFAULT 0,
		min_y REAL NOT NULL DEFAULT 0,
		min_z REAL NOT NULL DEFAULT 0,
		max_x REAL NOT NULL DEFAULT 0,
		max_y REAL NOT NULL DEFAULT 0,
		max_z REAL NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_elements_bbox ON elements (min_x, max_x, min_y, max_y, min_z, max_z)`,
}

// Dataset is a batch of catalog rows to import.
type Dataset struct {
	Models     []types.GroupRecord `json:"models" yaml:"models"`
	Categories []Category          `json:"categories" yaml:"categories"`
	Classes    []types.GroupRecord `json:"classes" yaml:"classes"`
	Elements   []Attributes        `json:"elements" yaml:"elements"`
}

// Category is a category row.
type Category struct {
	ID          string `json:"id" yaml:"id"`
	UserLabel   string `json:"user_label" yaml:"user_label"`
	CodeValue   string `json:"code_value" yaml:"code_value"`
	Description string `json:"description" yaml:"description"`
}

// SQLiteStore implements Source on SQLite tables.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLiteStore.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// DB returns the underlying handle.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// CreateTables creates the catalog tables if they do not exist.
func (s *SQLiteStore) CreateTables(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("creating catalog tables: %w", err)
		}
	}
	return nil
}

func builder() *entsql.DialectBuilder {
	return entsql.Dialect(dialect.SQLite)
}

// geometric selects the ids of elements that carry geometry.
func geometric(column string) *entsql.Selector {
	b := builder()
	return b.Select(column).Distinct().
		From(entsql.Table(ElementsTable)).
		Where(entsql.GT("geometry_size", 0))
}

func (s *SQLiteStore) QueryElements(ctx context.Context) ([]types.ElementRecord, error) {
	b := builder()
	e := entsql.Table(ElementsTable).As("e")
	c := entsql.Table(ClassesTable).As("c")
	query, args := b.Select(e.C("id"), e.C("model_id"), e.C("category_id"), e.C("class_id"), c.C("name")).
		From(e).
		LeftJoin(c).On(e.C("class_id"), c.C("id")).
		Where(entsql.GT(e.C("geometry_size"), 0)).
		OrderBy(e.C("id")).
		Query()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying elements: %w", err)
	}
	defer rows.Close()

	var out []types.ElementRecord
	for rows.Next() {
		var r types.ElementRecord
		var className sql.NullString
		if err := rows.Scan(&r.ElementID, &r.ModelID, &r.CategoryID, &r.ClassID, &className); err != nil {
			return nil, fmt.Errorf("scanning element: %w", err)
		}
		r.ClassName = className.String
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) QueryModels(ctx context.Context) ([]types.GroupRecord, error) {
	b := builder()
	query, args := b.Select("id", "name").
		From(entsql.Table(ModelsTable)).
		Where(entsql.In("id", geometric("model_id"))).
		OrderBy("id").
		Query()
	return s.queryGroups(ctx, "models", query, args, func(id, name, _ string) string { return name })
}

func (s *SQLiteStore) QueryCategories(ctx context.Context) ([]types.GroupRecord, error) {
	b := builder()
	query, args := b.Select("id", "user_label", "code_value").
		From(entsql.Table(CategoriesTable)).
		Where(entsql.In("id", geometric("category_id"))).
		OrderBy("id").
		Query()
	return s.queryGroups(ctx, "categories", query, args, func(_, userLabel, codeValue string) string {
		return CategoryDisplay(userLabel, codeValue)
	})
}

func (s *SQLiteStore) QueryClasses(ctx context.Context) ([]types.GroupRecord, error) {
	b := builder()
	query, args := b.Select("id", "name").
		From(entsql.Table(ClassesTable)).
		Where(entsql.In("id", geometric("class_id"))).
		OrderBy("id").
		Query()
	return s.queryGroups(ctx, "classes", query, args, func(_, name, _ string) string { return name })
}

func (s *SQLiteStore) queryGroups(ctx context.Context, what, query string, args []any, display func(id, a, b string) string) ([]types.GroupRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", what, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", what, err)
	}
	var out []types.GroupRecord
	for rows.Next() {
		var id, a, b string
		dest := []any{&id, &a}
		if len(cols) > 2 {
			dest = append(dest, &b)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scanning %s: %w", what, err)
		}
		out = append(out, types.GroupRecord{ID: id, DisplayName: display(id, a, b)})
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Attributes(ctx context.Context, id string) (Attributes, error) {
	b := builder()
	e := entsql.Table(ElementsTable).As("e")
	c := entsql.Table(CategoriesTable).As("c")
	k := entsql.Table(ClassesTable).As("k")
	query, args := b.Select(
		e.C("id"), e.C("model_id"), e.C("category_id"), e.C("class_id"), k.C("name"),
		e.C("user_label"), e.C("code_value"), e.C("parent_id"), e.C("aspect_class"),
		c.C("user_label"), c.C("code_value"), c.C("description"),
		e.C("geometry"), e.C("geometry_size"),
		e.C("min_x"), e.C("min_y"), e.C("min_z"), e.C("max_x"), e.C("max_y"), e.C("max_z"),
	).
		From(e).
		LeftJoin(c).On(e.C("category_id"), c.C("id")).
		LeftJoin(k).On(e.C("class_id"), k.C("id")).
		Where(entsql.EQ(e.C("id"), id)).
		Limit(1).
		Query()

	var a Attributes
	var className, catLabel, catCode, catDesc sql.NullString
	err := s.db.QueryRowContext(ctx, query, args...).Scan(
		&a.ElementID, &a.ModelID, &a.CategoryID, &a.ClassID, &className,
		&a.UserLabel, &a.CodeValue, &a.ParentID, &a.AspectClass,
		&catLabel, &catCode, &catDesc,
		&a.Geometry, &a.GeometrySize,
		&a.Low.X, &a.Low.Y, &a.Low.Z, &a.High.X, &a.High.Y, &a.High.Z,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Attributes{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Attributes{}, fmt.Errorf("reading element %s: %w", id, err)
	}
	a.ClassName = className.String
	a.CategoryUserLabel = catLabel.String
	a.CategoryCodeValue = catCode.String
	a.CategoryDescription = catDesc.String
	return a, nil
}

func (s *SQLiteStore) Search(ctx context.Context, query string, args []any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("searching elements: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning search result: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Import upserts every row of the dataset in one transaction.
func (s *SQLiteStore) Import(ctx context.Context, ds Dataset) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting import: %w", err)
	}
	defer tx.Rollback()

	upsert := func(table string, cols []string, vals ...any) error {
		b := builder()
		query, args := b.Insert(table).
			Columns(cols...).
			Values(vals...).
			OnConflict(entsql.ConflictColumns("id"), entsql.ResolveWithNewValues()).
			Query()
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("importing into %s: %w", table, err)
		}
		return nil
	}

	for _, m := range ds.Models {
		if err := upsert(ModelsTable, []string{"id", "name"}, m.ID, m.DisplayName); err != nil {
			return err
		}
	}
	for _, c := range ds.Categories {
		if err := upsert(CategoriesTable, []string{"id", "user_label", "code_value", "description"},
			c.ID, c.UserLabel, c.CodeValue, c.Description); err != nil {
			return err
		}
	}
	for _, c := range ds.Classes {
		if err := upsert(ClassesTable, []string{"id", "name"}, c.ID, c.DisplayName); err != nil {
			return err
		}
	}
	elementCols := []string{
		"id", "model_id", "category_id", "class_id", "user_label", "code_value", "parent_id", "aspect_class",
		"geometry", "geometry_size", "min_x", "min_y", "min_z", "max_x", "max_y", "max_z",
	}
	for _, e := range ds.Elements {
		size := e.GeometrySize
		if size == 0 {
			size = int64(len(e.Geometry))
		}
		if err := upsert(ElementsTable, elementCols,
			e.ElementID, e.ModelID, e.CategoryID, e.ClassID, e.UserLabel, e.CodeValue, e.ParentID, e.AspectClass,
			e.Geometry, size, e.Low.X, e.Low.Y, e.Low.Z, e.High.X, e.High.Y, e.High.Z); err != nil {
			return err
		}
	}
	return tx.Commit()
}
