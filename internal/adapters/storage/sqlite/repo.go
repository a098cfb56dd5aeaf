package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/hylla/connboard/internal/app"
	"github.com/hylla/connboard/internal/domain"
)

// driverName defines a package constant value.
const driverName = "sqlite"

// connectionPragmas apply to every pooled connection.
const connectionPragmas = "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"

// dbtx is the query surface shared by *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

// Repository is the sqlite-backed board store. It also serves as the requirements
// evaluator and the preference store.
type Repository struct {
	db   *sql.DB
	q    dbtx
	inTx bool
}

var (
	_ app.Repository            = (*Repository)(nil)
	_ app.RequirementsEvaluator = (*Repository)(nil)
	_ app.PreferenceStore       = (*Repository)(nil)
)

// Open opens (and migrates) the database file at path, creating its directory.
func Open(path string) (*Repository, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}
	return open("file:" + path + "?" + connectionPragmas)
}

// OpenInMemory opens a private in-memory database.
func OpenInMemory() (*Repository, error) {
	return open("file:connboard-" + uuid.NewString() + "?mode=memory&cache=shared&" + connectionPragmas)
}

func open(dsn string) (*Repository, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// Shared-cache memory databases and open transactions need a single connection.
	db.SetMaxOpenConns(1)
	repo := &Repository{db: db, q: db}
	if err := repo.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// Close closes the database.
func (r *Repository) Close() error {
	return r.db.Close()
}

// Ping verifies the database connection.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// InTx runs fn against a repository bound to one transaction. Nested calls reuse the
// outer transaction.
func (r *Repository) InTx(ctx context.Context, fn func(app.Repository) error) (err error) {
	if r.inTx {
		return fn(r)
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if err = fn(&Repository{db: r.db, q: tx, inTx: true}); err != nil {
		return err
	}
	err = tx.Commit()
	return err
}

// migrate creates the schema and the system activity types.
func (r *Repository) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS connection_types (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			icon_css_class TEXT NOT NULL DEFAULT '',
			days_until_request_idle INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE TABLE IF NOT EXISTS connection_statuses (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			connection_type_id INTEGER NOT NULL,
			name TEXT NOT NULL,
			sort_order INTEGER NOT NULL DEFAULT 0,
			is_active INTEGER NOT NULL DEFAULT 1,
			is_default INTEGER NOT NULL DEFAULT 0,
			is_critical INTEGER NOT NULL DEFAULT 0,
			highlight_color TEXT NOT NULL DEFAULT '',
			FOREIGN KEY(connection_type_id) REFERENCES connection_types(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS opportunities (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			connection_type_id INTEGER NOT NULL,
			name TEXT NOT NULL,
			public_name TEXT NOT NULL DEFAULT '',
			icon_css_class TEXT NOT NULL DEFAULT '',
			is_active INTEGER NOT NULL DEFAULT 1,
			FOREIGN KEY(connection_type_id) REFERENCES connection_types(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS opportunity_campus_connectors (
			opportunity_id INTEGER NOT NULL,
			campus_id INTEGER NOT NULL,
			person_id INTEGER NOT NULL,
			PRIMARY KEY(opportunity_id, campus_id),
			FOREIGN KEY(opportunity_id) REFERENCES opportunities(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS activity_types (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			connection_type_id INTEGER,
			system_key TEXT NOT NULL DEFAULT '',
			name TEXT NOT NULL,
			is_active INTEGER NOT NULL DEFAULT 1
		);`,
		`CREATE TABLE IF NOT EXISTS people (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			nick_name TEXT NOT NULL DEFAULT '',
			last_name TEXT NOT NULL DEFAULT '',
			email TEXT NOT NULL DEFAULT ''
		);`,
		`CREATE TABLE IF NOT EXISTS campuses (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			short_code TEXT NOT NULL DEFAULT ''
		);`,
		`CREATE TABLE IF NOT EXISTS member_groups (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			campus_id INTEGER
		);`,
		`CREATE TABLE IF NOT EXISTS group_roles (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS group_members (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			group_id INTEGER NOT NULL,
			person_id INTEGER NOT NULL,
			role_id INTEGER NOT NULL,
			status TEXT NOT NULL,
			attributes_json TEXT NOT NULL DEFAULT '{}',
			created_at TEXT NOT NULL,
			UNIQUE(group_id, person_id, role_id),
			FOREIGN KEY(group_id) REFERENCES member_groups(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS group_requirements (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			group_id INTEGER NOT NULL,
			role_id INTEGER,
			name TEXT NOT NULL,
			check_type TEXT NOT NULL,
			must_meet_to_add INTEGER NOT NULL DEFAULT 0,
			FOREIGN KEY(group_id) REFERENCES member_groups(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS group_member_requirements (
			group_member_id INTEGER NOT NULL,
			requirement_id INTEGER NOT NULL,
			PRIMARY KEY(group_member_id, requirement_id),
			FOREIGN KEY(group_member_id) REFERENCES group_members(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS person_requirement_results (
			requirement_id INTEGER NOT NULL,
			person_id INTEGER NOT NULL,
			meets TEXT NOT NULL,
			message TEXT NOT NULL DEFAULT '',
			PRIMARY KEY(requirement_id, person_id),
			FOREIGN KEY(requirement_id) REFERENCES group_requirements(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS connection_requests (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			opportunity_id INTEGER NOT NULL,
			person_id INTEGER NOT NULL,
			status_id INTEGER NOT NULL,
			state TEXT NOT NULL,
			connector_id INTEGER,
			campus_id INTEGER,
			sort_order INTEGER NOT NULL DEFAULT 0,
			comments TEXT NOT NULL DEFAULT '',
			followup_date TEXT,
			placement_group_id INTEGER,
			placement_role_id INTEGER,
			placement_member_status TEXT NOT NULL DEFAULT '',
			placement_attributes_json TEXT NOT NULL DEFAULT '{}',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			FOREIGN KEY(opportunity_id) REFERENCES opportunities(id),
			FOREIGN KEY(status_id) REFERENCES connection_statuses(id)
		);`,
		`CREATE TABLE IF NOT EXISTS connection_request_activities (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			request_id INTEGER NOT NULL,
			opportunity_id INTEGER NOT NULL,
			activity_type_id INTEGER NOT NULL,
			connector_id INTEGER,
			note TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			FOREIGN KEY(request_id) REFERENCES connection_requests(id) ON DELETE CASCADE
		);`,
		// Workflows restrict request deletion; CanDeleteConnectionRequest reports them first.
		`CREATE TABLE IF NOT EXISTS connection_request_workflows (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			request_id INTEGER NOT NULL,
			name TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			FOREIGN KEY(request_id) REFERENCES connection_requests(id)
		);`,
		`CREATE TABLE IF NOT EXISTS preferences (
			person_id INTEGER NOT NULL,
			key TEXT NOT NULL,
			value TEXT NOT NULL DEFAULT '',
			PRIMARY KEY(person_id, key)
		);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_activity_types_system_key ON activity_types(system_key) WHERE system_key <> '';`,
		`CREATE INDEX IF NOT EXISTS idx_statuses_type_order ON connection_statuses(connection_type_id, sort_order);`,
		`CREATE INDEX IF NOT EXISTS idx_requests_opportunity_status_order ON connection_requests(opportunity_id, status_id, sort_order);`,
		`CREATE INDEX IF NOT EXISTS idx_requests_opportunity_person ON connection_requests(opportunity_id, person_id);`,
		`CREATE INDEX IF NOT EXISTS idx_activities_request_created_at ON connection_request_activities(request_id, created_at DESC, id DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_workflows_request ON connection_request_workflows(request_id);`,
		`CREATE INDEX IF NOT EXISTS idx_requirements_group ON group_requirements(group_id);`,
	}
	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate sqlite: %w", err)
		}
	}
	return r.seedSystemActivityTypes(ctx)
}

// systemActivityNames are the display names of the seeded system activity types.
var systemActivityNames = map[domain.SystemActivityKey]string{
	domain.SystemActivityAssigned:    "Assigned",
	domain.SystemActivityConnected:   "Connected",
	domain.SystemActivityTransferred: "Transferred",
}

// seedSystemActivityTypes inserts each missing system activity type. It is idempotent.
func (r *Repository) seedSystemActivityTypes(ctx context.Context) error {
	for _, key := range domain.SystemActivityKeys() {
		_, err := r.db.ExecContext(ctx, `
			INSERT INTO activity_types(connection_type_id, system_key, name, is_active)
			SELECT NULL, ?, ?, 1
			WHERE NOT EXISTS (SELECT 1 FROM activity_types WHERE system_key = ?)
		`, string(key), systemActivityNames[key], string(key))
		if err != nil {
			return fmt.Errorf("seed system activity type %q: %w", key, err)
		}
	}
	return nil
}

// scanner represents scanner data used by this package.
type scanner interface {
	Scan(dest ...any) error
}

// translateNoRows maps a zero-row write to app.ErrNotFound.
func translateNoRows(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return app.ErrNotFound
	}
	return nil
}

// notFound maps sql.ErrNoRows to app.ErrNotFound.
func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return app.ErrNotFound
	}
	return err
}

// tsLayout has fixed-width fractions so stored timestamps sort as text.
const tsLayout = "2006-01-02T15:04:05.000000000Z07:00"

func ts(t time.Time) string {
	return t.UTC().Format(tsLayout)
}

func nullableTS(t *time.Time) any {
	if t == nil {
		return nil
	}
	return ts(*t)
}

func parseTS(v string) time.Time {
	ts, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}
	}
	return ts.UTC()
}

func parseNullTS(v sql.NullString) *time.Time {
	if !v.Valid || strings.TrimSpace(v.String) == "" {
		return nil
	}
	ts := parseTS(v.String)
	return &ts
}

func nullableID(id *int64) any {
	if id == nil || *id <= 0 {
		return nil
	}
	return *id
}

func parseNullID(v sql.NullInt64) *int64 {
	if !v.Valid || v.Int64 <= 0 {
		return nil
	}
	id := v.Int64
	return &id
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// inClause renders "?, ?, ?" and the matching args for an id list.
func inClause(ids []int64) (string, []any) {
	marks := make([]string, 0, len(ids))
	args := make([]any, 0, len(ids))
	for _, id := range ids {
		marks = append(marks, "?")
		args = append(args, id)
	}
	return strings.Join(marks, ", "), args
}
