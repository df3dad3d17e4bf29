package database

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/xavierca1/kviz-leads/internal/entity"
)

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS leads (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	phone      TEXT NOT NULL,
	email      TEXT,
	phone_hash TEXT NOT NULL,
	lead_data  TEXT,
	utm_params TEXT NOT NULL DEFAULT '{}',
	user_data  TEXT NOT NULL DEFAULT '{}',
	created_at INTEGER NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS ux_leads_phone_hash ON leads(phone_hash);
CREATE INDEX IF NOT EXISTS idx_leads_phone ON leads(phone);
CREATE INDEX IF NOT EXISTS idx_leads_ip_created ON leads(json_extract(user_data, '$.ip'), created_at DESC);
CREATE INDEX IF NOT EXISTS idx_leads_real_ip_created ON leads(json_extract(user_data, '$.realIP'), created_at DESC);
`

// SQLiteLeadRepository is the single-node store for local runs. created_at
// is kept as unix nanoseconds so window comparisons stay numeric.
type SQLiteLeadRepository struct {
	db *sql.DB
}

func NewSQLiteLeadRepository(dsn string) (*SQLiteLeadRepository, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// One writer at a time; the unique index still decides races.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteLeadRepository{db: db}, nil
}

func (r *SQLiteLeadRepository) Migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (r *SQLiteLeadRepository) Close() error {
	return r.db.Close()
}

func (r *SQLiteLeadRepository) Ping(ctx context.Context) error {
	return eris.Wrap(r.db.PingContext(ctx), "sqlite: ping")
}

const sqliteLeadColumns = `id, name, phone, COALESCE(email, ''), phone_hash, lead_data, utm_params, user_data, created_at`

func (r *SQLiteLeadRepository) FindByPhoneHash(ctx context.Context, hash string) (*entity.Lead, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+sqliteLeadColumns+` FROM leads WHERE phone_hash = ?`,
		hash,
	)
	lead, err := scanSQLiteLead(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: find lead by phone hash")
	}
	return lead, nil
}

func (r *SQLiteLeadRepository) FindRecentByIP(ctx context.Context, ip string, since time.Time) (*entity.Lead, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+sqliteLeadColumns+` FROM leads
		WHERE (json_extract(user_data, '$.ip') = ? OR json_extract(user_data, '$.realIP') = ?) AND created_at >= ?
		ORDER BY created_at DESC LIMIT 1`,
		ip, ip, since.UnixNano(),
	)
	lead, err := scanSQLiteLead(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: find lead by ip %s", ip)
	}
	return lead, nil
}

func (r *SQLiteLeadRepository) Insert(ctx context.Context, lead *entity.Lead) error {
	leadData, utm, user, err := marshalLeadJSON(lead)
	if err != nil {
		return err
	}

	var leadDataArg any
	if leadData != nil {
		leadDataArg = string(leadData)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO leads (id, name, phone, email, phone_hash, lead_data, utm_params, user_data, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		lead.ID,
		lead.Name,
		lead.Phone,
		nullString(lead.Email),
		lead.PhoneHash,
		leadDataArg,
		string(utm),
		string(user),
		lead.CreatedAt.UnixNano(),
	)
	if err != nil {
		if isSQLiteUniqueViolation(err) {
			return entity.ErrDuplicatePhone
		}
		return eris.Wrap(err, "sqlite: insert lead")
	}
	return nil
}

func (r *SQLiteLeadRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM leads`).Scan(&n); err != nil {
		return 0, eris.Wrap(err, "sqlite: count leads")
	}
	return n, nil
}

func (r *SQLiteLeadRepository) List(ctx context.Context, limit, offset int) ([]*entity.Lead, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+sqliteLeadColumns+` FROM leads ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list leads")
	}
	defer rows.Close()

	var leads []*entity.Lead
	for rows.Next() {
		lead, err := scanSQLiteLead(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan lead")
		}
		leads = append(leads, lead)
	}
	return leads, eris.Wrap(rows.Err(), "sqlite: iterate leads")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteLead(row rowScanner) (*entity.Lead, error) {
	var l entity.Lead
	var leadData sql.NullString
	var utm, user string
	var createdAt int64

	err := row.Scan(&l.ID, &l.Name, &l.Phone, &l.Email, &l.PhoneHash, &leadData, &utm, &user, &createdAt)
	if err != nil {
		return nil, err
	}
	l.CreatedAt = time.Unix(0, createdAt).UTC()

	if err := unmarshalLeadJSON(&l, []byte(leadData.String), []byte(utm), []byte(user)); err != nil {
		return nil, err
	}
	return &l, nil
}

func isSQLiteUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	code := se.Code()
	if code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY {
		return true
	}
	return code&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(se.Error(), "UNIQUE")
}
