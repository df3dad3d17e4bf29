package database

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rotisserie/eris"

	"github.com/xavierca1/kviz-leads/internal/entity"
)

const pgUniqueViolation = "23505"

const postgresMigration = `
CREATE TABLE IF NOT EXISTS leads (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	phone      TEXT NOT NULL,
	email      TEXT,
	phone_hash TEXT NOT NULL,
	lead_data  JSONB,
	utm_params JSONB NOT NULL DEFAULT '{}'::jsonb,
	user_data  JSONB NOT NULL DEFAULT '{}'::jsonb,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE UNIQUE INDEX IF NOT EXISTS ux_leads_phone_hash ON leads(phone_hash);
CREATE INDEX IF NOT EXISTS idx_leads_phone ON leads(phone);
CREATE INDEX IF NOT EXISTS idx_leads_ip_created ON leads((user_data->>'ip'), created_at DESC);
CREATE INDEX IF NOT EXISTS idx_leads_real_ip_created ON leads((user_data->>'realIP'), created_at DESC);
`

const leadColumns = `id, name, phone, COALESCE(email, ''), phone_hash, lead_data, utm_params, user_data, created_at`

type PostgresLeadRepository struct {
	pool Pool
}

func NewPostgresLeadRepository(pool Pool) *PostgresLeadRepository {
	return &PostgresLeadRepository{pool: pool}
}

func (r *PostgresLeadRepository) Migrate(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (r *PostgresLeadRepository) Close() error {
	r.pool.Close()
	return nil
}

func (r *PostgresLeadRepository) Ping(ctx context.Context) error {
	return eris.Wrap(r.pool.Ping(ctx), "postgres: ping")
}

func (r *PostgresLeadRepository) FindByPhoneHash(ctx context.Context, hash string) (*entity.Lead, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+leadColumns+` FROM leads WHERE phone_hash = $1`,
		hash,
	)
	lead, err := scanPostgresLead(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: find lead by phone hash")
	}
	return lead, nil
}

func (r *PostgresLeadRepository) FindRecentByIP(ctx context.Context, ip string, since time.Time) (*entity.Lead, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+leadColumns+` FROM leads
		WHERE (user_data->>'ip' = $1 OR user_data->>'realIP' = $1) AND created_at >= $2
		ORDER BY created_at DESC LIMIT 1`,
		ip, since,
	)
	lead, err := scanPostgresLead(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: find lead by ip %s", ip)
	}
	return lead, nil
}

func (r *PostgresLeadRepository) Insert(ctx context.Context, lead *entity.Lead) error {
	leadData, utm, user, err := marshalLeadJSON(lead)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO leads (id, name, phone, email, phone_hash, lead_data, utm_params, user_data, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		lead.ID,
		lead.Name,
		lead.Phone,
		nullString(lead.Email),
		lead.PhoneHash,
		leadData,
		utm,
		user,
		lead.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return entity.ErrDuplicatePhone
		}
		return eris.Wrap(err, "postgres: insert lead")
	}
	return nil
}

func (r *PostgresLeadRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM leads`).Scan(&n); err != nil {
		return 0, eris.Wrap(err, "postgres: count leads")
	}
	return n, nil
}

func (r *PostgresLeadRepository) List(ctx context.Context, limit, offset int) ([]*entity.Lead, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+leadColumns+` FROM leads ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list leads")
	}
	defer rows.Close()

	var leads []*entity.Lead
	for rows.Next() {
		lead, err := scanPostgresLead(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan lead")
		}
		leads = append(leads, lead)
	}
	return leads, eris.Wrap(rows.Err(), "postgres: iterate leads")
}

func scanPostgresLead(row pgx.Row) (*entity.Lead, error) {
	var l entity.Lead
	var leadData, utm, user []byte

	err := row.Scan(&l.ID, &l.Name, &l.Phone, &l.Email, &l.PhoneHash, &leadData, &utm, &user, &l.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := unmarshalLeadJSON(&l, leadData, utm, user); err != nil {
		return nil, err
	}
	return &l, nil
}

func marshalLeadJSON(lead *entity.Lead) (leadData, utm, user []byte, err error) {
	if lead.LeadData != nil {
		if leadData, err = json.Marshal(lead.LeadData); err != nil {
			return nil, nil, nil, eris.Wrap(err, "database: marshal lead data")
		}
	}
	if utm, err = json.Marshal(lead.UTMParams); err != nil {
		return nil, nil, nil, eris.Wrap(err, "database: marshal utm params")
	}
	if user, err = json.Marshal(lead.UserData); err != nil {
		return nil, nil, nil, eris.Wrap(err, "database: marshal user data")
	}
	return leadData, utm, user, nil
}

func unmarshalLeadJSON(l *entity.Lead, leadData, utm, user []byte) error {
	if len(leadData) > 0 {
		if err := json.Unmarshal(leadData, &l.LeadData); err != nil {
			return eris.Wrap(err, "database: unmarshal lead data")
		}
	}
	if len(utm) > 0 {
		if err := json.Unmarshal(utm, &l.UTMParams); err != nil {
			return eris.Wrap(err, "database: unmarshal utm params")
		}
	}
	if len(user) > 0 {
		if err := json.Unmarshal(user, &l.UserData); err != nil {
			return eris.Wrap(err, "database: unmarshal user data")
		}
	}
	return nil
}
