package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/octobees/contact-crawler/internal/entity"
)

// RecordsRepository describes persistence operations for contact records.
type RecordsRepository interface {
	UpsertRecords(ctx context.Context, records []entity.ContactRecord) (UpsertResult, error)
	ListByDomain(ctx context.Context, domain string) ([]entity.ContactRecord, error)
}

// UpsertResult summarises the number of rows inserted or updated.
type UpsertResult struct {
	Inserted int
	Updated  int
	Total    int
}

// pgxPool is the slice of *pgxpool.Pool the repository uses.
type pgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

var _ pgxPool = (*pgxpool.Pool)(nil)

// PGXRecordsRepository implements RecordsRepository using pgx.
type PGXRecordsRepository struct {
	pool pgxPool
}

// NewPGXRecordsRepository wires a pgx backed repository.
func NewPGXRecordsRepository(pool *pgxpool.Pool) *PGXRecordsRepository {
	return &PGXRecordsRepository{pool: pool}
}

const upsertRecordSQL = `
        INSERT INTO contact_records (
            domain,
            email,
            email_type,
            confidence,
            discovery_path,
            source_url,
            phone,
            contact_page,
            social,
            raw_evidence,
            found_at,
            updated_at
        ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9::jsonb,$10,$11,NOW())
        ON CONFLICT (domain, email) DO UPDATE SET
            email_type = EXCLUDED.email_type,
            confidence = GREATEST(contact_records.confidence, EXCLUDED.confidence),
            discovery_path = EXCLUDED.discovery_path,
            source_url = EXCLUDED.source_url,
            phone = COALESCE(EXCLUDED.phone, contact_records.phone),
            contact_page = COALESCE(EXCLUDED.contact_page, contact_records.contact_page),
            social = COALESCE(EXCLUDED.social, contact_records.social),
            raw_evidence = EXCLUDED.raw_evidence,
            updated_at = NOW()
        RETURNING xmax = 0;
    `

// UpsertRecords persists a batch of contact records inside one transaction.
// Records are keyed by (domain, email); re-crawling a site refreshes the
// existing rows instead of duplicating them.
func (r *PGXRecordsRepository) UpsertRecords(ctx context.Context, records []entity.ContactRecord) (UpsertResult, error) {
	var result UpsertResult
	if len(records) == 0 {
		return result, nil
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return result, fmt.Errorf("start records upsert tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, record := range records {
		social, err := socialJSONOrNil(record.Social)
		if err != nil {
			return result, fmt.Errorf("marshal social for %q: %w", record.Email, err)
		}

		rows, err := tx.Query(ctx, upsertRecordSQL,
			record.Domain,
			record.Email,
			record.EmailType,
			record.Confidence,
			record.DiscoveryPath,
			record.SourceURL,
			record.Phone,
			record.ContactPage,
			social,
			record.RawEvidence,
			record.Timestamp,
		)
		if err != nil {
			return result, fmt.Errorf("upsert record %q: %w", record.Email, err)
		}

		var inserted bool
		if rows.Next() {
			if scanErr := rows.Scan(&inserted); scanErr != nil {
				rows.Close()
				return result, fmt.Errorf("scan upsert result: %w", scanErr)
			}
		} else {
			err := rows.Err()
			rows.Close()
			if err != nil {
				return result, fmt.Errorf("upsert record %q: %w", record.Email, err)
			}
			return result, fmt.Errorf("upsert record %q: no result returned", record.Email)
		}
		rows.Close()

		if inserted {
			result.Inserted++
		} else {
			result.Updated++
		}
		result.Total++
	}

	if err := tx.Commit(ctx); err != nil {
		return result, fmt.Errorf("commit records upsert tx: %w", err)
	}

	return result, nil
}

// ListByDomain returns all stored records for one domain, highest
// confidence first.
func (r *PGXRecordsRepository) ListByDomain(ctx context.Context, domain string) ([]entity.ContactRecord, error) {
	rows, err := r.pool.Query(ctx, `
        SELECT
            domain,
            email,
            email_type,
            confidence,
            discovery_path,
            source_url,
            phone,
            contact_page,
            social,
            raw_evidence,
            found_at
        FROM contact_records
        WHERE domain = $1
        ORDER BY confidence DESC, email ASC
    `, domain)
	if err != nil {
		return nil, fmt.Errorf("list records for %q: %w", domain, err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

func scanRecords(rows pgx.Rows) ([]entity.ContactRecord, error) {
	var records []entity.ContactRecord
	for rows.Next() {
		var (
			record     entity.ContactRecord
			socialJSON []byte
		)

		err := rows.Scan(
			&record.Domain,
			&record.Email,
			&record.EmailType,
			&record.Confidence,
			&record.DiscoveryPath,
			&record.SourceURL,
			&record.Phone,
			&record.ContactPage,
			&socialJSON,
			&record.RawEvidence,
			&record.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}

		if len(socialJSON) > 0 {
			var social entity.Socials
			if err := json.Unmarshal(socialJSON, &social); err != nil {
				return nil, fmt.Errorf("unmarshal social: %w", err)
			}
			record.Social = &social
		}

		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return records, nil
}

func socialJSONOrNil(social *entity.Socials) (any, error) {
	if social == nil {
		return nil, nil
	}
	raw, err := json.Marshal(social)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}
