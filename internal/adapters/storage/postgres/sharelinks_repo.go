package postgres

import (
	"context"
	"database/sql"
	"strings"

	"ehr-access/internal/domain/sharelinks"
	"ehr-access/internal/domain/sharetoken"
)

type ShareLinksRepo struct {
	db *sql.DB
}

func NewShareLinksRepo(db *sql.DB) *ShareLinksRepo {
	return &ShareLinksRepo{db: db}
}

func (r *ShareLinksRepo) Create(ctx context.Context, l sharelinks.ShareLink) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO share_links (
			id, scope_type, scope_id, issued_by, issued_at, expires_at, access_count
		) VALUES ($1,$2,$3,$4,$5,$6,$7)
	`,
		l.ID,
		string(l.ScopeType),
		l.ScopeID,
		l.IssuedBy,
		l.IssuedAt,
		l.ExpiresAt,
		l.AccessCount,
	)
	return err
}

func (r *ShareLinksRepo) GetByID(ctx context.Context, id string) (sharelinks.ShareLink, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return sharelinks.ShareLink{}, sharelinks.ErrRepoNotFound
	}

	row := r.db.QueryRowContext(ctx, `
		SELECT id, scope_type, scope_id, issued_by, issued_at, expires_at, access_count
		FROM share_links
		WHERE id = $1
	`, id)
	return scanShareLink(row)
}

func (r *ShareLinksRepo) ListByIssuer(ctx context.Context, issuerID string) ([]sharelinks.ShareLink, error) {
	issuerID = strings.TrimSpace(issuerID)
	if issuerID == "" {
		return nil, nil
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, scope_type, scope_id, issued_by, issued_at, expires_at, access_count
		FROM share_links
		WHERE issued_by = $1
		ORDER BY issued_at DESC
	`, issuerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectShareLinks(rows)
}

// IncrementAccess: increment-and-return en un solo statement + log de la
// redención, todo en una tx. Escaneos concurrentes no se pisan el contador.
func (r *ShareLinksRepo) IncrementAccess(ctx context.Context, id string, entry sharelinks.Redemption) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var count int64
	err = tx.QueryRowContext(ctx, `
		UPDATE share_links
		SET access_count = access_count + 1
		WHERE id = $1
		RETURNING access_count
	`, id).Scan(&count)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, sharelinks.ErrRepoNotFound
		}
		return 0, err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO share_link_redemptions (link_id, redeemed_by, redeemed_at)
		VALUES ($1,$2,$3)
	`, id, toNullString(entry.RedeemedBy), entry.RedeemedAt)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *ShareLinksRepo) ListRedeemedBy(ctx context.Context, userID string) ([]sharelinks.ShareLink, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, nil
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT l.id, l.scope_type, l.scope_id, l.issued_by, l.issued_at, l.expires_at, l.access_count
		FROM share_links l
		JOIN share_link_redemptions sr ON sr.link_id = l.id
		WHERE sr.redeemed_by = $1
		ORDER BY l.issued_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectShareLinks(rows)
}

func scanShareLink(row rowScanner) (sharelinks.ShareLink, error) {
	var l sharelinks.ShareLink
	var scope string

	if err := row.Scan(
		&l.ID,
		&scope,
		&l.ScopeID,
		&l.IssuedBy,
		&l.IssuedAt,
		&l.ExpiresAt,
		&l.AccessCount,
	); err != nil {
		if err == sql.ErrNoRows {
			return sharelinks.ShareLink{}, sharelinks.ErrRepoNotFound
		}
		return sharelinks.ShareLink{}, err
	}

	l.ScopeType = sharetoken.ScopeType(scope)
	return l, nil
}

func collectShareLinks(rows *sql.Rows) ([]sharelinks.ShareLink, error) {
	out := make([]sharelinks.ShareLink, 0)
	for rows.Next() {
		l, err := scanShareLink(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
