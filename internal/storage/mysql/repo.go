package mysql

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-sql-driver/mysql"

	"trustpilot_fetcher/internal/domain"
)

const duplicateKeyErrNo = 1062

type Repo struct{ db *sql.DB }

func New(db *sql.DB) *Repo { return &Repo{db: db} }

func isDuplicateKey(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == duplicateKeyErrNo
}

// parseTime accepts the date formats the target pages serve; anything
// unparseable is stored as NULL rather than failing the insert.
func parseTime(s string) any {
	if s == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return nil
}

func (r *Repo) UpsertBusiness(ctx context.Context, s domain.BusinessSnapshot) (int64, error) {
	res, err := r.db.ExecContext(ctx, upsertBusinessSQL,
		s.SourceURL,
		domain.GroupKey(s.SourceURL),
		domain.CleanBusinessTitle(s.DisplayName),
		s.AggregateRating,
		s.ReviewCount,
		s.BestRating,
		s.WorstRating,
		s.ScrapedAt.UTC(),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r *Repo) FindOrCreateGroup(ctx context.Context, groupKey string) (int64, error) {
	res, err := r.db.ExecContext(ctx, insertGroupSQL, groupKey)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r *Repo) SaveReview(ctx context.Context, businessID, groupID int64, rec domain.ReviewRecord) (int64, error) {
	var groupKey string
	if err := r.db.QueryRowContext(ctx, `SELECT group_key FROM business_groups WHERE id = ?`, groupID).Scan(&groupKey); err != nil {
		return 0, err
	}

	res, err := r.db.ExecContext(ctx, insertReviewSQL,
		businessID,
		groupID,
		groupKey,
		domain.ReviewHash(rec.ExternalID),
		rec.ExternalID,
		rec.Title,
		rec.Body,
		rec.Rating,
		rec.Author,
		parseTime(rec.PublishedAt),
	)
	if isDuplicateKey(err) {
		return 0, domain.ErrDuplicateReview
	}
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r *Repo) DeleteBusinessAndReviews(ctx context.Context, businessID int64) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var groupKey string
	err = tx.QueryRowContext(ctx, `SELECT group_key FROM businesses WHERE id = ?`, businessID).Scan(&groupKey)
	if err == sql.ErrNoRows {
		return 0, domain.ErrBusinessNotFound
	}
	if err != nil {
		return 0, err
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM reviews WHERE business_id = ?`, businessID)
	if err != nil {
		return 0, err
	}
	deleted, _ := res.RowsAffected()

	if _, err := tx.ExecContext(ctx, `DELETE FROM businesses WHERE id = ?`, businessID); err != nil {
		return 0, err
	}
	if _, err := tx.ExecContext(ctx, deleteOrphanGroupSQL, groupKey); err != nil {
		return 0, err
	}
	return int(deleted), tx.Commit()
}

func (r *Repo) RecordScrapeFailure(ctx context.Context, businessID int64, reason string) (int, error) {
	if _, err := r.db.ExecContext(ctx, recordFailureSQL, reason, businessID); err != nil {
		return 0, err
	}
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT failure_count FROM businesses WHERE id = ?`, businessID).Scan(&n)
	return n, err
}

func (r *Repo) ClearScrapeFailures(ctx context.Context, businessID int64) error {
	_, err := r.db.ExecContext(ctx, clearFailuresSQL, businessID)
	return err
}

func scanBusiness(row interface{ Scan(...any) error }) (domain.Business, error) {
	var (
		b           domain.Business
		lastScraped sql.NullTime
		lastError   sql.NullString
	)
	err := row.Scan(
		&b.ID,
		&b.SourceURL,
		&b.GroupKey,
		&b.DisplayName,
		&b.AggregateRating,
		&b.ReviewCount,
		&b.BestRating,
		&b.WorstRating,
		&lastScraped,
		&b.FailureCount,
		&lastError,
	)
	if err != nil {
		return domain.Business{}, err
	}
	if lastScraped.Valid {
		t := lastScraped.Time
		b.LastScrapedAt = &t
	}
	if lastError.Valid {
		s := lastError.String
		b.LastError = &s
	}
	return b, nil
}

func (r *Repo) GetBusiness(ctx context.Context, id int64) (domain.Business, error) {
	b, err := scanBusiness(r.db.QueryRowContext(ctx, getBusinessSQL, id))
	if err == sql.ErrNoRows {
		return domain.Business{}, domain.ErrBusinessNotFound
	}
	return b, err
}

func (r *Repo) FindByURL(ctx context.Context, sourceURL string) (domain.Business, error) {
	b, err := scanBusiness(r.db.QueryRowContext(ctx, findBusinessByURLSQL, sourceURL))
	if err == sql.ErrNoRows {
		return domain.Business{}, domain.ErrBusinessNotFound
	}
	return b, err
}

func (r *Repo) ListBusinesses(ctx context.Context) ([]domain.Business, error) {
	rows, err := r.db.QueryContext(ctx, listBusinessesSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Business
	for rows.Next() {
		b, err := scanBusiness(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *Repo) ListReviews(ctx context.Context, businessID int64, pg domain.PageQuery) (domain.ReviewsPage, error) {
	limit := pg.Limit
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, listReviewsSQL, businessID, limit)
	if err != nil {
		return domain.ReviewsPage{}, err
	}
	defer rows.Close()

	var out []domain.Review
	for rows.Next() {
		var (
			rv        domain.Review
			published sql.NullTime
		)
		if err := rows.Scan(
			&rv.ID,
			&rv.BusinessID,
			&rv.GroupKey,
			&rv.Hash,
			&rv.ExternalID,
			&rv.Title,
			&rv.Body,
			&rv.Rating,
			&rv.Author,
			&published,
		); err != nil {
			return domain.ReviewsPage{}, err
		}
		if published.Valid {
			rv.PublishedAt = published.Time.UTC().Format(time.RFC3339)
		}
		out = append(out, rv)
	}
	if err := rows.Err(); err != nil {
		return domain.ReviewsPage{}, err
	}
	return domain.ReviewsPage{Items: out}, nil
}
