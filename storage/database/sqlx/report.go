package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/kanisa/core/report"
)

type publicationRow struct {
	EventID     string      `db:"event_id"`
	IsPublished bool        `db:"is_published"`
	PublishedAt null.Time   `db:"published_at"`
	PublisherID null.String `db:"publisher_id"`
	Publisher   string      `db:"publisher"`
}

func (row publicationRow) toPublication() report.Publication {
	return report.Publication{
		EventID:     row.EventID,
		IsPublished: row.IsPublished,
		PublishedAt: row.PublishedAt,
		PublisherID: row.PublisherID,
		Publisher:   row.Publisher,
	}
}

type publicationRepository struct {
	db *sqlx.DB
}

var _ report.PublicationRepository = (*publicationRepository)(nil) // interface compliance check

func NewPublicationRepository(db *sqlx.DB) *publicationRepository {
	return &publicationRepository{db: db}
}

func (repo publicationRepository) GetPublication(ctx context.Context, eventID string) (report.Publication, error) {
	var row publicationRow
	err := repo.db.GetContext(ctx, &row, `
SELECT rp.event_id, rp.is_published, rp.published_at, rp.publisher_id,
       COALESCE(m.name, '') AS publisher
FROM report_publication rp
LEFT JOIN member m ON m.id = rp.publisher_id
WHERE rp.event_id = $1`, eventID)
	if err != nil {
		if err == sql.ErrNoRows {
			return report.Publication{}, report.ErrPublicationNotFound
		}
		return report.Publication{}, errors.Wrap(err, "finding publication")
	}
	return row.toPublication(), nil
}

// UpsertPublication is a single atomic write keyed by event id; concurrent
// publishes of the same event resolve last-writer-wins.
func (repo publicationRepository) UpsertPublication(ctx context.Context, pub report.Publication) (report.Publication, error) {
	_, err := repo.db.ExecContext(ctx, `
INSERT INTO report_publication (event_id, is_published, published_at, publisher_id)
VALUES ($1, $2, $3, $4)
ON CONFLICT (event_id) DO UPDATE
SET is_published = EXCLUDED.is_published,
    published_at = EXCLUDED.published_at,
    publisher_id = EXCLUDED.publisher_id`,
		pub.EventID, pub.IsPublished, pub.PublishedAt, pub.PublisherID)
	if err != nil {
		return report.Publication{}, errors.Wrap(err, "upserting publication")
	}
	return repo.GetPublication(ctx, pub.EventID)
}
