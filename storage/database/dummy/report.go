package dummydb

import (
	"context"

	"github.com/trezcool/kanisa/core/report"
)

type publicationRepository struct {
	db *DB
}

var _ report.PublicationRepository = (*publicationRepository)(nil) // interface compliance check

func NewPublicationRepository(db *DB) report.PublicationRepository {
	return &publicationRepository{db: db}
}

func (repo *publicationRepository) GetPublication(ctx context.Context, eventID string) (report.Publication, error) {
	repo.db.publication.RLock()
	defer repo.db.publication.RUnlock()

	pub, ok := repo.db.publication.table[eventID]
	if !ok {
		return report.Publication{}, report.ErrPublicationNotFound
	}
	return repo.resolve(*pub), nil
}

func (repo *publicationRepository) UpsertPublication(ctx context.Context, pub report.Publication) (report.Publication, error) {
	repo.db.publication.Lock()
	defer repo.db.publication.Unlock()

	// last writer wins
	repo.db.publication.table[pub.EventID] = &pub
	return repo.resolve(pub), nil
}

// resolve fills the publisher name from the member table.
func (repo *publicationRepository) resolve(pub report.Publication) report.Publication {
	if pub.PublisherID.Valid {
		repo.db.member.RLock()
		if mbr, ok := repo.db.member.table[pub.PublisherID.String]; ok {
			pub.Publisher = mbr.Name
		}
		repo.db.member.RUnlock()
	}
	return pub
}
