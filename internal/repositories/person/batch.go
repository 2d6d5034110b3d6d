package person

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/willow/pkg/database"
	"github.com/Ramsey-B/willow/pkg/models"
	"github.com/Ramsey-B/willow/pkg/tracing"
)

// coordKindCase renders the coord_kind recomputation for the upsert's SET
// list. Slot precedence matches the merge engine: death, then burial, then
// last seen.
func coordKindCase() string {
	merged := func(col string) string {
		return fmt.Sprintf("COALESCE(%s.%s, EXCLUDED.%s)", table, col, col)
	}
	slot := func(latCol, lngCol string, kind models.CoordKind) string {
		return fmt.Sprintf("WHEN %s IS NOT NULL AND %s IS NOT NULL THEN '%s'", merged(latCol), merged(lngCol), kind)
	}
	return fmt.Sprintf("CASE %s %s %s ELSE '%s' END",
		slot("death_lat", "death_lng", models.CoordKindDeath),
		slot("burial_lat", "burial_lng", models.CoordKindBurial),
		slot("last_seen_lat", "last_seen_lng", models.CoordKindLastSeen),
		models.CoordKindNone,
	)
}

// BatchUpsertByQID writes a page of rows in one statement, conflicting on
// wikidata_qid. On conflict the stored value wins and the incoming row only
// fills nulls, so a re-run of the same page is a no-op.
//
// Only safe for rows that carry a QID and no page id: the single conflict
// target cannot see a wikipedia_page_id collision, which must go through the
// merge engine's row-at-a-time path instead.
func (r *Repository) BatchUpsertByQID(ctx context.Context, persons []*models.Person) error {
	ctx, span := tracing.StartSpan(ctx, "person.Repository.BatchUpsertByQID")
	defer span.End()

	if len(persons) == 0 {
		return nil
	}

	now := time.Now().UTC()
	ib := database.NewInsertBuilder().InsertInto(table).Cols(columns...)
	for _, p := range persons {
		if p.ID == uuid.Nil {
			p.ID = uuid.New()
		}
		p.CreatedAt = now
		p.UpdatedAt = now
		ib.Values(
			p.ID, p.WikidataQID, p.WikipediaPageID, p.Title, p.Category,
			p.EventDate, p.EventYear,
			p.DeathLat, p.DeathLng, p.BurialLat, p.BurialLng, p.LastSeenLat, p.LastSeenLng,
			p.CoordKind, p.SourceURLs, p.Address, p.Summary, p.CrossRef,
			p.Published, p.MergedInto, p.CreatedAt, p.UpdatedAt,
		)
	}

	ub := ib.OnConflict("wikidata_qid")
	ub.Set(
		ub.Assign("title", database.KeepExisting(table, "title")),
		ub.Assign("event_date", database.KeepExisting(table, "event_date")),
		ub.Assign("event_year", database.KeepExisting(table, "event_year")),
		ub.Assign("death_lat", database.KeepExisting(table, "death_lat")),
		ub.Assign("death_lng", database.KeepExisting(table, "death_lng")),
		ub.Assign("burial_lat", database.KeepExisting(table, "burial_lat")),
		ub.Assign("burial_lng", database.KeepExisting(table, "burial_lng")),
		ub.Assign("last_seen_lat", database.KeepExisting(table, "last_seen_lat")),
		ub.Assign("last_seen_lng", database.KeepExisting(table, "last_seen_lng")),
		ub.Assign("address", database.KeepExisting(table, "address")),
		ub.Assign("summary", database.KeepExisting(table, "summary")),
		ub.Assign("cross_ref", database.KeepExisting(table, "cross_ref")),
		// A COALESCE fill can land coordinates on a row whose coord_kind still
		// says none, so the authoritative slot is recomputed from the merged
		// values in the same statement.
		ub.Assign("coord_kind", sqlbuilder.Raw(coordKindCase())),
		ub.Assign("updated_at", now),
	)

	query, args := ib.Build()

	ctx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"rows": len(persons),
		}).Error("Failed to batch upsert persons")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to batch upsert persons")
	}

	if err := tx.Commit(ctx); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to commit batch upsert")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to commit batch upsert")
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{"rows": len(persons)}).Info("Batch upserted persons")
	return nil
}
