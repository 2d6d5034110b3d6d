package person

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"
	"github.com/lib/pq"

	"github.com/Ramsey-B/willow/pkg/database"
	"github.com/Ramsey-B/willow/pkg/models"
	"github.com/Ramsey-B/willow/pkg/tracing"
)

const table = "persons"

var columns = []string{
	"id", "wikidata_qid", "wikipedia_page_id", "title", "category",
	"event_date", "event_year",
	"death_lat", "death_lng", "burial_lat", "burial_lng", "last_seen_lat", "last_seen_lng",
	"coord_kind", "source_urls", "address", "summary", "cross_ref",
	"published", "merged_into", "created_at", "updated_at",
}

// UniqueViolationError reports which unique constraint rejected a write. The
// merge engine switches to its collision fallback based on this.
type UniqueViolationError struct {
	Constraint string
}

func (e *UniqueViolationError) Error() string {
	return fmt.Sprintf("unique constraint %q violated", e.Constraint)
}

func uniqueViolation(err error) error {
	if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
		return &UniqueViolationError{Constraint: pqErr.Constraint}
	}
	return nil
}

// Repository handles person persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new person repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new person row. A unique key collision comes back as
// *UniqueViolationError so the caller can fall back to a patch.
func (r *Repository) Create(ctx context.Context, p *models.Person) (*models.Person, error) {
	ctx, span := tracing.StartSpan(ctx, "person.Repository.Create")
	defer span.End()

	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.CreatedAt = time.Now().UTC()
	p.UpdatedAt = p.CreatedAt

	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto(table)
	sb.Cols(columns...)
	sb.Values(
		p.ID, p.WikidataQID, p.WikipediaPageID, p.Title, p.Category,
		p.EventDate, p.EventYear,
		p.DeathLat, p.DeathLng, p.BurialLat, p.BurialLng, p.LastSeenLat, p.LastSeenLng,
		p.CoordKind, p.SourceURLs, p.Address, p.Summary, p.CrossRef,
		p.Published, p.MergedInto, p.CreatedAt, p.UpdatedAt,
	)

	query, args := sb.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		if uv := uniqueViolation(err); uv != nil {
			return nil, uv
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to create person")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to create person")
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{"id": p.ID.String(), "title": p.Title}).Info("Created person")
	return p, nil
}

// Get retrieves a person by store id.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*models.Person, error) {
	ctx, span := tracing.StartSpan(ctx, "person.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(table)
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()
	var p models.Person
	if err := r.db.GetContext(ctx, &p, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("person %s not found", id))
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get person")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get person")
	}

	return &p, nil
}

// GetByQID retrieves an unmerged person by Wikidata QID. A miss returns
// (nil, nil); the resolver treats that as NewEntity, not an error.
func (r *Repository) GetByQID(ctx context.Context, qid string) (*models.Person, error) {
	ctx, span := tracing.StartSpan(ctx, "person.Repository.GetByQID")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(table)
	sb.Where(
		sb.Equal("wikidata_qid", qid),
		sb.IsNull("merged_into"),
	)

	return r.getOne(ctx, sb)
}

// GetByPageID retrieves an unmerged person by Wikipedia page id. A miss
// returns (nil, nil).
func (r *Repository) GetByPageID(ctx context.Context, pageID int64) (*models.Person, error) {
	ctx, span := tracing.StartSpan(ctx, "person.Repository.GetByPageID")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(table)
	sb.Where(
		sb.Equal("wikipedia_page_id", pageID),
		sb.IsNull("merged_into"),
	)

	return r.getOne(ctx, sb)
}

func (r *Repository) getOne(ctx context.Context, sb *sqlbuilder.SelectBuilder) (*models.Person, error) {
	query, args := sb.Build()
	var p models.Person
	if err := r.db.GetContext(ctx, &p, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get person")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get person")
	}
	return &p, nil
}

// Update rewrites a person's mutable columns. The caller owns the field
// merge decisions; this just persists them.
func (r *Repository) Update(ctx context.Context, p *models.Person) (*models.Person, error) {
	ctx, span := tracing.StartSpan(ctx, "person.Repository.Update")
	defer span.End()

	p.UpdatedAt = time.Now().UTC()

	sb := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	sb.Update(table)
	sb.Set(
		sb.Assign("wikidata_qid", p.WikidataQID),
		sb.Assign("wikipedia_page_id", p.WikipediaPageID),
		sb.Assign("title", p.Title),
		sb.Assign("category", p.Category),
		sb.Assign("event_date", p.EventDate),
		sb.Assign("event_year", p.EventYear),
		sb.Assign("death_lat", p.DeathLat),
		sb.Assign("death_lng", p.DeathLng),
		sb.Assign("burial_lat", p.BurialLat),
		sb.Assign("burial_lng", p.BurialLng),
		sb.Assign("last_seen_lat", p.LastSeenLat),
		sb.Assign("last_seen_lng", p.LastSeenLng),
		sb.Assign("coord_kind", p.CoordKind),
		sb.Assign("source_urls", p.SourceURLs),
		sb.Assign("address", p.Address),
		sb.Assign("summary", p.Summary),
		sb.Assign("cross_ref", p.CrossRef),
		sb.Assign("published", p.Published),
		sb.Assign("updated_at", p.UpdatedAt),
	)
	sb.Where(sb.Equal("id", p.ID))

	query, args := sb.Build()
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		if uv := uniqueViolation(err); uv != nil {
			return nil, uv
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to update person")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to update person")
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("person %s not found", p.ID))
	}

	return p, nil
}

// SearchByTitle finds unmerged persons whose title contains the given
// fragment, optionally narrowed to event years within one of the hint. The
// resolver does its own scoring; this only bounds the candidate set.
func (r *Repository) SearchByTitle(ctx context.Context, fragment string, yearHint *int, limit int) ([]models.Person, error) {
	ctx, span := tracing.StartSpan(ctx, "person.Repository.SearchByTitle")
	defer span.End()

	if limit <= 0 {
		limit = 25
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(table)
	conds := []string{
		sb.Like("lower(title)", "%"+fragment+"%"),
		sb.IsNull("merged_into"),
	}
	if yearHint != nil {
		conds = append(conds, sb.Or(
			sb.IsNull("event_year"),
			sb.Between("event_year", *yearHint-1, *yearHint+1),
		))
	}
	sb.Where(conds...)
	sb.OrderBy("created_at ASC")
	sb.Limit(limit)

	query, args := sb.Build()
	var persons []models.Person
	if err := r.db.SelectContext(ctx, &persons, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to search persons by title")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to search persons")
	}

	return persons, nil
}

// List returns a page of unmerged persons ordered by creation time. Used by
// the enrichment job to walk the store.
func (r *Repository) List(ctx context.Context, offset, limit int) ([]models.Person, error) {
	ctx, span := tracing.StartSpan(ctx, "person.Repository.List")
	defer span.End()

	if limit <= 0 {
		limit = 100
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(table)
	sb.Where(sb.IsNull("merged_into"))
	sb.OrderBy("created_at ASC", "id ASC")
	sb.Offset(offset)
	sb.Limit(limit)

	query, args := sb.Build()
	var persons []models.Person
	if err := r.db.SelectContext(ctx, &persons, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list persons")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list persons")
	}

	return persons, nil
}

// MergeInto soft-merges the loser row into the winner. The loser keeps its
// data but leaves every read and resolution path.
func (r *Repository) MergeInto(ctx context.Context, loserID, winnerID uuid.UUID) error {
	ctx, span := tracing.StartSpan(ctx, "person.Repository.MergeInto")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	sb.Update(table)
	sb.Set(
		sb.Assign("merged_into", winnerID),
		sb.Assign("published", false),
		sb.Assign("updated_at", time.Now().UTC()),
	)
	sb.Where(
		sb.Equal("id", loserID),
		sb.IsNull("merged_into"),
	)

	query, args := sb.Build()
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to merge person")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to merge person")
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("person %s not found or already merged", loserID))
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"loser_id":  loserID.String(),
		"winner_id": winnerID.String(),
	}).Info("Merged person")
	return nil
}
