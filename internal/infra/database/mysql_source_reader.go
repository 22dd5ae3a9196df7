// internal/infra/database/mysql_source_reader.go
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"review_monitor/internal/domain/purchaselink"
	"review_monitor/internal/domain/review"

	sq "github.com/Masterminds/squirrel"
)

// ErrCandidateNotFound is returned by single-row lookups on the source.
var ErrCandidateNotFound = fmt.Errorf("review candidate not found in source")

// MySQLSourceReader reads review and purchase-link rows from the campaign database.
// The database stores naive local timestamps; offset converts between them and UTC.
type MySQLSourceReader struct {
	db      *sql.DB
	offset  time.Duration
	builder sq.StatementBuilderType
}

var (
	_ review.SourceReader = (*MySQLSourceReader)(nil)
	_ purchaselink.Source = (*MySQLSourceReader)(nil)
)

func NewMySQLSourceReader(db *sql.DB, utcOffset time.Duration) *MySQLSourceReader {
	return &MySQLSourceReader{
		db:      db,
		offset:  utcOffset,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Question),
	}
}

// candidates is the shared joined projection. Rows without a post link are never candidates.
func (r *MySQLSourceReader) candidates() sq.SelectBuilder {
	return r.builder.
		Select(
			"p.id",
			"p.cname",
			"p.review",
			"p.reviewRegisteredAt",
			"u.outerId",
			"comp.manager",
			"comp.name",
			"cc.requiredKeywords",
		).
		From("Propositions p").
		LeftJoin("Users u ON p.uid = u.uid").
		LeftJoin("ChannelCampaigns cc ON p.campaignId = cc.campaignId").
		LeftJoin("Campaigns c ON cc.campaignId = c.id").
		LeftJoin("Companies comp ON c.companyId = comp.id").
		Where("p.review IS NOT NULL").
		Where(sq.NotEq{"p.review": ""})
}

// ListRegisteredBetween returns reviews registered in (lower, upper], oldest first.
func (r *MySQLSourceReader) ListRegisteredBetween(ctx context.Context, lower, upper time.Time) ([]review.Candidate, error) {
	query, args, err := r.candidates().
		Where(sq.Gt{"p.reviewRegisteredAt": r.toSource(lower)}).
		Where(sq.LtOrEq{"p.reviewRegisteredAt": r.toSource(upper)}).
		OrderBy("p.reviewRegisteredAt ASC", "p.id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build candidate query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying review candidates: %w", err)
	}
	defer rows.Close()

	var out []review.Candidate
	for rows.Next() {
		c, err := r.scanCandidate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating review candidates: %w", err)
	}
	return out, nil
}

func (r *MySQLSourceReader) GetByID(ctx context.Context, naturalID int64) (*review.Candidate, error) {
	return r.getOne(ctx, r.candidates().Where(sq.Eq{"p.id": naturalID}))
}

func (r *MySQLSourceReader) GetByPostLink(ctx context.Context, postLink string) (*review.Candidate, error) {
	return r.getOne(ctx, r.candidates().Where(sq.Eq{"p.review": postLink}).OrderBy("p.id DESC"))
}

func (r *MySQLSourceReader) getOne(ctx context.Context, b sq.SelectBuilder) (*review.Candidate, error) {
	query, args, err := b.Limit(1).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build candidate lookup: %w", err)
	}
	c, err := r.scanCandidate(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrCandidateNotFound
		}
		return nil, err
	}
	return c, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *MySQLSourceReader) scanCandidate(row rowScanner) (*review.Candidate, error) {
	var (
		c            review.Candidate
		registeredAt sql.NullTime
	)
	err := row.Scan(
		&c.NaturalID, &c.CampaignName, &c.PostLink, &registeredAt,
		&c.BloggerID, &c.ManagerName, &c.CompanyName, &c.Keywords,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("error scanning review candidate: %w", err)
	}
	if registeredAt.Valid {
		c.RegisteredAt = r.fromSource(registeredAt.Time)
	}
	return &c, nil
}

// ListPurchaseLinkViolations returns responded propositions created since the given time
// whose channel campaign carries a purchase link the proposition is missing.
func (r *MySQLSourceReader) ListPurchaseLinkViolations(ctx context.Context, since time.Time) ([]purchaselink.Violation, error) {
	query, args, err := r.builder.
		Select("p.id", "p.cname", "p.campaignId", "cc.purchaseLink", "p.createdAt", "p.responsedAt").
		From("Propositions p").
		InnerJoin("ChannelCampaigns cc ON p.campaignId = cc.campaignId").
		Where("cc.purchaseLink IS NOT NULL").
		Where(sq.NotEq{"cc.purchaseLink": ""}).
		Where(sq.Or{sq.Eq{"p.purchaseLink": nil}, sq.Eq{"p.purchaseLink": ""}}).
		Where("p.responsedAt IS NOT NULL").
		Where(sq.GtOrEq{"p.createdAt": r.toSource(since)}).
		OrderBy("p.id DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build purchase link query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying purchase link violations: %w", err)
	}
	defer rows.Close()

	var out []purchaselink.Violation
	for rows.Next() {
		var v purchaselink.Violation
		if err := rows.Scan(&v.PropositionID, &v.CampaignName, &v.CampaignID, &v.ChannelPurchaseLink, &v.CreatedAt, &v.RespondedAt); err != nil {
			return nil, fmt.Errorf("error scanning purchase link violation: %w", err)
		}
		v.CreatedAt = r.fromSource(v.CreatedAt)
		v.RespondedAt = r.fromSource(v.RespondedAt)
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating purchase link violations: %w", err)
	}
	return out, nil
}

// toSource converts a UTC instant into the naive civil time the source stores.
func (r *MySQLSourceReader) toSource(t time.Time) time.Time {
	return t.UTC().Add(r.offset)
}

// fromSource converts a naive civil timestamp (parsed as UTC by the driver) to UTC.
func (r *MySQLSourceReader) fromSource(t time.Time) time.Time {
	return t.Add(-r.offset).UTC()
}
