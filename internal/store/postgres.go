package store

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/bidstream/go-live-auctions/internal/auction"
)

// lockStripes bounds the in-process lock set. Two auctions hashing to the
// same stripe merely over-serialize; per-auction ordering still holds.
const lockStripes = 256

// Postgres is the durable Store. The auction row is locked with
// SELECT ... FOR UPDATE for the length of the unit; an in-process striped
// mutex additionally covers post-commit event delivery so one auction's
// events reach the sink in commit order.
type Postgres struct {
	db    *pgxpool.Pool
	sink  Sink
	locks [lockStripes]sync.Mutex
}

func NewPostgres(db *pgxpool.Pool, sink Sink) *Postgres {
	return &Postgres{db: db, sink: sink}
}

// InitSchema creates the tables if they do not exist yet.
func (s *Postgres) InitSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS auctions (
		id                VARCHAR(64) PRIMARY KEY,
		title             VARCHAR(255) NOT NULL,
		description       TEXT NOT NULL,
		starting_price    NUMERIC(10,2) NOT NULL CHECK (starting_price >= 0),
		reserve_price     NUMERIC(10,2),
		current_price     NUMERIC(10,2) NOT NULL CHECK (current_price >= 0),
		min_bid_increment NUMERIC(10,2) NOT NULL CHECK (min_bid_increment > 0),
		start_time        TIMESTAMPTZ NOT NULL,
		end_time          TIMESTAMPTZ NOT NULL CHECK (end_time > start_time),
		auto_extend_secs  BIGINT NOT NULL DEFAULT 300,
		status            VARCHAR(16) NOT NULL,
		seller_id         VARCHAR(64) NOT NULL,
		category_id       VARCHAR(64) NOT NULL,
		winner_id         VARCHAR(64),
		highest_bid_id    VARCHAR(64),
		created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
	);

	CREATE TABLE IF NOT EXISTS bids (
		id               VARCHAR(64) PRIMARY KEY,
		auction_id       VARCHAR(64) NOT NULL REFERENCES auctions(id) ON DELETE CASCADE,
		bidder_id        VARCHAR(64) NOT NULL,
		amount           NUMERIC(10,2) NOT NULL,
		status           VARCHAR(16) NOT NULL,
		rejection_reason VARCHAR(32) NOT NULL DEFAULT '',
		created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
	);

	CREATE TABLE IF NOT EXISTS auction_items (
		id          VARCHAR(64) PRIMARY KEY,
		auction_id  VARCHAR(64) NOT NULL REFERENCES auctions(id) ON DELETE CASCADE,
		name        VARCHAR(255) NOT NULL,
		description TEXT NOT NULL,
		condition   VARCHAR(100) NOT NULL DEFAULT '',
		quantity    INT NOT NULL CHECK (quantity > 0),
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	);

	CREATE INDEX IF NOT EXISTS idx_bids_auction_time ON bids(auction_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_auctions_status_time ON auctions(status, end_time);
	CREATE INDEX IF NOT EXISTS idx_items_auction ON auction_items(auction_id);
	`
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

const auctionCols = `id, title, description,
	starting_price::text, reserve_price::text, current_price::text, min_bid_increment::text,
	start_time, end_time, auto_extend_secs, status, seller_id, category_id,
	winner_id, highest_bid_id, created_at, updated_at`

func scanAuction(row pgx.Row) (*auction.Auction, error) {
	var (
		a                            auction.Auction
		starting, current, increment string
		reserve                      *string
		autoExtendSecs               int64
	)
	err := row.Scan(&a.ID, &a.Title, &a.Description,
		&starting, &reserve, &current, &increment,
		&a.StartTime, &a.EndTime, &autoExtendSecs, &a.Status, &a.SellerID, &a.CategoryID,
		&a.WinnerID, &a.HighestBidID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, auction.ErrAuctionNotFound
		}
		return nil, err
	}
	if a.StartingPrice, err = auction.ParseMoney(starting); err != nil {
		return nil, err
	}
	if a.CurrentPrice, err = auction.ParseMoney(current); err != nil {
		return nil, err
	}
	if a.MinBidIncrement, err = auction.ParseMoney(increment); err != nil {
		return nil, err
	}
	if reserve != nil {
		r, err := auction.ParseMoney(*reserve)
		if err != nil {
			return nil, err
		}
		a.ReservePrice = &r
	}
	a.AutoExtend = time.Duration(autoExtendSecs) * time.Second
	return &a, nil
}

func moneyArg(d decimal.Decimal) string { return d.StringFixed(2) }

func reserveArg(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.StringFixed(2)
	return &s
}

func (s *Postgres) CreateAuction(ctx context.Context, a *auction.Auction, items []auction.AuctionItem) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO auctions (id, title, description, starting_price, reserve_price,
			current_price, min_bid_increment, start_time, end_time, auto_extend_secs,
			status, seller_id, category_id, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$14)`,
		a.ID, a.Title, a.Description, moneyArg(a.StartingPrice), reserveArg(a.ReservePrice),
		moneyArg(a.CurrentPrice), moneyArg(a.MinBidIncrement), a.StartTime, a.EndTime,
		int64(a.AutoExtend/time.Second), a.Status, a.SellerID, a.CategoryID, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert auction: %w", err)
	}

	for i := range items {
		it := &items[i]
		_, err = tx.Exec(ctx, `
			INSERT INTO auction_items (id, auction_id, name, description, condition, quantity, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$7)`,
			it.ID, a.ID, it.Name, it.Description, it.Condition, it.Quantity, it.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert auction item: %w", err)
		}
	}
	return tx.Commit(ctx)
}

func (s *Postgres) GetAuction(ctx context.Context, id string) (*auction.Snapshot, error) {
	a, err := scanAuction(s.db.QueryRow(ctx, `SELECT `+auctionCols+` FROM auctions WHERE id=$1`, id))
	if err != nil {
		return nil, err
	}
	snap := &auction.Snapshot{Auction: *a}

	rows, err := s.db.Query(ctx, `
		SELECT id, auction_id, name, description, condition, quantity, created_at, updated_at
		FROM auction_items WHERE auction_id=$1 ORDER BY created_at`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var it auction.AuctionItem
		if err := rows.Scan(&it.ID, &it.AuctionID, &it.Name, &it.Description, &it.Condition,
			&it.Quantity, &it.CreatedAt, &it.UpdatedAt); err != nil {
			return nil, err
		}
		snap.Items = append(snap.Items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if a.HighestBidID != nil {
		b, err := s.getBid(ctx, s.db, *a.HighestBidID)
		if err != nil && !errors.Is(err, auction.ErrBidNotFound) {
			return nil, err
		}
		snap.HighestBid = b
	}
	return snap, nil
}

// rowQuerier is satisfied by both the pool and a transaction.
type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (s *Postgres) getBid(ctx context.Context, q rowQuerier, id string) (*auction.Bid, error) {
	var (
		b      auction.Bid
		amount string
	)
	err := q.QueryRow(ctx, `
		SELECT id, auction_id, bidder_id, amount::text, status, rejection_reason, created_at, updated_at
		FROM bids WHERE id=$1`, id).
		Scan(&b.ID, &b.AuctionID, &b.BidderID, &amount, &b.Status, &b.RejectionReason, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, auction.ErrBidNotFound
		}
		return nil, err
	}
	if b.Amount, err = auction.ParseMoney(amount); err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *Postgres) ListBids(ctx context.Context, auctionID string, limit int) ([]auction.Bid, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(ctx, `
		SELECT id, auction_id, bidder_id, amount::text, status, rejection_reason, created_at, updated_at
		FROM bids WHERE auction_id=$1 ORDER BY created_at DESC LIMIT $2`, auctionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []auction.Bid
	for rows.Next() {
		var (
			b      auction.Bid
			amount string
		)
		if err := rows.Scan(&b.ID, &b.AuctionID, &b.BidderID, &amount, &b.Status,
			&b.RejectionReason, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, err
		}
		if b.Amount, err = auction.ParseMoney(amount); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *Postgres) ListSweepable(ctx context.Context, now time.Time) ([]string, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id FROM auctions
		WHERE (status IN ('DRAFT','PENDING') AND start_time <= $1)
		   OR (status = 'ACTIVE' AND end_time < $1)
		ORDER BY id`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Postgres) lockFor(id string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return &s.locks[h.Sum32()%lockStripes]
}

func (s *Postgres) WithAuction(ctx context.Context, id string, fn func(tx Tx) error) error {
	mu := s.lockFor(id)
	mu.Lock()
	defer mu.Unlock()

	var events []auction.Event
	err := withRetry(ctx, func() error {
		events = events[:0]
		tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback(ctx) }()

		a, err := scanAuction(tx.QueryRow(ctx, `SELECT `+auctionCols+` FROM auctions WHERE id=$1 FOR UPDATE`, id))
		if err != nil {
			return err
		}

		ptx := &pgTx{ctx: ctx, store: s, tx: tx, current: a}
		if err := fn(ptx); err != nil {
			return err
		}
		if err := tx.Commit(ctx); err != nil {
			return err
		}
		events = ptx.events
		return nil
	})
	if err != nil {
		return err
	}
	if s.sink != nil {
		for _, ev := range events {
			s.sink.Deliver(ctx, ev)
		}
	}
	return nil
}

type pgTx struct {
	ctx     context.Context
	store   *Postgres
	tx      pgx.Tx
	current *auction.Auction
	events  []auction.Event
}

func (t *pgTx) Auction() *auction.Auction {
	a := *t.current
	return &a
}

func (t *pgTx) UpdateAuction(a *auction.Auction) error {
	_, err := t.tx.Exec(t.ctx, `
		UPDATE auctions SET title=$2, description=$3, current_price=$4, end_time=$5,
			status=$6, winner_id=$7, highest_bid_id=$8, updated_at=$9
		WHERE id=$1`,
		a.ID, a.Title, a.Description, moneyArg(a.CurrentPrice), a.EndTime,
		a.Status, a.WinnerID, a.HighestBidID, a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update auction: %w", err)
	}
	t.current = a
	return nil
}

func (t *pgTx) AppendBid(b *auction.Bid) error {
	_, err := t.tx.Exec(t.ctx, `
		INSERT INTO bids (id, auction_id, bidder_id, amount, status, rejection_reason, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		b.ID, b.AuctionID, b.BidderID, moneyArg(b.Amount), b.Status, b.RejectionReason, b.CreatedAt, b.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert bid: %w", err)
	}
	return nil
}

func (t *pgTx) GetBid(id string) (*auction.Bid, error) {
	return t.store.getBid(t.ctx, t.tx, id)
}

func (t *pgTx) CancelOpenBids() (int, error) {
	ct, err := t.tx.Exec(t.ctx, `
		UPDATE bids SET status=$2, updated_at=now()
		WHERE auction_id=$1 AND status IN ('PENDING','ACCEPTED')`,
		t.current.ID, auction.BidStatusCancelled)
	if err != nil {
		return 0, fmt.Errorf("cancel open bids: %w", err)
	}
	return int(ct.RowsAffected()), nil
}

func (t *pgTx) Record(ev auction.Event) {
	t.events = append(t.events, ev)
}
