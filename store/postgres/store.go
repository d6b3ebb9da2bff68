// Package postgres provides a PostgreSQL-backed store using pgx, the
// recommended backend for multi-node deployments.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xraph/subledger"
	"github.com/xraph/subledger/event"
	"github.com/xraph/subledger/id"
	ledgerstore "github.com/xraph/subledger/store"
	"github.com/xraph/subledger/subscription"
	"github.com/xraph/subledger/tier"
	"github.com/xraph/subledger/types"
)

// compile-time interface check
var _ ledgerstore.Store = (*Store)(nil)

// Store implements store.Store over a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// New connects to the database at databaseURL and returns a Store.
func New(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("subledger/postgres: connect: %w", err)
	}
	return &Store{pool: pool}, nil
}

// NewWithPool wraps an existing pool, for callers that manage their own
// connection lifecycle.
func NewWithPool(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Pool returns the underlying connection pool for direct access.
func (s *Store) Pool() *pgxpool.Pool { return s.pool }

// Migrate applies the schema idempotently.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("%w: %v", subledger.ErrMigrationFailed, err)
		}
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// ==================== Roles ====================

func (s *Store) Roles(ctx context.Context) (ledgerstore.Roles, error) {
	var (
		roles         ledgerstore.Roles
		admin, minter string
	)
	err := s.pool.QueryRow(ctx,
		`SELECT admin, minter, paused FROM subledger_roles WHERE id = 1`,
	).Scan(&admin, &minter, &roles.Paused)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return roles, subledger.ErrStoreNotReady
		}
		return roles, err
	}

	if roles.Admin, err = id.Parse(admin); err != nil {
		return roles, err
	}
	if roles.Minter, err = id.Parse(minter); err != nil {
		return roles, err
	}
	return roles, nil
}

func (s *Store) SeedRoles(ctx context.Context, admin, minter id.Principal) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO subledger_roles (id, admin, minter, paused, updated_at)
		 VALUES (1, $1, $2, FALSE, now())
		 ON CONFLICT (id) DO NOTHING`,
		admin.String(), minter.String(),
	)
	return err
}

func (s *Store) SetAdmin(ctx context.Context, admin id.Principal) error {
	return s.updateRoles(ctx,
		`UPDATE subledger_roles SET admin = $1, updated_at = now() WHERE id = 1`,
		admin.String())
}

func (s *Store) SetMinter(ctx context.Context, minter id.Principal) error {
	return s.updateRoles(ctx,
		`UPDATE subledger_roles SET minter = $1, updated_at = now() WHERE id = 1`,
		minter.String())
}

func (s *Store) SetPaused(ctx context.Context, paused bool) error {
	return s.updateRoles(ctx,
		`UPDATE subledger_roles SET paused = $1, updated_at = now() WHERE id = 1`,
		paused)
}

func (s *Store) updateRoles(ctx context.Context, query string, value any) error {
	tag, err := s.pool.Exec(ctx, query, value)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return subledger.ErrStoreNotReady
	}
	return nil
}

// ==================== Balances & supply ====================

func (s *Store) Balance(ctx context.Context, acct id.Principal) (types.Amount, error) {
	var micro int64
	err := s.pool.QueryRow(ctx,
		`SELECT micro FROM subledger_balances WHERE account = $1`, acct.String(),
	).Scan(&micro)
	if errors.Is(err, pgx.ErrNoRows) {
		return types.Zero(), nil
	}
	if err != nil {
		return types.Zero(), err
	}
	return types.Micro(micro), nil
}

func (s *Store) TotalSupply(ctx context.Context) (types.Amount, error) {
	var micro int64
	err := s.pool.QueryRow(ctx, `SELECT micro FROM subledger_supply WHERE id = 1`).Scan(&micro)
	if errors.Is(err, pgx.ErrNoRows) {
		return types.Zero(), nil
	}
	if err != nil {
		return types.Zero(), err
	}
	return types.Micro(micro), nil
}

// ==================== Allowances ====================

func (s *Store) Allowance(ctx context.Context, owner, spender id.Principal) (types.Amount, error) {
	var micro int64
	err := s.pool.QueryRow(ctx,
		`SELECT micro FROM subledger_allowances WHERE owner = $1 AND spender = $2`,
		owner.String(), spender.String(),
	).Scan(&micro)
	if errors.Is(err, pgx.ErrNoRows) {
		return types.Zero(), nil
	}
	if err != nil {
		return types.Zero(), err
	}
	return types.Micro(micro), nil
}

func (s *Store) SetAllowance(ctx context.Context, owner, spender id.Principal, amount types.Amount) error {
	if amount.IsZero() {
		_, err := s.pool.Exec(ctx,
			`DELETE FROM subledger_allowances WHERE owner = $1 AND spender = $2`,
			owner.String(), spender.String(),
		)
		return err
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO subledger_allowances (owner, spender, micro) VALUES ($1, $2, $3)
		 ON CONFLICT (owner, spender) DO UPDATE SET micro = EXCLUDED.micro`,
		owner.String(), spender.String(), amount.Micro,
	)
	return err
}

// ==================== Composite ledger operations ====================

func (s *Store) Transfer(ctx context.Context, from, to id.Principal, amount types.Amount, spender *id.Principal) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		balance, err := txBalance(ctx, tx, from)
		if err != nil {
			return err
		}
		if balance.LessThan(amount) {
			return subledger.ErrInsufficientBalance
		}

		if spender != nil {
			var micro int64
			err := tx.QueryRow(ctx,
				`SELECT micro FROM subledger_allowances WHERE owner = $1 AND spender = $2 FOR UPDATE`,
				from.String(), spender.String(),
			).Scan(&micro)
			if errors.Is(err, pgx.ErrNoRows) {
				micro = 0
			} else if err != nil {
				return err
			}
			if types.Micro(micro).LessThan(amount) {
				return subledger.ErrInsufficientAllowance
			}

			remaining := micro - amount.Micro
			if remaining == 0 {
				_, err = tx.Exec(ctx,
					`DELETE FROM subledger_allowances WHERE owner = $1 AND spender = $2`,
					from.String(), spender.String(),
				)
			} else {
				_, err = tx.Exec(ctx,
					`UPDATE subledger_allowances SET micro = $1 WHERE owner = $2 AND spender = $3`,
					remaining, from.String(), spender.String(),
				)
			}
			if err != nil {
				return err
			}
		}

		if err := txCredit(ctx, tx, from, -amount.Micro); err != nil {
			return err
		}
		return txCredit(ctx, tx, to, amount.Micro)
	})
}

func (s *Store) Burn(ctx context.Context, acct id.Principal, amount types.Amount) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		return txBurn(ctx, tx, acct, amount)
	})
}

// ==================== Subscription records ====================

func (s *Store) Subscription(ctx context.Context, acct id.Principal) (*subscription.Record, error) {
	return scanSubscription(s.pool.QueryRow(ctx,
		`SELECT account, id, tier, start_height, duration, auto_renew, active, created_at, updated_at
		 FROM subledger_subscriptions WHERE account = $1`, acct.String(),
	))
}

func (s *Store) PutSubscription(ctx context.Context, rec *subscription.Record) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO subledger_subscriptions
		   (account, id, tier, start_height, duration, auto_renew, active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (account) DO UPDATE SET
		   id = EXCLUDED.id,
		   tier = EXCLUDED.tier,
		   start_height = EXCLUDED.start_height,
		   duration = EXCLUDED.duration,
		   auto_renew = EXCLUDED.auto_renew,
		   active = EXCLUDED.active,
		   updated_at = EXCLUDED.updated_at`,
		rec.Account.String(), rec.ID.String(), int16(rec.Tier),
		int64(rec.StartHeight), int64(rec.Duration),
		rec.AutoRenew, rec.Active,
		rec.CreatedAt.UTC(), rec.UpdatedAt.UTC(),
	)
	return err
}

func (s *Store) MintSubscription(ctx context.Context, rec *subscription.Record, amount types.Amount) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		var existing int
		err := tx.QueryRow(ctx,
			`SELECT COUNT(1) FROM subledger_subscriptions WHERE account = $1`,
			rec.Account.String(),
		).Scan(&existing)
		if err != nil {
			return err
		}
		if existing > 0 {
			return subledger.ErrAlreadySubscribed
		}

		if err := txCredit(ctx, tx, rec.Account, amount.Micro); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO subledger_supply (id, micro) VALUES (1, $1)
			 ON CONFLICT (id) DO UPDATE SET micro = subledger_supply.micro + EXCLUDED.micro`,
			amount.Micro,
		); err != nil {
			return err
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO subledger_subscriptions
			   (account, id, tier, start_height, duration, auto_renew, active, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			rec.Account.String(), rec.ID.String(), int16(rec.Tier),
			int64(rec.StartHeight), int64(rec.Duration),
			rec.AutoRenew, rec.Active,
			rec.CreatedAt.UTC(), rec.UpdatedAt.UTC(),
		)
		return err
	})
}

func (s *Store) CancelSubscription(ctx context.Context, acct id.Principal, burn types.Amount) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE subledger_subscriptions SET active = FALSE, updated_at = now() WHERE account = $1`,
			acct.String(),
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return subledger.ErrNoSubscription
		}

		return txBurn(ctx, tx, acct, burn)
	})
}

// ==================== Tier table ====================

func (s *Store) TierDuration(ctx context.Context, t tier.Tier) (uint64, error) {
	var duration int64
	err := s.pool.QueryRow(ctx,
		`SELECT duration FROM subledger_tiers WHERE tier = $1`, int16(t),
	).Scan(&duration)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, subledger.ErrInvalidTier
	}
	if err != nil {
		return 0, err
	}
	return uint64(duration), nil
}

func (s *Store) Tiers(ctx context.Context) (tier.Table, error) {
	rows, err := s.pool.Query(ctx, `SELECT tier, duration FROM subledger_tiers`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	table := make(tier.Table)
	for rows.Next() {
		var (
			t int16
			d int64
		)
		if err := rows.Scan(&t, &d); err != nil {
			return nil, err
		}
		table[tier.Tier(t)] = uint64(d)
	}
	return table, rows.Err()
}

func (s *Store) SeedTiers(ctx context.Context, table tier.Table) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		var existing int
		if err := tx.QueryRow(ctx, `SELECT COUNT(1) FROM subledger_tiers`).Scan(&existing); err != nil {
			return err
		}
		if existing > 0 {
			return nil
		}

		for t, d := range table {
			if _, err := tx.Exec(ctx,
				`INSERT INTO subledger_tiers (tier, duration) VALUES ($1, $2)`,
				int16(t), int64(d),
			); err != nil {
				return err
			}
		}
		return nil
	})
}

// ==================== Event log ====================

func (s *Store) AppendEvent(ctx context.Context, e *event.Event) error {
	var payload []byte
	if e.Payload != nil {
		var err error
		if payload, err = json.Marshal(e.Payload); err != nil {
			return err
		}
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO subledger_events (id, type, actor, height, payload, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		e.ID.String(), string(e.Type), e.Actor.String(), int64(e.Height),
		payload, e.CreatedAt.UTC(),
	)
	return err
}

func (s *Store) Events(ctx context.Context, opts event.QueryOpts) ([]*event.Event, error) {
	var (
		conds []string
		args  []any
	)
	if opts.Type != "" {
		args = append(args, string(opts.Type))
		conds = append(conds, fmt.Sprintf(`type = $%d`, len(args)))
	}
	if !opts.Actor.IsNil() {
		args = append(args, opts.Actor.String())
		conds = append(conds, fmt.Sprintf(`actor = $%d`, len(args)))
	}

	query := `SELECT id, type, actor, height, payload, created_at FROM subledger_events`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, ` AND `)
	}
	query += ` ORDER BY seq ASC`
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}
	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		query += fmt.Sprintf(` OFFSET $%d`, len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]*event.Event, 0)
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

// ==================== Helpers ====================

// inTx runs fn in a transaction, rolling back on any error so a
// composite operation never half-applies.
func (s *Store) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", subledger.ErrTransactionFailed, err)
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: %v", subledger.ErrTransactionFailed, err)
	}
	return nil
}

func txBalance(ctx context.Context, tx pgx.Tx, acct id.Principal) (types.Amount, error) {
	var micro int64
	err := tx.QueryRow(ctx,
		`SELECT micro FROM subledger_balances WHERE account = $1 FOR UPDATE`, acct.String(),
	).Scan(&micro)
	if errors.Is(err, pgx.ErrNoRows) {
		return types.Zero(), nil
	}
	if err != nil {
		return types.Zero(), err
	}
	return types.Micro(micro), nil
}

// txCredit adjusts an account balance by delta micro units, which may
// be negative for a debit.
func txCredit(ctx context.Context, tx pgx.Tx, acct id.Principal, delta int64) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO subledger_balances (account, micro) VALUES ($1, $2)
		 ON CONFLICT (account) DO UPDATE SET micro = subledger_balances.micro + EXCLUDED.micro`,
		acct.String(), delta,
	)
	return err
}

func txBurn(ctx context.Context, tx pgx.Tx, acct id.Principal, amount types.Amount) error {
	balance, err := txBalance(ctx, tx, acct)
	if err != nil {
		return err
	}
	if balance.LessThan(amount) {
		return subledger.ErrInsufficientBalance
	}

	if err := txCredit(ctx, tx, acct, -amount.Micro); err != nil {
		return err
	}
	_, err = tx.Exec(ctx,
		`UPDATE subledger_supply SET micro = micro - $1 WHERE id = 1`, amount.Micro,
	)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubscription(row rowScanner) (*subscription.Record, error) {
	var (
		rec            subscription.Record
		account, recID string
		t              int16
		start, dur     int64
	)
	err := row.Scan(&account, &recID, &t, &start, &dur,
		&rec.AutoRenew, &rec.Active, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, subledger.ErrNoSubscription
	}
	if err != nil {
		return nil, err
	}

	if rec.Account, err = id.Parse(account); err != nil {
		return nil, err
	}
	if rec.ID, err = id.Parse(recID); err != nil {
		return nil, err
	}
	rec.Tier = tier.Tier(t)
	rec.StartHeight = uint64(start)
	rec.Duration = uint64(dur)
	return &rec, nil
}

func scanEvent(row rowScanner) (*event.Event, error) {
	var (
		e            event.Event
		evtID, actor string
		typ          string
		height       int64
		payload      []byte
		createdAt    time.Time
	)
	if err := row.Scan(&evtID, &typ, &actor, &height, &payload, &createdAt); err != nil {
		return nil, err
	}

	var err error
	if e.ID, err = id.Parse(evtID); err != nil {
		return nil, err
	}
	e.Type = event.Type(typ)
	if e.Actor, err = id.Parse(actor); err != nil {
		return nil, err
	}
	e.Height = uint64(height)
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &e.Payload); err != nil {
			return nil, err
		}
	}
	e.CreatedAt = createdAt
	e.UpdatedAt = createdAt
	return &e, nil
}
