// Package sqlite provides a SQLite-backed store using the pure-Go
// modernc.org/sqlite driver, suitable for single-node embedding without
// cgo.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

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

// Store implements store.Store over a SQLite database file.
type Store struct {
	db *sql.DB
}

// New opens (or creates) a SQLite database at path. Pass ":memory:"
// for an ephemeral database.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("subledger/sqlite: open %q: %w", path, err)
	}

	// SQLite permits one writer; funnel everything through a single
	// connection so busy errors never surface mid-transaction.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		`PRAGMA journal_mode = WAL`,
		`PRAGMA busy_timeout = 5000`,
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("subledger/sqlite: set pragma: %w", err)
		}
	}

	return &Store{db: db}, nil
}

// DB returns the underlying database handle for direct access.
func (s *Store) DB() *sql.DB { return s.db }

// Migrate applies the schema idempotently.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%w: %v", subledger.ErrMigrationFailed, err)
		}
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Roles ====================

func (s *Store) Roles(ctx context.Context) (ledgerstore.Roles, error) {
	var (
		roles          ledgerstore.Roles
		admin, minter  string
		paused         int
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT admin, minter, paused FROM roles WHERE id = 1`,
	).Scan(&admin, &minter, &paused)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
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
	roles.Paused = paused != 0

	return roles, nil
}

func (s *Store) SeedRoles(ctx context.Context, admin, minter id.Principal) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO roles (id, admin, minter, paused, updated_at)
		 VALUES (1, ?, ?, 0, ?)
		 ON CONFLICT (id) DO NOTHING`,
		admin.String(), minter.String(), now(),
	)
	return err
}

func (s *Store) SetAdmin(ctx context.Context, admin id.Principal) error {
	return s.updateRoles(ctx, `UPDATE roles SET admin = ?, updated_at = ? WHERE id = 1`, admin.String())
}

func (s *Store) SetMinter(ctx context.Context, minter id.Principal) error {
	return s.updateRoles(ctx, `UPDATE roles SET minter = ?, updated_at = ? WHERE id = 1`, minter.String())
}

func (s *Store) SetPaused(ctx context.Context, paused bool) error {
	return s.updateRoles(ctx, `UPDATE roles SET paused = ?, updated_at = ? WHERE id = 1`, boolInt(paused))
}

func (s *Store) updateRoles(ctx context.Context, query string, value any) error {
	res, err := s.db.ExecContext(ctx, query, value, now())
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return subledger.ErrStoreNotReady
	}
	return nil
}

// ==================== Balances & supply ====================

func (s *Store) Balance(ctx context.Context, acct id.Principal) (types.Amount, error) {
	var micro int64
	err := s.db.QueryRowContext(ctx,
		`SELECT micro FROM balances WHERE account = ?`, acct.String(),
	).Scan(&micro)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Zero(), nil
	}
	if err != nil {
		return types.Zero(), err
	}
	return types.Micro(micro), nil
}

func (s *Store) TotalSupply(ctx context.Context) (types.Amount, error) {
	var micro int64
	err := s.db.QueryRowContext(ctx, `SELECT micro FROM supply WHERE id = 1`).Scan(&micro)
	if errors.Is(err, sql.ErrNoRows) {
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
	err := s.db.QueryRowContext(ctx,
		`SELECT micro FROM allowances WHERE owner = ? AND spender = ?`,
		owner.String(), spender.String(),
	).Scan(&micro)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Zero(), nil
	}
	if err != nil {
		return types.Zero(), err
	}
	return types.Micro(micro), nil
}

func (s *Store) SetAllowance(ctx context.Context, owner, spender id.Principal, amount types.Amount) error {
	if amount.IsZero() {
		_, err := s.db.ExecContext(ctx,
			`DELETE FROM allowances WHERE owner = ? AND spender = ?`,
			owner.String(), spender.String(),
		)
		return err
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO allowances (owner, spender, micro) VALUES (?, ?, ?)
		 ON CONFLICT (owner, spender) DO UPDATE SET micro = excluded.micro`,
		owner.String(), spender.String(), amount.Micro,
	)
	return err
}

// ==================== Composite ledger operations ====================

func (s *Store) Transfer(ctx context.Context, from, to id.Principal, amount types.Amount, spender *id.Principal) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		balance, err := txBalance(ctx, tx, from)
		if err != nil {
			return err
		}
		if balance.LessThan(amount) {
			return subledger.ErrInsufficientBalance
		}

		if spender != nil {
			var micro int64
			err := tx.QueryRowContext(ctx,
				`SELECT micro FROM allowances WHERE owner = ? AND spender = ?`,
				from.String(), spender.String(),
			).Scan(&micro)
			if errors.Is(err, sql.ErrNoRows) {
				micro = 0
			} else if err != nil {
				return err
			}
			if types.Micro(micro).LessThan(amount) {
				return subledger.ErrInsufficientAllowance
			}

			remaining := micro - amount.Micro
			if remaining == 0 {
				_, err = tx.ExecContext(ctx,
					`DELETE FROM allowances WHERE owner = ? AND spender = ?`,
					from.String(), spender.String(),
				)
			} else {
				_, err = tx.ExecContext(ctx,
					`UPDATE allowances SET micro = ? WHERE owner = ? AND spender = ?`,
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
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return txBurn(ctx, tx, acct, amount)
	})
}

// ==================== Subscription records ====================

func (s *Store) Subscription(ctx context.Context, acct id.Principal) (*subscription.Record, error) {
	return scanSubscription(s.db.QueryRowContext(ctx,
		`SELECT account, id, tier, start_height, duration, auto_renew, active, created_at, updated_at
		 FROM subscriptions WHERE account = ?`, acct.String(),
	))
}

func (s *Store) PutSubscription(ctx context.Context, rec *subscription.Record) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO subscriptions
		   (account, id, tier, start_height, duration, auto_renew, active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (account) DO UPDATE SET
		   id = excluded.id,
		   tier = excluded.tier,
		   start_height = excluded.start_height,
		   duration = excluded.duration,
		   auto_renew = excluded.auto_renew,
		   active = excluded.active,
		   updated_at = excluded.updated_at`,
		rec.Account.String(), rec.ID.String(), int64(rec.Tier),
		int64(rec.StartHeight), int64(rec.Duration),
		boolInt(rec.AutoRenew), boolInt(rec.Active),
		rec.CreatedAt.UTC().Format(time.RFC3339Nano),
		rec.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	return err
}

func (s *Store) MintSubscription(ctx context.Context, rec *subscription.Record, amount types.Amount) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		var existing int
		err := tx.QueryRowContext(ctx,
			`SELECT COUNT(1) FROM subscriptions WHERE account = ?`, rec.Account.String(),
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
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO supply (id, micro) VALUES (1, ?)
			 ON CONFLICT (id) DO UPDATE SET micro = supply.micro + excluded.micro`,
			amount.Micro,
		); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO subscriptions
			   (account, id, tier, start_height, duration, auto_renew, active, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.Account.String(), rec.ID.String(), int64(rec.Tier),
			int64(rec.StartHeight), int64(rec.Duration),
			boolInt(rec.AutoRenew), boolInt(rec.Active),
			rec.CreatedAt.UTC().Format(time.RFC3339Nano),
			rec.UpdatedAt.UTC().Format(time.RFC3339Nano),
		)
		return err
	})
}

func (s *Store) CancelSubscription(ctx context.Context, acct id.Principal, burn types.Amount) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE subscriptions SET active = 0, updated_at = ? WHERE account = ?`,
			now(), acct.String(),
		)
		if err != nil {
			return err
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			return subledger.ErrNoSubscription
		}

		return txBurn(ctx, tx, acct, burn)
	})
}

// ==================== Tier table ====================

func (s *Store) TierDuration(ctx context.Context, t tier.Tier) (uint64, error) {
	var duration int64
	err := s.db.QueryRowContext(ctx,
		`SELECT duration FROM tiers WHERE tier = ?`, int64(t),
	).Scan(&duration)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, subledger.ErrInvalidTier
	}
	if err != nil {
		return 0, err
	}
	return uint64(duration), nil
}

func (s *Store) Tiers(ctx context.Context) (tier.Table, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT tier, duration FROM tiers`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	table := make(tier.Table)
	for rows.Next() {
		var t, d int64
		if err := rows.Scan(&t, &d); err != nil {
			return nil, err
		}
		table[tier.Tier(t)] = uint64(d)
	}
	return table, rows.Err()
}

func (s *Store) SeedTiers(ctx context.Context, table tier.Table) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		var existing int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM tiers`).Scan(&existing); err != nil {
			return err
		}
		if existing > 0 {
			return nil
		}

		for t, d := range table {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO tiers (tier, duration) VALUES (?, ?)`,
				int64(t), int64(d),
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

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO events (id, type, actor, height, payload, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID.String(), string(e.Type), e.Actor.String(), int64(e.Height),
		payload, e.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	return err
}

func (s *Store) Events(ctx context.Context, opts event.QueryOpts) ([]*event.Event, error) {
	query := `SELECT id, type, actor, height, payload, created_at FROM events`
	var (
		conds []string
		args  []any
	)
	if opts.Type != "" {
		conds = append(conds, `type = ?`)
		args = append(args, string(opts.Type))
	}
	if !opts.Actor.IsNil() {
		conds = append(conds, `actor = ?`)
		args = append(args, opts.Actor.String())
	}
	for i, c := range conds {
		if i == 0 {
			query += ` WHERE ` + c
		} else {
			query += ` AND ` + c
		}
	}
	query += ` ORDER BY seq ASC`
	if opts.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, opts.Limit)
	} else if opts.Offset > 0 {
		// SQLite requires a LIMIT clause to carry an OFFSET.
		query += ` LIMIT -1`
	}
	if opts.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, opts.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
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
func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", subledger.ErrTransactionFailed, err)
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %v", subledger.ErrTransactionFailed, err)
	}
	return nil
}

func txBalance(ctx context.Context, tx *sql.Tx, acct id.Principal) (types.Amount, error) {
	var micro int64
	err := tx.QueryRowContext(ctx,
		`SELECT micro FROM balances WHERE account = ?`, acct.String(),
	).Scan(&micro)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Zero(), nil
	}
	if err != nil {
		return types.Zero(), err
	}
	return types.Micro(micro), nil
}

// txCredit adjusts an account balance by delta micro units, which may
// be negative for a debit.
func txCredit(ctx context.Context, tx *sql.Tx, acct id.Principal, delta int64) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO balances (account, micro) VALUES (?, ?)
		 ON CONFLICT (account) DO UPDATE SET micro = balances.micro + excluded.micro`,
		acct.String(), delta,
	)
	return err
}

func txBurn(ctx context.Context, tx *sql.Tx, acct id.Principal, amount types.Amount) error {
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
	_, err = tx.ExecContext(ctx,
		`UPDATE supply SET micro = micro - ? WHERE id = 1`, amount.Micro,
	)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubscription(row rowScanner) (*subscription.Record, error) {
	var (
		rec                  subscription.Record
		account, recID       string
		t, start, duration   int64
		autoRenew, active    int
		createdAt, updatedAt string
	)
	err := row.Scan(&account, &recID, &t, &start, &duration, &autoRenew, &active, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
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
	rec.Duration = uint64(duration)
	rec.AutoRenew = autoRenew != 0
	rec.Active = active != 0
	if rec.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, err
	}
	if rec.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, err
	}
	return &rec, nil
}

func scanEvent(row rowScanner) (*event.Event, error) {
	var (
		e            event.Event
		evtID, actor string
		typ          string
		height       int64
		payload      []byte
		createdAt    string
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
	if e.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, err
	}
	e.UpdatedAt = e.CreatedAt
	return &e, nil
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
