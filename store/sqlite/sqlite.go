/*
Package sqlite provides a SQLite-backed implementation of the
ledger storage interfaces.

PURPOSE:
  Implements ledger.UnitOfWork and every per-entity store using
  SQLite. In production the same patterns apply to PostgreSQL - only
  minor SQL dialect differences.

ATOMICITY:
  WithTx wraps a *sql.Tx. Every orchestrator mutation runs inside one
  WithTx call, and SQLite's single-writer model plus the store mutex
  serialize concurrent atomic units, which closes the read-modify-write
  race on account balances. A conflict-class failure (SQLITE_BUSY /
  SQLITE_LOCKED) surfaces as ledger.StorageError with Conflict=true so
  callers can retry the whole operation.

BALANCE STORAGE:
  Account balances are stored as INTEGER minor units (cents, fen)
  keyed to the account currency's ISO exponent, so a balance change is
  one exact atomic increment:

    UPDATE accounts SET balance_minor = balance_minor + ? WHERE id = ?

  Transaction amounts keep their full decimal text form; only the
  denormalized balance column uses minor units.

HIERARCHY:
  accounts.parent_id carries NO foreign key on purpose. The one-level
  nesting rule is an orchestrator invariant, and cascading user
  removal may leave a foreign-owned child pointing at a removed
  parent; consumers treat an unresolvable parent as top-level.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) so readers never
  block on the single writer, and with foreign keys on for the
  user-ownership references.

USAGE:
  store, err := sqlite.New("./data/hearth.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  mut := ledger.NewMutator(store, notifier)

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - ledger/store.go: Interface definitions
  - ledger/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/hearthkeep/ledger-engine/ledger"
)

// Store implements ledger.UnitOfWork using SQLite.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Each pooled connection would otherwise open its own empty
		// in-memory database.
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS categories (
		id TEXT PRIMARY KEY,
		code TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL
	);

	-- Accounts hold the authoritative balance in INTEGER minor units
	-- so adjustments are exact atomic increments. parent_id carries no
	-- foreign key: the hierarchy is an orchestrator invariant, and a
	-- cascading user removal may leave a foreign child pointing at a
	-- removed parent.
	CREATE TABLE IF NOT EXISTS accounts (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id),
		name TEXT NOT NULL,
		type TEXT NOT NULL,
		balance_minor INTEGER NOT NULL DEFAULT 0,
		currency TEXT NOT NULL,
		parent_id TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_accounts_user ON accounts(user_id);
	CREATE INDEX IF NOT EXISTS idx_accounts_parent
		ON accounts(parent_id) WHERE parent_id IS NOT NULL;

	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		tx_type TEXT NOT NULL,
		amount TEXT NOT NULL,
		tx_date TEXT NOT NULL,
		description TEXT,
		category_id TEXT,
		account_id TEXT NOT NULL,
		target_account_id TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Hot path: deletion constraints and per-account listings look up
	-- by source or target account.
	CREATE INDEX IF NOT EXISTS idx_transactions_account
		ON transactions(account_id);
	CREATE INDEX IF NOT EXISTS idx_transactions_target
		ON transactions(target_account_id) WHERE target_account_id IS NOT NULL;
	CREATE INDEX IF NOT EXISTS idx_transactions_user
		ON transactions(user_id);

	CREATE TABLE IF NOT EXISTS asset_types (
		code TEXT PRIMARY KEY,
		name TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS assets (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		type_code TEXT NOT NULL,
		name TEXT NOT NULL,
		quantity TEXT NOT NULL,
		unit_cost TEXT NOT NULL,
		currency TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_assets_user ON assets(user_id);

	CREATE TABLE IF NOT EXISTS budgets (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		category_id TEXT,
		amount TEXT NOT NULL,
		period TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_budgets_user ON budgets(user_id);

	CREATE TABLE IF NOT EXISTS items (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		value TEXT NOT NULL,
		currency TEXT NOT NULL,
		acquired_at TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// UNIT OF WORK
// =============================================================================

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) Users() ledger.UserStore               { return userStore{s.db} }
func (s *Store) Categories() ledger.CategoryStore      { return categoryStore{s.db} }
func (s *Store) Accounts() ledger.AccountStore         { return accountStore{s.db} }
func (s *Store) Transactions() ledger.TransactionStore { return transactionStore{s.db} }
func (s *Store) Assets() ledger.AssetStore             { return assetStore{s.db} }
func (s *Store) Budgets() ledger.BudgetStore           { return budgetStore{s.db} }
func (s *Store) Items() ledger.ItemStore               { return itemStore{s.db} }

type txStores struct{ q dbtx }

func (t txStores) Users() ledger.UserStore               { return userStore{t.q} }
func (t txStores) Categories() ledger.CategoryStore      { return categoryStore{t.q} }
func (t txStores) Accounts() ledger.AccountStore         { return accountStore{t.q} }
func (t txStores) Transactions() ledger.TransactionStore { return transactionStore{t.q} }
func (t txStores) Assets() ledger.AssetStore             { return assetStore{t.q} }
func (t txStores) Budgets() ledger.BudgetStore           { return budgetStore{t.q} }
func (t txStores) Items() ledger.ItemStore               { return itemStore{t.q} }

// WithTx executes fn within a database transaction. If fn returns an
// error the transaction is rolled back and nothing fn wrote is
// visible.
func (s *Store) WithTx(ctx context.Context, fn func(ledger.Stores) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr("begin", err)
	}
	defer sqlTx.Rollback()

	if err := fn(txStores{q: sqlTx}); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return storageErr("commit", err)
	}
	return nil
}

// =============================================================================
// ACCOUNT STORE
// =============================================================================

type accountStore struct{ q dbtx }

const accountColumns = `id, user_id, name, type, balance_minor, currency, parent_id, created_at, updated_at`

func (s accountStore) Get(ctx context.Context, id ledger.AccountID) (*ledger.Account, error) {
	row := s.q.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id)
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("accounts.get", err)
	}
	return a, nil
}

func (s accountStore) Create(ctx context.Context, a *ledger.Account) error {
	minor, err := toMinor(a.Balance, a.Currency)
	if err != nil {
		return err
	}
	_, err = s.q.ExecContext(ctx, `
		INSERT INTO accounts (id, user_id, name, type, balance_minor, currency, parent_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.UserID, a.Name, a.Type, minor, a.Currency,
		nullableID(a.ParentID),
		a.CreatedAt.Format(time.RFC3339), a.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return storageErr("accounts.create", err)
	}
	return nil
}

func (s accountStore) Update(ctx context.Context, a *ledger.Account) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE accounts SET name = ?, type = ?, updated_at = ? WHERE id = ?`,
		a.Name, a.Type, time.Now().UTC().Format(time.RFC3339), a.ID,
	)
	if err != nil {
		return storageErr("accounts.update", err)
	}
	return requireRow(res, "account", string(a.ID))
}

// AdjustBalance issues a single atomic increment against the stored
// balance, in the account currency's minor units.
func (s accountStore) AdjustBalance(ctx context.Context, id ledger.AccountID, delta decimal.Decimal) error {
	var currency string
	err := s.q.QueryRowContext(ctx,
		`SELECT currency FROM accounts WHERE id = ?`, id).Scan(&currency)
	if errors.Is(err, sql.ErrNoRows) {
		return &ledger.NotFoundError{Kind: "account", ID: string(id)}
	}
	if err != nil {
		return storageErr("accounts.adjust", err)
	}

	minor, err := toMinor(delta, currency)
	if err != nil {
		return err
	}
	res, err := s.q.ExecContext(ctx, `
		UPDATE accounts SET balance_minor = balance_minor + ?, updated_at = ? WHERE id = ?`,
		minor, time.Now().UTC().Format(time.RFC3339), id,
	)
	if err != nil {
		return storageErr("accounts.adjust", err)
	}
	return requireRow(res, "account", string(id))
}

func (s accountStore) SetParent(ctx context.Context, id ledger.AccountID, parentID *ledger.AccountID) error {
	res, err := s.q.ExecContext(ctx,
		`UPDATE accounts SET parent_id = ?, updated_at = ? WHERE id = ?`,
		nullableID(parentID), time.Now().UTC().Format(time.RFC3339), id,
	)
	if err != nil {
		return storageErr("accounts.set_parent", err)
	}
	return requireRow(res, "account", string(id))
}

func (s accountStore) ClearParents(ctx context.Context, userID ledger.UserID) error {
	_, err := s.q.ExecContext(ctx,
		`UPDATE accounts SET parent_id = NULL WHERE user_id = ? AND parent_id IS NOT NULL`, userID)
	if err != nil {
		return storageErr("accounts.clear_parents", err)
	}
	return nil
}

func (s accountStore) Delete(ctx context.Context, id ledger.AccountID) error {
	_, err := s.q.ExecContext(ctx, `DELETE FROM accounts WHERE id = ?`, id)
	if err != nil {
		return storageErr("accounts.delete", err)
	}
	return nil
}

func (s accountStore) DeleteByUser(ctx context.Context, userID ledger.UserID) error {
	_, err := s.q.ExecContext(ctx, `DELETE FROM accounts WHERE user_id = ?`, userID)
	if err != nil {
		return storageErr("accounts.delete_by_user", err)
	}
	return nil
}

func (s accountStore) ListByUser(ctx context.Context, userID ledger.UserID) ([]ledger.Account, error) {
	return s.query(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE user_id = ? ORDER BY id`, userID)
}

func (s accountStore) ListChildren(ctx context.Context, parentID ledger.AccountID) ([]ledger.Account, error) {
	return s.query(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE parent_id = ? ORDER BY id`, parentID)
}

func (s accountStore) query(ctx context.Context, query string, args ...any) ([]ledger.Account, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr("accounts.list", err)
	}
	defer rows.Close()

	var out []ledger.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, storageErr("accounts.list", err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*ledger.Account, error) {
	var (
		a         ledger.Account
		minor     int64
		parentID  sql.NullString
		createdAt string
		updatedAt string
	)
	err := row.Scan(&a.ID, &a.UserID, &a.Name, &a.Type, &minor, &a.Currency,
		&parentID, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	a.Balance = fromMinor(minor, a.Currency)
	if parentID.Valid {
		p := ledger.AccountID(parentID.String)
		a.ParentID = &p
	}
	a.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	a.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &a, nil
}

// =============================================================================
// TRANSACTION STORE
// =============================================================================

type transactionStore struct{ q dbtx }

const transactionColumns = `id, user_id, tx_type, amount, tx_date, description, category_id, account_id, target_account_id, created_at, updated_at`

func (s transactionStore) Get(ctx context.Context, id ledger.TransactionID) (*ledger.Transaction, error) {
	row := s.q.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id)
	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("transactions.get", err)
	}
	return tx, nil
}

func (s transactionStore) Create(ctx context.Context, tx *ledger.Transaction) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO transactions (id, user_id, tx_type, amount, tx_date, description, category_id, account_id, target_account_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.ID, tx.UserID, tx.Type, tx.Amount.String(),
		tx.Date.UTC().Format(time.RFC3339),
		nullString(tx.Description),
		nullableCategory(tx.CategoryID),
		tx.AccountID,
		nullableID(tx.TargetAccountID),
		tx.CreatedAt.Format(time.RFC3339), tx.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return storageErr("transactions.create", err)
	}
	return nil
}

func (s transactionStore) Update(ctx context.Context, tx *ledger.Transaction) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE transactions
		SET tx_type = ?, amount = ?, tx_date = ?, description = ?, category_id = ?,
		    account_id = ?, target_account_id = ?, updated_at = ?
		WHERE id = ?`,
		tx.Type, tx.Amount.String(),
		tx.Date.UTC().Format(time.RFC3339),
		nullString(tx.Description),
		nullableCategory(tx.CategoryID),
		tx.AccountID,
		nullableID(tx.TargetAccountID),
		tx.UpdatedAt.Format(time.RFC3339),
		tx.ID,
	)
	if err != nil {
		return storageErr("transactions.update", err)
	}
	return requireRow(res, "transaction", string(tx.ID))
}

func (s transactionStore) Delete(ctx context.Context, id ledger.TransactionID) error {
	_, err := s.q.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return storageErr("transactions.delete", err)
	}
	return nil
}

func (s transactionStore) DeleteByUser(ctx context.Context, userID ledger.UserID) error {
	_, err := s.q.ExecContext(ctx, `DELETE FROM transactions WHERE user_id = ?`, userID)
	if err != nil {
		return storageErr("transactions.delete_by_user", err)
	}
	return nil
}

func (s transactionStore) ListByAccount(ctx context.Context, accountID ledger.AccountID) ([]ledger.Transaction, error) {
	return s.query(ctx, `
		SELECT `+transactionColumns+` FROM transactions
		WHERE account_id = ? OR target_account_id = ?
		ORDER BY tx_date ASC, created_at ASC`, accountID, accountID)
}

func (s transactionStore) ListByUser(ctx context.Context, userID ledger.UserID) ([]ledger.Transaction, error) {
	return s.query(ctx, `
		SELECT `+transactionColumns+` FROM transactions
		WHERE user_id = ?
		ORDER BY tx_date ASC, created_at ASC`, userID)
}

func (s transactionStore) CountByAccount(ctx context.Context, accountID ledger.AccountID) (int, error) {
	var count int
	err := s.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transactions WHERE account_id = ? OR target_account_id = ?`,
		accountID, accountID,
	).Scan(&count)
	if err != nil {
		return 0, storageErr("transactions.count", err)
	}
	return count, nil
}

func (s transactionStore) query(ctx context.Context, query string, args ...any) ([]ledger.Transaction, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr("transactions.list", err)
	}
	defer rows.Close()

	var out []ledger.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, storageErr("transactions.list", err)
		}
		out = append(out, *tx)
	}
	return out, rows.Err()
}

func scanTransaction(row rowScanner) (*ledger.Transaction, error) {
	var (
		tx          ledger.Transaction
		amount      string
		txDate      string
		description sql.NullString
		categoryID  sql.NullString
		targetID    sql.NullString
		createdAt   string
		updatedAt   string
	)
	err := row.Scan(&tx.ID, &tx.UserID, &tx.Type, &amount, &txDate,
		&description, &categoryID, &tx.AccountID, &targetID, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	tx.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("corrupt amount %q on transaction %s: %w", amount, tx.ID, err)
	}
	tx.Date, _ = time.Parse(time.RFC3339, txDate)
	tx.Description = description.String
	if categoryID.Valid {
		c := ledger.CategoryID(categoryID.String)
		tx.CategoryID = &c
	}
	if targetID.Valid {
		t := ledger.AccountID(targetID.String)
		tx.TargetAccountID = &t
	}
	tx.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	tx.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &tx, nil
}

// =============================================================================
// USER STORE
// =============================================================================

type userStore struct{ q dbtx }

func (s userStore) Get(ctx context.Context, id ledger.UserID) (*ledger.User, error) {
	return s.getBy(ctx, `SELECT id, email, name, created_at FROM users WHERE id = ?`, id)
}

func (s userStore) GetByEmail(ctx context.Context, email string) (*ledger.User, error) {
	return s.getBy(ctx, `SELECT id, email, name, created_at FROM users WHERE email = ?`, email)
}

func (s userStore) getBy(ctx context.Context, query string, arg any) (*ledger.User, error) {
	var (
		u         ledger.User
		createdAt string
	)
	err := s.q.QueryRowContext(ctx, query, arg).Scan(&u.ID, &u.Email, &u.Name, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("users.get", err)
	}
	u.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &u, nil
}

func (s userStore) Create(ctx context.Context, u *ledger.User) error {
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO users (id, email, name, created_at) VALUES (?, ?, ?, ?)`,
		u.ID, u.Email, u.Name, u.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return storageErr("users.create", err)
	}
	return nil
}

func (s userStore) Delete(ctx context.Context, id ledger.UserID) error {
	_, err := s.q.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return storageErr("users.delete", err)
	}
	return nil
}

func (s userStore) List(ctx context.Context) ([]ledger.User, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT id, email, name, created_at FROM users ORDER BY id`)
	if err != nil {
		return nil, storageErr("users.list", err)
	}
	defer rows.Close()

	var out []ledger.User
	for rows.Next() {
		var (
			u         ledger.User
			createdAt string
		)
		if err := rows.Scan(&u.ID, &u.Email, &u.Name, &createdAt); err != nil {
			return nil, storageErr("users.list", err)
		}
		u.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		out = append(out, u)
	}
	return out, rows.Err()
}

// =============================================================================
// CATEGORY STORE
// =============================================================================

type categoryStore struct{ q dbtx }

func (s categoryStore) Get(ctx context.Context, id ledger.CategoryID) (*ledger.Category, error) {
	return s.getBy(ctx, `SELECT id, code, name FROM categories WHERE id = ?`, id)
}

func (s categoryStore) GetByCode(ctx context.Context, code string) (*ledger.Category, error) {
	return s.getBy(ctx, `SELECT id, code, name FROM categories WHERE code = ?`, code)
}

func (s categoryStore) getBy(ctx context.Context, query string, arg any) (*ledger.Category, error) {
	var c ledger.Category
	err := s.q.QueryRowContext(ctx, query, arg).Scan(&c.ID, &c.Code, &c.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("categories.get", err)
	}
	return &c, nil
}

func (s categoryStore) Create(ctx context.Context, c *ledger.Category) error {
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO categories (id, code, name) VALUES (?, ?, ?)`, c.ID, c.Code, c.Name)
	if err != nil {
		return storageErr("categories.create", err)
	}
	return nil
}

func (s categoryStore) List(ctx context.Context) ([]ledger.Category, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT id, code, name FROM categories ORDER BY code`)
	if err != nil {
		return nil, storageErr("categories.list", err)
	}
	defer rows.Close()

	var out []ledger.Category
	for rows.Next() {
		var c ledger.Category
		if err := rows.Scan(&c.ID, &c.Code, &c.Name); err != nil {
			return nil, storageErr("categories.list", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// =============================================================================
// ASSET STORE
// =============================================================================

type assetStore struct{ q dbtx }

func (s assetStore) Create(ctx context.Context, a *ledger.Asset) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO assets (id, user_id, type_code, name, quantity, unit_cost, currency)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.UserID, a.TypeCode, a.Name,
		a.Quantity.String(), a.UnitCost.String(), a.Currency)
	if err != nil {
		return storageErr("assets.create", err)
	}
	return nil
}

func (s assetStore) ListByUser(ctx context.Context, userID ledger.UserID) ([]ledger.Asset, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, user_id, type_code, name, quantity, unit_cost, currency
		FROM assets WHERE user_id = ? ORDER BY id`, userID)
	if err != nil {
		return nil, storageErr("assets.list", err)
	}
	defer rows.Close()

	var out []ledger.Asset
	for rows.Next() {
		var (
			a        ledger.Asset
			quantity string
			unitCost string
		)
		if err := rows.Scan(&a.ID, &a.UserID, &a.TypeCode, &a.Name, &quantity, &unitCost, &a.Currency); err != nil {
			return nil, storageErr("assets.list", err)
		}
		a.Quantity, _ = decimal.NewFromString(quantity)
		a.UnitCost, _ = decimal.NewFromString(unitCost)
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s assetStore) DeleteByUser(ctx context.Context, userID ledger.UserID) error {
	_, err := s.q.ExecContext(ctx, `DELETE FROM assets WHERE user_id = ?`, userID)
	if err != nil {
		return storageErr("assets.delete_by_user", err)
	}
	return nil
}

func (s assetStore) GetType(ctx context.Context, code string) (*ledger.AssetType, error) {
	var t ledger.AssetType
	err := s.q.QueryRowContext(ctx,
		`SELECT code, name FROM asset_types WHERE code = ?`, code).Scan(&t.Code, &t.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("asset_types.get", err)
	}
	return &t, nil
}

func (s assetStore) CreateType(ctx context.Context, t *ledger.AssetType) error {
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO asset_types (code, name) VALUES (?, ?)`, t.Code, t.Name)
	if err != nil {
		return storageErr("asset_types.create", err)
	}
	return nil
}

func (s assetStore) ListTypes(ctx context.Context) ([]ledger.AssetType, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT code, name FROM asset_types ORDER BY code`)
	if err != nil {
		return nil, storageErr("asset_types.list", err)
	}
	defer rows.Close()

	var out []ledger.AssetType
	for rows.Next() {
		var t ledger.AssetType
		if err := rows.Scan(&t.Code, &t.Name); err != nil {
			return nil, storageErr("asset_types.list", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// =============================================================================
// BUDGET STORE
// =============================================================================

type budgetStore struct{ q dbtx }

func (s budgetStore) Create(ctx context.Context, b *ledger.Budget) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO budgets (id, user_id, category_id, amount, period)
		VALUES (?, ?, ?, ?, ?)`,
		b.ID, b.UserID, nullableCategory(b.CategoryID), b.Amount.String(), b.Period)
	if err != nil {
		return storageErr("budgets.create", err)
	}
	return nil
}

func (s budgetStore) ListByUser(ctx context.Context, userID ledger.UserID) ([]ledger.Budget, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, user_id, category_id, amount, period
		FROM budgets WHERE user_id = ? ORDER BY id`, userID)
	if err != nil {
		return nil, storageErr("budgets.list", err)
	}
	defer rows.Close()

	var out []ledger.Budget
	for rows.Next() {
		var (
			b          ledger.Budget
			categoryID sql.NullString
			amount     string
		)
		if err := rows.Scan(&b.ID, &b.UserID, &categoryID, &amount, &b.Period); err != nil {
			return nil, storageErr("budgets.list", err)
		}
		if categoryID.Valid {
			c := ledger.CategoryID(categoryID.String)
			b.CategoryID = &c
		}
		b.Amount, _ = decimal.NewFromString(amount)
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s budgetStore) DeleteByUser(ctx context.Context, userID ledger.UserID) error {
	_, err := s.q.ExecContext(ctx, `DELETE FROM budgets WHERE user_id = ?`, userID)
	if err != nil {
		return storageErr("budgets.delete_by_user", err)
	}
	return nil
}

// =============================================================================
// ITEM STORE
// =============================================================================

type itemStore struct{ q dbtx }

func (s itemStore) Create(ctx context.Context, it *ledger.Item) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO items (id, name, value, currency, acquired_at)
		VALUES (?, ?, ?, ?, ?)`,
		it.ID, it.Name, it.Value.String(), it.Currency,
		it.AcquiredAt.UTC().Format(time.RFC3339))
	if err != nil {
		return storageErr("items.create", err)
	}
	return nil
}

func (s itemStore) List(ctx context.Context) ([]ledger.Item, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT id, name, value, currency, acquired_at FROM items ORDER BY id`)
	if err != nil {
		return nil, storageErr("items.list", err)
	}
	defer rows.Close()

	var out []ledger.Item
	for rows.Next() {
		var (
			it         ledger.Item
			value      string
			acquiredAt string
		)
		if err := rows.Scan(&it.ID, &it.Name, &value, &it.Currency, &acquiredAt); err != nil {
			return nil, storageErr("items.list", err)
		}
		it.Value, _ = decimal.NewFromString(value)
		it.AcquiredAt, _ = time.Parse(time.RFC3339, acquiredAt)
		out = append(out, it)
	}
	return out, rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

// toMinor converts a decimal amount to integer minor units for the
// currency. Amounts carrying more precision than the currency allows
// were rejected by validation; a mismatch here means corrupt input.
func toMinor(d decimal.Decimal, currency string) (int64, error) {
	shifted := d.Shift(int32(ledger.CurrencyExponentFor(currency)))
	if !shifted.IsInteger() {
		return 0, &ledger.ValidationError{
			Field:  "amount",
			Reason: fmt.Sprintf("%s exceeds %s minor-unit precision", d, currency),
		}
	}
	return shifted.IntPart(), nil
}

func fromMinor(minor int64, currency string) decimal.Decimal {
	return decimal.New(minor, -int32(ledger.CurrencyExponentFor(currency)))
}

func nullableID(id *ledger.AccountID) sql.NullString {
	if id == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*id), Valid: true}
}

func nullableCategory(id *ledger.CategoryID) sql.NullString {
	if id == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*id), Valid: true}
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// requireRow converts a zero-row UPDATE into a NotFoundError.
func requireRow(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return storageErr(kind+".rows", err)
	}
	if n == 0 {
		return &ledger.NotFoundError{Kind: kind, ID: id}
	}
	return nil
}

// storageErr wraps a driver error in the ledger taxonomy, marking
// SQLITE_BUSY / SQLITE_LOCKED as retryable conflicts.
func storageErr(op string, err error) error {
	var se sqlite3.Error
	if errors.As(err, &se) {
		switch {
		case se.Code == sqlite3.ErrBusy || se.Code == sqlite3.ErrLocked:
			return &ledger.StorageError{Op: op, Conflict: true, Err: err}
		case se.Code == sqlite3.ErrConstraint && isUniqueConstraintError(err):
			return duplicateErr(err)
		}
	}
	return &ledger.StorageError{Op: op, Err: err}
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// duplicateErr maps the violated column in SQLite's message to the
// record kind and field.
func duplicateErr(err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "users.email"):
		return &ledger.DuplicateError{Kind: "user", Field: "email"}
	case strings.Contains(msg, "categories.code"):
		return &ledger.DuplicateError{Kind: "category", Field: "code"}
	case strings.Contains(msg, "asset_types.code"):
		return &ledger.DuplicateError{Kind: "asset type", Field: "code"}
	}
	return &ledger.DuplicateError{Kind: "record", Field: "unique field"}
}
