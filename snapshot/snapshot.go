/*
Package snapshot implements export and reconciliation import of the
full ledger dataset as a versioned JSON document.

PURPOSE:
  A household migrating between deployments (or restoring after data
  loss) exports every entity into one self-contained document and
  replays it into a fresh or partially-populated system. The document
  carries the ORIGINAL identifiers; the importer assigns fresh ones
  and remaps every cross-reference.

VERSION GATE:
  Document.Version must be exactly "1.0". Anything else is rejected
  before any write happens.

IDEMPOTENT DIMENSIONS:
  Users are matched by email, categories and asset types by code.
  Re-importing the same document never duplicates those. Accounts,
  transactions, and assets are NOT matched to existing records; a
  repeated import duplicates them. Callers importing into a non-empty
  system accept that.

FK REMAP:
  Accounts are created in two passes so a child can reference a
  parent that appears later in the document. Account balances are
  taken verbatim from the document; effects are not replayed.

ATOMICITY:
  The whole import runs in one atomic unit. Any unresolvable
  reference or storage failure rolls back everything.

USAGE:
  imp := snapshot.NewImporter(store)
  result, err := imp.Import(ctx, doc)

SEE ALSO:
  - ledger/store.go: UnitOfWork the importer writes through
*/
package snapshot

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hearthkeep/ledger-engine/ledger"
)

// Version is the only document version this release reads or writes.
const Version = "1.0"

// =============================================================================
// DOCUMENT
// =============================================================================

// Document is the versioned wire form of a full dataset. All id
// fields hold the identifiers of the SOURCE system; they exist only
// so the importer can resolve references, and are never stored.
type Document struct {
	Version    string    `json:"version"`
	ExportedAt time.Time `json:"exportedAt"`
	Data       Data      `json:"data"`
}

type Data struct {
	Users        []UserRecord        `json:"users"`
	Categories   []CategoryRecord    `json:"categories"`
	AssetTypes   []AssetTypeRecord   `json:"assetTypes"`
	Accounts     []AccountRecord     `json:"accounts"`
	Transactions []TransactionRecord `json:"transactions"`
	Assets       []AssetRecord       `json:"assets"`
	Items        []ItemRecord        `json:"items"`
}

type UserRecord struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

type CategoryRecord struct {
	ID   string `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

type AssetTypeRecord struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

type AccountRecord struct {
	ID       string          `json:"id"`
	UserID   string          `json:"userId"`
	Name     string          `json:"name"`
	Type     string          `json:"type"`
	Balance  decimal.Decimal `json:"balance"`
	Currency string          `json:"currency"`
	ParentID *string         `json:"parentId,omitempty"`
}

type TransactionRecord struct {
	ID              string          `json:"id"`
	UserID          string          `json:"userId"`
	Type            string          `json:"type"`
	Amount          decimal.Decimal `json:"amount"`
	Date            time.Time       `json:"date"`
	Description     string          `json:"description,omitempty"`
	CategoryID      *string         `json:"categoryId,omitempty"`
	AccountID       string          `json:"accountId"`
	TargetAccountID *string         `json:"targetAccountId,omitempty"`
}

type AssetRecord struct {
	ID       string          `json:"id"`
	UserID   string          `json:"userId"`
	TypeCode string          `json:"typeCode"`
	Name     string          `json:"name"`
	Quantity decimal.Decimal `json:"quantity"`
	UnitCost decimal.Decimal `json:"unitCost"`
	Currency string          `json:"currency"`
}

type ItemRecord struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Value      decimal.Decimal `json:"value"`
	Currency   string          `json:"currency"`
	AcquiredAt time.Time       `json:"acquiredAt"`
}

// =============================================================================
// EXPORTER
// =============================================================================

// Exporter serializes the full dataset into a Document.
type Exporter struct {
	store ledger.Stores
}

func NewExporter(store ledger.Stores) *Exporter {
	return &Exporter{store: store}
}

// Export reads every entity and assembles a Document. Reads are not
// wrapped in a transaction; export during concurrent mutation gives a
// document consistent per entity set, not across sets.
func (e *Exporter) Export(ctx context.Context) (*Document, error) {
	doc := &Document{
		Version:    Version,
		ExportedAt: time.Now().UTC(),
	}

	users, err := e.store.Users().List(ctx)
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		doc.Data.Users = append(doc.Data.Users, UserRecord{
			ID:    string(u.ID),
			Email: u.Email,
			Name:  u.Name,
		})
	}

	categories, err := e.store.Categories().List(ctx)
	if err != nil {
		return nil, err
	}
	for _, c := range categories {
		doc.Data.Categories = append(doc.Data.Categories, CategoryRecord{
			ID:   string(c.ID),
			Code: c.Code,
			Name: c.Name,
		})
	}

	types, err := e.store.Assets().ListTypes(ctx)
	if err != nil {
		return nil, err
	}
	for _, t := range types {
		doc.Data.AssetTypes = append(doc.Data.AssetTypes, AssetTypeRecord{
			Code: t.Code,
			Name: t.Name,
		})
	}

	for _, u := range users {
		accounts, err := e.store.Accounts().ListByUser(ctx, u.ID)
		if err != nil {
			return nil, err
		}
		for _, a := range accounts {
			rec := AccountRecord{
				ID:       string(a.ID),
				UserID:   string(a.UserID),
				Name:     a.Name,
				Type:     string(a.Type),
				Balance:  a.Balance,
				Currency: a.Currency,
			}
			if a.ParentID != nil {
				p := string(*a.ParentID)
				rec.ParentID = &p
			}
			doc.Data.Accounts = append(doc.Data.Accounts, rec)
		}

		transactions, err := e.store.Transactions().ListByUser(ctx, u.ID)
		if err != nil {
			return nil, err
		}
		for _, tx := range transactions {
			rec := TransactionRecord{
				ID:          string(tx.ID),
				UserID:      string(tx.UserID),
				Type:        string(tx.Type),
				Amount:      tx.Amount,
				Date:        tx.Date,
				Description: tx.Description,
				AccountID:   string(tx.AccountID),
			}
			if tx.CategoryID != nil {
				c := string(*tx.CategoryID)
				rec.CategoryID = &c
			}
			if tx.TargetAccountID != nil {
				t := string(*tx.TargetAccountID)
				rec.TargetAccountID = &t
			}
			doc.Data.Transactions = append(doc.Data.Transactions, rec)
		}

		assets, err := e.store.Assets().ListByUser(ctx, u.ID)
		if err != nil {
			return nil, err
		}
		for _, a := range assets {
			doc.Data.Assets = append(doc.Data.Assets, AssetRecord{
				ID:       string(a.ID),
				UserID:   string(a.UserID),
				TypeCode: a.TypeCode,
				Name:     a.Name,
				Quantity: a.Quantity,
				UnitCost: a.UnitCost,
				Currency: a.Currency,
			})
		}
	}

	items, err := e.store.Items().List(ctx)
	if err != nil {
		return nil, err
	}
	for _, it := range items {
		doc.Data.Items = append(doc.Data.Items, ItemRecord{
			ID:         string(it.ID),
			Name:       it.Name,
			Value:      it.Value,
			Currency:   it.Currency,
			AcquiredAt: it.AcquiredAt,
		})
	}

	return doc, nil
}

// =============================================================================
// IMPORTER
// =============================================================================

// Importer replays a Document into the store.
type Importer struct {
	store ledger.UnitOfWork
}

func NewImporter(store ledger.UnitOfWork) *Importer {
	return &Importer{store: store}
}

// Result summarizes what an import did.
type Result struct {
	UsersCreated      int `json:"usersCreated"`
	UsersMatched      int `json:"usersMatched"`
	CategoriesCreated int `json:"categoriesCreated"`
	CategoriesMatched int `json:"categoriesMatched"`
	AssetTypesCreated int `json:"assetTypesCreated"`
	Accounts          int `json:"accounts"`
	Transactions      int `json:"transactions"`
	Assets            int `json:"assets"`
	Items             int `json:"items"`
}

// Import replays doc into the store as one atomic unit. Users match
// by email, categories and asset types by code; everything else is
// created fresh with remapped references. Returns ValidationError on
// a bad version or an unresolvable reference.
func (i *Importer) Import(ctx context.Context, doc *Document) (*Result, error) {
	if doc.Version != Version {
		return nil, &ledger.ValidationError{
			Field:  "version",
			Reason: fmt.Sprintf("unsupported document version %q, want %q", doc.Version, Version),
		}
	}

	result := &Result{}
	err := i.store.WithTx(ctx, func(s ledger.Stores) error {
		userIDs, err := importUsers(ctx, s, doc.Data.Users, result)
		if err != nil {
			return err
		}
		categoryIDs, err := importCategories(ctx, s, doc.Data.Categories, result)
		if err != nil {
			return err
		}
		if err := importAssetTypes(ctx, s, doc.Data.AssetTypes, result); err != nil {
			return err
		}
		accountIDs, err := importAccounts(ctx, s, doc.Data.Accounts, userIDs, result)
		if err != nil {
			return err
		}
		if err := importTransactions(ctx, s, doc.Data.Transactions, userIDs, categoryIDs, accountIDs, result); err != nil {
			return err
		}
		if err := importAssets(ctx, s, doc.Data.Assets, userIDs, result); err != nil {
			return err
		}
		return importItems(ctx, s, doc.Data.Items, result)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func importUsers(ctx context.Context, s ledger.Stores, records []UserRecord, result *Result) (map[string]ledger.UserID, error) {
	ids := make(map[string]ledger.UserID, len(records))
	for _, rec := range records {
		existing, err := s.Users().GetByEmail(ctx, rec.Email)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			ids[rec.ID] = existing.ID
			result.UsersMatched++
			continue
		}
		u := &ledger.User{
			ID:        ledger.UserID(uuid.NewString()),
			Email:     rec.Email,
			Name:      rec.Name,
			CreatedAt: time.Now().UTC(),
		}
		if err := s.Users().Create(ctx, u); err != nil {
			return nil, err
		}
		ids[rec.ID] = u.ID
		result.UsersCreated++
	}
	return ids, nil
}

func importCategories(ctx context.Context, s ledger.Stores, records []CategoryRecord, result *Result) (map[string]ledger.CategoryID, error) {
	ids := make(map[string]ledger.CategoryID, len(records))
	for _, rec := range records {
		existing, err := s.Categories().GetByCode(ctx, rec.Code)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			ids[rec.ID] = existing.ID
			result.CategoriesMatched++
			continue
		}
		c := &ledger.Category{
			ID:   ledger.CategoryID(uuid.NewString()),
			Code: rec.Code,
			Name: rec.Name,
		}
		if err := s.Categories().Create(ctx, c); err != nil {
			return nil, err
		}
		ids[rec.ID] = c.ID
		result.CategoriesCreated++
	}
	return ids, nil
}

func importAssetTypes(ctx context.Context, s ledger.Stores, records []AssetTypeRecord, result *Result) error {
	for _, rec := range records {
		existing, err := s.Assets().GetType(ctx, rec.Code)
		if err != nil {
			return err
		}
		if existing != nil {
			continue
		}
		t := &ledger.AssetType{Code: rec.Code, Name: rec.Name}
		if err := s.Assets().CreateType(ctx, t); err != nil {
			return err
		}
		result.AssetTypesCreated++
	}
	return nil
}

// importAccounts creates all accounts first and wires parent links in
// a second pass, so document order never matters. Parent links obey
// the one-level nesting rule. Balances are taken verbatim from the
// document.
func importAccounts(ctx context.Context, s ledger.Stores, records []AccountRecord, userIDs map[string]ledger.UserID, result *Result) (map[string]ledger.AccountID, error) {
	ids := make(map[string]ledger.AccountID, len(records))
	now := time.Now().UTC()

	for _, rec := range records {
		userID, ok := userIDs[rec.UserID]
		if !ok {
			return nil, refError("account", rec.ID, "userId", rec.UserID)
		}
		if !ledger.KnownCurrency(rec.Currency) {
			return nil, &ledger.ValidationError{
				Field:  "currency",
				Reason: fmt.Sprintf("unknown currency %q on account %s", rec.Currency, rec.ID),
			}
		}
		a := &ledger.Account{
			ID:        ledger.AccountID(uuid.NewString()),
			UserID:    userID,
			Name:      rec.Name,
			Type:      ledger.AccountType(rec.Type),
			Balance:   rec.Balance,
			Currency:  rec.Currency,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if !ledger.ValidAccountType(a.Type) {
			return nil, &ledger.ValidationError{
				Field:  "type",
				Reason: fmt.Sprintf("unknown account type %q on account %s", rec.Type, rec.ID),
			}
		}
		if err := s.Accounts().Create(ctx, a); err != nil {
			return nil, err
		}
		ids[rec.ID] = a.ID
		result.Accounts++
	}

	byID := make(map[string]AccountRecord, len(records))
	for _, rec := range records {
		byID[rec.ID] = rec
	}
	for _, rec := range records {
		if rec.ParentID == nil {
			continue
		}
		parentID, ok := ids[*rec.ParentID]
		if !ok {
			return nil, refError("account", rec.ID, "parentId", *rec.ParentID)
		}
		// One level of nesting only: the parent itself must be
		// top-level in the document.
		if parent := byID[*rec.ParentID]; parent.ParentID != nil {
			return nil, &ledger.ValidationError{
				Field:  "parentId",
				Reason: fmt.Sprintf("account %s nests under %s, which is itself nested; only top-level accounts can be parents", rec.ID, *rec.ParentID),
			}
		}
		if err := s.Accounts().SetParent(ctx, ids[rec.ID], &parentID); err != nil {
			return nil, err
		}
	}
	return ids, nil
}

func importTransactions(ctx context.Context, s ledger.Stores, records []TransactionRecord, userIDs map[string]ledger.UserID, categoryIDs map[string]ledger.CategoryID, accountIDs map[string]ledger.AccountID, result *Result) error {
	now := time.Now().UTC()
	for _, rec := range records {
		userID, ok := userIDs[rec.UserID]
		if !ok {
			return refError("transaction", rec.ID, "userId", rec.UserID)
		}
		accountID, ok := accountIDs[rec.AccountID]
		if !ok {
			return refError("transaction", rec.ID, "accountId", rec.AccountID)
		}

		tx := &ledger.Transaction{
			ID:          ledger.TransactionID(uuid.NewString()),
			UserID:      userID,
			Type:        ledger.TransactionType(rec.Type),
			Amount:      rec.Amount,
			Date:        rec.Date,
			Description: rec.Description,
			AccountID:   accountID,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if rec.CategoryID != nil {
			categoryID, ok := categoryIDs[*rec.CategoryID]
			if !ok {
				return refError("transaction", rec.ID, "categoryId", *rec.CategoryID)
			}
			tx.CategoryID = &categoryID
		}
		if rec.TargetAccountID != nil {
			targetID, ok := accountIDs[*rec.TargetAccountID]
			if !ok {
				return refError("transaction", rec.ID, "targetAccountId", *rec.TargetAccountID)
			}
			tx.TargetAccountID = &targetID
		}
		if err := s.Transactions().Create(ctx, tx); err != nil {
			return err
		}
		result.Transactions++
	}
	return nil
}

func importAssets(ctx context.Context, s ledger.Stores, records []AssetRecord, userIDs map[string]ledger.UserID, result *Result) error {
	for _, rec := range records {
		userID, ok := userIDs[rec.UserID]
		if !ok {
			return refError("asset", rec.ID, "userId", rec.UserID)
		}
		existing, err := s.Assets().GetType(ctx, rec.TypeCode)
		if err != nil {
			return err
		}
		if existing == nil {
			return refError("asset", rec.ID, "typeCode", rec.TypeCode)
		}
		a := &ledger.Asset{
			ID:       ledger.AssetID(uuid.NewString()),
			UserID:   userID,
			TypeCode: rec.TypeCode,
			Name:     rec.Name,
			Quantity: rec.Quantity,
			UnitCost: rec.UnitCost,
			Currency: rec.Currency,
		}
		if err := s.Assets().Create(ctx, a); err != nil {
			return err
		}
		result.Assets++
	}
	return nil
}

func importItems(ctx context.Context, s ledger.Stores, records []ItemRecord, result *Result) error {
	for _, rec := range records {
		it := &ledger.Item{
			ID:         ledger.ItemID(uuid.NewString()),
			Name:       rec.Name,
			Value:      rec.Value,
			Currency:   rec.Currency,
			AcquiredAt: rec.AcquiredAt,
		}
		if err := s.Items().Create(ctx, it); err != nil {
			return err
		}
		result.Items++
	}
	return nil
}

func refError(kind, id, field, ref string) error {
	return &ledger.ValidationError{
		Field:  field,
		Reason: fmt.Sprintf("%s %s references unknown %s %q", kind, id, field, ref),
	}
}
