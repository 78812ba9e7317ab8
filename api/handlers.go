/*
handlers.go - HTTP API handlers for the household ledger engine

PURPOSE:
  Exposes the ledger engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to the
  orchestrators in the ledger package.

ENDPOINTS:
  Users:
    GET    /api/users                    List users
    POST   /api/users                    Create user
    GET    /api/users/{id}               Get user
    DELETE /api/users/{id}               Cascading removal
    GET    /api/users/{id}/accounts      Account listing (cached)
    GET    /api/users/{id}/transactions  Transaction listing (cached)
    GET    /api/users/{id}/assets        Asset listing
    GET    /api/users/{id}/budgets       Budget listing
    POST   /api/users/{id}/assets        Record asset
    POST   /api/users/{id}/budgets       Create budget

  Accounts:
    POST   /api/accounts                 Create account
    GET    /api/accounts/{id}            Get account (?rollup=1)
    PUT    /api/accounts/{id}/parent     Nest / un-nest
    DELETE /api/accounts/{id}            Delete (constraint-checked)
    GET    /api/accounts/{id}/transactions Transactions touching account

  Transactions:
    POST   /api/transactions             Create
    PUT    /api/transactions/{id}        Update (revert + reapply)
    DELETE /api/transactions/{id}        Delete (revert)
    POST   /api/transactions/bulk-delete Bulk delete (one atomic unit)

  Reference data:
    GET/POST /api/categories, /api/asset-types, /api/items

  Snapshot:
    GET    /api/snapshot                 Export full dataset
    POST   /api/snapshot                 Reconciliation import

ACTOR ATTRIBUTION:
  Mutating ledger endpoints require the X-Actor-ID header naming the
  acting user. There is no session state; a missing header is a 401.

ERROR HANDLING:
  Errors are returned as JSON with the status derived from the error
  taxonomy:
  - 400: Validation errors, invalid input
  - 401: Missing actor on an attributed operation
  - 404: Record not found
  - 409: Deletion constraint or storage conflict (retryable)
  - 500: Storage errors

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - viewcache.go: Listing cache invalidated by mutations
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hearthkeep/ledger-engine/ledger"
	"github.com/hearthkeep/ledger-engine/snapshot"
)

const dateLayout = "2006-01-02"

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store    ledger.UnitOfWork
	Mutator  *ledger.Mutator
	Accounts *ledger.Accounts
	Remover  *ledger.Remover
	Exporter *snapshot.Exporter
	Importer *snapshot.Importer
	Cache    *ViewCache
}

// NewHandler wires the orchestrators around the given store. The
// view cache doubles as the mutation notifier.
func NewHandler(store ledger.UnitOfWork) *Handler {
	cache := NewViewCache()
	return &Handler{
		Store:    store,
		Mutator:  ledger.NewMutator(store, cache),
		Accounts: ledger.NewAccounts(store, cache),
		Remover:  ledger.NewRemover(store, cache),
		Exporter: snapshot.NewExporter(store),
		Importer: snapshot.NewImporter(store),
		Cache:    cache,
	}
}

// actorID extracts the acting user from the X-Actor-ID header.
func actorID(r *http.Request) ledger.UserID {
	return ledger.UserID(r.Header.Get("X-Actor-ID"))
}

// =============================================================================
// USER HANDLERS
// =============================================================================

// ListUsers returns all users.
// GET /api/users
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.Store.Users().List(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dtos := make([]UserDTO, len(users))
	for i, u := range users {
		dtos[i] = toUserDTO(&u)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateUser creates a user.
// POST /api/users
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Email == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "email and name are required", nil)
		return
	}

	u := &ledger.User{
		ID:        ledger.UserID(uuid.NewString()),
		Email:     req.Email,
		Name:      req.Name,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.Store.Users().Create(r.Context(), u); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toUserDTO(u))
}

// GetUser returns a single user.
// GET /api/users/{id}
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	id := ledger.UserID(chi.URLParam(r, "id"))

	u, err := h.Store.Users().Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if u == nil {
		writeError(w, http.StatusNotFound, "User not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toUserDTO(u))
}

// RemoveUser cascades removal of the user and everything they own.
// DELETE /api/users/{id}
func (h *Handler) RemoveUser(w http.ResponseWriter, r *http.Request) {
	id := ledger.UserID(chi.URLParam(r, "id"))

	if err := h.Remover.RemoveUser(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	h.Cache.Invalidate(id)
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// ACCOUNT HANDLERS
// =============================================================================

// CreateAccount creates an account for the acting user.
// POST /api/accounts
func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	balance := decimal.Zero
	if req.Balance != "" {
		var err error
		balance, err = parseAmount("balance", req.Balance)
		if err != nil {
			writeDomainError(w, err)
			return
		}
	}

	in := ledger.AccountInput{
		Name:     req.Name,
		Type:     ledger.AccountType(req.Type),
		Currency: req.Currency,
		Balance:  balance,
	}
	if req.ParentID != nil {
		p := ledger.AccountID(*req.ParentID)
		in.ParentID = &p
	}

	acct, err := h.Accounts.Create(r.Context(), actorID(r), in)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAccountDTO(acct, nil))
}

// GetAccount returns a single account. With ?rollup=1 the response
// includes the balance summed with direct children.
// GET /api/accounts/{id}
func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	id := ledger.AccountID(chi.URLParam(r, "id"))

	acct, err := h.Accounts.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	var rollup *decimal.Decimal
	if r.URL.Query().Get("rollup") != "" {
		sum, err := h.Accounts.RollupBalance(r.Context(), id)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		rollup = &sum
	}
	writeJSON(w, http.StatusOK, toAccountDTO(acct, rollup))
}

// RenameAccount changes the account's display name.
// PUT /api/accounts/{id}
func (h *Handler) RenameAccount(w http.ResponseWriter, r *http.Request) {
	id := ledger.AccountID(chi.URLParam(r, "id"))

	var req RenameAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	acct, err := h.Accounts.Rename(r.Context(), actorID(r), id, req.Name)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountDTO(acct, nil))
}

// SetAccountParent nests the account under a parent, or clears the
// nesting when parent_id is null.
// PUT /api/accounts/{id}/parent
func (h *Handler) SetAccountParent(w http.ResponseWriter, r *http.Request) {
	id := ledger.AccountID(chi.URLParam(r, "id"))

	var req SetParentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	var parentID *ledger.AccountID
	if req.ParentID != nil {
		p := ledger.AccountID(*req.ParentID)
		parentID = &p
	}
	if err := h.Accounts.SetParent(r.Context(), actorID(r), id, parentID); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteAccount deletes an empty, childless account.
// DELETE /api/accounts/{id}
func (h *Handler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	id := ledger.AccountID(chi.URLParam(r, "id"))

	if err := h.Accounts.Delete(r.Context(), actorID(r), id); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListUserAccounts returns the accounts owned by a user. The
// serialized payload is cached until a mutation invalidates it.
// GET /api/users/{id}/accounts
func (h *Handler) ListUserAccounts(w http.ResponseWriter, r *http.Request) {
	userID := ledger.UserID(chi.URLParam(r, "id"))

	if payload, ok := h.Cache.getAccounts(userID); ok {
		writeRaw(w, payload)
		return
	}

	accounts, err := h.Store.Accounts().ListByUser(r.Context(), userID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dtos := make([]AccountDTO, len(accounts))
	for i := range accounts {
		dtos[i] = toAccountDTO(&accounts[i], nil)
	}
	payload, err := json.Marshal(dtos)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to encode accounts", err)
		return
	}
	h.Cache.putAccounts(userID, payload)
	writeRaw(w, payload)
}

// =============================================================================
// TRANSACTION HANDLERS
// =============================================================================

// CreateTransaction records a transaction and applies its balance
// effects in one atomic unit.
// POST /api/transactions
func (h *Handler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	in, err := parseTransactionRequest(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	tx, err := h.Mutator.Create(r.Context(), actorID(r), in)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTransactionDTO(tx))
}

// UpdateTransaction edits a transaction in place, reverting the old
// effects and applying the new ones in one atomic unit.
// PUT /api/transactions/{id}
func (h *Handler) UpdateTransaction(w http.ResponseWriter, r *http.Request) {
	id := ledger.TransactionID(chi.URLParam(r, "id"))

	in, err := parseTransactionRequest(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	tx, err := h.Mutator.Update(r.Context(), actorID(r), id, in)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionDTO(tx))
}

// DeleteTransaction removes a transaction and reverts its effects.
// DELETE /api/transactions/{id}
func (h *Handler) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id := ledger.TransactionID(chi.URLParam(r, "id"))

	if err := h.Mutator.Delete(r.Context(), actorID(r), id); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// BulkDeleteTransactions removes a batch of transactions in one
// atomic unit. Missing ids are skipped; any failure rolls back the
// whole batch.
// POST /api/transactions/bulk-delete
func (h *Handler) BulkDeleteTransactions(w http.ResponseWriter, r *http.Request) {
	var req BulkDeleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ids := make([]ledger.TransactionID, len(req.IDs))
	for i, id := range req.IDs {
		ids[i] = ledger.TransactionID(id)
	}

	deleted, err := h.Mutator.BulkDelete(r.Context(), actorID(r), ids)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, BulkDeleteResponse{Deleted: deleted})
}

// ListUserTransactions returns a user's transactions, cached until a
// mutation invalidates the payload.
// GET /api/users/{id}/transactions
func (h *Handler) ListUserTransactions(w http.ResponseWriter, r *http.Request) {
	userID := ledger.UserID(chi.URLParam(r, "id"))

	if payload, ok := h.Cache.getTransactions(userID); ok {
		writeRaw(w, payload)
		return
	}

	txs, err := h.Store.Transactions().ListByUser(r.Context(), userID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dtos := make([]TransactionDTO, len(txs))
	for i := range txs {
		dtos[i] = toTransactionDTO(&txs[i])
	}
	payload, err := json.Marshal(dtos)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to encode transactions", err)
		return
	}
	h.Cache.putTransactions(userID, payload)
	writeRaw(w, payload)
}

// ListAccountTransactions returns every transaction touching the
// account as source or transfer target.
// GET /api/accounts/{id}/transactions
func (h *Handler) ListAccountTransactions(w http.ResponseWriter, r *http.Request) {
	accountID := ledger.AccountID(chi.URLParam(r, "id"))

	txs, err := h.Store.Transactions().ListByAccount(r.Context(), accountID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dtos := make([]TransactionDTO, len(txs))
	for i := range txs {
		dtos[i] = toTransactionDTO(&txs[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// CATEGORY HANDLERS
// =============================================================================

// ListCategories returns all categories.
// GET /api/categories
func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.Store.Categories().List(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dtos := make([]CategoryDTO, len(categories))
	for i, c := range categories {
		dtos[i] = CategoryDTO{ID: string(c.ID), Code: c.Code, Name: c.Name}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateCategory creates a category.
// POST /api/categories
func (h *Handler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req CreateCategoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Code == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "code and name are required", nil)
		return
	}

	existing, err := h.Store.Categories().GetByCode(r.Context(), req.Code)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if existing != nil {
		writeError(w, http.StatusConflict, fmt.Sprintf("Category %q already exists", req.Code), nil)
		return
	}

	c := &ledger.Category{
		ID:   ledger.CategoryID(uuid.NewString()),
		Code: req.Code,
		Name: req.Name,
	}
	if err := h.Store.Categories().Create(r.Context(), c); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, CategoryDTO{ID: string(c.ID), Code: c.Code, Name: c.Name})
}

// =============================================================================
// ASSET HANDLERS
// =============================================================================

// ListAssetTypes returns all asset types.
// GET /api/asset-types
func (h *Handler) ListAssetTypes(w http.ResponseWriter, r *http.Request) {
	types, err := h.Store.Assets().ListTypes(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dtos := make([]AssetTypeDTO, len(types))
	for i, t := range types {
		dtos[i] = AssetTypeDTO{Code: t.Code, Name: t.Name}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateAssetType creates an asset type.
// POST /api/asset-types
func (h *Handler) CreateAssetType(w http.ResponseWriter, r *http.Request) {
	var req AssetTypeDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Code == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "code and name are required", nil)
		return
	}

	existing, err := h.Store.Assets().GetType(r.Context(), req.Code)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if existing != nil {
		writeError(w, http.StatusConflict, fmt.Sprintf("Asset type %q already exists", req.Code), nil)
		return
	}

	t := &ledger.AssetType{Code: req.Code, Name: req.Name}
	if err := h.Store.Assets().CreateType(r.Context(), t); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, AssetTypeDTO{Code: t.Code, Name: t.Name})
}

// CreateAsset records an investment holding for a user.
// POST /api/users/{id}/assets
func (h *Handler) CreateAsset(w http.ResponseWriter, r *http.Request) {
	userID := ledger.UserID(chi.URLParam(r, "id"))

	var req CreateAssetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	quantity, err := parseAmount("quantity", req.Quantity)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	unitCost, err := parseAmount("unit_cost", req.UnitCost)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	typ, err := h.Store.Assets().GetType(r.Context(), req.TypeCode)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if typ == nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Unknown asset type %q", req.TypeCode), nil)
		return
	}

	a := &ledger.Asset{
		ID:       ledger.AssetID(uuid.NewString()),
		UserID:   userID,
		TypeCode: req.TypeCode,
		Name:     req.Name,
		Quantity: quantity,
		UnitCost: unitCost,
		Currency: req.Currency,
	}
	if err := h.Store.Assets().Create(r.Context(), a); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAssetDTO(a))
}

// ListUserAssets returns a user's investment holdings.
// GET /api/users/{id}/assets
func (h *Handler) ListUserAssets(w http.ResponseWriter, r *http.Request) {
	userID := ledger.UserID(chi.URLParam(r, "id"))

	assets, err := h.Store.Assets().ListByUser(r.Context(), userID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dtos := make([]AssetDTO, len(assets))
	for i := range assets {
		dtos[i] = toAssetDTO(&assets[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// BUDGET HANDLERS
// =============================================================================

// CreateBudget creates a spending limit for a user.
// POST /api/users/{id}/budgets
func (h *Handler) CreateBudget(w http.ResponseWriter, r *http.Request) {
	userID := ledger.UserID(chi.URLParam(r, "id"))

	var req CreateBudgetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if req.Period == "" {
		writeError(w, http.StatusBadRequest, "period is required", nil)
		return
	}

	b := &ledger.Budget{
		ID:     ledger.BudgetID(uuid.NewString()),
		UserID: userID,
		Amount: amount,
		Period: req.Period,
	}
	if req.CategoryID != nil {
		c := ledger.CategoryID(*req.CategoryID)
		b.CategoryID = &c
	}
	if err := h.Store.Budgets().Create(r.Context(), b); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toBudgetDTO(b))
}

// ListUserBudgets returns a user's budgets.
// GET /api/users/{id}/budgets
func (h *Handler) ListUserBudgets(w http.ResponseWriter, r *http.Request) {
	userID := ledger.UserID(chi.URLParam(r, "id"))

	budgets, err := h.Store.Budgets().ListByUser(r.Context(), userID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dtos := make([]BudgetDTO, len(budgets))
	for i := range budgets {
		dtos[i] = toBudgetDTO(&budgets[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// ITEM HANDLERS
// =============================================================================

// ListItems returns all household items.
// GET /api/items
func (h *Handler) ListItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.Store.Items().List(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dtos := make([]ItemDTO, len(items))
	for i, it := range items {
		dtos[i] = ItemDTO{
			ID:         string(it.ID),
			Name:       it.Name,
			Value:      it.Value.String(),
			Currency:   it.Currency,
			AcquiredAt: it.AcquiredAt.Format(dateLayout),
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateItem records a household item.
// POST /api/items
func (h *Handler) CreateItem(w http.ResponseWriter, r *http.Request) {
	var req CreateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	value, err := parseAmount("value", req.Value)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	acquiredAt, err := parseDate("acquired_at", req.AcquiredAt)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	it := &ledger.Item{
		ID:         ledger.ItemID(uuid.NewString()),
		Name:       req.Name,
		Value:      value,
		Currency:   req.Currency,
		AcquiredAt: acquiredAt,
	}
	if err := h.Store.Items().Create(r.Context(), it); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ItemDTO{
		ID:         string(it.ID),
		Name:       it.Name,
		Value:      it.Value.String(),
		Currency:   it.Currency,
		AcquiredAt: it.AcquiredAt.Format(dateLayout),
	})
}

// =============================================================================
// SNAPSHOT HANDLERS
// =============================================================================

// ExportSnapshot serializes the full dataset.
// GET /api/snapshot
func (h *Handler) ExportSnapshot(w http.ResponseWriter, r *http.Request) {
	doc, err := h.Exporter.Export(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// ImportSnapshot replays a document into the store as one atomic
// unit, then drops every cached listing.
// POST /api/snapshot
func (h *Handler) ImportSnapshot(w http.ResponseWriter, r *http.Request) {
	var doc snapshot.Document
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid snapshot document", err)
		return
	}

	result, err := h.Importer.Import(r.Context(), &doc)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	h.Cache.Reset()
	writeJSON(w, http.StatusOK, result)
}

// =============================================================================
// DTO MAPPING
// =============================================================================

func toUserDTO(u *ledger.User) UserDTO {
	return UserDTO{
		ID:        string(u.ID),
		Email:     u.Email,
		Name:      u.Name,
		CreatedAt: u.CreatedAt.Format(time.RFC3339),
	}
}

func toAccountDTO(a *ledger.Account, rollup *decimal.Decimal) AccountDTO {
	dto := AccountDTO{
		ID:        string(a.ID),
		UserID:    string(a.UserID),
		Name:      a.Name,
		Type:      string(a.Type),
		Balance:   a.Balance.String(),
		Currency:  a.Currency,
		CreatedAt: a.CreatedAt.Format(time.RFC3339),
		UpdatedAt: a.UpdatedAt.Format(time.RFC3339),
	}
	if a.ParentID != nil {
		p := string(*a.ParentID)
		dto.ParentID = &p
	}
	if rollup != nil {
		s := rollup.String()
		dto.Rollup = &s
	}
	return dto
}

func toTransactionDTO(tx *ledger.Transaction) TransactionDTO {
	dto := TransactionDTO{
		ID:          string(tx.ID),
		UserID:      string(tx.UserID),
		Type:        string(tx.Type),
		Amount:      tx.Amount.String(),
		Date:        tx.Date.Format(dateLayout),
		Description: tx.Description,
		AccountID:   string(tx.AccountID),
		CreatedAt:   tx.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   tx.UpdatedAt.Format(time.RFC3339),
	}
	if tx.CategoryID != nil {
		c := string(*tx.CategoryID)
		dto.CategoryID = &c
	}
	if tx.TargetAccountID != nil {
		t := string(*tx.TargetAccountID)
		dto.TargetAccountID = &t
	}
	return dto
}

func toAssetDTO(a *ledger.Asset) AssetDTO {
	return AssetDTO{
		ID:       string(a.ID),
		UserID:   string(a.UserID),
		TypeCode: a.TypeCode,
		Name:     a.Name,
		Quantity: a.Quantity.String(),
		UnitCost: a.UnitCost.String(),
		Currency: a.Currency,
	}
}

func toBudgetDTO(b *ledger.Budget) BudgetDTO {
	dto := BudgetDTO{
		ID:     string(b.ID),
		UserID: string(b.UserID),
		Amount: b.Amount.String(),
		Period: b.Period,
	}
	if b.CategoryID != nil {
		c := string(*b.CategoryID)
		dto.CategoryID = &c
	}
	return dto
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

func parseTransactionRequest(r *http.Request) (ledger.TransactionInput, error) {
	var req TransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return ledger.TransactionInput{}, &ledger.ValidationError{Field: "body", Reason: err.Error()}
	}

	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		return ledger.TransactionInput{}, err
	}
	date, err := parseDate("date", req.Date)
	if err != nil {
		return ledger.TransactionInput{}, err
	}

	in := ledger.TransactionInput{
		Type:        ledger.TransactionType(req.Type),
		Amount:      amount,
		Date:        date,
		Description: req.Description,
		AccountID:   ledger.AccountID(req.AccountID),
	}
	if req.CategoryID != nil {
		c := ledger.CategoryID(*req.CategoryID)
		in.CategoryID = &c
	}
	if req.TargetAccountID != nil {
		t := ledger.AccountID(*req.TargetAccountID)
		in.TargetAccountID = &t
	}
	return in, nil
}

func parseAmount(field, s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, &ledger.ValidationError{Field: field, Reason: "required"}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, &ledger.ValidationError{Field: field, Reason: fmt.Sprintf("invalid decimal %q", s)}
	}
	return d, nil
}

func parseDate(field, s string) (time.Time, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, &ledger.ValidationError{Field: field, Reason: fmt.Sprintf("invalid date %q, want YYYY-MM-DD", s)}
	}
	return t, nil
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeRaw(w http.ResponseWriter, payload []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(payload)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps the ledger error taxonomy onto HTTP status
// codes.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ledger.ErrNoActor):
		writeError(w, http.StatusUnauthorized, "Acting user required", err)
	case ledger.IsValidation(err):
		writeError(w, http.StatusBadRequest, "Validation failed", err)
	case ledger.IsNotFound(err):
		writeError(w, http.StatusNotFound, "Not found", err)
	case ledger.IsConstraint(err):
		writeError(w, http.StatusConflict, "Deletion blocked by references", err)
	case ledger.IsDuplicate(err):
		writeError(w, http.StatusConflict, "Already exists", err)
	case ledger.IsRetryable(err):
		writeError(w, http.StatusConflict, "Storage conflict, retry the operation", err)
	default:
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}
