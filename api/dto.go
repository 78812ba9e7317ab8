/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types
  decouple the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

AMOUNTS:
  Monetary amounts travel as decimal strings ("150.00"), never JSON
  numbers, so clients cannot lose precision to float parsing.

VALIDATION:
  Parsing (amounts, dates, enums) happens in handlers; semantic
  validation lives in the orchestrators. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - ledger/types.go: Domain model these map to
*/
package api

// =============================================================================
// USERS
// =============================================================================

// UserDTO represents a user in API responses.
type UserDTO struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at,omitempty"`
}

// CreateUserRequest is the request to create a user.
type CreateUserRequest struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// =============================================================================
// ACCOUNTS
// =============================================================================

// AccountDTO represents an account in API responses. Balance is the
// stored balance; Rollup, when present, adds direct children.
type AccountDTO struct {
	ID        string  `json:"id"`
	UserID    string  `json:"user_id"`
	Name      string  `json:"name"`
	Type      string  `json:"type"`
	Balance   string  `json:"balance"`
	Rollup    *string `json:"rollup,omitempty"`
	Currency  string  `json:"currency"`
	ParentID  *string `json:"parent_id,omitempty"`
	CreatedAt string  `json:"created_at,omitempty"`
	UpdatedAt string  `json:"updated_at,omitempty"`
}

// CreateAccountRequest is the request to create an account.
type CreateAccountRequest struct {
	Name     string  `json:"name"`
	Type     string  `json:"type"`
	Currency string  `json:"currency"`
	Balance  string  `json:"balance,omitempty"`
	ParentID *string `json:"parent_id,omitempty"`
}

// RenameAccountRequest changes the account's display name.
type RenameAccountRequest struct {
	Name string `json:"name"`
}

// SetParentRequest nests an account under a parent, or clears the
// nesting when parent_id is null.
type SetParentRequest struct {
	ParentID *string `json:"parent_id"`
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// TransactionDTO represents a ledger record in API responses.
type TransactionDTO struct {
	ID              string  `json:"id"`
	UserID          string  `json:"user_id"`
	Type            string  `json:"type"`
	Amount          string  `json:"amount"`
	Date            string  `json:"date"`
	Description     string  `json:"description,omitempty"`
	CategoryID      *string `json:"category_id,omitempty"`
	AccountID       string  `json:"account_id"`
	TargetAccountID *string `json:"target_account_id,omitempty"`
	CreatedAt       string  `json:"created_at,omitempty"`
	UpdatedAt       string  `json:"updated_at,omitempty"`
}

// TransactionRequest carries the writable fields for create and
// update. Date uses "2006-01-02".
type TransactionRequest struct {
	Type            string  `json:"type"`
	Amount          string  `json:"amount"`
	Date            string  `json:"date"`
	Description     string  `json:"description,omitempty"`
	CategoryID      *string `json:"category_id,omitempty"`
	AccountID       string  `json:"account_id"`
	TargetAccountID *string `json:"target_account_id,omitempty"`
}

// BulkDeleteRequest names the transactions to delete in one atomic
// unit.
type BulkDeleteRequest struct {
	IDs []string `json:"ids"`
}

// BulkDeleteResponse reports how many records were removed.
type BulkDeleteResponse struct {
	Deleted int `json:"deleted"`
}

// =============================================================================
// CATEGORIES, ASSETS, BUDGETS, ITEMS
// =============================================================================

// CategoryDTO represents a transaction category.
type CategoryDTO struct {
	ID   string `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

// CreateCategoryRequest is the request to create a category.
type CreateCategoryRequest struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// AssetTypeDTO represents an investment asset type.
type AssetTypeDTO struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// AssetDTO represents an investment holding.
type AssetDTO struct {
	ID       string `json:"id"`
	UserID   string `json:"user_id"`
	TypeCode string `json:"type_code"`
	Name     string `json:"name"`
	Quantity string `json:"quantity"`
	UnitCost string `json:"unit_cost"`
	Currency string `json:"currency"`
}

// CreateAssetRequest is the request to record an asset.
type CreateAssetRequest struct {
	TypeCode string `json:"type_code"`
	Name     string `json:"name"`
	Quantity string `json:"quantity"`
	UnitCost string `json:"unit_cost"`
	Currency string `json:"currency"`
}

// BudgetDTO represents a per-category spending limit.
type BudgetDTO struct {
	ID         string  `json:"id"`
	UserID     string  `json:"user_id"`
	CategoryID *string `json:"category_id,omitempty"`
	Amount     string  `json:"amount"`
	Period     string  `json:"period"`
}

// CreateBudgetRequest is the request to create a budget.
type CreateBudgetRequest struct {
	CategoryID *string `json:"category_id,omitempty"`
	Amount     string  `json:"amount"`
	Period     string  `json:"period"`
}

// ItemDTO represents a physical household item.
type ItemDTO struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Value      string `json:"value"`
	Currency   string `json:"currency"`
	AcquiredAt string `json:"acquired_at"`
}

// CreateItemRequest is the request to record an item.
type CreateItemRequest struct {
	Name       string `json:"name"`
	Value      string `json:"value"`
	Currency   string `json:"currency"`
	AcquiredAt string `json:"acquired_at"`
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrorResponse is the JSON body for all error statuses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
