// Package protocol holds the JSON envelope shared by the POST /api endpoint
// and the device client. Requests are {"action": ..., ...fields}; responses
// are {"success": bool, ...fields} or {"success": false, "message": ...}.
package protocol

import (
	"github.com/vbonduro/stockcount/internal/domain"
)

const (
	ActionLogin           = "login"
	ActionGetProducts     = "getProducts"
	ActionSaveStockOpname = "saveStockOpname"
	ActionGetHistory      = "getHistory"
	ActionUpdateEntry     = "updateEntry"
	ActionDeleteEntry     = "deleteEntry"
	ActionDeleteProduct   = "deleteProduct"
	ActionLookupBarcode   = "lookupBarcode"
	ActionSearchProducts  = "searchProducts"
	ActionSearchLocations = "searchLocations"
	ActionWarmupCache     = "warmupCache"
)

type Envelope struct {
	Action string `json:"action"`
}

type LoginRequest struct {
	Action   string `json:"action"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Operator    string `json:"operator"`
	DisplayName string `json:"displayName"`
}

type GetProductsRequest struct {
	Action   string `json:"action"`
	Location string `json:"location"`
}

type ProductsResponse struct {
	Products []domain.CatalogRow `json:"products"`
}

type SaveStockOpnameRequest struct {
	Action string `json:"action"`
	domain.Batch
}

type SaveStockOpnameResponse = domain.SaveResult

type GetHistoryRequest struct {
	Action string `json:"action"`
	domain.HistoryFilter
}

type HistoryResponse struct {
	Entries []domain.CountEntry `json:"entries"`
}

type UpdateEntryRequest struct {
	Action  string  `json:"action"`
	RowID   string  `json:"rowId"`
	Qty     int     `json:"qty"`
	Batch   *string `json:"batch,omitempty"`
	Formula string  `json:"formula,omitempty"`
}

type EntryResponse struct {
	Entry *domain.CountEntry `json:"entry"`
}

type DeleteEntryRequest struct {
	Action string `json:"action"`
	RowID  string `json:"rowId"`
}

type DeleteProductRequest struct {
	Action   string `json:"action"`
	Location string `json:"location"`
	SKU      string `json:"sku"`
}

type LookupBarcodeRequest struct {
	Action  string `json:"action"`
	Barcode string `json:"barcode"`
}

type SearchRequest struct {
	Action string `json:"action"`
	Query  string `json:"query"`
	Limit  int    `json:"limit,omitempty"`
}

type LocationsResponse struct {
	Locations []string `json:"locations"`
}

type WarmupRequest struct {
	Action       string `json:"action"`
	ProductSeed  string `json:"productSeed,omitempty"`
	LocationSeed string `json:"locationSeed,omitempty"`
}

type WarmupResponse = domain.WarmResult

// Failure is the body of every unsuccessful response.
type Failure struct {
	Success bool   `json:"success"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Retry   bool   `json:"retry,omitempty"`
}
