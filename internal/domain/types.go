package domain

import "time"

// CatalogRow is location→product reference data. Unique per (Location, SKU).
type CatalogRow struct {
	Location    string `json:"location" msgpack:"location"`
	ProductName string `json:"productName" msgpack:"productName"`
	SKU         string `json:"sku" msgpack:"sku"`
	Batch       string `json:"batch" msgpack:"batch"`
	Barcode     string `json:"barcode" msgpack:"barcode"`
}

// CountEntry is one row of the count log. RowID is the stable identity used
// for edit and delete.
type CountEntry struct {
	SessionID     string     `json:"sessionId" msgpack:"sessionId"`
	RowID         string     `json:"rowId" msgpack:"rowId"`
	Timestamp     time.Time  `json:"timestamp" msgpack:"timestamp"`
	Operator      string     `json:"operator" msgpack:"operator"`
	Location      string     `json:"location" msgpack:"location"`
	ProductName   string     `json:"productName" msgpack:"productName"`
	SKU           string     `json:"sku" msgpack:"sku"`
	Batch         string     `json:"batch" msgpack:"batch"`
	Qty           int        `json:"qty" msgpack:"qty"`
	Edited        bool       `json:"edited" msgpack:"edited"`
	EditTimestamp *time.Time `json:"editTimestamp" msgpack:"editTimestamp"`
	Formula       string     `json:"formula" msgpack:"formula"`
}

// Catalog returns the catalog row implied by a count entry.
func (e CountEntry) Catalog(barcode string) CatalogRow {
	return CatalogRow{
		Location:    e.Location,
		ProductName: e.ProductName,
		SKU:         e.SKU,
		Batch:       e.Batch,
		Barcode:     barcode,
	}
}

type Operator struct {
	Username     string
	DisplayName  string
	PasswordHash string
	CreatedAt    time.Time
}

// HistoryFilter narrows count-log reads. Zero fields match everything.
type HistoryFilter struct {
	Operator  string `json:"operator,omitempty"`
	Location  string `json:"location,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
	Limit     int    `json:"limit,omitempty"`
}

// EntryEdit carries the editable fields of a count entry.
type EntryEdit struct {
	Qty     int
	Batch   *string
	Formula string
}

// BatchItem is one counted line of a submitted batch.
type BatchItem struct {
	RowID       string `json:"rowId,omitempty"`
	Location    string `json:"location"`
	ProductName string `json:"productName"`
	SKU         string `json:"sku"`
	Batch       string `json:"batch"`
	Barcode     string `json:"barcode,omitempty"`
	Qty         int    `json:"qty"`
	Formula     string `json:"formula,omitempty"`
}

type Batch struct {
	SessionID string      `json:"sessionId,omitempty"`
	Operator  string      `json:"operator"`
	Items     []BatchItem `json:"items"`
}

type SaveResult struct {
	SessionID    string   `json:"sessionId"`
	RowIDs       []string `json:"rowIds"`
	Saved        int      `json:"saved"`
	CatalogAdded int      `json:"catalogAdded"`
}

// WarmResult counts the cache entries a warmup populated.
type WarmResult struct {
	Products  int `json:"products"`
	Locations int `json:"locations"`
}
