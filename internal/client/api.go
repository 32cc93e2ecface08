// Package client is the field-device side of stockcount: a JSON API client
// plus the Device facade that renders cached views instantly and applies
// mutations optimistically.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/vbonduro/stockcount/internal/apperr"
	"github.com/vbonduro/stockcount/internal/domain"
	"github.com/vbonduro/stockcount/internal/protocol"
)

const defaultTimeout = 30 * time.Second

type API struct {
	endpoint string
	client   *http.Client
}

// NewAPI targets the server's JSON endpoint, e.g. "https://host/api". A nil
// httpClient uses one with a 30s timeout.
func NewAPI(endpoint string, httpClient *http.Client) *API {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &API{endpoint: endpoint, client: httpClient}
}

// call posts req and decodes a successful response into out. Transport
// failures are TRANSIENT_NETWORK; success:false carries the server's code.
func (a *API) call(ctx context.Context, req, out any) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return apperr.Wrap(apperr.CodeTransientNetwork, "server unreachable", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperr.Wrap(apperr.CodeTransientNetwork, "failed to read response", err)
	}

	var status struct {
		Success bool   `json:"success"`
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &status); err != nil {
		if resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests {
			return apperr.New(apperr.CodeTransientNetwork, fmt.Sprintf("server returned status %d", resp.StatusCode))
		}
		return fmt.Errorf("failed to decode response (status %d): %w", resp.StatusCode, err)
	}
	if !status.Success {
		code := apperr.Code(status.Code)
		if code == "" {
			code = apperr.CodeInternal
		}
		return apperr.New(code, status.Message)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (a *API) Login(ctx context.Context, username, password string) (*protocol.LoginResponse, error) {
	var out protocol.LoginResponse
	err := a.call(ctx, protocol.LoginRequest{Action: protocol.ActionLogin, Username: username, Password: password}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *API) Products(ctx context.Context, location string) ([]domain.CatalogRow, error) {
	var out protocol.ProductsResponse
	err := a.call(ctx, protocol.GetProductsRequest{Action: protocol.ActionGetProducts, Location: location}, &out)
	return out.Products, err
}

func (a *API) History(ctx context.Context, f domain.HistoryFilter) ([]domain.CountEntry, error) {
	var out protocol.HistoryResponse
	err := a.call(ctx, protocol.GetHistoryRequest{Action: protocol.ActionGetHistory, HistoryFilter: f}, &out)
	return out.Entries, err
}

func (a *API) SaveBatch(ctx context.Context, b domain.Batch) (*domain.SaveResult, error) {
	var out protocol.SaveStockOpnameResponse
	err := a.call(ctx, protocol.SaveStockOpnameRequest{Action: protocol.ActionSaveStockOpname, Batch: b}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *API) UpdateEntry(ctx context.Context, rowID string, edit domain.EntryEdit) (*domain.CountEntry, error) {
	var out protocol.EntryResponse
	err := a.call(ctx, protocol.UpdateEntryRequest{
		Action:  protocol.ActionUpdateEntry,
		RowID:   rowID,
		Qty:     edit.Qty,
		Batch:   edit.Batch,
		Formula: edit.Formula,
	}, &out)
	return out.Entry, err
}

func (a *API) DeleteEntry(ctx context.Context, rowID string) error {
	return a.call(ctx, protocol.DeleteEntryRequest{Action: protocol.ActionDeleteEntry, RowID: rowID}, nil)
}

func (a *API) DeleteProduct(ctx context.Context, location, sku string) error {
	return a.call(ctx, protocol.DeleteProductRequest{Action: protocol.ActionDeleteProduct, Location: location, SKU: sku}, nil)
}

func (a *API) LookupBarcode(ctx context.Context, barcode string) ([]domain.CatalogRow, error) {
	var out protocol.ProductsResponse
	err := a.call(ctx, protocol.LookupBarcodeRequest{Action: protocol.ActionLookupBarcode, Barcode: barcode}, &out)
	return out.Products, err
}

func (a *API) SearchProducts(ctx context.Context, query string) ([]domain.CatalogRow, error) {
	var out protocol.ProductsResponse
	err := a.call(ctx, protocol.SearchRequest{Action: protocol.ActionSearchProducts, Query: query}, &out)
	return out.Products, err
}

func (a *API) SearchLocations(ctx context.Context, query string) ([]string, error) {
	var out protocol.LocationsResponse
	err := a.call(ctx, protocol.SearchRequest{Action: protocol.ActionSearchLocations, Query: query}, &out)
	return out.Locations, err
}

func (a *API) Warmup(ctx context.Context, productSeed, locationSeed string) (*domain.WarmResult, error) {
	var out protocol.WarmupResponse
	err := a.call(ctx, protocol.WarmupRequest{
		Action:       protocol.ActionWarmupCache,
		ProductSeed:  productSeed,
		LocationSeed: locationSeed,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}
