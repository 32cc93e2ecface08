package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/vbonduro/stockcount/internal/apperr"
	"github.com/vbonduro/stockcount/internal/domain"
	"github.com/vbonduro/stockcount/internal/protocol"
)

const maxRequestBytes = 1 << 20

// actionFunc decodes its request from body and returns the success payload.
type actionFunc func(ctx context.Context, body []byte) (any, error)

func (s *Server) actionTable() map[string]actionFunc {
	return map[string]actionFunc{
		protocol.ActionLogin:           s.login,
		protocol.ActionGetProducts:     s.getProducts,
		protocol.ActionSaveStockOpname: s.saveStockOpname,
		protocol.ActionGetHistory:      s.getHistory,
		protocol.ActionUpdateEntry:     s.updateEntry,
		protocol.ActionDeleteEntry:     s.deleteEntry,
		protocol.ActionDeleteProduct:   s.deleteProduct,
		protocol.ActionLookupBarcode:   s.lookupBarcode,
		protocol.ActionSearchProducts:  s.searchProducts,
		protocol.ActionSearchLocations: s.searchLocations,
		protocol.ActionWarmupCache:     s.warmupCache,
	}
}

func (s *Server) handleAPI(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err != nil {
		s.writeError(w, "", apperr.Validation("request body too large or unreadable"))
		return
	}
	var env protocol.Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		s.writeError(w, "", apperr.Validation("request is not valid JSON"))
		return
	}
	fn, ok := s.actions[env.Action]
	if !ok {
		s.writeError(w, env.Action, apperr.Validation(fmt.Sprintf("unknown action %q", env.Action)))
		return
	}

	payload, err := fn(r.Context(), body)
	if err != nil {
		s.writeError(w, env.Action, err)
		return
	}
	s.writeSuccess(w, env.Action, payload)
}

// writeSuccess renders payload's fields next to "success": true.
func (s *Server) writeSuccess(w http.ResponseWriter, action string, payload any) {
	var buf bytes.Buffer
	buf.WriteString(`{"success":true`)
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			s.writeError(w, action, fmt.Errorf("failed to encode response: %w", err))
			return
		}
		if len(b) > 2 {
			buf.WriteByte(',')
			buf.Write(b[1 : len(b)-1])
		}
	}
	buf.WriteByte('}')
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(buf.Bytes())
}

// writeError maps structured failures to 200 success:false and everything
// else to 500.
func (s *Server) writeError(w http.ResponseWriter, action string, err error) {
	code := apperr.CodeOf(err)
	resp := protocol.Failure{Code: string(code), Message: apperr.Message(err)}
	status := http.StatusOK
	switch code {
	case apperr.CodeBusy:
		resp.Retry = true
	case apperr.CodeNotFound, apperr.CodeValidation, apperr.CodeUnauthorized:
	default:
		status = http.StatusInternalServerError
		s.logger.Error("action failed", "action", action, "error", err)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Error("failed to write response", "error", err)
	}
}

func decode[T any](body []byte) (T, error) {
	var req T
	if err := json.Unmarshal(body, &req); err != nil {
		var syntax *json.SyntaxError
		var typ *json.UnmarshalTypeError
		if errors.As(err, &typ) {
			return req, apperr.Validation(fmt.Sprintf("field %s has the wrong type", typ.Field))
		}
		if errors.As(err, &syntax) {
			return req, apperr.Validation("request is not valid JSON")
		}
		return req, apperr.Validation("malformed request")
	}
	return req, nil
}

func orEmpty[T any](v []T) []T {
	if v == nil {
		return []T{}
	}
	return v
}

func (s *Server) login(ctx context.Context, body []byte) (any, error) {
	req, err := decode[protocol.LoginRequest](body)
	if err != nil {
		return nil, err
	}
	op, err := s.svc.Auth.Login(ctx, req.Username, req.Password)
	if err != nil {
		return nil, err
	}
	return protocol.LoginResponse{Operator: op.Username, DisplayName: op.DisplayName}, nil
}

func (s *Server) getProducts(ctx context.Context, body []byte) (any, error) {
	req, err := decode[protocol.GetProductsRequest](body)
	if err != nil {
		return nil, err
	}
	rows, err := s.svc.Queries.Products(ctx, req.Location)
	if err != nil {
		return nil, err
	}
	return protocol.ProductsResponse{Products: orEmpty(rows)}, nil
}

func (s *Server) saveStockOpname(ctx context.Context, body []byte) (any, error) {
	req, err := decode[protocol.SaveStockOpnameRequest](body)
	if err != nil {
		return nil, err
	}
	return s.svc.Coordinator.SaveBatch(ctx, req.Batch)
}

func (s *Server) getHistory(ctx context.Context, body []byte) (any, error) {
	req, err := decode[protocol.GetHistoryRequest](body)
	if err != nil {
		return nil, err
	}
	entries, err := s.svc.Queries.History(ctx, req.HistoryFilter)
	if err != nil {
		return nil, err
	}
	return protocol.HistoryResponse{Entries: orEmpty(entries)}, nil
}

func (s *Server) updateEntry(ctx context.Context, body []byte) (any, error) {
	req, err := decode[protocol.UpdateEntryRequest](body)
	if err != nil {
		return nil, err
	}
	e, err := s.svc.Coordinator.UpdateEntry(ctx, req.RowID, domain.EntryEdit{
		Qty:     req.Qty,
		Batch:   req.Batch,
		Formula: req.Formula,
	})
	if err != nil {
		return nil, err
	}
	return protocol.EntryResponse{Entry: e}, nil
}

func (s *Server) deleteEntry(ctx context.Context, body []byte) (any, error) {
	req, err := decode[protocol.DeleteEntryRequest](body)
	if err != nil {
		return nil, err
	}
	e, err := s.svc.Coordinator.DeleteEntry(ctx, req.RowID)
	if err != nil {
		return nil, err
	}
	return protocol.EntryResponse{Entry: e}, nil
}

func (s *Server) deleteProduct(ctx context.Context, body []byte) (any, error) {
	req, err := decode[protocol.DeleteProductRequest](body)
	if err != nil {
		return nil, err
	}
	return nil, s.svc.Coordinator.DeleteProduct(ctx, req.Location, req.SKU)
}

func (s *Server) lookupBarcode(ctx context.Context, body []byte) (any, error) {
	req, err := decode[protocol.LookupBarcodeRequest](body)
	if err != nil {
		return nil, err
	}
	rows, err := s.svc.Queries.LookupBarcode(ctx, req.Barcode)
	if err != nil {
		return nil, err
	}
	return protocol.ProductsResponse{Products: orEmpty(rows)}, nil
}

func (s *Server) searchProducts(ctx context.Context, body []byte) (any, error) {
	req, err := decode[protocol.SearchRequest](body)
	if err != nil {
		return nil, err
	}
	rows, err := s.svc.Queries.SearchProducts(ctx, req.Query, req.Limit)
	if err != nil {
		return nil, err
	}
	return protocol.ProductsResponse{Products: orEmpty(rows)}, nil
}

func (s *Server) searchLocations(ctx context.Context, body []byte) (any, error) {
	req, err := decode[protocol.SearchRequest](body)
	if err != nil {
		return nil, err
	}
	locs, err := s.svc.Queries.SearchLocations(ctx, req.Query, req.Limit)
	if err != nil {
		return nil, err
	}
	return protocol.LocationsResponse{Locations: orEmpty(locs)}, nil
}

func (s *Server) warmupCache(ctx context.Context, body []byte) (any, error) {
	req, err := decode[protocol.WarmupRequest](body)
	if err != nil {
		return nil, err
	}
	return s.svc.Warmer.Warm(ctx, req.ProductSeed, req.LocationSeed)
}
