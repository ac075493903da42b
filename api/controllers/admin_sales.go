package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/partsdepot/partsdepot-backend/api/responses"
	"github.com/partsdepot/partsdepot-backend/api/validators"
	salesvc "github.com/partsdepot/partsdepot-backend/internal/sales"
	pkgerrors "github.com/partsdepot/partsdepot-backend/pkg/errors"
	"github.com/partsdepot/partsdepot-backend/pkg/logger"
	"github.com/partsdepot/partsdepot-backend/pkg/pagination"
)

// AdminSaleList pages the append-only sales log, newest first.
func AdminSaleList(svc salesvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		input, err := saleListInputFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.ListSales(r.Context(), *input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

// AdminSaleDetail serves one sale record.
func AdminSaleDetail(svc salesvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		saleID, err := uuid.Parse(chi.URLParam(r, "saleId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid sale id"))
			return
		}

		sale, err := svc.GetSale(r.Context(), saleID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, sale)
	}
}

func saleListInputFromRequest(r *http.Request) (*salesvc.ListInput, error) {
	limit, err := validators.ParseQueryInt(r, "limit", 0, 0, pagination.MaxLimit)
	if err != nil {
		return nil, err
	}
	soldFrom, err := validators.ParseQueryTime(r, "sold_from")
	if err != nil {
		return nil, err
	}
	soldUntil, err := validators.ParseQueryTime(r, "sold_until")
	if err != nil {
		return nil, err
	}

	input := &salesvc.ListInput{
		SoldFrom:  soldFrom,
		SoldUntil: soldUntil,
		Pagination: pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		},
	}

	if raw := strings.TrimSpace(r.URL.Query().Get("customer_id")); raw != "" {
		customerID, err := uuid.Parse(raw)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid customer id")
		}
		input.CustomerID = &customerID
	}
	return input, nil
}
