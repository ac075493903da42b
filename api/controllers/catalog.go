package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/partsdepot/partsdepot-backend/api/responses"
	"github.com/partsdepot/partsdepot-backend/api/validators"
	partsvc "github.com/partsdepot/partsdepot-backend/internal/parts"
	pkgerrors "github.com/partsdepot/partsdepot-backend/pkg/errors"
	"github.com/partsdepot/partsdepot-backend/pkg/logger"
	"github.com/partsdepot/partsdepot-backend/pkg/pagination"
)

// CatalogList serves the public browse surface. All filters are optional.
func CatalogList(svc partsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query, err := catalogQueryFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.ListCatalog(r.Context(), *query)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

// CatalogDetail serves one listing by id.
func CatalogDetail(svc partsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		partID, err := uuid.Parse(chi.URLParam(r, "partId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid part id"))
			return
		}

		part, err := svc.GetPart(r.Context(), partID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, part)
	}
}

func catalogQueryFromRequest(r *http.Request) (*partsvc.CatalogQuery, error) {
	year, err := validators.ParseQueryInt(r, "year", 0, 0, 2100)
	if err != nil {
		return nil, err
	}
	limit, err := validators.ParseQueryInt(r, "limit", 0, 0, pagination.MaxLimit)
	if err != nil {
		return nil, err
	}

	query := &partsvc.CatalogQuery{
		Brand:    strings.TrimSpace(r.URL.Query().Get("brand")),
		Model:    strings.TrimSpace(r.URL.Query().Get("model")),
		Year:     year,
		PartType: strings.TrimSpace(r.URL.Query().Get("part_type")),
		Search:   strings.TrimSpace(r.URL.Query().Get("search")),
		Pagination: pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		},
	}

	if raw := strings.TrimSpace(r.URL.Query().Get("min_price_cents")); raw != "" {
		value, err := validators.ParseQueryInt(r, "min_price_cents", 0, 0, 1<<30)
		if err != nil {
			return nil, err
		}
		query.MinPriceCents = &value
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("max_price_cents")); raw != "" {
		value, err := validators.ParseQueryInt(r, "max_price_cents", 0, 0, 1<<30)
		if err != nil {
			return nil, err
		}
		query.MaxPriceCents = &value
	}
	return query, nil
}
