package controllers

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/kitlyhq/kitly-backend/api/responses"
	"github.com/kitlyhq/kitly-backend/internal/entitlements"
	"github.com/kitlyhq/kitly-backend/pkg/logger"
)

type planResponse struct {
	Code         string            `json:"code"`
	Name         string            `json:"name"`
	MonthlyPrice decimal.Decimal   `json:"monthlyPrice"`
	Entitlements map[string]string `json:"entitlements"`
}

// ListPlans exposes the static plan catalog.
func ListPlans(catalog *entitlements.Catalog, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		plans := catalog.Plans()
		out := make([]planResponse, 0, len(plans))
		for _, plan := range plans {
			out = append(out, planResponse{
				Code:         string(plan.Code),
				Name:         plan.Name,
				MonthlyPrice: plan.MonthlyPrice,
				Entitlements: plan.Entitlements(),
			})
		}
		responses.WriteSuccess(w, out)
	}
}
