package controllers

import (
	"net/http"

	"github.com/gpuoptimizer/revenue-core/api/middleware"
	"github.com/gpuoptimizer/revenue-core/api/responses"
	"github.com/gpuoptimizer/revenue-core/api/validators"
	"github.com/gpuoptimizer/revenue-core/internal/identity"
	"github.com/gpuoptimizer/revenue-core/pkg/logger"
)

type signupRequest struct {
	Email string `json:"email" validate:"required"`
}

type signupResponse struct {
	Email  string `json:"email"`
	APIKey string `json:"api_key"`
	Tier   string `json:"tier"`
}

func Signup(svc identity.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req signupRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if logg != nil {
			ctx = logg.WithClientIP(ctx, middleware.ClientIP(r))
		}

		customer, err := svc.CreateCustomer(ctx, req.Email)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, signupResponse{
			Email:  customer.Email,
			APIKey: customer.APIKey,
			Tier:   string(customer.Tier),
		})
	}
}
