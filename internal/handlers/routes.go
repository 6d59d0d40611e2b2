package handlers

import (
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/shortlinks/internal/ratelimit"
)

// BearerScheme names the security scheme of authenticated operations.
const BearerScheme = "bearer"

var bearerSecurity = []map[string][]string{{BearerScheme: {}}}

// RegisterRoutes registers the user and link operations. Credential
// endpoints share the auth rate limit scope; redirects get a relaxed
// per-route limit.
func RegisterRoutes(api huma.API, users *UserHandler, links *LinkHandler) {
	if oapi := api.OpenAPI(); oapi.Components != nil {
		if oapi.Components.SecuritySchemes == nil {
			oapi.Components.SecuritySchemes = map[string]*huma.SecurityScheme{}
		}

		oapi.Components.SecuritySchemes[BearerScheme] = &huma.SecurityScheme{
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "JWT",
		}
	}

	authScope := ratelimit.EndpointConfig{Scope: ratelimit.ScopeAuth}

	huma.Register(api, huma.Operation{
		OperationID:   "register-user",
		Method:        http.MethodPost,
		Path:          "/users",
		Summary:       "Register a user",
		Tags:          []string{"Users"},
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusConflict},
		Metadata:      map[string]any{ratelimit.MetadataKey: authScope},
	}, users.Register)

	huma.Register(api, huma.Operation{
		OperationID: "change-password",
		Method:      http.MethodPut,
		Path:        "/users",
		Summary:     "Change a password",
		Tags:        []string{"Users"},
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden},
		Metadata:    map[string]any{ratelimit.MetadataKey: authScope},
	}, users.ChangePassword)

	huma.Register(api, huma.Operation{
		OperationID: "login",
		Method:      http.MethodPost,
		Path:        "/users/login",
		Summary:     "Exchange credentials for a bearer token",
		Tags:        []string{"Users"},
		Errors:      []int{http.StatusForbidden, http.StatusTooManyRequests},
		Metadata:    map[string]any{ratelimit.MetadataKey: authScope},
	}, users.Login)

	huma.Register(api, huma.Operation{
		OperationID:   "create-link",
		Method:        http.MethodPost,
		Path:          "/",
		Summary:       "Create short URL",
		Tags:          []string{"Links"},
		DefaultStatus: http.StatusCreated,
		Security:      bearerSecurity,
		Errors:        []int{http.StatusBadRequest, http.StatusForbidden},
		Metadata:      map[string]any{MetadataAuth: AuthRequired},
	}, links.Create)

	huma.Register(api, huma.Operation{
		OperationID: "list-links",
		Method:      http.MethodGet,
		Path:        "/",
		Summary:     "List own short URLs",
		Tags:        []string{"Links"},
		Security:    bearerSecurity,
		Errors:      []int{http.StatusForbidden},
		Metadata:    map[string]any{MetadataAuth: AuthRequired},
	}, links.List)

	huma.Register(api, huma.Operation{
		OperationID:   "delete-all-links",
		Method:        http.MethodDelete,
		Path:          "/",
		Summary:       "Delete all own short URLs",
		Tags:          []string{"Links"},
		DefaultStatus: http.StatusNoContent,
		Security:      bearerSecurity,
		Errors:        []int{http.StatusForbidden},
		Metadata:      map[string]any{MetadataAuth: AuthRequired},
	}, links.DeleteAll)

	huma.Register(api, huma.Operation{
		OperationID: "link-stats",
		Method:      http.MethodGet,
		Path:        "/stats/{id}",
		Summary:     "Access statistics of a short URL",
		Tags:        []string{"Links"},
		Security:    bearerSecurity,
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
		Metadata:    map[string]any{MetadataAuth: AuthRequired},
	}, links.Stats)

	huma.Register(api, huma.Operation{
		OperationID: "redirect",
		Method:      http.MethodGet,
		Path:        "/{id}",
		Summary:     "Redirect to the target URL",
		Tags:        []string{"Links"},
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
		Metadata: map[string]any{
			MetadataAuth: AuthOptional,
			ratelimit.MetadataKey: ratelimit.EndpointConfig{
				Limits: []ratelimit.LimitConfig{
					{Window: time.Minute, Max: 1000},
				},
			},
		},
	}, links.Redirect)

	huma.Register(api, huma.Operation{
		OperationID: "update-link",
		Method:      http.MethodPut,
		Path:        "/{id}",
		Summary:     "Change the target of a short URL",
		Tags:        []string{"Links"},
		Security:    bearerSecurity,
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound},
		Metadata:    map[string]any{MetadataAuth: AuthRequired},
	}, links.Update)

	huma.Register(api, huma.Operation{
		OperationID:   "delete-link",
		Method:        http.MethodDelete,
		Path:          "/{id}",
		Summary:       "Delete a short URL",
		Tags:          []string{"Links"},
		DefaultStatus: http.StatusNoContent,
		Security:      bearerSecurity,
		Errors:        []int{http.StatusForbidden, http.StatusNotFound},
		Metadata:      map[string]any{MetadataAuth: AuthRequired},
	}, links.Delete)
}
