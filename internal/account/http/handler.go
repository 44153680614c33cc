package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nekogravitycat/table-booking-backend/internal/account"
	"github.com/nekogravitycat/table-booking-backend/internal/auth"
	"github.com/nekogravitycat/table-booking-backend/internal/pkg/request"
	"github.com/nekogravitycat/table-booking-backend/internal/pkg/response"
)

type AccountHandler struct {
	service    account.Service
	jwtManager *auth.JWTManager
}

func NewHandler(service account.Service, jwtManager *auth.JWTManager) *AccountHandler {
	return &AccountHandler{
		service:    service,
		jwtManager: jwtManager,
	}
}

// Register creates a regular account.
func (h *AccountHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request", err)
		return
	}

	a, err := h.service.Register(c.Request.Context(), account.RegisterRequest{
		Username:  req.Username,
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, MeResponse{Account: NewAccountResponse(a)})
}

// Login authenticates with username or email and returns a JWT access token.
func (h *AccountHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request", err)
		return
	}

	a, err := h.service.Login(c.Request.Context(), req.Login, req.Password)
	if err != nil {
		// For security reasons, do not reveal which condition failed
		if errors.Is(err, account.ErrInactiveAccount) {
			err = account.ErrInvalidCredentials
		}
		response.Error(c, err)
		return
	}

	token, err := h.jwtManager.GenerateAccessToken(a.ID, a.Role)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, LoginResponse{
		AccessToken: token,
		Account:     NewAccountResponse(a),
	})
}

// Me retrieves the profile of the currently authenticated account.
func (h *AccountHandler) Me(c *gin.Context) {
	a, err := h.service.GetByID(c.Request.Context(), auth.GetAccountID(c))
	if err != nil {
		c.JSON(http.StatusUnauthorized, response.ErrorResponse{Error: "account not found"})
		return
	}

	c.JSON(http.StatusOK, MeResponse{Account: NewAccountResponse(a)})
}

// List retrieves a paginated list of accounts.
// Access Control: admin only.
func (h *AccountHandler) List(c *gin.Context) {
	var req ListAccountsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, "invalid query parameters", err)
		return
	}
	req.Normalize()

	items, total, err := h.service.List(c.Request.Context(), account.Filter{
		IsActive: req.IsActive,
		Role:     req.Role,
		Page:     req.Page,
		PageSize: req.PageSize,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	out := make([]AccountResponse, len(items))
	for i, a := range items {
		out[i] = NewAccountResponse(a)
	}

	c.JSON(http.StatusOK, response.NewPageResponse(out, req.Page, req.PageSize, total))
}

// Get retrieves an account by ID.
// Access Control: the account itself or an admin.
func (h *AccountHandler) Get(c *gin.Context) {
	var req request.ByIDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		response.BadRequest(c, "invalid request", err)
		return
	}
	if !h.allowed(c, req.ID) {
		response.Error(c, account.ErrNotFound)
		return
	}

	a, err := h.service.GetByID(c.Request.Context(), req.ID)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, MeResponse{Account: NewAccountResponse(a)})
}

// Update modifies an account. Only admins may change role or is_active.
func (h *AccountHandler) Update(c *gin.Context) {
	var uri request.ByIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		response.BadRequest(c, "invalid request", err)
		return
	}

	var body UpdateAccountRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "invalid body", err)
		return
	}

	if !h.allowed(c, uri.ID) {
		response.Error(c, account.ErrNotFound)
		return
	}
	if body.privileged() && auth.GetRole(c) != account.RoleAdmin {
		c.JSON(http.StatusForbidden, response.ErrorResponse{Error: "forbidden: admin access required"})
		return
	}

	a, err := h.service.Update(c.Request.Context(), uri.ID, account.UpdateRequest{
		Email:     body.Email,
		Password:  body.Password,
		FirstName: body.FirstName,
		LastName:  body.LastName,
		Phone:     body.Phone,
		Role:      body.Role,
		IsActive:  body.IsActive,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, MeResponse{Account: NewAccountResponse(a)})
}

// Delete removes an account and its reservations.
// Access Control: the account itself or an admin.
func (h *AccountHandler) Delete(c *gin.Context) {
	var req request.ByIDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		response.BadRequest(c, "invalid request", err)
		return
	}
	if !h.allowed(c, req.ID) {
		response.Error(c, account.ErrNotFound)
		return
	}

	if err := h.service.Delete(c.Request.Context(), req.ID); err != nil {
		response.Error(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// allowed hides other accounts from non-admins.
func (h *AccountHandler) allowed(c *gin.Context, id int64) bool {
	return auth.GetAccountID(c) == id || auth.GetRole(c) == account.RoleAdmin
}
