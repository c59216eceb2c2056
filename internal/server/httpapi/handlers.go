package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dmitrijs2005/fitaccounts/internal/common"
	"github.com/dmitrijs2005/fitaccounts/internal/server/models"
	"github.com/dmitrijs2005/fitaccounts/internal/server/services"
	"github.com/gin-gonic/gin"
)

// AccountService is the subset of services.AccountService the handlers use.
type AccountService interface {
	Register(ctx context.Context, r models.Registration) (*models.RegistrationResult, error)
	Login(ctx context.Context, req models.LoginRequest) (*services.LoginOutput, error)
	GetAccount(ctx context.Context, accountID string) (*models.AccountWithProfile, error)
}

type ProfileService interface {
	Create(ctx context.Context, p models.ProfileParams) (*models.Profile, error)
}

type Handler struct {
	accounts AccountService
	profiles ProfileService
	metrics  *Metrics
}

type authRequest struct {
	Type           string `json:"type"`
	Secret         string `json:"secret"`
	ProviderUserID string `json:"provider_user_id"`
}

type registerRequest struct {
	Email    string      `json:"email"`
	Phone    string      `json:"phone"`
	Nickname string      `json:"nickname"`
	Auth     authRequest `json:"auth"`
}

type registerResponse struct {
	UserID            string `json:"user_id"`
	Message           string `json:"message"`
	AlreadyRegistered bool   `json:"already_registered"`
	Warning           string `json:"warning,omitempty"`
}

type loginRequest struct {
	Login    string `json:"login"`
	Ident    string `json:"ident"`
	Password string `json:"password"`
}

type loginResponse struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	Nickname    string `json:"nickname"`
	AccessToken string `json:"access_token"`
}

type profileResponse struct {
	UserID    string    `json:"user_id"`
	Age       int       `json:"age"`
	Height    float64   `json:"height"`
	Weight    float64   `json:"weight"`
	Goal      string    `json:"goal"`
	CreatedAt time.Time `json:"created_at"`
}

type accountResponse struct {
	ID       string           `json:"id"`
	Email    string           `json:"email"`
	Phone    string           `json:"phone"`
	Nickname string           `json:"nickname"`
	Profile  *profileResponse `json:"profile,omitempty"`
}

func (a authRequest) method() (models.AuthMethod, error) {
	switch a.Type {
	case "password":
		return models.PasswordAuth{Secret: a.Secret}, nil
	case "external":
		return models.ExternalAuth{ProviderUserID: a.ProviderUserID}, nil
	default:
		return nil, common.NewValidationError("auth", common.ReasonUnknownAuthMethod)
	}
}

func (h *Handler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, "malformed request body")
		return
	}

	method, err := req.Auth.method()
	if err != nil {
		h.metrics.observeAuth("register", fail(c, err))
		return
	}

	res, err := h.accounts.Register(c.Request.Context(), models.Registration{
		Email:    req.Email,
		Phone:    req.Phone,
		Nickname: req.Nickname,
		Auth:     method,
	})
	if err != nil {
		h.metrics.observeAuth("register", fail(c, err))
		return
	}

	status, outcome := http.StatusCreated, "created"
	if res.AlreadyRegistered {
		status, outcome = http.StatusOK, "already_registered"
	}
	h.metrics.observeAuth("register", outcome)

	ok(c, status, registerResponse{
		UserID:            res.AccountID,
		Message:           res.Message,
		AlreadyRegistered: res.AlreadyRegistered,
		Warning:           res.Warning,
	})
}

func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, "malformed request body")
		return
	}

	out, err := h.accounts.Login(c.Request.Context(), models.LoginRequest{
		Ident:    req.Ident,
		Login:    req.Login,
		Password: req.Password,
	})
	if err != nil {
		h.metrics.observeAuth("login", fail(c, err))
		return
	}
	h.metrics.observeAuth("login", "ok")

	ok(c, http.StatusOK, loginResponse{
		ID:          out.AccountID,
		Email:       out.Email,
		Phone:       out.Phone,
		Nickname:    out.Nickname,
		AccessToken: out.AccessToken,
	})
}

func (h *Handler) CreateProfile(c *gin.Context) {
	var req models.ProfileParams
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, "malformed request body")
		return
	}

	if !requireOwner(c, req.UserID) {
		return
	}

	p, err := h.profiles.Create(c.Request.Context(), req)
	if err != nil {
		h.failLookup(c, err)
		return
	}

	ok(c, http.StatusCreated, toProfileResponse(p))
}

func (h *Handler) GetUserData(c *gin.Context) {
	id := c.Param("id")
	if !requireOwner(c, id) {
		return
	}

	acc, err := h.accounts.GetAccount(c.Request.Context(), id)
	if err != nil {
		h.failLookup(c, err)
		return
	}

	resp := accountResponse{ID: acc.ID, Email: acc.Email, Phone: acc.Phone, Nickname: acc.Nickname}
	if acc.Profile != nil {
		resp.Profile = toProfileResponse(acc.Profile)
	}
	ok(c, http.StatusOK, resp)
}

// failLookup is fail for authenticated routes, where a missing account is a
// plain 404 rather than a login rejection.
func (h *Handler) failLookup(c *gin.Context, err error) {
	if errors.Is(err, common.ErrAccountNotFound) {
		_ = c.Error(err)
		abort(c, http.StatusNotFound, "account not found")
		return
	}
	fail(c, err)
}

func (h *Handler) Health(c *gin.Context) {
	ok(c, http.StatusOK, gin.H{"status": "ok"})
}

func toProfileResponse(p *models.Profile) *profileResponse {
	return &profileResponse{
		UserID:    p.UserID,
		Age:       p.Age,
		Height:    p.Height,
		Weight:    p.Weight,
		Goal:      p.Goal,
		CreatedAt: p.CreatedAt,
	}
}
