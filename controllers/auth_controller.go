package controllers

import (
	"net/http"
	"time"

	"coopledger/config"
	"coopledger/middleware"
	"coopledger/models"
	"coopledger/services"

	"github.com/golang-jwt/jwt/v5"
)

// AuthController handles staff sign-in and account management
type AuthController struct {
	userService *services.UserService
	jwtKey      []byte
	expiresIn   time.Duration
}

// NewAuthController creates a new AuthController
func NewAuthController(userService *services.UserService, cfg *config.Config) *AuthController {
	return &AuthController{
		userService: userService,
		jwtKey:      []byte(cfg.JWT.SecretKey),
		expiresIn:   time.Duration(cfg.JWT.ExpiresIn) * time.Hour,
	}
}

// Claims are the JWT claims issued on sign-in
type Claims struct {
	UserID   uint   `json:"user_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

type signInRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type signInResponse struct {
	Token string       `json:"token"`
	User  *userSummary `json:"user"`
}

type userSummary struct {
	ID        uint        `json:"id"`
	Username  string      `json:"username"`
	FirstName string      `json:"firstName"`
	LastName  string      `json:"lastName"`
	Role      models.Role `json:"role"`
}

// SignIn authenticates a staff user and issues a JWT
func (c *AuthController) SignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if !decodeBody(w, r, &req) {
		return
	}

	user, err := c.userService.Authenticate(req.Username, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	claims := &Claims{
		UserID:   user.ID,
		Username: user.Username,
		Role:     string(user.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(c.expiresIn)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.jwtKey)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, &signInResponse{
		Token: signed,
		User: &userSummary{
			ID:        user.ID,
			Username:  user.Username,
			FirstName: user.FirstName,
			LastName:  user.LastName,
			Role:      user.Role,
		},
	})
}

// SignUp creates the first admin account; closed once any account exists
func (c *AuthController) SignUp(w http.ResponseWriter, r *http.Request) {
	var dto services.UserRegistrationDTO
	if !decodeBody(w, r, &dto) {
		return
	}

	user, err := c.userService.Bootstrap(&dto)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, &userSummary{
		ID:        user.ID,
		Username:  user.Username,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Role:      user.Role,
	})
}

// CreateUser registers a new staff account
func (c *AuthController) CreateUser(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetActor(r)

	var dto services.UserRegistrationDTO
	if !decodeBody(w, r, &dto) {
		return
	}

	user, err := c.userService.CreateUser(&dto, actor)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, &userSummary{
		ID:        user.ID,
		Username:  user.Username,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Role:      user.Role,
	})
}

// ChangeRole moves a staff account to a new role
func (c *AuthController) ChangeRole(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetActor(r)

	userID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req struct {
		Role string `json:"role"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	user, err := c.userService.ChangeRole(userID, models.Role(req.Role), actor)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, &userSummary{
		ID:        user.ID,
		Username:  user.Username,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Role:      user.Role,
	})
}

// DeactivateUser disables a staff account
func (c *AuthController) DeactivateUser(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetActor(r)

	userID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if _, err := c.userService.Deactivate(userID, actor); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deactivated"})
}
