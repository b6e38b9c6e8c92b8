package controllers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"gorm.io/gorm"

	"github.com/cppla/myblog/config"
	"github.com/cppla/myblog/middleware"
	"github.com/cppla/myblog/models"
	"github.com/cppla/myblog/submission"
	"github.com/cppla/myblog/utils"
)

const oauthStateTTL = 10 * time.Minute

// AuthController handles local accounts and third-party sign in.
type AuthController struct {
	db *gorm.DB
}

func NewAuthController(db *gorm.DB) *AuthController {
	return &AuthController{db: db}
}

type registration struct {
	Email           string `json:"email" binding:"required"`
	DisplayName     string `json:"display_name" binding:"required"`
	Password        string `json:"password" binding:"required"`
	ConfirmPassword string `json:"confirm_password" binding:"required"`
}

// normalize cleans the input in place and reports the first invalid field.
func (r *registration) normalize() *submission.ValidationError {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.DisplayName = utils.SanitizeText(r.DisplayName)

	switch n := utf8.RuneCountInString(r.DisplayName); {
	case !validEmail(r.Email):
		return &submission.ValidationError{Field: "email", Message: "invalid email address"}
	case n < 2 || n > 64:
		return &submission.ValidationError{Field: "display_name", Message: "display name must be 2-64 characters"}
	case r.Password != r.ConfirmPassword:
		return &submission.ValidationError{Field: "confirm_password", Message: "passwords do not match"}
	case len(r.Password) < utils.MinPasswordLength || len(r.Password) > utils.MaxPasswordLength:
		return &submission.ValidationError{Field: "password",
			Message: fmt.Sprintf("password must be %d-%d characters", utils.MinPasswordLength, utils.MaxPasswordLength)}
	}
	return nil
}

func validEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s
}

// Register creates a local account and signs it in.
func (a *AuthController) Register(ctx *gin.Context) {
	var req registration
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40001, "invalid request payload")
		return
	}
	if verr := req.normalize(); verr != nil {
		utils.ErrorWithDetail(ctx, http.StatusBadRequest, 40002, verr.Message, gin.H{"field": verr.Field})
		return
	}

	var taken int64
	if err := a.db.Model(&models.User{}).Where("email = ?", req.Email).Count(&taken).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50002, "failed to create user")
		return
	}
	if taken > 0 {
		utils.Error(ctx, http.StatusConflict, 40901, "email already registered")
		return
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50001, "failed to hash password")
		return
	}
	user := models.User{Username: req.DisplayName, Email: req.Email, PasswordHash: hash, Provider: "local"}
	if err := a.db.Create(&user).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50002, "failed to create user")
		return
	}
	a.grantConfiguredRoles(&user)

	a.issue(ctx, &user, msgRegistered, http.StatusCreated)
}

// Login verifies a local password.
func (a *AuthController) Login(ctx *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40003, "invalid request payload")
		return
	}

	var user models.User
	err := a.db.Preload("Roles").Where("email = ?", strings.ToLower(strings.TrimSpace(req.Email))).First(&user).Error
	if err != nil || !utils.CheckPassword(user.PasswordHash, req.Password) {
		utils.Error(ctx, http.StatusUnauthorized, 40107, "invalid email or password")
		return
	}
	a.issue(ctx, &user, msgLoggedIn, http.StatusOK)
}

// issue signs a token for user, queues the greeting flash and writes the response.
func (a *AuthController) issue(ctx *gin.Context, user *models.User, greeting string, status int) {
	token, err := utils.GenerateToken(user.ID, user.Username, 0)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50003, "failed to generate token")
		return
	}
	utils.PushFlash(user.ID, utils.FlashInfo, greeting)
	utils.Respond(ctx, status, 0, "success", gin.H{"token": token, "user": userResponse(*user)})
}

// Logout blacklists the presented token until it would have expired.
func (a *AuthController) Logout(ctx *gin.Context) {
	token := ctx.GetString(middleware.ContextTokenKey)
	if token == "" {
		utils.Error(ctx, http.StatusUnauthorized, 40101, "missing authorization header")
		return
	}
	expiresAt, err := utils.TokenExpiry(token)
	if err != nil {
		expiresAt = time.Now().Add(time.Duration(config.Get().TokenTTLHours) * time.Hour)
	}
	utils.BlacklistToken(token, expiresAt)
	utils.Success(ctx, gin.H{"message": "logged out"})
}

func (a *AuthController) Me(ctx *gin.Context) {
	ident := middleware.Identity(ctx)
	if !ident.Authenticated() {
		utils.Error(ctx, http.StatusUnauthorized, 40108, "unauthorized")
		return
	}
	utils.Success(ctx, gin.H{
		"id":       ident.UserID,
		"username": ident.Username,
		"email":    ident.Email,
		"roles":    ident.Roles(),
		"is_admin": ident.IsAdmin(),
	})
}

// OAuthRedirect returns the provider authorization URL with a single-use state.
func (a *AuthController) OAuthRedirect(ctx *gin.Context) {
	_, oc, err := lookupOAuth(ctx.Param("provider"))
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40004, err.Error())
		return
	}
	state := uuid.NewString()
	utils.SaveState(state, oauthStateTTL)
	utils.Success(ctx, gin.H{"authorization_url": oc.AuthCodeURL(state, oauth2.AccessTypeOffline), "state": state})
}

// OAuthCallback exchanges the code, links or creates the account and signs it in.
func (a *AuthController) OAuthCallback(ctx *gin.Context) {
	name := strings.ToLower(ctx.Param("provider"))
	code, state := ctx.Query("code"), ctx.Query("state")
	if code == "" || state == "" {
		utils.Error(ctx, http.StatusBadRequest, 40005, "missing code or state")
		return
	}
	if !utils.ConsumeState(state) {
		utils.Error(ctx, http.StatusBadRequest, 40006, "invalid or expired state")
		return
	}
	provider, oc, err := lookupOAuth(name)
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40004, err.Error())
		return
	}

	reqCtx, cancel := context.WithTimeout(ctx.Request.Context(), 15*time.Second)
	defer cancel()

	tok, err := oc.Exchange(reqCtx, code)
	if err != nil {
		utils.Sugar.Debugf("oauth exchange failed provider=%s err=%v", name, err)
		utils.Error(ctx, http.StatusBadRequest, 40007, "failed to exchange code")
		return
	}
	profile, err := provider.profile(reqCtx, oc.Client(reqCtx, tok))
	if err != nil {
		utils.Error(ctx, http.StatusBadGateway, 50005, err.Error())
		return
	}
	user, err := a.linkOAuthUser(name, profile)
	if err != nil {
		utils.Sugar.Errorf("oauth link failed provider=%s err=%v", name, err)
		utils.Error(ctx, http.StatusInternalServerError, 50006, "failed to persist user")
		return
	}
	a.issue(ctx, user, msgLoggedIn, http.StatusOK)
}

// linkOAuthUser finds the account by provider id, then by verified email,
// refreshing its profile; otherwise it creates one.
func (a *AuthController) linkOAuthUser(provider string, p *oauthProfile) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(p.Email))

	var user models.User
	err := a.db.Preload("Roles").Where("provider = ? AND provider_id = ?", provider, p.ID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) && email != "" {
		err = a.db.Preload("Roles").Where("email = ?", email).First(&user).Error
	}
	if err == nil {
		updates := map[string]interface{}{"provider": provider, "provider_id": p.ID, "avatar_url": p.AvatarURL}
		if email != "" {
			updates["email"] = email
		}
		if err := a.db.Model(&user).Updates(updates).Error; err != nil {
			utils.Sugar.Warnf("refresh oauth profile failed user=%d err=%v", user.ID, err)
		}
		return &user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	user = models.User{
		Username:   a.uniqueUsername(p.displayName(provider)),
		Email:      email,
		Provider:   provider,
		ProviderID: p.ID,
		AvatarURL:  p.AvatarURL,
	}
	if err := a.db.Create(&user).Error; err != nil {
		return nil, err
	}
	a.grantConfiguredRoles(&user)
	return &user, nil
}

// uniqueUsername appends _1, _2, ... until no user carries the name.
func (a *AuthController) uniqueUsername(base string) string {
	base = utils.SanitizeText(base)
	if r := []rune(base); len(r) > 56 {
		base = string(r[:56])
	}
	candidate := base
	for i := 1; ; i++ {
		var n int64
		if err := a.db.Model(&models.User{}).Where("username = ?", candidate).Count(&n).Error; err != nil || n == 0 {
			return candidate
		}
		candidate = fmt.Sprintf("%s_%d", base, i)
	}
}

// grantConfiguredRoles adds the Admin role when the email is listed in ADMIN_EMAILS.
func (a *AuthController) grantConfiguredRoles(user *models.User) {
	if !config.IsAdminEmail(user.Email) {
		return
	}
	var role models.Role
	err := a.db.Where(models.Role{Name: models.RoleAdmin}).FirstOrCreate(&role).Error
	if err == nil {
		err = a.db.Model(user).Association("Roles").Append(&role)
	}
	if err != nil {
		utils.Sugar.Warnf("grant admin role failed user=%d err=%v", user.ID, err)
	}
}

func userResponse(user models.User) gin.H {
	isAdmin := config.IsAdminEmail(user.Email)
	for _, r := range user.Roles {
		isAdmin = isAdmin || strings.EqualFold(r.Name, models.RoleAdmin)
	}
	return gin.H{
		"id":         user.ID,
		"username":   user.Username,
		"email":      user.Email,
		"provider":   user.Provider,
		"avatar_url": user.AvatarURL,
		"is_admin":   isAdmin,
		"created_at": user.CreatedAt,
	}
}
