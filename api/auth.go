package api

import (
	"net/http"

	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/gyber/go-custody"
	"github.com/gyber/go-custody/middleware/jwtware"
)

var bearerExtractors = jwtware.GetExtractors("header:" + router.HeaderAuthorization)

// LoginRequest accepts both form and JSON bodies
type LoginRequest struct {
	Username string `form:"username" json:"username"`
	Password string `form:"password" json:"password"`
}

func (a *Controller) Home(ctx router.Context) error {
	return ctx.JSON(http.StatusOK, map[string]any{
		"project": a.ProjectName,
		"version": a.Version,
	})
}

func (a *Controller) AvailableChains(ctx router.Context) error {
	return ctx.JSON(http.StatusOK, map[string]any{"mainnet_list": a.Networks.Names()})
}

func (a *Controller) SignupPost(ctx router.Context) error {
	payload := new(custody.RegisterUserMessage)
	if err := ctx.Bind(payload); err != nil {
		return badRequest(err)
	}

	user, err := a.Signup.Execute(ctx.Context(), *payload)
	if err != nil {
		return err
	}

	return ctx.JSON(http.StatusCreated, user)
}

func (a *Controller) LoginPost(ctx router.Context) error {
	payload := new(LoginRequest)
	if err := ctx.Bind(payload); err != nil {
		return badRequest(err)
	}

	if a.Debug {
		a.Logger.Debug("login attempt", "username", payload.Username)
	}

	pair, err := a.Auther.Login(ctx.Context(), payload.Username, payload.Password)
	if err != nil {
		return err
	}

	return ctx.JSON(http.StatusOK, pair)
}

// RefreshPost takes the refresh token as bearer and returns a new access token
func (a *Controller) RefreshPost(ctx router.Context) error {
	raw, err := jwtware.ExtractRawToken(ctx, bearerExtractors)
	if err != nil {
		return err
	}

	pair, err := a.Auther.Refresh(ctx.Context(), raw)
	if err != nil {
		return err
	}

	return ctx.JSON(http.StatusOK, pair)
}

func (a *Controller) AdminUsers(ctx router.Context) error {
	limit := ctx.QueryInt("limit", 50)
	offset := ctx.QueryInt("offset", 0)
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	records, count, err := a.Repo.Users().ListPage(ctx.Context(), limit, offset)
	if err != nil {
		return downstream(err)
	}

	if a.Debug {
		a.Logger.Debug("admin user list", "meta", print.MaybePrettyJSON(map[string]any{
			"limit":  limit,
			"offset": offset,
			"count":  count,
		}))
	}

	return ctx.JSON(http.StatusOK, map[string]any{
		"count": count,
		"users": records,
	})
}
