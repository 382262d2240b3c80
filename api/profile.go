package api

import (
	"net/http"

	"github.com/goliatone/go-router"
	"github.com/gyber/go-custody"
)

type chainRequest struct {
	Network string  `json:"mainnet" form:"mainnet"`
	Gas     float64 `json:"gas" form:"gas"`
}

type emailRequest struct {
	Email string `json:"email" form:"email"`
}

type passwordRequest struct {
	Password string `json:"password" form:"password"`
}

func (a *Controller) ProfileGet(ctx router.Context) error {
	user, err := currentUser(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, user)
}

func (a *Controller) ProfileWallets(ctx router.Context) error {
	user, err := currentUser(ctx)
	if err != nil {
		return err
	}

	wallets, err := a.Wallets.List(ctx.Context(), user)
	if err != nil {
		return err
	}

	return ctx.JSON(http.StatusOK, map[string]any{
		"id":       user.ID,
		"username": user.Username,
		"wallets":  wallets,
	})
}

func (a *Controller) ProfileChains(ctx router.Context) error {
	user, err := currentUser(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, chainsView(user.Chains))
}

func (a *Controller) AddChain(ctx router.Context) error {
	user, err := currentUser(ctx)
	if err != nil {
		return err
	}

	payload := new(chainRequest)
	if err := ctx.Bind(payload); err != nil {
		return badRequest(err)
	}

	chains, err := a.Chains.Add(ctx.Context(), custody.AddChainMessage{
		User:    user,
		Network: payload.Network,
		Gas:     payload.Gas,
	})
	if err != nil {
		return err
	}

	return ctx.JSON(http.StatusOK, chainsView(chains))
}

func (a *Controller) RemoveChain(ctx router.Context) error {
	user, err := currentUser(ctx)
	if err != nil {
		return err
	}

	payload := new(chainRequest)
	if err := ctx.Bind(payload); err != nil {
		return badRequest(err)
	}

	chains, err := a.Chains.Remove(ctx.Context(), custody.RemoveChainMessage{
		User:    user,
		Network: payload.Network,
	})
	if err != nil {
		return err
	}

	return ctx.JSON(http.StatusOK, chainsView(chains))
}

// VerifyEmail is the link sent in the verification mail
func (a *Controller) VerifyEmail(ctx router.Context) error {
	ok, err := a.VerifyConfirm.Execute(ctx.Context(), custody.EmailVerificationConfirmMessage{
		Token: ctx.Param("token"),
	})
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalidLink
	}
	return ctx.NoContent(http.StatusOK)
}

func (a *Controller) SendVerification(ctx router.Context) error {
	user, err := currentUser(ctx)
	if err != nil {
		return err
	}

	if err := a.VerifyRequest.Execute(ctx.Context(), custody.EmailVerificationRequestMessage{
		User: user,
	}); err != nil {
		return err
	}

	return ctx.NoContent(http.StatusOK)
}

func (a *Controller) ResetPassword(ctx router.Context) error {
	payload := new(passwordRequest)
	if err := ctx.Bind(payload); err != nil {
		return badRequest(err)
	}

	ok, err := a.ResetFinalize.Execute(ctx.Context(), custody.FinalizePasswordResetMessage{
		Token:    ctx.Query("token", ""),
		Password: payload.Password,
	})
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalidLink
	}
	return ctx.NoContent(http.StatusOK)
}

func (a *Controller) SendResetToken(ctx router.Context) error {
	user, err := currentUser(ctx)
	if err != nil {
		return err
	}

	if err := a.ResetInitialize.Execute(ctx.Context(), custody.InitializePasswordResetMessage{
		User: user,
	}); err != nil {
		return err
	}

	return ctx.NoContent(http.StatusOK)
}

// RequestPasswordReset answers 200 whether or not the email is known
func (a *Controller) RequestPasswordReset(ctx router.Context) error {
	payload := new(emailRequest)
	if err := ctx.Bind(payload); err != nil {
		return badRequest(err)
	}

	if err := a.ResetInitialize.Execute(ctx.Context(), custody.InitializePasswordResetMessage{
		Email: payload.Email,
	}); err != nil && !custody.HasTextCode(err, custody.TextCodeValidation) {
		a.Logger.Warn("public password reset failed", "error", err)
	}

	return ctx.NoContent(http.StatusOK)
}

func (a *Controller) ProfileEdit(ctx router.Context) error {
	user, err := currentUser(ctx)
	if err != nil {
		return err
	}

	payload := new(custody.UpdateProfileMessage)
	if err := ctx.Bind(payload); err != nil {
		return badRequest(err)
	}
	payload.User = user

	updated, err := a.Profile.Execute(ctx.Context(), *payload)
	if err != nil {
		return err
	}

	return ctx.JSON(http.StatusOK, updated)
}

func (a *Controller) ProfileDelete(ctx router.Context) error {
	user, err := currentUser(ctx)
	if err != nil {
		return err
	}

	if err := a.DeleteAccount.Execute(ctx.Context(), custody.DeleteAccountMessage{
		User: user,
	}); err != nil {
		return err
	}

	return ctx.NoContent(http.StatusOK)
}

func chainsView(chains custody.ChainPreferences) map[string]any {
	if chains == nil {
		chains = custody.ChainPreferences{}
	}
	return map[string]any{"mainnet_dict": chains}
}
