package api

import (
	"net/http"

	"github.com/goliatone/go-router"
	"github.com/gyber/go-custody"
)

type recoverRequest struct {
	Mnemonic string `json:"mnemonics" form:"mnemonics"`
}

func (a *Controller) WalletCreate(ctx router.Context) error {
	user, err := currentUser(ctx)
	if err != nil {
		return err
	}

	wallet, err := a.Wallets.Create(ctx.Context(), user)
	if err != nil {
		return err
	}

	return ctx.JSON(http.StatusCreated, wallet)
}

func (a *Controller) WalletRecover(ctx router.Context) error {
	user, err := currentUser(ctx)
	if err != nil {
		return err
	}

	payload := new(recoverRequest)
	if err := ctx.Bind(payload); err != nil {
		return badRequest(err)
	}

	wallet, err := a.Wallets.Recover(ctx.Context(), user, payload.Mnemonic)
	if err != nil {
		return err
	}

	return ctx.JSON(http.StatusOK, wallet.Credentials())
}

func (a *Controller) WalletGet(ctx router.Context) error {
	user, err := currentUser(ctx)
	if err != nil {
		return err
	}

	wallet, err := a.Wallets.Get(ctx.Context(), user, ctx.Param("address"))
	if err != nil {
		return err
	}

	return ctx.JSON(http.StatusOK, wallet)
}

func (a *Controller) WalletCredentials(ctx router.Context) error {
	user, err := currentUser(ctx)
	if err != nil {
		return err
	}

	credentials, err := a.Wallets.Credentials(ctx.Context(), user, ctx.Param("address"))
	if err != nil {
		return err
	}

	return ctx.JSON(http.StatusOK, credentials)
}

func (a *Controller) WalletDelete(ctx router.Context) error {
	user, err := currentUser(ctx)
	if err != nil {
		return err
	}

	if err := a.Wallets.Delete(ctx.Context(), user, ctx.Param("address")); err != nil {
		return err
	}

	return ctx.NoContent(http.StatusOK)
}

// transfer returns the handler for one token standard. The body carries
// mainnet, from_address, to_address, amount and, for tokens, contract_address.
func (a *Controller) transfer(standard custody.TokenStandard) router.HandlerFunc {
	return func(ctx router.Context) error {
		user, err := currentUser(ctx)
		if err != nil {
			return err
		}

		payload := new(custody.TransferMessage)
		if err := ctx.Bind(payload); err != nil {
			return badRequest(err)
		}
		payload.User = user
		payload.Standard = standard

		hash, err := a.Wallets.Transfer(ctx.Context(), *payload)
		if err != nil {
			return err
		}

		return ctx.JSON(http.StatusOK, map[string]any{"status": hash})
	}
}

func (a *Controller) CheckBalances(ctx router.Context) error {
	user, err := currentUser(ctx)
	if err != nil {
		return err
	}

	sheet, err := a.Wallets.Balances(ctx.Context(), user, ctx.Param("chain"), ctx.Param("address"))
	if err != nil {
		return err
	}

	return ctx.JSON(http.StatusOK, sheet)
}

func (a *Controller) CheckTransactions(ctx router.Context) error {
	user, err := currentUser(ctx)
	if err != nil {
		return err
	}

	history, err := a.Wallets.Transactions(ctx.Context(), user, ctx.Param("chain"), ctx.Param("address"))
	if err != nil {
		return err
	}

	return ctx.JSON(http.StatusOK, history)
}
