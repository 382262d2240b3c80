package api

import (
	"github.com/goliatone/go-router"
	"github.com/gyber/go-custody"
	"github.com/gyber/go-custody/middleware/jwtware"
)

// Dependencies are the collaborators the controller builds its workflows from
type Dependencies struct {
	Repo       custody.RepositoryManager
	Tokens     custody.TokenService
	Mailer     custody.MailDispatcher
	Networks   custody.NetworkCatalog
	Deriver    custody.KeyDeriver
	Transactor custody.Transactor
	Explorer   custody.Explorer
	Activity   custody.ActivitySink
	BaseURL    string
}

type Controller struct {
	Debug       bool
	Logger      custody.Logger
	ProjectName string
	Version     string

	Auther   *custody.Auther
	Repo     custody.RepositoryManager
	Networks custody.NetworkCatalog
	Wallets  *custody.WalletService

	Signup          *custody.RegisterUserHandler
	VerifyRequest   *custody.EmailVerificationRequestHandler
	VerifyConfirm   *custody.EmailVerificationConfirmHandler
	ResetInitialize *custody.InitializePasswordResetHandler
	ResetFinalize   *custody.FinalizePasswordResetHandler
	Profile         *custody.UpdateProfileHandler
	Chains          *custody.ChainPreferencesHandler
	DeleteAccount   *custody.DeleteAccountHandler
}

type ControllerOption func(*Controller) *Controller

func WithLogger(logger custody.Logger) ControllerOption {
	return func(c *Controller) *Controller {
		if logger != nil {
			c.Logger = logger
		}
		return c
	}
}

func WithProject(name, version string) ControllerOption {
	return func(c *Controller) *Controller {
		c.ProjectName = name
		c.Version = version
		return c
	}
}

func WithDebug(debug bool) ControllerOption {
	return func(c *Controller) *Controller {
		c.Debug = debug
		return c
	}
}

// NewController wires every workflow from deps
func NewController(deps Dependencies, opts ...ControllerOption) *Controller {
	if deps.Repo == nil {
		panic("Missing RepositoryManager in api controller...")
	}

	if deps.Tokens == nil {
		panic("Missing TokenService in api controller...")
	}

	if deps.Networks == nil {
		panic("Missing NetworkCatalog in api controller...")
	}

	if deps.Mailer == nil {
		panic("Missing MailDispatcher in api controller...")
	}

	if deps.Deriver == nil {
		panic("Missing KeyDeriver in api controller...")
	}

	c := &Controller{
		Logger:      nopLogger{},
		ProjectName: "GYBER",
		Repo:        deps.Repo,
		Networks:    deps.Networks,
	}

	for _, opt := range opts {
		c = opt(c)
	}

	logger, sink := c.Logger, deps.Activity

	c.Auther = custody.NewAuthenticator(deps.Repo.Users(), deps.Tokens).
		WithLogger(logger).
		WithActivitySink(sink)

	c.Signup = custody.NewRegisterUserHandler(deps.Repo).
		WithLogger(logger).
		WithActivitySink(sink)

	c.VerifyRequest = custody.NewEmailVerificationRequestHandler(deps.Tokens, deps.Mailer, deps.BaseURL).
		WithLogger(logger).
		WithActivitySink(sink)

	c.VerifyConfirm = custody.NewEmailVerificationConfirmHandler(deps.Repo, deps.Tokens).
		WithLogger(logger).
		WithActivitySink(sink)

	c.ResetInitialize = custody.NewInitializePasswordResetHandler(deps.Repo, deps.Tokens, deps.Mailer, deps.BaseURL).
		WithLogger(logger).
		WithActivitySink(sink)

	c.ResetFinalize = custody.NewFinalizePasswordResetHandler(deps.Repo, deps.Tokens).
		WithLogger(logger).
		WithActivitySink(sink)

	c.Profile = custody.NewUpdateProfileHandler(deps.Repo).
		WithLogger(logger).
		WithActivitySink(sink)

	c.Chains = custody.NewChainPreferencesHandler(deps.Repo, deps.Networks).
		WithLogger(logger).
		WithActivitySink(sink)

	c.DeleteAccount = custody.NewDeleteAccountHandler(deps.Repo).
		WithLogger(logger).
		WithActivitySink(sink)

	c.Wallets = custody.NewWalletService(deps.Repo, deps.Deriver, deps.Networks).
		WithTransactor(deps.Transactor).
		WithExplorer(deps.Explorer).
		WithLogger(logger).
		WithActivitySink(sink)

	return c
}

// RegisterRoutes mounts every controller route on app
func RegisterRoutes[T any](app router.Router[T], a *Controller) {
	access := jwtware.New(jwtware.Config{Resolver: a.Auther.ResolveAccess})
	verified := jwtware.Gate(custody.RequireVerified)
	admin := jwtware.Gate(custody.RequireAdmin)

	app.Get("/", a.Home).SetName("home.get")
	app.Get("/available_chains", a.AvailableChains, access).SetName("chains.available")

	auth := app.Group("/users/auth")
	auth.Post("/signup", a.SignupPost).SetName("auth.signup")
	auth.Post("/login", a.LoginPost).SetName("auth.login")
	auth.Post("/refresh", a.RefreshPost).SetName("auth.refresh")

	// public profile routes carry no access middleware
	profile := app.Group("/users/profile")
	profile.Get("/verify/:token", a.VerifyEmail).SetName("profile.verify")
	profile.Patch("/reset_password", a.ResetPassword).SetName("profile.reset-password")
	profile.Post("/request_password_reset", a.RequestPasswordReset).SetName("profile.request-reset")

	profile.Get("/", a.ProfileGet, access).SetName("profile.get")
	profile.Get("/wallets", a.ProfileWallets, access).SetName("profile.wallets")
	profile.Get("/chains", a.ProfileChains, access).SetName("profile.chains")
	profile.Put("/add_chain", a.AddChain, access).SetName("profile.chains.add")
	profile.Delete("/remove_chain", a.RemoveChain, access).SetName("profile.chains.remove")
	profile.Put("/send_verification_message", a.SendVerification, access).SetName("profile.send-verification")
	profile.Put("/send_reset_password_token", a.SendResetToken, access).SetName("profile.send-reset")
	profile.Patch("/edit", a.ProfileEdit, access).SetName("profile.edit")
	profile.Delete("/delete", a.ProfileDelete, access).SetName("profile.delete")

	wallets := app.Group("/wallets")
	wallets.Use(access)
	wallets.Post("/create", a.WalletCreate, verified).SetName("wallets.create")
	wallets.Post("/recover", a.WalletRecover, verified).SetName("wallets.recover")
	wallets.Get("/:address", a.WalletGet).SetName("wallets.get")
	wallets.Get("/:address/credentials", a.WalletCredentials, verified).SetName("wallets.credentials")
	wallets.Delete("/:address", a.WalletDelete, verified).SetName("wallets.delete")

	transactor := app.Group("/transactor")
	transactor.Use(access, verified)
	transactor.Put("/send_native_transaction", a.transfer(custody.StandardNative)).SetName("transactor.native")
	transactor.Put("/send_transaction_erc20", a.transfer(custody.StandardERC20)).SetName("transactor.erc20")
	transactor.Put("/send_transaction_bep20", a.transfer(custody.StandardBEP20)).SetName("transactor.bep20")

	checker := app.Group("/checker")
	checker.Use(access)
	checker.Get("/:address/:chain", a.CheckBalances).SetName("checker.balances")
	checker.Get("/:address/:chain/transactions", a.CheckTransactions).SetName("checker.transactions")

	app.Get("/admin/users", a.AdminUsers, access, admin).SetName("admin.users")
}

// currentUser returns the identity stored by the access middleware
func currentUser(ctx router.Context) (*custody.User, error) {
	user, ok := custody.RequestUser(ctx)
	if !ok {
		return nil, custody.ErrUnauthorized
	}
	return user, nil
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
