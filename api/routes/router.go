package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/anucarts/marketplace-backend/api/controllers"
	cartcontrollers "github.com/anucarts/marketplace-backend/api/controllers/cart"
	ordercontrollers "github.com/anucarts/marketplace-backend/api/controllers/orders"
	"github.com/anucarts/marketplace-backend/api/middleware"
	"github.com/anucarts/marketplace-backend/internal/auth"
	"github.com/anucarts/marketplace-backend/internal/cart"
	"github.com/anucarts/marketplace-backend/internal/fanout"
	"github.com/anucarts/marketplace-backend/internal/media"
	"github.com/anucarts/marketplace-backend/internal/orders"
	products "github.com/anucarts/marketplace-backend/internal/products"
	"github.com/anucarts/marketplace-backend/internal/sellers"
	"github.com/anucarts/marketplace-backend/pkg/auth/session"
	"github.com/anucarts/marketplace-backend/pkg/config"
	"github.com/anucarts/marketplace-backend/pkg/enums"
	"github.com/anucarts/marketplace-backend/pkg/logger"
	"github.com/anucarts/marketplace-backend/pkg/metrics"
	"github.com/anucarts/marketplace-backend/pkg/redis"
)

type sessionManager interface {
	session.AccessSessionChecker
	Rotate(context.Context, string, string) (string, string, error)
	Revoke(context.Context, string) error
}

// Services groups the domain services served over HTTP.
type Services struct {
	Auth     auth.Service
	Sellers  sellers.Service
	Products products.Service
	Media    media.Service
	Cart     cart.Service
	Orders   orders.Service
	Fanout   fanout.Service
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	redisClient *redis.Client,
	sessionManager sessionManager,
	readiness map[string]controllers.Pinger,
	gatherer prometheus.Gatherer,
	svc Services,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.CORS(cfg.App.CORSOrigins),
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	signupPolicy := middleware.NewAuthRateLimitPolicy(
		"signup",
		cfg.AuthRateLimit.SignupWindow,
		cfg.AuthRateLimit.SignupIPLimit,
		cfg.AuthRateLimit.SignupEmailLimit,
	)
	loginLimit := middleware.AuthRateLimit(loginPolicy, redisClient, logg)
	signupLimit := middleware.AuthRateLimit(signupPolicy, redisClient, logg)

	authenticated := middleware.Auth(cfg.JWT, sessionManager, logg)
	buyerOnly := middleware.RequireRole(enums.RoleBuyer, logg)
	sellerOnly := middleware.RequireRole(enums.RoleSeller, logg)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, readiness, logg))
	})
	if gatherer != nil {
		r.Handle("/metrics", metrics.Handler(gatherer))
	}

	r.Route("/users", func(r chi.Router) {
		r.With(signupLimit).Post("/signup", controllers.UserSignup(svc.Auth, logg))
		r.With(loginLimit).Post("/login", controllers.UserLogin(svc.Auth, logg))
	})

	r.Route("/sellers", func(r chi.Router) {
		r.With(signupLimit).Post("/signup", controllers.SellerSignup(svc.Auth, logg))
		r.With(loginLimit).Post("/login", controllers.SellerLogin(svc.Auth, logg))
		r.With(authenticated, sellerOnly).Get("/home", controllers.SellerHome(svc.Sellers, logg))
	})

	r.Route("/auth", func(r chi.Router) {
		r.With(authenticated).Post("/logout", controllers.AuthLogout(sessionManager, logg))
		r.Post("/refresh", controllers.AuthRefresh(sessionManager, cfg.JWT, logg))
	})

	var maxImageBytes int64
	if svc.Media != nil {
		maxImageBytes = svc.Media.MaxBytes()
	} else {
		maxImageBytes = cfg.Media.MaxImageBytes()
	}

	r.Route("/products", func(r chi.Router) {
		r.Get("/", controllers.ProductList(svc.Products, logg))
		r.Get("/{productId}", controllers.ProductGet(svc.Products, logg))

		r.Group(func(r chi.Router) {
			r.Use(authenticated, sellerOnly)
			r.Get("/seller/mine", controllers.SellerProducts(svc.Products, logg))
			r.Post("/", controllers.ProductCreate(svc.Products, maxImageBytes, logg))
			r.Put("/{productId}", controllers.ProductUpdate(svc.Products, maxImageBytes, logg))
			r.Delete("/{productId}", controllers.ProductDelete(svc.Products, logg))
		})
	})

	r.Route("/cart", func(r chi.Router) {
		r.Use(authenticated, buyerOnly, middleware.Idempotency(redisClient, middleware.CartIdempotencyTTL, logg))
		r.Get("/", cartcontrollers.CartFetch(svc.Cart, logg))
		r.Post("/", cartcontrollers.CartAdd(svc.Cart, logg))
		r.Put("/{productId}", cartcontrollers.CartSetQuantity(svc.Cart, logg))
		r.Delete("/{productId}", cartcontrollers.CartRemove(svc.Cart, logg))
	})

	r.Route("/orders", func(r chi.Router) {
		r.Use(authenticated)

		r.Group(func(r chi.Router) {
			r.Use(buyerOnly, middleware.Idempotency(redisClient, middleware.OrderIdempotencyTTL, logg))
			r.Post("/", ordercontrollers.PlaceOrder(svc.Orders, logg))
			r.Get("/", ordercontrollers.List(svc.Orders, logg))
			r.Post("/images", ordercontrollers.UploadImage(svc.Media, logg))
			r.Get("/{orderId}", ordercontrollers.Detail(svc.Orders, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(sellerOnly)
			r.Get("/seller/orders", ordercontrollers.SellerOrders(svc.Orders, logg))
			r.Get("/seller/entries", ordercontrollers.SellerEntries(svc.Fanout, logg))
			r.Put("/{orderId}/status", ordercontrollers.UpdateStatus(svc.Orders, logg))
		})
	})

	return r
}
