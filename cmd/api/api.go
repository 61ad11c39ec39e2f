package main

import (
	"context"
	"errors"
	"expvar"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sipstore/docs"
	"sipstore/internal/auth"
	"sipstore/internal/cache"
	"sipstore/internal/domain/products"
	"sipstore/internal/ratelimiter"
	"sipstore/internal/store"
	"sipstore/internal/uploads"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.uber.org/zap"
)

type application struct {
	config        config
	store         store.Storage
	products      products.Store
	uploads       *uploads.Store
	cache         *cache.ProductCache // nil when Redis is not configured
	cld           *cloudinary.Cloudinary
	logger        *zap.SugaredLogger
	authenticator auth.Authenticator
	ratelimiter   ratelimiter.Limiter
}

type config struct {
	addr        string
	env         string
	apiURL      string
	uploadDir   string
	db          dbConfig
	redis       redisConfig
	auth        authConfig
	ratelimiter ratelimiter.Config
}

type dbConfig struct {
	addr         string
	maxOpenConns int
	maxIdleConns int
	maxIdleTime  string
}

type redisConfig struct {
	addr     string
	password string
	db       int
}

type authConfig struct {
	basic basicConfig
	token tokenConfig
}

type tokenConfig struct {
	secret          string
	refreshSecret   string
	accessTokenExp  time.Duration
	refreshTokenExp time.Duration
	iss             string
}

type basicConfig struct {
	user string
	pass string
}

func (app *application) mount() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(app.RateLimiterMiddleware)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Use(middleware.Timeout(60 * time.Second))

	r.With(app.BasicAuthMiddleware()).Get("/health", app.healthCheckHandler)
	r.With(app.BasicAuthMiddleware()).Get("/debug/vars", expvar.Handler().ServeHTTP)

	docs.SwaggerInfo.Version = version
	docs.SwaggerInfo.Host = app.config.apiURL
	docs.SwaggerInfo.BasePath = "/api"
	docsURL := fmt.Sprintf("%s/swagger/doc.json", app.config.addr)
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL(docsURL)))

	// Uploaded images are served statically under the same prefix stored in
	// document image paths.
	fileServer := http.StripPrefix("/uploads/", http.FileServer(http.Dir(app.uploads.Dir())))
	r.Get("/uploads/*", fileServer.ServeHTTP)

	r.Route("/api", func(r chi.Router) {
		r.Route("/products", func(r chi.Router) {
			r.Get("/", app.getProductsHandler)
			r.With(app.AdminTokenMiddleware).Post("/", app.createProductHandler)
			r.Route("/{productID}", func(r chi.Router) {
				r.Get("/", app.getProductByIDHandler)
				r.With(app.AdminTokenMiddleware).Put("/", app.updateProductHandler)
				r.With(app.AdminTokenMiddleware).Delete("/", app.deleteProductHandler)
			})
		})

		r.Get("/product-pages", app.getProductPagesHandler)
		r.Route("/categories", func(r chi.Router) {
			r.Get("/", app.getCategoriesHandler)
			r.With(app.AdminTokenMiddleware).Post("/", app.createCategoryHandler)
			r.Route("/{categoryID}", func(r chi.Router) {
				r.Get("/", app.getCategoryByIDHandler)
				r.With(app.AdminTokenMiddleware).Put("/", app.updateCategoryHandler)
				r.With(app.AdminTokenMiddleware).Delete("/", app.deleteCategoryHandler)
				r.With(app.AdminTokenMiddleware).Post("/product-pages", app.addCategoryProductPagesHandler)
			})
		})

		r.Route("/banners", func(r chi.Router) {
			r.Get("/", app.getBannersHandler)
			r.Get("/home-sliders", app.getHomeSlidersHandler)
			r.With(app.AdminTokenMiddleware).Post("/", app.createBannerHandler)
			r.Route("/{bannerID}", func(r chi.Router) {
				r.With(app.AdminTokenMiddleware).Put("/", app.updateBannerHandler)
				r.With(app.AdminTokenMiddleware).Delete("/", app.deleteBannerHandler)
			})
		})

		r.Route("/ingredients", func(r chi.Router) {
			r.Get("/", app.getIngredientsHandler)
			r.Get("/{ingredientID}", app.getIngredientByIDHandler)
			r.With(app.AdminTokenMiddleware).Post("/", app.createIngredientHandler)
			r.With(app.AdminTokenMiddleware).Put("/{ingredientID}", app.updateIngredientHandler)
			r.With(app.AdminTokenMiddleware).Delete("/{ingredientID}", app.deleteIngredientHandler)
		})

		r.Route("/blogs", func(r chi.Router) {
			r.Get("/", app.getBlogsHandler)
			r.Get("/{blogID}", app.getBlogByIDHandler)
			r.With(app.AdminTokenMiddleware).Post("/", app.createBlogHandler)
			r.With(app.AdminTokenMiddleware).Put("/{blogID}", app.updateBlogHandler)
			r.With(app.AdminTokenMiddleware).Delete("/{blogID}", app.deleteBlogHandler)
		})

		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", app.createTokenHandler)
		})
	})

	return r
}

func (app *application) run(mux http.Handler) error {
	srv := &http.Server{
		Addr:         app.config.addr,
		Handler:      mux,
		WriteTimeout: time.Second * 30,
		ReadTimeout:  time.Second * 10,
		IdleTimeout:  time.Minute,
	}

	shutdown := make(chan error)
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		s := <-quit

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		app.logger.Infow("signal caught", "signal", s.String())
		shutdown <- srv.Shutdown(ctx)
	}()

	app.logger.Infow("server has started", "addr", app.config.addr, "env", app.config.env)

	err := srv.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	if err := <-shutdown; err != nil {
		return err
	}

	app.logger.Infow("server has stopped", "addr", app.config.addr, "env", app.config.env)
	return nil
}
