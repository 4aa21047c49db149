// Package router wires every endpoint to its handler and hangs the shared
// middleware off the API group.
package router

import (
	"database/sql"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/filmoteca/filmoteca/internal/config"
	"github.com/filmoteca/filmoteca/internal/handler"
	"github.com/filmoteca/filmoteca/internal/middleware"
	"github.com/filmoteca/filmoteca/internal/repository"
	"github.com/filmoteca/filmoteca/internal/tmdb"
)

// Register builds the route table on e. The Redis client may be nil; the
// cache and rate-limit middleware then pass every request through.
func Register(e *echo.Echo, db *sql.DB, cfg *config.Config, rdb *redis.Client, tmdbClient *tmdb.Client) {
	users := repository.NewUserRepo(db)
	movies := repository.NewMovieRepo(db)
	favorites := repository.NewFavoriteRepo(db)

	health := handler.NewHealthHandler(db)
	userH := handler.NewUserHandler(users, favorites, cfg)
	movieH := handler.NewMovieHandler(movies)
	importH := handler.NewMovieImportHandler(movies, tmdbClient)
	favoriteH := handler.NewFavoriteHandler(favorites)

	e.Use(echomw.Recover())
	e.Use(echomw.Logger())

	e.GET("/healthz", health.Check)

	api := e.Group("/api")
	api.Use(middleware.RateLimit(config.LoadRateLimitConfig(), rdb))

	// The cache only wraps idempotent listing traffic; mutations must never
	// be replayed.
	cached := middleware.ResponseCache(config.LoadCacheConfig(), rdb)

	u := api.Group("/users")
	u.POST("", userH.Create)
	u.POST("/login", userH.Login)
	u.GET("", userH.List)
	u.GET("/:id", userH.Get)
	u.PATCH("/:id", userH.Update)
	u.PUT("/:id", userH.Update)
	u.DELETE("/:id", userH.Delete)
	u.GET("/:id/favorites", userH.ListFavorites)
	u.POST("/:id/favorites/:movieID", userH.MarkFavorite)
	u.DELETE("/:id/favorites/:movieID", userH.UnmarkFavorite)
	u.GET("/:id/stats", userH.Stats)

	m := api.Group("/movies")
	m.POST("", movieH.Create)
	m.GET("", movieH.List, cached)
	m.GET("/search", movieH.Search, cached)
	m.GET("/recent", movieH.Recent, cached)
	m.GET("/popular", movieH.Popular, cached)
	m.GET("/classification/:rating", movieH.ByClassification, cached)
	m.GET("/tmdb/popular", importH.Popular)
	m.GET("/tmdb/search", importH.Search)
	m.POST("/tmdb/import/:tmdbID", importH.ImportByID)
	m.GET("/:id", movieH.Get)
	m.PATCH("/:id", movieH.Update)
	m.PUT("/:id", movieH.Update)
	m.DELETE("/:id", movieH.Delete)
	m.POST("/:id/poster", movieH.UploadPoster)
	m.GET("/:id/poster", movieH.GetPoster)

	f := api.Group("/favorites")
	f.POST("", favoriteH.Create)
	f.GET("", favoriteH.List)
	f.GET("/stats", favoriteH.GlobalStats)
	f.GET("/check/:userID/:movieID", favoriteH.Check)
	f.GET("/user/:userID", favoriteH.ByUser)
	f.DELETE("/user/:userID/all", favoriteH.DeleteAllByUser)
	f.GET("/recommendations/:userID", favoriteH.Recommendations)
	f.GET("/movie/:movieID", favoriteH.ByMovie)
	f.GET("/:id", favoriteH.Get)
	f.DELETE("/:id", favoriteH.Delete)
}
