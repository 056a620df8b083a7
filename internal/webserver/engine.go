package webserver

import (
	"fmt"
	"net/http"
	"sort"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/mdouchement/chunkd/internal/database"
	"github.com/mdouchement/chunkd/internal/sink"
	"github.com/mdouchement/chunkd/internal/storage"
	middlewarepkg "github.com/mdouchement/chunkd/internal/webserver/middleware"
	"github.com/mdouchement/chunkd/internal/webserver/service"
	"github.com/mdouchement/logger"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultBodyLimit is the maximum size of a chunk upload request.
const DefaultBodyLimit = "64M"

// A Controller is an Iversion Of Control pattern used to init the server package.
type Controller struct {
	Version  string
	Logger   logger.Logger
	Database database.Client
	Storage  storage.Backend
	// Locker is shared with the reaper so a sweep never races an upload.
	Locker *service.Locker
	// Sink is optional. A nil Sink disables the hand-off.
	Sink sink.Sink
	//
	MaxFileSize int64
	BodyLimit   string
	AuthToken   string
	Dump        bool
}

// EchoEngine instantiates the wep server.
func EchoEngine(ctrl Controller) *echo.Echo {
	if ctrl.Locker == nil {
		ctrl.Locker = service.NewLocker()
	}
	if ctrl.BodyLimit == "" {
		ctrl.BodyLimit = DefaultBodyLimit
	}

	engine := echo.New()
	engine.HideBanner = true
	engine.HidePort = true
	engine.Use(middleware.Recover())
	engine.Use(middleware.Gzip())
	engine.Use(middlewarepkg.Logger(ctrl.Logger))
	if ctrl.Dump {
		engine.Use(middlewarepkg.Dumper(ctrl.Logger))
	}

	engine.HTTPErrorHandler = middlewarepkg.NewHTTPErrorHandler(ctrl.Logger)
	engine.Validator = NewValidator()

	engine.Pre(middleware.Rewrite(map[string]string{
		"/": "/version",
	}))

	//
	//
	//

	router := engine.Group("")

	// Generic handlers
	//
	router.GET("/version", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{
			"version": ctrl.Version,
		})
	})
	router.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Uploads
	//

	v1 := router.Group("/v1")
	if ctrl.AuthToken != "" {
		v1.Use(middlewarepkg.Authenticate(ctrl.AuthToken))
	}

	cleanup := service.NewSessionCleanup(ctrl.Logger, ctrl.Database, ctrl.Storage, ctrl.Locker)
	upload := upload{
		logger:   ctrl.Logger,
		db:       ctrl.Database,
		receiver: service.NewChunkReceiver(ctrl.Logger, ctrl.Database, ctrl.Storage, cleanup, ctrl.MaxFileSize),
		checker:  service.NewCompletenessChecker(ctrl.Storage),
		cleanup:  cleanup,
		handoff:  service.NewHandOff(ctrl.Logger, ctrl.Database, ctrl.Sink),
	}
	v1.POST("/uploads/chunks", upload.Upload, middleware.BodyLimit(ctrl.BodyLimit))
	v1.GET("/uploads/:session", upload.Status)
	v1.DELETE("/uploads/:session", upload.Abandon)
	v1.GET("/artifacts", upload.Artifacts)

	return engine
}

// PrintRoutes prints the Echo engin exposed routes.
func PrintRoutes(e *echo.Echo) {
	ignored := map[string]bool{
		"":   true,
		".":  true,
		"/*": true,
	}

	routes := e.Routes()
	sort.Slice(routes, func(i int, j int) bool {
		return routes[i].Path < routes[j].Path
	})

	fmt.Println("Routes:")
	for _, route := range routes {
		if ignored[route.Path] {
			continue
		}
		fmt.Printf("%6s %s\n", route.Method, route.Path)
	}
}
