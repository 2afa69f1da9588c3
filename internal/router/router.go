package router

import (
	"database/sql"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "ehr-access/docs"
	mem "ehr-access/internal/adapters/storage/memory"
	pg "ehr-access/internal/adapters/storage/postgres"
	"ehr-access/internal/domain/accesseval"
	"ehr-access/internal/domain/accessrequests"
	"ehr-access/internal/domain/sharelinks"
	"ehr-access/internal/domain/sharetoken"
	"ehr-access/internal/middleware"
	"ehr-access/internal/ports/auth"
	"ehr-access/internal/ports/directory"
	"ehr-access/internal/ports/records"
)

type Options struct {
	AuthVerifier auth.Verifier // puede ser nil (modo dev)

	// Opcional: si viene, usa Postgres. Si no, in-memory.
	DB *sql.DB

	Directory directory.Directory
	Records   records.Store

	// ShareTokenSecret firma los tokens de share links (HS256).
	ShareTokenSecret []byte

	// PublicBaseURL es el prefijo de las share URLs que se devuelven al emitir.
	PublicBaseURL string

	Logger zerolog.Logger
}

func NewRouter(opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestLogger(opts.Logger))
	r.Use(middleware.Instrument)

	r.Use(middleware.AuthContext(opts.AuthVerifier))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", middleware.MetricsHandler())
	r.Get("/swagger/*", httpSwagger.WrapHandler)

	var (
		requestsRepo accessrequests.Repository
		linksRepo    sharelinks.Repository
	)

	// Si no te pasan DB explícita, intenta por env (para dev/handoff)
	db := opts.DB
	if db == nil {
		if dsn := os.Getenv("DB_DSN"); dsn != "" {
			opened, err := pg.Open(dsn)
			if err == nil {
				db = opened
			} else {
				opts.Logger.Warn().Err(err).Msg("postgres unavailable, falling back to in-memory storage")
			}
		}
	}

	if db != nil {
		requestsRepo = pg.NewAccessRequestsRepo(db)
		linksRepo = pg.NewShareLinksRepo(db)
	} else {
		requestsRepo = mem.NewAccessRequestsRepo()
		linksRepo = mem.NewShareLinksRepo()
	}

	codec := sharetoken.NewCodec(opts.ShareTokenSecret)

	// Services por módulo
	requestsSvc := accessrequests.NewService(requestsRepo, opts.Directory)
	linksSvc := sharelinks.NewService(linksRepo, codec, opts.Records, opts.Directory, opts.PublicBaseURL)
	evaluator := accesseval.New(requestsRepo)

	// Rutas por módulo, bajo /api como el resto del backend
	r.Route("/api", func(api chi.Router) {
		accessrequests.RegisterRoutes(api, requestsSvc, opts.Logger)
		sharelinks.RegisterRoutes(api, linksSvc, opts.Logger)
		accesseval.RegisterRoutes(api, evaluator, opts.Records)
	})

	return r
}
