package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/participation-cli/internal/ledger"
	"github.com/sells-group/participation-cli/internal/metrics"
	"github.com/sells-group/participation-cli/internal/model"
	"github.com/sells-group/participation-cli/internal/report"
	"github.com/sells-group/participation-cli/internal/scorer"
)

const (
	maxBodyBytes    = 10 << 20
	shutdownTimeout = 10 * time.Second
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP service for ledger merges and scores",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		locker, closeLocker, err := initLocker(ctx, cfg.Lock)
		if err != nil {
			return err
		}
		defer closeLocker() //nolint:errcheck

		lc := cfg.Ledger
		svc := &service{
			open: func(ctx context.Context, id string) (ledger.Store, error) {
				return ledger.Open(ctx, lc, id)
			},
			locker:     locker,
			metrics:    metrics.New(),
			weeksTotal: cfg.Score.WeeksTotal,
		}
		return startServer(ctx, buildMux(svc, cfg.Server.CORSOrigins), resolvePort(servePort, cfg.Server.Port))
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// resolvePort prefers the flag value over the configured port.
func resolvePort(flag, configured int) int {
	if flag != 0 {
		return flag
	}
	return configured
}

// storeOpener opens the store for one ledger id.
type storeOpener func(ctx context.Context, id string) (ledger.Store, error)

// service backs the HTTP handlers.
type service struct {
	open       storeOpener
	locker     ledger.Locker
	metrics    *metrics.Metrics
	weeksTotal int
	validate   *validator.Validate
}

// mergeRequest is the body of POST /ledgers/{id}/merge.
type mergeRequest struct {
	Source  string                      `json:"source"`
	DryRun  bool                        `json:"dry_run"`
	Records []model.ParticipationRecord `json:"records" validate:"required,min=1,dive"`
}

// mergeResponse reports a finished merge.
type mergeResponse struct {
	Run   model.Run         `json:"run"`
	Stats ledger.MergeStats `json:"stats"`
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// buildMux wires the routes. origins configures CORS; empty disables it.
func buildMux(svc *service, origins []string) http.Handler {
	if svc.validate == nil {
		svc.validate = newValidator()
	}
	if svc.metrics == nil {
		svc.metrics = metrics.New()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if len(origins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: origins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type"},
			MaxAge:         300,
		}))
	}
	r.Use(svc.countRequests)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeResponse(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", svc.metrics.Handler())

	r.Route("/ledgers/{id}", func(r chi.Router) {
		r.Post("/merge", svc.handleMerge)
		r.Get("/scores", svc.handleScores)
		r.Get("/report", svc.handleReport)
	})
	return r
}

// countRequests records every response by route pattern and status code.
func (s *service) countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	})
}

func (s *service) handleMerge(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !ledger.ValidID(id) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid ledger id %q", id))
		return
	}

	var req mergeRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	trimKeys(req.Records)
	if err := s.validate.Struct(req); err != nil {
		writeResponse(w, http.StatusUnprocessableEntity, map[string]any{
			"error":  "invalid records",
			"fields": validationMessages(err),
		})
		return
	}

	resp, err := s.merge(r.Context(), id, req)
	if err != nil {
		zap.L().Error("serve: merge failed", zap.String("ledger", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeResponse(w, http.StatusOK, resp)
}

// merge applies req to ledger id under the ledger's writer lock.
func (s *service) merge(ctx context.Context, id string, req mergeRequest) (resp *mergeResponse, err error) {
	start := time.Now()
	defer func() {
		s.metrics.ObserveRun(string(model.RunModeAPI), start, err)
	}()

	st, err := s.open(ctx, id)
	if err != nil {
		return nil, err
	}
	defer st.Close() //nolint:errcheck

	source := req.Source
	if source == "" {
		source = "api"
	}
	resp = &mergeResponse{Run: model.Run{
		ID:        uuid.NewString(),
		LedgerID:  st.Identity(),
		Source:    source,
		Mode:      model.RunModeAPI,
		Weeks:     distinctWeeks(req.Records),
		CreatedAt: start.UTC(),
	}}

	merger := ledger.NewMerger(st, s.locker).OnLockWait(s.metrics.ObserveLockWait)
	_, stats, err := merger.Apply(ctx, ledger.FromRecords(req.Records), &resp.Run, req.DryRun)
	if err != nil {
		return nil, err
	}
	resp.Stats = stats
	s.metrics.AddRecords(len(req.Records), stats.Replaced)
	return resp, nil
}

// loadRecords reads ledger id. ok is false when the response has already been written.
func (s *service) loadRecords(w http.ResponseWriter, r *http.Request) (records []model.ParticipationRecord, ok bool) {
	id := chi.URLParam(r, "id")
	if !ledger.ValidID(id) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid ledger id %q", id))
		return nil, false
	}

	st, err := s.open(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return nil, false
	}
	defer st.Close() //nolint:errcheck

	l, err := st.Load(r.Context())
	if errors.Is(err, ledger.ErrLedgerNotFound) {
		writeError(w, http.StatusNotFound, fmt.Sprintf("ledger %q not found", id))
		return nil, false
	}
	if err == nil {
		records, err = l.Records()
	}
	if err != nil {
		zap.L().Error("serve: load ledger failed", zap.String("ledger", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return nil, false
	}
	return records, true
}

// weeksParam reads ?weeks=N, falling back to the configured total. ok is false when
// the response has already been written.
func (s *service) weeksParam(w http.ResponseWriter, r *http.Request, records []model.ParticipationRecord) (int, bool) {
	flag := 0
	if v := r.URL.Query().Get("weeks"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "weeks must be a positive integer")
			return 0, false
		}
		flag = n
	}
	return resolveWeeks(flag, s.weeksTotal, records), true
}

func (s *service) handleScores(w http.ResponseWriter, r *http.Request) {
	records, ok := s.loadRecords(w, r)
	if !ok {
		return
	}
	weeksTotal, ok := s.weeksParam(w, r, records)
	if !ok {
		return
	}
	scores, err := scorer.ScoreAll(r.Context(), records, weeksTotal)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeResponse(w, http.StatusOK, map[string]any{
		"ledger":      chi.URLParam(r, "id"),
		"weeks_total": weeksTotal,
		"scores":      scores,
	})
}

func (s *service) handleReport(w http.ResponseWriter, r *http.Request) {
	records, ok := s.loadRecords(w, r)
	if !ok {
		return
	}
	weeksTotal, ok := s.weeksParam(w, r, records)
	if !ok {
		return
	}
	o, err := report.BuildOverview(r.Context(), records, weeksTotal)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeResponse(w, http.StatusOK, o)
}

// trimKeys trims the student and week of each record so whitespace-only values fail
// the required check and padded names key the same as their trimmed form.
func trimKeys(records []model.ParticipationRecord) {
	for i := range records {
		records[i].Student = strings.TrimSpace(records[i].Student)
		records[i].Week = strings.TrimSpace(records[i].Week)
	}
}

// distinctWeeks lists the week labels in records, sorted.
func distinctWeeks(records []model.ParticipationRecord) []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range records {
		if !seen[r.Week] {
			seen[r.Week] = true
			out = append(out, r.Week)
		}
	}
	sort.Strings(out)
	return out
}

// validationMessages renders validator errors as "records[0].attendance: oneof".
func validationMessages(err error) []string {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return []string{err.Error()}
	}
	out := make([]string, 0, len(ve))
	for _, fe := range ve {
		field := fe.Namespace()
		if i := strings.Index(field, "."); i >= 0 {
			field = field[i+1:]
		}
		msg := field + ": " + fe.Tag()
		if fe.Param() != "" {
			msg += "=" + fe.Param()
		}
		out = append(out, msg)
	}
	return out
}

func writeResponse(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeResponse(w, code, map[string]string{"error": msg})
}

// startServer serves handler on port until ctx is canceled, then shuts down gracefully.
func startServer(ctx context.Context, handler http.Handler, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		zap.L().Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return eris.Wrap(srv.Shutdown(shutdownCtx), "server shutdown")
	})
	return g.Wait()
}
