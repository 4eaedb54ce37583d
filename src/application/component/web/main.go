package web

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/davidebianchi/gswagger/apirouter"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/oncodata/cytosight/src/application/component/web/apidoc"
	"github.com/oncodata/cytosight/src/application/service"
	"github.com/oncodata/cytosight/src/config"
	"github.com/oncodata/cytosight/src/domain"
)

type Web struct {
	Config config.WebConfig

	Logger           zerolog.Logger
	InferenceService service.InferenceService
}

func (self *Web) Start(ctx context.Context) error {
	self.Logger.Info().Str("listen", self.Config.Listen).Msg("Starting")

	muxRouter, err := self.router(ctx)
	if err != nil {
		return err
	}

	server := &http.Server{Addr: self.Config.Listen, Handler: muxRouter}

	go func() {
		if err := server.ListenAndServe(); err != nil {
			self.Logger.Err(err).Msgf("Failed to start web server on %s", self.Config.Listen)
		}
	}()

	<-ctx.Done()

	self.Logger.Info().Msg("Shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		self.Logger.Err(err).Msg("Failed to stop web server")
	}

	return nil
}

func (self *Web) router(ctx context.Context) (*mux.Router, error) {
	muxRouter := mux.NewRouter().StrictSlash(true)
	muxRouter.NotFoundHandler = http.NotFoundHandler()
	muxRouter.Use(self.requestLogger)

	r, err := apidoc.NewRouterDocumented(apirouter.NewGorillaMuxRouter(muxRouter), "CytoSight REST API", "1.0.0", "cytosight", ctx)
	if err != nil {
		return nil, errors.WithMessage(err, "Failed to create swagger router")
	}

	// sorted alphabetically, please keep it this way
	if _, err := r.AddRoute(http.MethodGet,
		"/check",
		apirouter.HandlerFunc(self.basicAuth(self.ApiCheckGet)),
		apidoc.BuildSwaggerDef(
			nil,
			nil,
			apidoc.BuildResponseSuccessfully(http.StatusOK, apiHealthCheck{}, "Ok")),
	); err != nil {
		return nil, err
	}
	if _, err := r.AddRoute(http.MethodPost,
		"/inference",
		apirouter.HandlerFunc(self.basicAuth(self.ApiInferencePost)),
		apidoc.BuildSwaggerDef(
			nil,
			apidoc.BuildBodyRequest(apiInferenceRequest{}),
			apidoc.BuildResponseSuccessfully(http.StatusOK, domain.InferenceResult{}, "Ok")),
	); err != nil {
		return nil, err
	}

	muxRouter.Handle("/metrics", promhttp.Handler())

	// creates /documentation/cytosight.json and /documentation/cytosight.yaml routes
	if err := r.GenerateAndExposeSwagger(); err != nil {
		return nil, errors.WithMessage(err, "Failed to generate and expose swagger")
	}

	return muxRouter, nil
}

type apiHealthCheck struct {
	Status string `json:"status"`
}

// apiInferenceRequest mirrors the request body for the generated
// documentation. The handler decodes into domain.InferenceRequest instead
// so that validation can report every violation field by field.
type apiInferenceRequest struct {
	Identifier []string         `json:"identifier"`
	Data       apiModelFeatures `json:"data"`
}

type apiModelFeatures struct {
	MeanRadius           []float64 `json:"mean_radius"`
	MeanTexture          []float64 `json:"mean_texture"`
	MeanPerimeter        []float64 `json:"mean_perimeter"`
	MeanArea             []float64 `json:"mean_area"`
	MeanSmoothness       []float64 `json:"mean_smoothness"`
	MeanCompactness      []float64 `json:"mean_compactness"`
	MeanConcavity        []float64 `json:"mean_concavity"`
	MeanConcavePoints    []float64 `json:"mean_concave_points"`
	MeanSymmetry         []float64 `json:"mean_symmetry"`
	MeanFractalDimension []float64 `json:"mean_fractal_dimension"`
}

func (self *Web) ApiCheckGet(w http.ResponseWriter, req *http.Request) {
	self.json(w, apiHealthCheck{Status: "active"}, http.StatusOK)
}

func (self *Web) ApiInferencePost(w http.ResponseWriter, req *http.Request) {
	payload := domain.InferenceRequest{}
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		self.ValidationError(w, []domain.ValidationError{{
			FieldName:    "body",
			ErrorMsg:     "Request body is not valid JSON",
			ExpectedType: "json_invalid",
		}})
		return
	}

	observations, validationErrors := payload.Validate()
	if len(validationErrors) > 0 {
		self.ValidationError(w, validationErrors)
		return
	}

	predictions, err := self.InferenceService.Predict(observations.Matrix)
	if err != nil {
		self.ServerError(w, err)
		return
	}
	inferenceObservationsTotal.Add(float64(len(predictions)))

	self.json(w, domain.InferenceResult{
		Identifier:  observations.Identifier,
		Predictions: predictions,
	}, http.StatusOK)
}

// basicAuth guards a handler with HTTP Basic auth. It runs before any of
// the body is read and answers every failure uniformly so callers cannot
// probe for valid usernames or reach validation unauthenticated.
func (self *Web) basicAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		username, password, ok := req.BasicAuth()
		if !ok || !self.Config.Credentials.Verify(username, password) {
			self.Unauthorized(w, errors.New("Invalid credentials"))
			return
		}
		next(w, req)
	}
}

func (self *Web) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		logger := self.Logger.With().Str("request", uuid.New().String()).Logger()
		logger.Info().Str("method", req.Method).Str("path", req.URL.Path).Msg("Endpoint called")

		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, req)

		duration := time.Since(start)
		logger.Info().Int("status", recorder.status).Dur("duration", duration).Msg("Endpoint answered")

		httpRequestsTotal.WithLabelValues(req.Method, req.URL.Path, strconv.Itoa(recorder.status)).Inc()
		httpRequestDuration.WithLabelValues(req.Method, req.URL.Path).Observe(duration.Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (self *statusRecorder) WriteHeader(status int) {
	self.status = status
	self.ResponseWriter.WriteHeader(status)
}

type HandlerError struct {
	error
	StatusCode int
}

func (self HandlerError) HasError() bool {
	return self.error != nil
}

func (self *Web) ServerError(w http.ResponseWriter, err error) {
	self.Error(w, HandlerError{err, http.StatusInternalServerError})
}

func (self *Web) Unauthorized(w http.ResponseWriter, err error) {
	self.Error(w, HandlerError{err, http.StatusUnauthorized})
}

type apiErrorDetail struct {
	Detail string `json:"detail"`
}

// Error logs the cause server-side and answers with the fixed body for
// the status. The cause is never part of the response.
func (self *Web) Error(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	if handlerErr, ok := err.(HandlerError); ok {
		status = handlerErr.StatusCode
		if !handlerErr.HasError() {
			err = nil
		}
	}

	var e *zerolog.Event
	if status >= 500 {
		e = self.Logger.Error()
	} else {
		e = self.Logger.Debug()
	}
	e.Err(err).Int("status", status).Msg("Handler error")

	switch status {
	case http.StatusUnauthorized:
		w.Header().Set("WWW-Authenticate", "Basic")
		self.json(w, apiErrorDetail{Detail: "Invalid credentials."}, status)
	case http.StatusInternalServerError:
		self.json(w, apiErrorDetail{Detail: "Internal server error occured."}, status)
	default:
		self.json(w, apiErrorDetail{Detail: http.StatusText(status)}, status)
	}
}

type apiValidationErrorResponse struct {
	Detail string                   `json:"detail"`
	Errors []domain.ValidationError `json:"errors"`
}

// ValidationError rejects a request with every violation found. The
// request never reaches inference.
func (self *Web) ValidationError(w http.ResponseWriter, errs []domain.ValidationError) {
	self.Logger.Debug().Int("errors", len(errs)).Msg("Validation failed")
	self.json(w, apiValidationErrorResponse{Detail: "Validation error", Errors: errs}, http.StatusUnprocessableEntity)
}

func (self *Web) json(w http.ResponseWriter, obj any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(obj); err != nil {
		self.Logger.Err(err).Msg("Failed to encode response body")
	}
}
