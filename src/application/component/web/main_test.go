package web

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/steinfletcher/apitest"
	"github.com/stretchr/testify/assert"

	"github.com/oncodata/cytosight/src/application/service"
	"github.com/oncodata/cytosight/src/config"
	"github.com/oncodata/cytosight/src/domain"
)

const (
	testUsername = "scientist"
	testPassword = "correct-horse"
)

type fakeInferenceService struct {
	predictions []float64
	err         error
}

func (self fakeInferenceService) Predict(domain.Matrix) ([]float64, error) {
	return self.predictions, self.err
}

func buildRouter(t *testing.T, inferenceService service.InferenceService) http.Handler {
	t.Helper()

	webConfig, err := config.NewWebConfig("127.0.0.1:0", testUsername, testPassword)
	if err != nil {
		t.Fatal(err)
	}

	web := Web{
		Config:           webConfig,
		Logger:           zerolog.Nop(),
		InferenceService: inferenceService,
	}

	router, err := web.router(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	return router
}

// buildRadiusRouter serves a model whose prediction depends on
// mean_radius alone: sigmoid(mean_radius).
func buildRadiusRouter(t *testing.T) http.Handler {
	t.Helper()

	coefficients := make([]float64, len(domain.FeatureNames))
	coefficients[0] = 1
	content, err := json.Marshal(map[string]any{
		"variable_names": domain.FeatureNames,
		"coefficients":   coefficients,
		"intercept":      0,
	})
	if err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "model.json")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatal(err)
	}

	model, err := domain.LoadLogisticRegression(path)
	if err != nil {
		t.Fatal(err)
	}

	logger := zerolog.Nop()
	inferenceService, err := service.NewInferenceService(model, &logger)
	if err != nil {
		t.Fatal(err)
	}

	return buildRouter(t, inferenceService)
}

func inferenceBody(t *testing.T, identifier []string, meanRadius []float64) string {
	t.Helper()

	data := map[string]any{}
	for _, name := range domain.FeatureNames {
		data[name] = make([]float64, len(identifier))
	}
	data["mean_radius"] = meanRadius

	content, err := json.Marshal(map[string]any{
		"identifier": identifier,
		"data":       data,
	})
	if err != nil {
		t.Fatal(err)
	}
	return string(content)
}

func TestApiUnauthorized(t *testing.T) {
	t.Parallel()

	router := buildRouter(t, fakeInferenceService{})

	tries := map[string]struct {
		method    string
		url       string
		body      string
		authorize func(request *apitest.Request) *apitest.Request
	}{
		"missing credentials on check": {
			http.MethodGet, "/check", "",
			nil,
		},
		"missing credentials on inference": {
			// the guard answers before the body is ever parsed
			http.MethodPost, "/inference", `{`,
			nil,
		},
		"wrong username": {
			http.MethodGet, "/check", "",
			func(request *apitest.Request) *apitest.Request {
				return request.BasicAuth("intruder", testPassword)
			},
		},
		"wrong password": {
			http.MethodGet, "/check", "",
			func(request *apitest.Request) *apitest.Request {
				return request.BasicAuth(testUsername, "battery-staple")
			},
		},
		"wrong scheme": {
			http.MethodGet, "/check", "",
			func(request *apitest.Request) *apitest.Request {
				return request.Header("Authorization", "Bearer abc")
			},
		},
	}

	for k, try := range tries {
		// copy to avoid pointing to loop variables
		k := k
		try := try

		t.Run(k, func(t *testing.T) {
			t.Parallel()

			// given
			request := apitest.New().Handler(router).
				Method(try.method).
				URL(try.url)
			if try.body != "" {
				request = request.Body(try.body)
			}
			if try.authorize != nil {
				request = try.authorize(request)
			}

			// when, then
			request.Expect(t).
				Header("WWW-Authenticate", "Basic").
				Body(`{"detail": "Invalid credentials."}`).
				Status(http.StatusUnauthorized).
				End()
		})
	}
}

func TestApiCheckGet(t *testing.T) {
	t.Parallel()

	router := buildRouter(t, fakeInferenceService{})

	apitest.New().Handler(router).
		Method(http.MethodGet).
		URL("/check").
		BasicAuth(testUsername, testPassword).
		Expect(t).
		Header("Content-Type", "application/json").
		Body(`{"status": "active"}`).
		Status(http.StatusOK).
		End()
}

func TestApiInferencePost(t *testing.T) {
	t.Parallel()

	router := buildRadiusRouter(t)

	apitest.New().Handler(router).
		Method(http.MethodPost).
		URL("/inference").
		BasicAuth(testUsername, testPassword).
		Body(inferenceBody(t, []string{"first", "second"}, []float64{0, 1000})).
		Expect(t).
		Header("Content-Type", "application/json").
		Body(`{"identifier": ["first", "second"], "predictions": [0.5, 1]}`).
		Status(http.StatusOK).
		End()
}

func TestApiInferencePostKeepsRowOrder(t *testing.T) {
	t.Parallel()

	router := buildRadiusRouter(t)

	apitest.New().Handler(router).
		Method(http.MethodPost).
		URL("/inference").
		BasicAuth(testUsername, testPassword).
		Body(inferenceBody(t, []string{"second", "first"}, []float64{1000, 0})).
		Expect(t).
		Body(`{"identifier": ["second", "first"], "predictions": [1, 0.5]}`).
		Status(http.StatusOK).
		End()
}

func TestApiInferencePostEmptyBatch(t *testing.T) {
	t.Parallel()

	router := buildRadiusRouter(t)

	apitest.New().Handler(router).
		Method(http.MethodPost).
		URL("/inference").
		BasicAuth(testUsername, testPassword).
		Body(inferenceBody(t, []string{}, []float64{})).
		Expect(t).
		Body(`{"identifier": [], "predictions": []}`).
		Status(http.StatusOK).
		End()
}

func TestApiInferencePostIdempotent(t *testing.T) {
	t.Parallel()

	router := buildRadiusRouter(t)
	body := inferenceBody(t, []string{"first", "second"}, []float64{14.2, -3.7})

	call := func() string {
		result := apitest.New().Handler(router).
			Method(http.MethodPost).
			URL("/inference").
			BasicAuth(testUsername, testPassword).
			Body(body).
			Expect(t).
			Status(http.StatusOK).
			End()

		content, err := io.ReadAll(result.Response.Body)
		if err != nil {
			t.Fatal(err)
		}
		return string(content)
	}

	assert.Equal(t, call(), call())
}

func TestApiInferencePostValidationError(t *testing.T) {
	t.Parallel()

	router := buildRadiusRouter(t)

	// given
	data := map[string]any{}
	for _, name := range domain.FeatureNames {
		data[name] = []float64{10.5, 20.5}
	}
	data["mean_radius"] = []float64{10.5}
	data["mean_glow"] = []float64{1.5, 2.5}
	delete(data, "mean_texture")
	payload, err := json.Marshal(map[string]any{
		"identifier": []string{"a", "b"},
		"data":       data,
		"shape":      "round",
	})
	if err != nil {
		t.Fatal(err)
	}

	// when
	result := apitest.New().Handler(router).
		Method(http.MethodPost).
		URL("/inference").
		BasicAuth(testUsername, testPassword).
		Body(string(payload)).
		Expect(t).
		Status(http.StatusUnprocessableEntity).
		End()

	// then
	response := apiValidationErrorResponse{}
	if err := json.NewDecoder(result.Response.Body).Decode(&response); err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, "Validation error", response.Detail)

	fields := []string{}
	types := []string{}
	for _, validationError := range response.Errors {
		fields = append(fields, validationError.FieldName)
		types = append(types, validationError.ExpectedType)
	}
	assert.Equal(t, []string{"mean_radius", "mean_texture", "mean_glow", "shape"}, fields)
	assert.Equal(t, []string{"length_mismatch", "missing", "extra_forbidden", "extra_forbidden"}, types)
}

func TestApiInferencePostMalformedBody(t *testing.T) {
	t.Parallel()

	router := buildRadiusRouter(t)

	tries := map[string]struct {
		body string
	}{
		"truncated":      {`{"identifier": ["a"]`},
		"not an object":  {`[1, 2]`},
		"empty":          {` `},
		"nan is no json": {`{"identifier": ["a"], "data": {"mean_radius": [NaN]}}`},
	}

	for k, try := range tries {
		// copy to avoid pointing to loop variables
		k := k
		try := try

		t.Run(k, func(t *testing.T) {
			t.Parallel()

			apitest.New().Handler(router).
				Method(http.MethodPost).
				URL("/inference").
				BasicAuth(testUsername, testPassword).
				Body(try.body).
				Expect(t).
				Body(`{
					"detail": "Validation error",
					"errors": [{
						"field_name": "body",
						"error_msg": "Request body is not valid JSON",
						"value_received": null,
						"expected_type": "json_invalid"
					}]
				}`).
				Status(http.StatusUnprocessableEntity).
				End()
		})
	}
}

func TestApiInferencePostServerError(t *testing.T) {
	t.Parallel()

	router := buildRouter(t, fakeInferenceService{err: errors.New("model exploded")})

	apitest.New().Handler(router).
		Method(http.MethodPost).
		URL("/inference").
		BasicAuth(testUsername, testPassword).
		Body(inferenceBody(t, []string{"a"}, []float64{10.5})).
		Expect(t).
		Body(`{"detail": "Internal server error occured."}`).
		Status(http.StatusInternalServerError).
		End()
}

func TestApiMetrics(t *testing.T) {
	t.Parallel()

	router := buildRouter(t, fakeInferenceService{})

	// when
	result := apitest.New().Handler(router).
		Method(http.MethodGet).
		URL("/metrics").
		Expect(t).
		Status(http.StatusOK).
		End()

	// then
	content, err := io.ReadAll(result.Response.Body)
	if err != nil {
		t.Fatal(err)
	}
	assert.Contains(t, string(content), "cytosight_inference_observations_total")
}

func TestApiDocumentation(t *testing.T) {
	t.Parallel()

	router := buildRouter(t, fakeInferenceService{})

	// when
	result := apitest.New().Handler(router).
		Method(http.MethodGet).
		URL("/documentation/cytosight.json").
		Expect(t).
		Status(http.StatusOK).
		End()

	// then
	content, err := io.ReadAll(result.Response.Body)
	if err != nil {
		t.Fatal(err)
	}
	assert.Contains(t, string(content), `"/inference"`)
	assert.Contains(t, string(content), `"/check"`)
}

func TestApiNotFound(t *testing.T) {
	t.Parallel()

	router := buildRouter(t, fakeInferenceService{})

	apitest.New().Handler(router).
		Method(http.MethodGet).
		URL("/missing").
		Expect(t).
		Status(http.StatusNotFound).
		End()
}
