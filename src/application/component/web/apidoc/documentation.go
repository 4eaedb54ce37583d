package apidoc

import (
	"context"
	"fmt"
	"net/http"

	swagger "github.com/davidebianchi/gswagger"
	"github.com/davidebianchi/gswagger/apirouter"
	"github.com/getkin/kin-openapi/openapi3"
)

const jsonType = "application/json"

func NewRouterDocumented(router apirouter.Router, title, version, docName string, ctx context.Context) (*swagger.Router, error) {
	return swagger.NewRouter(router, swagger.Options{
		Context: ctx,
		Openapi: &openapi3.T{
			Info: &openapi3.Info{
				Title:   title,
				Version: version,
			},
		},
		YAMLDocumentationPath: fmt.Sprintf(`/documentation/%s.yaml`, docName),
		JSONDocumentationPath: fmt.Sprintf(`/documentation/%s.json`, docName),
	})
}

type Response struct {
	statusCode int
	body       swagger.ContentValue
}

func BuildResponseSuccessfully(statusCode int, content interface{}, description string) Response {
	return Response{
		statusCode: statusCode,
		body: swagger.ContentValue{
			Content: swagger.Content{
				jsonType: {Value: content},
			},
			Description: description,
		},
	}
}

func BuildBodyRequest(body interface{}) *swagger.ContentValue {
	return &swagger.ContentValue{
		Content: swagger.Content{
			jsonType: {
				Value: &body,
			},
		},
	}
}

// BuildSwaggerDef documents a route together with the error responses
// every route answers with: the fixed unauthorized, validation and
// internal error shapes.
func BuildSwaggerDef(parameters swagger.ParameterValue, bodyRequest *swagger.ContentValue, response Response) swagger.Definitions {
	return swagger.Definitions{
		PathParams:  parameters,
		RequestBody: bodyRequest,
		Responses: map[int]swagger.ContentValue{
			response.statusCode: response.body,
			http.StatusUnauthorized: {
				Content: swagger.Content{
					jsonType: {Value: &unauthorizedResponse{}},
				},
				Description: "Unauthorized",
			},
			http.StatusUnprocessableEntity: {
				Content: swagger.Content{
					jsonType: {Value: &validationErrorResponse{}},
				},
				Description: "ValidationError",
			},
			http.StatusInternalServerError: {
				Content: swagger.Content{
					jsonType: {Value: &serverErrorResponse{}},
				},
				Description: "ServerError",
			},
		},
	}
}

type unauthorizedResponse struct {
	Detail string `json:"detail"`
}

type validationErrorResponse struct {
	Detail string            `json:"detail"`
	Errors []validationError `json:"errors"`
}

type validationError struct {
	FieldName     string      `json:"field_name"`
	ErrorMsg      string      `json:"error_msg"`
	ValueReceived interface{} `json:"value_received"`
	ExpectedType  string      `json:"expected_type"`
}

type serverErrorResponse struct {
	Detail string `json:"detail"`
}
