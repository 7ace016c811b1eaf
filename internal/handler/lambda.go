package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"github.com/dmorgan81/promptgrid/internal/batch"
	"github.com/dmorgan81/promptgrid/internal/log"
)

// HandleLambda serves API Gateway HTTP API (payload v2) and Lambda function
// URL invocations. Metrics are only exposed by the HTTP server.
func (h *Handler) HandleLambda(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	method, path := req.RequestContext.HTTP.Method, req.RawPath
	if path == "" {
		path = req.RequestContext.HTTP.Path
	}
	logger := log.FromContextOrDiscard(ctx).WithGroup("lambda").With(
		"request_id", req.RequestContext.RequestID, "method", method, "path", path)
	ctx = log.NewContext(ctx, logger)
	logger.Info("handling lambda invocation")

	switch path {
	case GeneratePath:
		if method != http.MethodPost {
			return textResponse(http.StatusMethodNotAllowed, map[string]string{"Allow": http.MethodPost}), nil
		}
		body := []byte(req.Body)
		if req.IsBase64Encoded {
			decoded, err := base64.StdEncoding.DecodeString(req.Body)
			if err != nil {
				return jsonResponse(http.StatusBadRequest, batch.ErrorResponse{Error: err.Error(), Message: malformedMessage})
			}
			body = decoded
		}
		return jsonResponse(h.generate(ctx, body))
	case HealthPath:
		return jsonResponse(http.StatusOK, map[string]string{"status": "ok"})
	case "/":
		if method != http.MethodGet && method != http.MethodHead {
			return textResponse(http.StatusMethodNotAllowed, map[string]string{"Allow": "GET, HEAD"}), nil
		}
		html, err := h.templator.Template(ctx)
		if err != nil {
			return events.APIGatewayV2HTTPResponse{}, err
		}
		return events.APIGatewayV2HTTPResponse{
			StatusCode: http.StatusOK,
			Headers:    map[string]string{"Content-Type": "text/html; charset=utf-8"},
			Body:       string(html),
		}, nil
	default:
		return textResponse(http.StatusNotFound, nil), nil
	}
}

func jsonResponse(status int, v any) (events.APIGatewayV2HTTPResponse, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return events.APIGatewayV2HTTPResponse{}, err
	}
	return events.APIGatewayV2HTTPResponse{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(body),
	}, nil
}

func textResponse(status int, headers map[string]string) events.APIGatewayV2HTTPResponse {
	if headers == nil {
		headers = map[string]string{}
	}
	headers["Content-Type"] = "text/plain; charset=utf-8"
	return events.APIGatewayV2HTTPResponse{
		StatusCode: status,
		Headers:    headers,
		Body:       http.StatusText(status),
	}
}
