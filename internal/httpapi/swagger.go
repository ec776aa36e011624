//go:build swagger

package httpapi

import (
	"github.com/go-chi/chi/v5"
	httpSwagger "github.com/swaggo/http-swagger"
	"github.com/swaggo/swag"
)

func init() {
	swag.Register(swaggerSpec.InstanceName(), swaggerSpec)
}

// MountSwagger serves the Swagger UI under /swagger/.
func MountSwagger(r chi.Router) {
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))
}

var swaggerSpec = &swag.Spec{
	Version:          "1.0",
	BasePath:         "/",
	Schemes:          []string{"http"},
	Title:            "doclingd API",
	Description:      "HTTP API for local Granite Docling page transcription.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  swaggerTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

const swaggerTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "{{.Title}}",
        "description": "{{escape .Description}}",
        "version": "{{.Version}}"
    },
    "basePath": "{{.BasePath}}",
    "schemes": {{ marshal .Schemes }},
    "paths": {
        "/ensure": {
            "post": {
                "tags": ["models"],
                "summary": "Make the model ready",
                "produces": ["application/json"],
                "parameters": [
                    {"type": "string", "description": "stream NDJSON progress when 1", "name": "progress", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.EnsureResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/infer": {
            "post": {
                "tags": ["infer"],
                "summary": "Transcribe a page image",
                "consumes": ["multipart/form-data", "application/json"],
                "produces": ["application/x-ndjson"],
                "parameters": [
                    {"type": "file", "description": "page image", "name": "image", "in": "formData"},
                    {"type": "string", "description": "instruction", "name": "instruction", "in": "formData"},
                    {"type": "string", "description": "doctags, markdown or html", "name": "format", "in": "formData"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.InferChunk"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "413": {"description": "Request Entity Too Large", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "415": {"description": "Unsupported Media Type", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "429": {"description": "Too Many Requests", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/models": {
            "get": {
                "tags": ["models"],
                "summary": "List cached models",
                "produces": ["application/json"],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/types.ModelsResponse"}}}
            }
        },
        "/status": {
            "get": {
                "tags": ["status"],
                "summary": "Session status",
                "produces": ["application/json"],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/types.StatusResponse"}}}
            }
        }
    },
    "definitions": {
        "types.EnsureResponse": {
            "type": "object",
            "properties": {"state": {"type": "string"}, "model_id": {"type": "string"}}
        },
        "types.ErrorResponse": {
            "type": "object",
            "properties": {"error": {"type": "string"}, "code": {"type": "integer"}}
        },
        "types.InferChunk": {
            "type": "object",
            "properties": {
                "fragment": {"type": "string"},
                "progress": {"type": "integer"},
                "done": {"type": "boolean"},
                "content": {"type": "string"},
                "format": {"type": "string"},
                "run_id": {"type": "string"},
                "error": {"type": "string"}
            }
        },
        "types.Model": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "revision": {"type": "string"},
                "path": {"type": "string"},
                "files": {"type": "integer"},
                "size_bytes": {"type": "integer"},
                "size": {"type": "string"},
                "precisions": {"type": "array", "items": {"type": "string"}},
                "active": {"type": "boolean"}
            }
        },
        "types.ModelsResponse": {
            "type": "object",
            "properties": {"models": {"type": "array", "items": {"$ref": "#/definitions/types.Model"}}}
        },
        "types.StatusResponse": {
            "type": "object",
            "properties": {
                "state": {"type": "string"},
                "model_id": {"type": "string"},
                "backend": {"type": "string"},
                "precision": {"type": "string"},
                "progress": {"type": "integer"},
                "error": {"type": "string"},
                "queue_len": {"type": "integer"},
                "inflight": {"type": "integer"},
                "max_queue_depth": {"type": "integer"},
                "last_run_id": {"type": "string"},
                "runs_total": {"type": "integer"},
                "uptime_seconds": {"type": "integer"},
                "server_time_unix": {"type": "integer"}
            }
        }
    }
}`
