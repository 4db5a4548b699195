// Package docs registers the OpenAPI document served under /swagger.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/rates/latest": {
            "get": {
                "description": "Returns the cached USD rate table. Fetches from the provider only when the stored snapshot is older than the freshness window.",
                "produces": ["application/json"],
                "tags": ["rates"],
                "summary": "Get latest USD rates",
                "responses": {
                    "200": {"description": "Current rates", "schema": {"$ref": "#/definitions/api.LatestRatesResponse"}},
                    "502": {"description": "Rate provider unavailable", "schema": {"$ref": "#/definitions/api.ErrorResponse"}},
                    "503": {"description": "Rate store unavailable", "schema": {"$ref": "#/definitions/api.ErrorResponse"}}
                }
            }
        },
        "/commands/exchange": {
            "post": {
                "description": "Parses an /exchange command and converts the amount.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["commands"],
                "summary": "Convert an amount",
                "parameters": [
                    {"description": "Command text", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/api.CommandRequest"}}
                ],
                "responses": {
                    "200": {"description": "Converted amount", "schema": {"$ref": "#/definitions/api.ExchangeResponse"}},
                    "400": {"description": "Invalid command", "schema": {"$ref": "#/definitions/api.ErrorResponse"}},
                    "502": {"description": "Rate provider unavailable", "schema": {"$ref": "#/definitions/api.ErrorResponse"}},
                    "503": {"description": "Rate store unavailable", "schema": {"$ref": "#/definitions/api.ErrorResponse"}}
                }
            }
        },
        "/commands/history": {
            "post": {
                "description": "Parses a /history command, fetches one rate per day and renders a chart. Blocks until the chart is written.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["commands"],
                "summary": "Build a history chart",
                "parameters": [
                    {"description": "Command text", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/api.CommandRequest"}}
                ],
                "responses": {
                    "200": {"description": "Build finished", "schema": {"$ref": "#/definitions/api.ArtifactResponse"}},
                    "400": {"description": "Invalid command", "schema": {"$ref": "#/definitions/api.ErrorResponse"}},
                    "500": {"description": "Internal error", "schema": {"$ref": "#/definitions/api.ErrorResponse"}}
                }
            }
        },
        "/artifacts/{token}": {
            "get": {
                "description": "Serves the PNG registered under token.",
                "produces": ["image/png"],
                "tags": ["commands"],
                "summary": "Download a history chart",
                "parameters": [
                    {"type": "string", "description": "Artifact token", "name": "token", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "Chart image", "schema": {"type": "file"}},
                    "404": {"description": "No chart for token", "schema": {"$ref": "#/definitions/api.ErrorResponse"}}
                }
            }
        },
        "/healthz": {
            "get": {
                "produces": ["text/plain"],
                "tags": ["health"],
                "summary": "Health check (liveness)",
                "responses": {"200": {"description": "OK", "schema": {"type": "string"}}}
            }
        },
        "/readyz": {
            "get": {
                "produces": ["application/json"],
                "tags": ["health"],
                "summary": "Readiness check",
                "responses": {
                    "200": {"description": "All dependencies ready", "schema": {"$ref": "#/definitions/api.ReadyResponse"}},
                    "503": {"description": "At least one dependency unavailable", "schema": {"$ref": "#/definitions/api.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "api.CommandRequest": {
            "type": "object",
            "properties": {"text": {"type": "string", "example": "/exchange $10 to CAD"}}
        },
        "api.LatestRatesResponse": {
            "type": "object",
            "properties": {
                "base": {"type": "string", "example": "USD"},
                "rates": {"type": "object", "additionalProperties": {"type": "number"}}
            }
        },
        "api.ExchangeResponse": {
            "type": "object",
            "properties": {
                "amount": {"type": "number", "example": 10},
                "currency": {"type": "string", "example": "CAD"},
                "rate": {"type": "number", "example": 1.25},
                "direction": {"type": "string", "example": "base_to_quote"},
                "value": {"type": "number", "example": 12.5},
                "text": {"type": "string", "example": "12.5 CAD"}
            }
        },
        "api.ArtifactResponse": {
            "type": "object",
            "properties": {
                "token": {"type": "string", "example": "USD-CAD"},
                "status": {"type": "string", "example": "ready"},
                "url": {"type": "string", "example": "/artifacts/USD-CAD"}
            }
        },
        "api.ErrorResponse": {
            "type": "object",
            "properties": {
                "error": {"type": "string", "example": "There is no entered currency"},
                "kind": {"type": "string", "example": "unknown_currency"}
            }
        },
        "api.ReadyResponse": {
            "type": "object",
            "properties": {"status": {"type": "string", "example": "ready"}}
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "fxbot API",
	Description:      "USD exchange rates, conversions and history charts.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
