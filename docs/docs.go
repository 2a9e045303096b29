// Package docs registers the OpenAPI document served at /docs.
// Regenerate with: swag init -g cmd/rocketpush/main.go
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {
            "name": "rocketpush"
        },
        "license": {
            "name": "MIT"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/": {
            "get": {
                "description": "Returns service name, version and status.",
                "produces": ["application/json"],
                "tags": ["meta"],
                "summary": "API root info",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": true}}
                }
            }
        },
        "/health": {
            "get": {
                "description": "Returns basic health status and timestamp.",
                "produces": ["application/json"],
                "tags": ["health"],
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": true}}
                }
            }
        },
        "/health/db": {
            "get": {
                "description": "Pings the configured store.",
                "produces": ["application/json"],
                "tags": ["health"],
                "summary": "Store health check",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": true}},
                    "503": {"description": "Service Unavailable", "schema": {"type": "object", "additionalProperties": true}}
                }
            }
        },
        "/health/cache": {
            "get": {
                "description": "Returns each cached response with its age, remaining TTL and hit count.",
                "produces": ["application/json"],
                "tags": ["health"],
                "summary": "Cache health check",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": true}}
                }
            }
        },
        "/api/v1/status": {
            "get": {
                "description": "Returns the result of the most recent check cycle and the trigger settings.",
                "produces": ["application/json"],
                "tags": ["status"],
                "summary": "Last cycle status",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": true}}
                }
            }
        },
        "/api/v1/schedule/next": {
            "get": {
                "description": "Fetches the schedule and reports the next item, whether it is inside the notification window and whether it was already notified.",
                "produces": ["application/json"],
                "tags": ["status"],
                "summary": "Next broadcast",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/notifications.Preview"}},
                    "502": {"description": "Bad Gateway", "schema": {"$ref": "#/definitions/respond.ErrorResponse"}}
                }
            }
        },
        "/api/v1/shows": {
            "get": {
                "description": "Returns all shows in the store with subscriber counts per notification kind.",
                "produces": ["application/json"],
                "tags": ["shows"],
                "summary": "List shows",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/store.ShowSummary"}}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/respond.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "notifications.Preview": {
            "type": "object",
            "properties": {
                "already_notified": {"type": "boolean"},
                "item": {"$ref": "#/definitions/schedule.Entry"},
                "kind": {"type": "string"},
                "note": {"type": "string"},
                "starts_in": {"type": "string"},
                "within_window": {"type": "boolean"},
                "would_notify": {"type": "boolean"}
            }
        },
        "schedule.Entry": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "show": {"type": "string"},
                "timeStart": {"type": "string"},
                "title": {"type": "string"},
                "topic": {"type": "string"},
                "type": {"type": "string"}
            }
        },
        "store.ShowSummary": {
            "type": "object",
            "properties": {
                "created_at": {"type": "string"},
                "id": {"type": "string"},
                "label": {"type": "string"},
                "subscribers": {"type": "object", "additionalProperties": {"type": "integer"}}
            }
        },
        "respond.ErrorResponse": {
            "type": "object",
            "properties": {
                "error": {
                    "type": "object",
                    "properties": {
                        "code": {"type": "string"},
                        "detail": {"type": "string"},
                        "message": {"type": "string"}
                    }
                }
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0.0",
	Host:             "localhost:8000",
	BasePath:         "/",
	Schemes:          []string{"http", "https"},
	Title:            "rocketpush status API",
	Description:      "Read-only status of the broadcast notification poller: last cycle, next broadcast and known shows.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
