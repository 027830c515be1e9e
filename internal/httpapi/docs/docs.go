// Package docs holds the OpenAPI document served under /swagger when the
// binary is built with -tags=swagger. Regenerate with swag init.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "license": {
            "name": "MIT",
            "url": "https://opensource.org/licenses/MIT"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/commands": {
            "post": {
                "description": "Queues load, generate, interrupt, reset, or check. Results arrive on /events.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["worker"],
                "summary": "Send a command to the worker",
                "parameters": [
                    {
                        "description": "Command",
                        "name": "command",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/types.Command"}
                    }
                ],
                "responses": {
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/types.CommandResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "415": {"description": "Unsupported Media Type", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/events": {
            "get": {
                "description": "Server-sent events; the event type is the worker status and the data is a JSON types.Event.",
                "produces": ["text/event-stream"],
                "tags": ["worker"],
                "summary": "Stream worker events",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.Event"}}
                }
            }
        },
        "/status": {
            "get": {
                "produces": ["application/json"],
                "tags": ["worker"],
                "summary": "Worker status",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.StatusResponse"}}
                }
            }
        }
    },
    "definitions": {
        "types.ChatTurn": {
            "type": "object",
            "properties": {
                "content": {"type": "string", "example": "What is 2+2?"},
                "role": {"type": "string", "example": "user"}
            }
        },
        "types.Command": {
            "type": "object",
            "properties": {
                "data": {"type": "array", "items": {"$ref": "#/definitions/types.ChatTurn"}},
                "id": {"type": "string"},
                "type": {"type": "string", "example": "generate"}
            }
        },
        "types.CommandResponse": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "type": {"type": "string"}
            }
        },
        "types.ErrorResponse": {
            "type": "object",
            "properties": {
                "code": {"type": "integer", "example": 400},
                "error": {"type": "string", "example": "invalid JSON body"}
            }
        },
        "types.Event": {
            "type": "object",
            "properties": {
                "class": {"type": "string"},
                "file": {"type": "string"},
                "id": {"type": "string"},
                "message": {"type": "string"},
                "num_tokens": {"type": "integer"},
                "output": {"type": "string"},
                "progress": {"type": "integer"},
                "state": {"type": "string"},
                "status": {"type": "string"},
                "thought": {"type": "string"},
                "tps": {"type": "number"}
            }
        },
        "types.LoadProgress": {
            "type": "object",
            "properties": {
                "asset_id": {"type": "string"},
                "bytes_loaded": {"type": "integer"},
                "bytes_total": {"type": "integer"},
                "percent": {"type": "integer"},
                "phase": {"type": "string"}
            }
        },
        "types.StatusResponse": {
            "type": "object",
            "properties": {
                "active_id": {"type": "string"},
                "cache_warm": {"type": "boolean"},
                "generating": {"type": "boolean"},
                "last_error": {"type": "string"},
                "model_id": {"type": "string", "example": "qwen3:0.6b"},
                "progress": {"type": "array", "items": {"$ref": "#/definitions/types.LoadProgress"}},
                "provider": {"type": "string", "example": "ollama"},
                "server_time_unix": {"type": "integer"},
                "status": {"type": "string", "example": "ready"},
                "uptime_seconds": {"type": "integer", "example": 3600}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{"http"},
	Title:            "thinkchat API",
	Description:      "Command and event API for a local reasoning-chat worker.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
