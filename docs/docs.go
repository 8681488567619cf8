// Package docs is generated by swaggo/swag from the handler annotations.
// Regenerate with: swag init -g cmd/leadflow/main.go
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/workflow/leads": {
            "post": {
                "security": [{"BearerAuth": []}],
                "description": "Registers a lead in the NEW stage owned by the caller.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Workflow"],
                "summary": "Создать лид",
                "parameters": [
                    {"description": "Lead", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.CreateLeadRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/models.Leads"}},
                    "400": {"description": "Bad Request", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                }
            }
        },
        "/workflow/leads/{id}/history": {
            "get": {
                "security": [{"BearerAuth": []}],
                "description": "Committed transitions of a lead, newest first. Pass the last occurred_at as before to page.",
                "produces": ["application/json"],
                "tags": ["Workflow"],
                "summary": "История стадий лида",
                "parameters": [
                    {"type": "integer", "description": "Lead ID", "name": "id", "in": "path", "required": true},
                    {"type": "integer", "description": "Page size (1..500, default 50)", "name": "limit", "in": "query"},
                    {"type": "string", "description": "RFC3339 timestamp cursor", "name": "before", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.TransitionsResponse"}},
                    "400": {"description": "Bad Request", "schema": {"type": "object", "additionalProperties": {"type": "string"}}},
                    "404": {"description": "Not Found", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                }
            }
        },
        "/workflow/leads/{id}/history.pdf": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/pdf"],
                "tags": ["Workflow"],
                "summary": "Выгрузка истории в PDF",
                "parameters": [
                    {"type": "integer", "description": "Lead ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "file"}},
                    "404": {"description": "Not Found", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                }
            }
        },
        "/workflow/leads/{id}/reactivate": {
            "post": {
                "security": [{"BearerAuth": []}],
                "description": "Reactivation of CLOSED_LOST / DISQUALIFIED leads; elevated roles only.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Workflow"],
                "summary": "Переоткрыть закрытый лид",
                "parameters": [
                    {"type": "integer", "description": "Lead ID", "name": "id", "in": "path", "required": true},
                    {"description": "Target stage", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.TransitionRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.TransitionRecord"}},
                    "400": {"description": "Bad Request", "schema": {"type": "object", "additionalProperties": true}},
                    "403": {"description": "Forbidden", "schema": {"type": "object", "additionalProperties": {"type": "string"}}},
                    "404": {"description": "Not Found", "schema": {"type": "object", "additionalProperties": {"type": "string"}}},
                    "409": {"description": "Conflict", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                }
            }
        },
        "/workflow/leads/{id}/transition": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Workflow"],
                "summary": "Сменить стадию лида",
                "parameters": [
                    {"type": "integer", "description": "Lead ID", "name": "id", "in": "path", "required": true},
                    {"description": "Target stage", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.TransitionRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.TransitionRecord"}},
                    "400": {"description": "Bad Request", "schema": {"type": "object", "additionalProperties": true}},
                    "404": {"description": "Not Found", "schema": {"type": "object", "additionalProperties": {"type": "string"}}},
                    "409": {"description": "Conflict", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                }
            }
        },
        "/workflow/leads/{id}/transitions": {
            "get": {
                "security": [{"BearerAuth": []}],
                "description": "Stages the lead can move to from its current stage.",
                "produces": ["application/json"],
                "tags": ["Workflow"],
                "summary": "Доступные переходы",
                "parameters": [
                    {"type": "integer", "description": "Lead ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.AvailableResponse"}},
                    "404": {"description": "Not Found", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                }
            }
        },
        "/workflow/notifications/ws": {
            "get": {
                "description": "Upgrades to a websocket streaming notifications for high-salience stage changes. Browsers pass the token as access_token.",
                "tags": ["Workflow"],
                "summary": "Поток уведомлений (websocket)",
                "parameters": [
                    {"type": "integer", "description": "Only this lead", "name": "lead_id", "in": "query"},
                    {"type": "string", "description": "JWT when headers are not available", "name": "access_token", "in": "query"}
                ],
                "responses": {
                    "101": {"description": "Switching Protocols"},
                    "400": {"description": "Bad Request", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                }
            }
        },
        "/workflow/stages": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["Workflow"],
                "summary": "Граф стадий",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": {"type": "array", "items": {"$ref": "#/definitions/handlers.StageInfo"}}}}
                }
            }
        }
    },
    "definitions": {
        "handlers.AvailableResponse": {
            "type": "object",
            "properties": {
                "current_stage": {"type": "string"},
                "lead_id": {"type": "integer"},
                "transitions": {"type": "array", "items": {"type": "string"}}
            }
        },
        "handlers.CreateLeadRequest": {
            "type": "object",
            "required": ["title"],
            "properties": {
                "title": {"type": "string", "example": "Acme Corp"}
            }
        },
        "handlers.StageInfo": {
            "type": "object",
            "properties": {
                "label": {"type": "string"},
                "reactivation": {"type": "array", "items": {"type": "string"}},
                "stage": {"type": "string"},
                "terminal": {"type": "boolean"},
                "transitions": {"type": "array", "items": {"type": "string"}}
            }
        },
        "handlers.TransitionRequest": {
            "type": "object",
            "required": ["stage"],
            "properties": {
                "reason": {"type": "string", "example": "budget confirmed"},
                "stage": {"type": "string", "example": "QUALIFYING"}
            }
        },
        "handlers.TransitionsResponse": {
            "type": "object",
            "properties": {
                "transitions": {"type": "array", "items": {"$ref": "#/definitions/models.TransitionRecord"}}
            }
        },
        "models.Leads": {
            "type": "object",
            "properties": {
                "created_at": {"type": "string"},
                "id": {"type": "integer"},
                "owner_id": {"type": "integer"},
                "stage": {"type": "string"},
                "stage_changed_at": {"type": "string"},
                "stage_version": {"type": "integer"},
                "title": {"type": "string"}
            }
        },
        "models.TransitionRecord": {
            "type": "object",
            "properties": {
                "actor": {"type": "string"},
                "automated": {"type": "boolean"},
                "from_stage": {"type": "string"},
                "id": {"type": "string"},
                "lead_id": {"type": "integer"},
                "occurred_at": {"type": "string"},
                "reactivation": {"type": "boolean"},
                "reason": {"type": "string"},
                "to_stage": {"type": "string"}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "leadflow API",
	Description:      "Lead stage workflow: transitions, history and notifications.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
