// Package docs holds the OpenAPI description served at /swagger.
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
    "securityDefinitions": {
        "Bearer": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "security": [{"Bearer": []}],
    "paths": {
        "/equipment": {
            "get": {"tags": ["equipment"], "summary": "List equipment", "parameters": [
                {"name": "availability", "in": "query", "type": "string"},
                {"name": "type", "in": "query", "type": "string"},
                {"name": "q", "in": "query", "type": "string"},
                {"name": "limit", "in": "query", "type": "integer"},
                {"name": "offset", "in": "query", "type": "integer"}
            ], "responses": {"200": {"description": "OK"}}},
            "post": {"tags": ["equipment"], "summary": "Register a unit", "responses": {"201": {"description": "Created"}, "409": {"description": "Duplicate serial number"}}}
        },
        "/equipment/labels.csv": {
            "get": {"tags": ["equipment"], "summary": "Export label CSV", "produces": ["text/csv"], "parameters": [
                {"name": "ids", "in": "query", "type": "string", "required": true},
                {"name": "encoding", "in": "query", "type": "string", "enum": ["utf8", "cp932"]}
            ], "responses": {"200": {"description": "OK"}}}
        },
        "/equipment/{id}": {
            "get": {"tags": ["equipment"], "summary": "Get a unit", "parameters": [{"name": "id", "in": "path", "type": "integer", "required": true}], "responses": {"200": {"description": "OK"}, "404": {"description": "Not found"}}},
            "delete": {"tags": ["equipment"], "summary": "Delete a unit", "parameters": [{"name": "id", "in": "path", "type": "integer", "required": true}], "responses": {"204": {"description": "Deleted"}}}
        },
        "/equipment/{id}/availability": {
            "put": {"tags": ["equipment"], "summary": "Move a unit between available, maintenance and inactive", "parameters": [{"name": "id", "in": "path", "type": "integer", "required": true}], "responses": {"200": {"description": "OK"}, "409": {"description": "Unit is booked"}}}
        },
        "/loans": {
            "get": {"tags": ["loans"], "summary": "List loans", "responses": {"200": {"description": "OK"}}},
            "post": {"tags": ["loans"], "summary": "Create a loan awaiting pickup", "responses": {"201": {"description": "Created"}, "409": {"description": "Unit unavailable"}, "422": {"description": "Invalid return date"}}}
        },
        "/loans/{key}": {
            "get": {"tags": ["loans"], "summary": "Get a loan by id or ULID", "parameters": [{"name": "key", "in": "path", "type": "string", "required": true}], "responses": {"200": {"description": "OK"}}}
        },
        "/loans/{key}/pickup": {
            "post": {"tags": ["loans"], "summary": "Confirm pickup (technician)", "parameters": [{"name": "key", "in": "path", "type": "string", "required": true}], "responses": {"200": {"description": "OK"}, "409": {"description": "Already confirmed"}}}
        },
        "/loans/{key}/return": {
            "post": {"tags": ["loans"], "summary": "Return a loan (technician)", "parameters": [{"name": "key", "in": "path", "type": "string", "required": true}], "responses": {"200": {"description": "OK"}}}
        },
        "/loans/{key}/cancel": {
            "post": {"tags": ["loans"], "summary": "Cancel a loan", "parameters": [{"name": "key", "in": "path", "type": "string", "required": true}], "responses": {"200": {"description": "OK"}}}
        },
        "/reservations": {
            "get": {"tags": ["reservations"], "summary": "List reservations", "responses": {"200": {"description": "OK"}}},
            "post": {"tags": ["reservations"], "summary": "Reserve a unit for a pickup date", "responses": {"201": {"description": "Created"}, "409": {"description": "Already reserved"}, "422": {"description": "Invalid pickup date"}}}
        },
        "/reservations/{id}": {
            "get": {"tags": ["reservations"], "summary": "Get a reservation", "parameters": [{"name": "id", "in": "path", "type": "integer", "required": true}], "responses": {"200": {"description": "OK"}}}
        },
        "/reservations/{id}/confirm": {
            "post": {"tags": ["reservations"], "summary": "Confirm a reservation", "parameters": [{"name": "id", "in": "path", "type": "integer", "required": true}], "responses": {"200": {"description": "OK"}}}
        },
        "/reservations/{id}/cancel": {
            "post": {"tags": ["reservations"], "summary": "Cancel a reservation", "parameters": [{"name": "id", "in": "path", "type": "integer", "required": true}], "responses": {"200": {"description": "OK"}}}
        },
        "/reservations/{id}/convert": {
            "post": {"tags": ["reservations"], "summary": "Convert a reservation into an active loan (technician)", "parameters": [{"name": "id", "in": "path", "type": "integer", "required": true}], "responses": {"201": {"description": "Created"}}}
        },
        "/loan-requests": {
            "get": {"tags": ["loan-requests"], "summary": "List bulk loan requests", "responses": {"200": {"description": "OK"}}},
            "post": {"tags": ["loan-requests"], "summary": "Create a bulk loan request", "responses": {"201": {"description": "Created"}, "422": {"description": "Below bulk threshold"}}}
        },
        "/loan-requests/{id}": {
            "get": {"tags": ["loan-requests"], "summary": "Get a bulk loan request", "parameters": [{"name": "id", "in": "path", "type": "integer", "required": true}], "responses": {"200": {"description": "OK"}}}
        },
        "/loan-requests/{id}/equipment": {
            "put": {"tags": ["loan-requests"], "summary": "Replace the selected units", "parameters": [{"name": "id", "in": "path", "type": "integer", "required": true}], "responses": {"200": {"description": "OK"}}}
        },
        "/loan-requests/{id}/approve": {
            "post": {"tags": ["loan-requests"], "summary": "Approve (coordinator)", "parameters": [{"name": "id", "in": "path", "type": "integer", "required": true}], "responses": {"200": {"description": "OK"}}}
        },
        "/loan-requests/{id}/reject": {
            "post": {"tags": ["loan-requests"], "summary": "Reject with a reason (coordinator)", "parameters": [{"name": "id", "in": "path", "type": "integer", "required": true}], "responses": {"200": {"description": "OK"}}}
        },
        "/loan-requests/{id}/pickup": {
            "post": {"tags": ["loan-requests"], "summary": "Confirm pickup and create one loan per unit (technician)", "parameters": [{"name": "id", "in": "path", "type": "integer", "required": true}], "responses": {"200": {"description": "Loans created, with skipped units"}, "422": {"description": "No equipment selected"}}}
        },
        "/notifications": {
            "get": {"tags": ["notifications"], "summary": "List own notifications", "parameters": [{"name": "unread", "in": "query", "type": "boolean"}], "responses": {"200": {"description": "OK"}}}
        },
        "/notifications/unread-count": {
            "get": {"tags": ["notifications"], "summary": "Unread count", "responses": {"200": {"description": "OK"}}}
        },
        "/notifications/read-all": {
            "post": {"tags": ["notifications"], "summary": "Mark every notification read", "responses": {"200": {"description": "OK"}}}
        },
        "/notifications/{id}/read": {
            "post": {"tags": ["notifications"], "summary": "Mark one notification read", "parameters": [{"name": "id", "in": "path", "type": "integer", "required": true}], "responses": {"204": {"description": "No content"}}}
        },
        "/scheduler/run": {
            "post": {"tags": ["scheduler"], "summary": "Run reminder, overdue and expiry scans", "parameters": [{"name": "hours_before", "in": "query", "type": "integer"}], "responses": {"200": {"description": "Run report"}}}
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "EquipaHub booking API",
	Description:      "Equipment loans, reservations and bulk loan requests.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
