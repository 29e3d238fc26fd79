// Package docs registers the OpenAPI description served under /swagger.
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
    "securityDefinitions": {
        "UserID": {"type": "apiKey", "name": "X-User-ID", "in": "header"},
        "UserRole": {"type": "apiKey", "name": "X-User-Role", "in": "header"}
    },
    "paths": {
        "/products": {
            "get": {
                "summary": "List products",
                "parameters": [
                    {"type": "string", "name": "category", "in": "query"},
                    {"type": "string", "name": "search", "in": "query"},
                    {"type": "integer", "name": "page", "in": "query"},
                    {"type": "integer", "name": "limit", "in": "query"}
                ],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/products/{id}": {
            "get": {
                "summary": "Get a product",
                "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Product not found"}}
            }
        },
        "/orders": {
            "post": {
                "summary": "Place an order",
                "description": "Reserves stock for every line and creates the order, or changes nothing.",
                "security": [{"UserID": []}],
                "parameters": [{"type": "string", "name": "Idempotency-Key", "in": "header"}],
                "responses": {
                    "201": {"description": "Created"},
                    "400": {"description": "Validation or insufficient stock"},
                    "409": {"description": "Same Idempotency-Key in flight"}
                }
            }
        },
        "/orders/{id}/cancel": {
            "put": {
                "summary": "Cancel an order",
                "security": [{"UserID": []}],
                "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}, "400": {"description": "Invalid transition"}, "403": {"description": "Access denied"}}
            }
        },
        "/admin/orders/{id}/status": {
            "put": {
                "summary": "Move an order through fulfilment",
                "security": [{"UserID": [], "UserRole": []}],
                "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}, "400": {"description": "Invalid status or transition"}}
            }
        }
    }
}`

var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api",
	Schemes:          []string{},
	Title:            "Storefront API",
	Description:      "Catalog, cart, checkout with stock reservation, and order administration.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
