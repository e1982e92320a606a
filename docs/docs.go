// Package docs registers the OpenAPI document served at /swagger/*.
// Regenerate with: swag init -g cmd/api/main.go
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {
            "name": "Verdant Digital",
            "email": "hello@verdantdigital.com.au"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/create-payment-intent": {
            "post": {
                "description": "Creates a payment intent for the fixed-price Express Build. The amount must be 29900 (AUD cents).",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Payments"],
                "summary": "Create Express Build payment intent",
                "parameters": [
                    {
                        "type": "string",
                        "description": "Key reused on retries of the same checkout attempt",
                        "name": "Idempotency-Key",
                        "in": "header"
                    },
                    {
                        "description": "Amount, business info and add-on choice",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/models.CreatePaymentIntentRequest"}
                    }
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.CreatePaymentIntentResponse"}},
                    "400": {"description": "Missing required fields or invalid amount", "schema": {"$ref": "#/definitions/models.ErrorResponse"}},
                    "405": {"description": "Method not allowed", "schema": {"$ref": "#/definitions/models.ErrorResponse"}},
                    "500": {"description": "Payment processor error", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            }
        },
        "/payment-status/{id}": {
            "get": {
                "description": "Returns the processor status, amount and metadata of a payment intent, plus the webhook-recorded fulfillment status when known",
                "produces": ["application/json"],
                "tags": ["Payments"],
                "summary": "Get payment status",
                "parameters": [
                    {"type": "string", "description": "Payment intent ID (pi_...)", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.PaymentStatusResponse"}},
                    "400": {"description": "Invalid payment intent id", "schema": {"$ref": "#/definitions/models.ErrorResponse"}},
                    "500": {"description": "Payment processor error", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            }
        },
        "/webhook": {
            "post": {
                "description": "Verifies the Stripe-Signature header against the raw body and records the payment outcome",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Webhooks"],
                "summary": "Receive Stripe webhook",
                "parameters": [
                    {"type": "string", "description": "Stripe signature", "name": "Stripe-Signature", "in": "header", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.WebhookAck"}},
                    "400": {"description": "Webhook Error: <reason>", "schema": {"type": "string"}},
                    "500": {"description": "Event could not be recorded; Stripe retries", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            }
        },
        "/health": {
            "get": {
                "description": "Checks the fulfillment database and Redis",
                "produces": ["application/json"],
                "tags": ["System"],
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.HealthResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/models.HealthResponse"}}
                }
            }
        }
    },
    "definitions": {
        "models.BusinessInfo": {
            "type": "object",
            "required": ["address", "businessName", "contactName", "email", "phone", "trade"],
            "properties": {
                "additionalInfo": {"type": "string"},
                "address": {"type": "string"},
                "businessName": {"type": "string"},
                "contactName": {"type": "string"},
                "email": {"type": "string"},
                "phone": {"type": "string"},
                "trade": {"type": "string"},
                "website": {"type": "string"}
            }
        },
        "models.CreatePaymentIntentRequest": {
            "type": "object",
            "properties": {
                "amount": {"type": "integer"},
                "businessInfo": {"$ref": "#/definitions/models.BusinessInfo"},
                "idempotencyKey": {"type": "string"},
                "wantsGoogleAds": {"type": "boolean"}
            }
        },
        "models.CreatePaymentIntentResponse": {
            "type": "object",
            "properties": {
                "clientSecret": {"type": "string"},
                "paymentIntentId": {"type": "string"}
            }
        },
        "models.ErrorResponse": {
            "type": "object",
            "properties": {
                "error": {"type": "string"},
                "message": {"type": "string"}
            }
        },
        "models.FulfillmentInfo": {
            "type": "object",
            "properties": {
                "flagReason": {"type": "string"},
                "flagged": {"type": "boolean"},
                "status": {"type": "string"},
                "updatedAt": {"type": "string"}
            }
        },
        "models.HealthResponse": {
            "type": "object",
            "properties": {
                "cache": {"type": "string"},
                "database": {"type": "string"},
                "status": {"type": "string"},
                "timestamp": {"type": "string"}
            }
        },
        "models.PaymentStatusResponse": {
            "type": "object",
            "properties": {
                "amount": {"type": "integer"},
                "fulfillment": {"$ref": "#/definitions/models.FulfillmentInfo"},
                "metadata": {"type": "object", "additionalProperties": {"type": "string"}},
                "status": {"type": "string"}
            }
        },
        "models.WebhookAck": {
            "type": "object",
            "properties": {
                "received": {"type": "boolean"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Verdant Digital Express Build API",
	Description:      "Payment intents, Stripe webhooks and payment status for the Express Build checkout.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
