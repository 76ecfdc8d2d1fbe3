package handlers

import "github.com/xeipuuv/gojsonschema"

const schemaSession = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["credential"],
  "properties": {
    "credential": { "type": "string", "minLength": 1 }
  },
  "additionalProperties": false
}`

const schemaStartCheckout = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["provider", "amount"],
  "properties": {
    "provider": { "type": "string", "enum": ["card", "hosted-order"] },
    "amount": { "type": "number", "exclusiveMinimum": 0, "maximum": 1000000000 },
    "ticketIds": {
      "type": "array",
      "minItems": 1,
      "items": { "type": "integer", "minimum": 1 }
    },
    "bookingTransactionId": { "type": "integer", "minimum": 1 }
  },
  "additionalProperties": false
}`

const schemaCard = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["number", "expMonth", "expYear", "cvc"],
  "properties": {
    "number": { "type": "string", "minLength": 12, "maxLength": 23 },
    "expMonth": { "type": "integer", "minimum": 1, "maximum": 12 },
    "expYear": { "type": "integer", "minimum": 0 },
    "cvc": { "type": "string", "minLength": 3, "maxLength": 4 },
    "holder": { "type": "string" }
  },
  "additionalProperties": false
}`

var (
	sessionLoader       = gojsonschema.NewStringLoader(schemaSession)
	startCheckoutLoader = gojsonschema.NewStringLoader(schemaStartCheckout)
	cardLoader          = gojsonschema.NewStringLoader(schemaCard)
)
