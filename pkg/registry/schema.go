package registry

// DescriptorSchema is the JSON schema every command definition file must
// satisfy before it is accepted
const DescriptorSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "title": "Command Definition",
  "type": "object",
  "required": ["name", "description"],
  "additionalProperties": false,
  "properties": {
    "name": {
      "type": "string",
      "pattern": "^[-_a-z0-9]{1,32}$"
    },
    "description": {
      "type": "string",
      "minLength": 1,
      "maxLength": 100
    },
    "options": {
      "type": "array",
      "items": { "$ref": "#/definitions/option" }
    }
  },
  "definitions": {
    "option": {
      "type": "object",
      "required": ["kind", "name", "description"],
      "additionalProperties": false,
      "properties": {
        "kind": {
          "type": "string",
          "enum": [
            "subcommand",
            "group",
            "string",
            "integer",
            "boolean",
            "user",
            "channel",
            "role",
            "mentionable",
            "number"
          ]
        },
        "name": {
          "type": "string",
          "pattern": "^[-_a-z0-9]{1,32}$"
        },
        "description": {
          "type": "string",
          "minLength": 1,
          "maxLength": 100
        },
        "required": {
          "type": "boolean"
        },
        "choices": {
          "type": "array",
          "items": {
            "type": "object",
            "required": ["name", "value"],
            "properties": {
              "name": { "type": "string" },
              "value": {}
            }
          }
        },
        "options": {
          "type": "array",
          "items": { "$ref": "#/definitions/option" }
        }
      }
    }
  }
}`
