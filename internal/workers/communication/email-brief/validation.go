package emailbrief

import "subscription-intake/internal/common/validation"

var inputSchema = validation.MustCompile("email-brief-input", `{
	"type": "object",
	"required": ["to", "brief"],
	"properties": {
		"to": {"type": "string", "format": "email", "maxLength": 255},
		"name": {"type": "string", "maxLength": 200},
		"brief": {
			"type": "object",
			"required": ["summary"],
			"properties": {
				"summary": {"type": "string", "minLength": 1}
			}
		},
		"items": {"type": "array"}
	}
}`)
