package bus

import (
	"github.com/invopop/jsonschema"
)

// Contract pairs a MessageType with its Go request/response types so the
// bus can generate a self-documenting JSON Schema for each message
// pair, surfaced through `dccp schema`.
type Contract struct {
	MessageType MessageType
	Request     any
	Response    any
}

// Reflect generates one JSON Schema document per registered Contract,
// inlining all definitions (no $ref) for easy standalone consumption.
func Reflect(contracts []Contract) map[MessageType]*jsonschema.Schema {
	reflector := &jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}

	out := make(map[MessageType]*jsonschema.Schema, len(contracts)*2)
	for _, c := range contracts {
		reqSchema := reflector.Reflect(c.Request)
		reqSchema.Title = string(c.MessageType) + ".request"
		out[c.MessageType+".request"] = reqSchema

		respSchema := reflector.Reflect(c.Response)
		respSchema.Title = string(c.MessageType) + ".response"
		out[c.MessageType+".response"] = respSchema
	}
	return out
}
