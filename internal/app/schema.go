package app

import (
	"errors"
	"fmt"
	"sort"

	"github.com/invopop/jsonschema"
)

// ErrUnknownSchema is returned for a payload name RequestSchema does not know.
var ErrUnknownSchema = errors.New("unknown schema")

var requestTypes = map[string]func() any{
	"company":          func() any { return CreateCompanyRequest{} },
	"product":          func() any { return UpsertProductRequest{} },
	"invoice":          func() any { return CreateInvoiceRequest{} },
	"invoice-lines":    func() any { return ReplaceLinesRequest{} },
	"invoice-annotate": func() any { return UpdateAnnotationsRequest{} },
	"invoice-void":     func() any { return TransitionRequest{} },
}

// SchemaNames lists the payload names RequestSchema accepts.
func SchemaNames() []string {
	names := make([]string, 0, len(requestTypes))
	for n := range requestTypes {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (s *appService) RequestSchema(name string) (*jsonschema.Schema, error) {
	return GenerateSchema(name)
}

// GenerateSchema reflects the named request payload into a self-contained JSON Schema.
func GenerateSchema(name string) (*jsonschema.Schema, error) {
	newValue, ok := requestTypes[name]
	if !ok {
		return nil, fmt.Errorf("%w %q (want one of %v)", ErrUnknownSchema, name, SchemaNames())
	}
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	return reflector.Reflect(newValue()), nil
}
