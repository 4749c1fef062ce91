package httpadapter

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/kirillkom/hybrid-legal-search/internal/core/domain"
)

//go:embed openapi.yaml
var openAPISpec []byte

const maxRequestBodyBytes = 1 << 20

const (
	schemaSearchRequest         = "SearchRequest"
	schemaAnalyzeRequest        = "AnalyzeRequest"
	schemaKnowledgeChatRequest  = "KnowledgeChatRequest"
	schemaSessionCleanupRequest = "SessionCleanupRequest"
	schemaChatCompletionRequest = "ChatCompletionRequest"
)

// requestValidator checks JSON bodies against the component schemas of the
// embedded OpenAPI document.
type requestValidator struct {
	doc *openapi3.T
}

func newRequestValidator() (*requestValidator, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(openAPISpec)
	if err != nil {
		return nil, fmt.Errorf("load openapi document: %w", err)
	}
	if err := doc.Validate(context.Background()); err != nil {
		return nil, fmt.Errorf("validate openapi document: %w", err)
	}
	return &requestValidator{doc: doc}, nil
}

func (v *requestValidator) validate(schema string, value any) error {
	ref, ok := v.doc.Components.Schemas[schema]
	if !ok || ref.Value == nil {
		return fmt.Errorf("unknown schema %q", schema)
	}
	if err := ref.Value.VisitJSON(value); err != nil {
		return domain.WrapError(domain.ErrInvalidInput, "validate "+schema, schemaErrorMessage(err))
	}
	return nil
}

// decodeBody reads the body, validates it against schema and decodes it into out.
// An empty body is treated as "{}" when allowEmpty is set.
func (v *requestValidator) decodeBody(w http.ResponseWriter, r *http.Request, schema string, out any, allowEmpty bool) error {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes))
	if err != nil {
		return domain.WrapError(domain.ErrInvalidInput, "read body", err)
	}
	if len(raw) == 0 {
		if !allowEmpty {
			return domain.WrapError(domain.ErrInvalidInput, "read body", errors.New("request body is required"))
		}
		raw = []byte("{}")
	}

	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return domain.WrapError(domain.ErrInvalidInput, "decode body", errors.New("invalid json"))
	}
	if err := v.validate(schema, generic); err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return domain.WrapError(domain.ErrInvalidInput, "decode body", err)
	}
	return nil
}

func schemaErrorMessage(err error) error {
	var schemaErr *openapi3.SchemaError
	if errors.As(err, &schemaErr) {
		field := schemaErr.JSONPointer()
		if len(field) > 0 {
			return fmt.Errorf("%s: %s", strings.Join(field, "."), schemaErr.Reason)
		}
		return errors.New(schemaErr.Reason)
	}
	var multi openapi3.MultiError
	if errors.As(err, &multi) && len(multi) > 0 {
		return schemaErrorMessage(multi[0])
	}
	return err
}
