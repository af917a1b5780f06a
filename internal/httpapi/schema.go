package httpapi

import (
	"embed"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed schemas/*.json
var schemaFS embed.FS

const maxBodyBytes = 1 << 20

// validationError is a client error whose message is safe to return.
type validationError struct {
	msg string
}

func (e *validationError) Error() string { return e.msg }

// rule maps a failing JSON path to a client message. A path ending in ".*"
// matches anything below it.
type rule struct {
	path    string
	message string
}

type schema struct {
	compiled *gojsonschema.Schema
	fallback string
	rules    []rule
}

var (
	progressUpdateSchema = mustSchema("progress_update.json", "Invalid request body")
	quizHistorySchema    = mustSchema("quiz_history.json", "Invalid request body",
		rule{"concepts", "Concepts array is required"},
		rule{"questions", "Questions array is required"},
		rule{"concepts.*", "Each concept must have conceptID and name"},
		rule{"questions.*", "Each question must have questionText, userAnswer, correctAnswer, and explanation"},
	)
	credentialsSchema = mustSchema("credentials.json", "Email and password are required")
)

func mustSchema(name, fallback string, rules ...rule) *schema {
	data, err := schemaFS.ReadFile("schemas/" + name)
	if err != nil {
		panic(fmt.Sprintf("read schema %s: %v", name, err))
	}
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(data))
	if err != nil {
		panic(fmt.Sprintf("compile schema %s: %v", name, err))
	}
	return &schema{compiled: compiled, fallback: fallback, rules: rules}
}

// validate checks body against the schema and returns a *validationError
// carrying the most specific configured message.
func (s *schema) validate(body []byte) error {
	res, err := s.compiled.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		// Not JSON at all.
		return &validationError{msg: s.fallback}
	}
	if res.Valid() {
		return nil
	}

	paths := make([]string, 0, len(res.Errors()))
	for _, e := range res.Errors() {
		paths = append(paths, errorPath(e))
	}
	for _, r := range s.rules {
		for _, p := range paths {
			if matchPath(r.path, p) {
				return &validationError{msg: r.message}
			}
		}
	}
	return &validationError{msg: s.fallback}
}

// decode reads the request body, validates it and unmarshals it into dst.
func (s *schema) decode(w http.ResponseWriter, r *http.Request, dst any) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return &validationError{msg: s.fallback}
	}
	if err := s.validate(body); err != nil {
		return err
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return &validationError{msg: s.fallback}
	}
	return nil
}

func errorPath(e gojsonschema.ResultError) string {
	field := e.Field()
	if field == "(root)" {
		field = ""
	}
	if e.Type() != "required" {
		return field
	}

	prop, ok := e.Details()["property"].(string)
	if !ok || field == prop || strings.HasSuffix(field, "."+prop) {
		return field
	}
	if field == "" {
		return prop
	}
	return field + "." + prop
}

func matchPath(pattern, path string) bool {
	if prefix, ok := strings.CutSuffix(pattern, "*"); ok {
		return strings.HasPrefix(path, prefix)
	}
	return path == pattern
}
