package api

import (
	"encoding/json"
	"io"
	"net/http"
	"sort"
	"strconv"

	"github.com/go-faster/errors"

	"character-server/internal/domain/character"
)

// fieldError is one entry of a 422 response, shaped {"loc", "msg", "type"}.
type fieldError struct {
	Loc  []string `json:"loc"`
	Msg  string   `json:"msg"`
	Type string   `json:"type"`
}

type validationErrors []fieldError

func (v *validationErrors) add(msg, typ string, loc ...string) {
	*v = append(*v, fieldError{Loc: loc, Msg: msg, Type: typ})
}

func (v *validationErrors) queryInt(r *http.Request, name string, def int) int {
	raw, ok := r.URL.Query()[name]
	if !ok || len(raw) == 0 {
		return def
	}
	n, err := strconv.Atoi(raw[0])
	if err != nil {
		v.add("value is not a valid integer", "type_error.integer", "query", name)
		return def
	}
	if n < 0 {
		v.add("ensure this value is greater than or equal to 0", "value_error.number.not_ge", "query", name)
		return def
	}
	return n
}

// stringField decodes body[name]. Missing keys are reported only when required.
func (v *validationErrors) stringField(body map[string]json.RawMessage, name string, required bool) *string {
	raw, ok := body[name]
	if !ok {
		if required {
			v.add("field required", "value_error.missing", "body", name)
		}
		return nil
	}
	if string(raw) == "null" {
		v.add("none is not an allowed value", "type_error.none.not_allowed", "body", name)
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		v.add("str type expected", "type_error.str", "body", name)
		return nil
	}
	return &s
}

var updatableFields = map[string]struct{}{
	"name":  {},
	"story": {},
}

func (h *Handler) decodeCreate(w http.ResponseWriter, r *http.Request) (character.Create, bool) {
	body, ok := h.decodeObject(w, r)
	if !ok {
		return character.Create{}, false
	}
	var errs validationErrors
	name := errs.stringField(body, "name", true)
	story := errs.stringField(body, "story", true)
	errs.checkNameLength(name)
	if len(errs) > 0 {
		writeValidation(w, errs)
		return character.Create{}, false
	}
	return character.Create{Name: *name, Story: *story}, true
}

// decodePatch accepts only the schema fields; any other key, id included, is
// rejected rather than written through.
func (h *Handler) decodePatch(w http.ResponseWriter, r *http.Request) (character.Patch, bool) {
	body, ok := h.decodeObject(w, r)
	if !ok {
		return character.Patch{}, false
	}
	var errs validationErrors
	extra := make([]string, 0)
	for k := range body {
		if _, ok := updatableFields[k]; !ok {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	for _, k := range extra {
		errs.add("extra fields not permitted", "value_error.extra", "body", k)
	}
	patch := character.Patch{
		Name:  errs.stringField(body, "name", false),
		Story: errs.stringField(body, "story", false),
	}
	errs.checkNameLength(patch.Name)
	if len(errs) > 0 {
		writeValidation(w, errs)
		return character.Patch{}, false
	}
	return patch, true
}

func (v *validationErrors) checkNameLength(name *string) {
	if name != nil && len([]rune(*name)) > character.MaxNameLength {
		v.add("ensure this value has at most 255 characters", "value_error.any_str.max_length", "body", "name")
	}
}

func (h *Handler) decodeObject(w http.ResponseWriter, r *http.Request) (map[string]json.RawMessage, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxBodySize)
	defer r.Body.Close()
	var body map[string]json.RawMessage
	dec := json.NewDecoder(r.Body)
	err := dec.Decode(&body)
	if err == nil {
		// Exactly one JSON value is allowed.
		if extra := dec.Decode(&struct{}{}); !errors.Is(extra, io.EOF) {
			err = trailingDataError(extra)
		}
	}
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"detail": "request body too large"})
			return nil, false
		}
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			writeValidation(w, validationErrors{{Loc: []string{"body"}, Msg: "value is not a valid dict", Type: "type_error.dict"}})
			return nil, false
		}
		writeValidation(w, validationErrors{{Loc: []string{"body"}, Msg: "invalid json", Type: "value_error.jsondecode"}})
		return nil, false
	}
	if body == nil {
		writeValidation(w, validationErrors{{Loc: []string{"body"}, Msg: "field required", Type: "value_error.missing"}})
		return nil, false
	}
	return body, true
}

func writeValidation(w http.ResponseWriter, errs validationErrors) {
	writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"detail": errs})
}

// trailingDataError keeps a body-size error from the second read visible to
// the caller; anything else is reported as malformed JSON.
func trailingDataError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return err
	}
	return errors.New("unexpected data after top-level value")
}
