package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"motorsport-api/internal/models"
	"motorsport-api/internal/storage"
)

const maxRequestBodyBytes = 1 << 20

const (
	msgRequired      = "This field is required."
	msgNull          = "This field may not be null."
	msgInvalidString = "Not a valid string."
	msgInvalidInt    = "A valid integer is required."
	msgInvalidBool   = "Must be a valid boolean."
	msgInvalidDate   = "Date has wrong format. Use one of these formats instead: YYYY-MM-DD."
)

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

// payload is a decoded JSON object whose members are interpreted lazily so
// that type errors can be reported per field.
type payload map[string]json.RawMessage

// decodeJSON reads the request body as a JSON object. An empty body decodes
// to an empty object regardless of its content type.
func decodeJSON(r *http.Request) (payload, error) {
	if r.Body == nil {
		return payload{}, nil
	}
	defer r.Body.Close()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodyBytes+1))
	if err != nil {
		return nil, newStatusError(http.StatusBadRequest, "JSON parse error - "+err.Error())
	}
	if len(body) > maxRequestBodyBytes {
		return nil, newStatusError(http.StatusBadRequest, "JSON parse error - request body too large")
	}
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return payload{}, nil
	}
	if contentType := r.Header.Get("Content-Type"); !isJSONContentType(contentType) {
		return nil, newStatusError(http.StatusUnsupportedMediaType, fmt.Sprintf("Unsupported media type %q in request.", contentType))
	}

	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.UseNumber()
	var raw interface{}
	if err := decoder.Decode(&raw); err != nil {
		return nil, newStatusError(http.StatusBadRequest, "JSON parse error - "+err.Error())
	}
	if _, ok := raw.(map[string]interface{}); !ok {
		return nil, fieldErrors(storage.NonFieldErrors, fmt.Sprintf("Invalid data. Expected a dictionary, but got %s.", jsonTypeName(raw)))
	}
	var out payload
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, newStatusError(http.StatusBadRequest, "JSON parse error - "+err.Error())
	}
	return out, nil
}

func isJSONContentType(value string) bool {
	if strings.TrimSpace(value) == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(value)
	if err != nil {
		return false
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}

func jsonTypeName(value interface{}) string {
	switch value.(type) {
	case []interface{}:
		return "list"
	case map[string]interface{}:
		return "dict"
	case string:
		return "str"
	case bool:
		return "bool"
	case json.Number, float64:
		return "int"
	case nil:
		return "NoneType"
	default:
		return "unknown"
	}
}

func (p payload) has(key string) bool {
	_, ok := p[key]
	return ok
}

// lookup returns the raw member, recording required or null errors. The
// boolean reports whether a usable value is present.
func (p payload) lookup(verr *storage.ValidationError, key string, required bool) (json.RawMessage, bool) {
	raw, ok := p[key]
	if !ok {
		if required {
			verr.Add(key, msgRequired)
		}
		return nil, false
	}
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		verr.Add(key, msgNull)
		return nil, false
	}
	return raw, true
}

func (p payload) str(verr *storage.ValidationError, key string, required bool) (string, bool) {
	raw, ok := p.lookup(verr, key, required)
	if !ok {
		return "", false
	}
	var value interface{}
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	if err := decoder.Decode(&value); err != nil {
		verr.Add(key, msgInvalidString)
		return "", false
	}
	switch v := value.(type) {
	case string:
		return v, true
	case json.Number:
		return v.String(), true
	default:
		verr.Add(key, msgInvalidString)
		return "", false
	}
}

func (p payload) integer(verr *storage.ValidationError, key string, required bool) (int, bool) {
	raw, ok := p.lookup(verr, key, required)
	if !ok {
		return 0, false
	}
	value, ok := parseJSONInt(raw)
	if !ok {
		verr.Add(key, msgInvalidInt)
		return 0, false
	}
	return int(value), true
}

// primaryKey reads a related object id.
func (p payload) primaryKey(verr *storage.ValidationError, key string, required bool) (int64, bool) {
	raw, ok := p.lookup(verr, key, required)
	if !ok {
		return 0, false
	}
	value, ok := parseJSONInt(raw)
	if !ok {
		var decoded interface{}
		_ = json.Unmarshal(raw, &decoded)
		verr.Add(key, fmt.Sprintf("Incorrect type. Expected pk value, received %s.", jsonTypeName(decoded)))
		return 0, false
	}
	return value, true
}

func (p payload) boolean(verr *storage.ValidationError, key string, required bool) (bool, bool) {
	raw, ok := p.lookup(verr, key, required)
	if !ok {
		return false, false
	}
	var value interface{}
	if err := json.Unmarshal(raw, &value); err != nil {
		verr.Add(key, msgInvalidBool)
		return false, false
	}
	switch v := value.(type) {
	case bool:
		return v, true
	case float64:
		if v == 1 {
			return true, true
		}
		if v == 0 {
			return false, true
		}
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "1", "yes", "on":
			return true, true
		case "false", "0", "no", "off":
			return false, true
		}
	}
	verr.Add(key, msgInvalidBool)
	return false, false
}

func (p payload) date(verr *storage.ValidationError, key string, required bool) (time.Time, bool) {
	raw, ok := p.lookup(verr, key, required)
	if !ok {
		return time.Time{}, false
	}
	var value string
	if err := json.Unmarshal(raw, &value); err != nil {
		verr.Add(key, msgInvalidDate)
		return time.Time{}, false
	}
	parsed, err := time.Parse(models.DateLayout, strings.TrimSpace(value))
	if err != nil {
		verr.Add(key, msgInvalidDate)
		return time.Time{}, false
	}
	return parsed, true
}

// parseJSONInt accepts JSON integers, integral floats and numeric strings.
func parseJSONInt(raw json.RawMessage) (int64, bool) {
	var value interface{}
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	if err := decoder.Decode(&value); err != nil {
		return 0, false
	}
	switch v := value.(type) {
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n, true
		}
		f, err := v.Float64()
		if err != nil || f != float64(int64(f)) {
			return 0, false
		}
		return int64(f), true
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}
