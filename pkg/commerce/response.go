package commerce

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"unicode/utf8"

	pkgerrors "github.com/angelmondragon/storefront-core/pkg/errors"
)

// Response is a successful upstream reply.
type Response struct {
	Status    int
	Body      []byte
	operation string
}

// Decode unmarshals the whole body into out.
func (r *Response) Decode(out any) error {
	if len(bytes.TrimSpace(r.Body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Body, out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("%s: decode response", r.operation))
	}
	return nil
}

// DecodeData unmarshals the data member of a {data: ...} envelope, or the
// whole body when the backend answered without one.
func (r *Response) DecodeData(out any) error {
	data, ok := r.data()
	if !ok {
		return r.Decode(out)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("%s: decode response data", r.operation))
	}
	return nil
}

// HasData reports whether the envelope carries a non-empty data member.
func (r *Response) HasData() bool {
	data, ok := r.data()
	if !ok {
		return false
	}
	switch string(data) {
	case "null", "{}", "[]", `""`:
		return false
	}
	return true
}

// Message returns the envelope's message member, if any.
func (r *Response) Message() string {
	var env struct {
		Message string `json:"message"`
	}
	_ = json.Unmarshal(r.Body, &env)
	return env.Message
}

func (r *Response) data() (json.RawMessage, bool) {
	trimmed := bytes.TrimSpace(r.Body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, false
	}
	var env map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return nil, false
	}
	data, ok := env["data"]
	if !ok {
		return nil, false
	}
	return bytes.TrimSpace(data), true
}

// rejection maps a non-2xx reply onto a typed error. 401/403 become
// UNAUTHORIZED; other 4xx keep their status; 5xx answer 502.
func rejection(operation string, status int, body []byte) error {
	message, fieldErrors := extractMessage(body)
	if message == "" {
		message = http.StatusText(status)
	}
	cause := fmt.Errorf("%s: upstream status %d: %s", operation, status, message)

	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return pkgerrors.Wrap(pkgerrors.CodeUnauthorized, cause, message)
	}

	details := map[string]any{"upstream_status": status, "operation": operation}
	if len(fieldErrors) > 0 {
		details["errors"] = fieldErrors
	}
	err := pkgerrors.Wrap(pkgerrors.CodeBackendRejected, cause, message).WithDetails(details)
	if status >= 400 && status < 500 {
		return err.WithHTTPStatus(status)
	}
	return err
}

// extractMessage reads {message}, {error} or {errors} from an error body.
func extractMessage(body []byte) (string, map[string]any) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return "", nil
	}
	var env struct {
		Message json.RawMessage `json:"message"`
		Error   json.RawMessage `json:"error"`
		Errors  json.RawMessage `json:"errors"`
	}
	if err := json.Unmarshal(trimmed, &env); err != nil {
		if trimmed[0] == '<' {
			return "", nil
		}
		return truncate(string(trimmed), 300), nil
	}

	if msg := flatten(env.Message); msg != "" {
		return msg, fieldErrors(env.Errors)
	}
	if msg := flatten(env.Error); msg != "" {
		return msg, fieldErrors(env.Errors)
	}
	return flatten(env.Errors), fieldErrors(env.Errors)
}

func flatten(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return strings.TrimSpace(s)
	}
	var list []any
	if json.Unmarshal(raw, &list) == nil {
		parts := make([]string, 0, len(list))
		for _, item := range list {
			if str := strings.TrimSpace(fmt.Sprint(item)); str != "" {
				parts = append(parts, str)
			}
		}
		return strings.Join(parts, "; ")
	}
	var obj map[string]json.RawMessage
	if json.Unmarshal(raw, &obj) == nil {
		if msg := flatten(obj["message"]); msg != "" {
			return msg
		}
		keys := make([]string, 0, len(obj))
		for k := range obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			if msg := flatten(obj[k]); msg != "" {
				parts = append(parts, fmt.Sprintf("%s: %s", k, msg))
			}
		}
		return strings.Join(parts, "; ")
	}
	return ""
}

func fieldErrors(raw json.RawMessage) map[string]any {
	var obj map[string]any
	if len(raw) == 0 || json.Unmarshal(raw, &obj) != nil {
		return nil
	}
	return obj
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
