package web

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/samber/mo"

	"calgrid/internal/calendar"
	appLog "calgrid/internal/log"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// dateParam reads an optional YYYY-MM-DD query parameter.
func dateParam(q url.Values, key string) (mo.Option[calendar.Date], error) {
	raw := strings.TrimSpace(q.Get(key))
	if raw == "" {
		return mo.None[calendar.Date](), nil
	}
	d, err := calendar.ParseDate(raw)
	if err != nil {
		return mo.None[calendar.Date](), fmt.Errorf("invalid %s: %q is not a YYYY-MM-DD date", key, raw)
	}
	return mo.Some(d), nil
}

// intParam reads an optional integer query parameter. Range checks are left
// to the grid so that its errors reach the client unchanged.
func intParam(q url.Values, key string) (mo.Option[int], error) {
	raw := strings.TrimSpace(q.Get(key))
	if raw == "" {
		return mo.None[int](), nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return mo.None[int](), fmt.Errorf("invalid %s: %q is not an integer", key, raw)
	}
	return mo.Some(n), nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
