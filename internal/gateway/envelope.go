package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Skotchmaster/perfume_shop/internal/models"
)

// flag accepts true/false, 1/0 and the usual string spellings.
type flag struct {
	set   bool
	value bool
}

func (f *flag) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return nil
	}
	switch x := v.(type) {
	case bool:
		f.set, f.value = true, x
	case float64:
		f.set, f.value = true, x != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "true", "1", "ok", "success":
			f.set, f.value = true, true
		case "false", "0", "error", "fail", "failed":
			f.set, f.value = true, false
		}
	}
	return nil
}

type envelope struct {
	Data    json.RawMessage `json:"data"`
	Success flag            `json:"success"`
	Status  flag            `json:"status"`
	Message string          `json:"message"`
}

func (e *envelope) rejected() bool {
	return (e.Success.set && !e.Success.value) || (e.Status.set && !e.Status.value)
}

func decodeEnvelope(body []byte) (*envelope, error) {
	var env envelope
	if len(bytes.TrimSpace(body)) == 0 {
		return &env, nil
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: %w: %v", ErrNetwork, ErrMalformedResponse, err)
	}
	if env.rejected() {
		msg := env.Message
		if msg == "" {
			msg = "no message"
		}
		return nil, fmt.Errorf("%w: %w: %s", ErrNetwork, ErrRejected, msg)
	}
	return &env, nil
}

// parseLines maps the data array onto canonical lines. Elements that cannot
// be understood are skipped; duplicates are merged.
func parseLines(data json.RawMessage, log *slog.Logger) []models.CartLine {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '[' {
		return []models.CartLine{}
	}

	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		log.Warn("cart_response_unreadable", "error", err)
		return []models.CartLine{}
	}

	lines := make([]models.CartLine, 0, len(items))
	for i, item := range items {
		var w models.WireLine
		if err := json.Unmarshal(item, &w); err != nil {
			log.Warn("cart_response_line_skipped", "index", i, "error", err)
			continue
		}
		line, err := w.Normalize(true)
		if err != nil {
			log.Warn("cart_response_line_skipped", "index", i, "error", err)
			continue
		}
		lines = append(lines, line)
	}
	return models.Dedupe(lines)
}
