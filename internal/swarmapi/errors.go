package swarmapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

const maxMessageLength = 200

// errorMessage turns an error body into one readable line. Proxies and
// hosting platforms answer with HTML pages, so those are reduced to their
// title or heading.
func errorMessage(status int, contentType string, body []byte) string {
	trimmed := bytes.TrimSpace(body)

	if msg := jsonErrorMessage(trimmed); msg != "" {
		return clip(msg)
	}
	if strings.Contains(contentType, "html") || bytes.HasPrefix(trimmed, []byte("<")) {
		if msg := htmlErrorMessage(trimmed); msg != "" {
			return clip(msg)
		}
	}
	if len(trimmed) > 0 && !bytes.HasPrefix(trimmed, []byte("<")) {
		return clip(string(trimmed))
	}
	if text := http.StatusText(status); text != "" {
		return text
	}
	return fmt.Sprintf("HTTP %d", status)
}

func jsonErrorMessage(body []byte) string {
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	for _, key := range []string{"detail", "error", "message"} {
		switch v := payload[key].(type) {
		case string:
			if v != "" {
				return v
			}
		case map[string]any:
			if m, ok := v["message"].(string); ok && m != "" {
				return m
			}
		case []any:
			// FastAPI validation errors: [{"msg": "..."}]
			var msgs []string
			for _, item := range v {
				if obj, ok := item.(map[string]any); ok {
					if m, ok := obj["msg"].(string); ok {
						msgs = append(msgs, m)
					}
				}
			}
			if len(msgs) > 0 {
				return strings.Join(msgs, "; ")
			}
		}
	}
	return ""
}

func htmlErrorMessage(body []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return ""
	}
	for _, sel := range []string{"title", "h1", "body"} {
		if text := collapse(doc.Find(sel).First().Text()); text != "" {
			return text
		}
	}
	return ""
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func clip(s string) string {
	s = collapse(s)
	if len(s) <= maxMessageLength {
		return s
	}
	cut := maxMessageLength
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
