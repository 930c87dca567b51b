package payments

import (
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"donation-app/internal/infra/gateway"

	"github.com/gin-gonic/gin"
)

const maxCallbackBody = 64 << 10

// readCallback keeps the exact bytes (signature schemes hash them) and,
// for form or flat JSON bodies, the decoded fields.
func readCallback(c *gin.Context) (gateway.RawCallback, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxCallbackBody)
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return gateway.RawCallback{}, err
	}

	raw := gateway.RawCallback{Body: body, Header: c.Request.Header.Clone(), Fields: map[string]string{}}

	mediaType, _, _ := mime.ParseMediaType(c.GetHeader("Content-Type"))
	switch mediaType {
	case "application/x-www-form-urlencoded":
		values, err := url.ParseQuery(string(body))
		if err != nil {
			return raw, nil
		}
		for k, v := range values {
			if len(v) > 0 {
				raw.Fields[k] = v[0]
			}
		}
	case "application/json":
		var flat map[string]interface{}
		if json.Unmarshal(body, &flat) == nil {
			for k, v := range flat {
				if s, ok := v.(string); ok {
					raw.Fields[k] = s
				}
			}
		}
	}
	return raw, nil
}

var auditedJSONKeys = []string{"id", "type", "created"}

// auditFields is what gets stored for a callback: decoded fields minus the
// checksum, or for JSON event bodies just their identity.
func auditFields(raw gateway.RawCallback) map[string]interface{} {
	out := map[string]interface{}{}
	for k, v := range raw.Fields {
		lk := strings.ToLower(k)
		if lk == "hash" || lk == "signature" {
			continue
		}
		out[k] = v
	}
	if len(out) > 0 || len(raw.Body) == 0 {
		return out
	}

	var envelope map[string]interface{}
	if json.Unmarshal(raw.Body, &envelope) == nil {
		for _, k := range auditedJSONKeys {
			if v, ok := envelope[k]; ok {
				out[k] = v
			}
		}
	}
	return out
}
