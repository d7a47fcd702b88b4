package filters

import (
	"encoding/json"
	"fmt"
	"strings"

	apperrors "github.com/kbukum/reportflow/errors"
	"github.com/kbukum/reportflow/report"
)

// Encoded reports carry their bytes as text under PayloadField. The
// EncodingField lists the layers applied so far, innermost first, joined by
// "+", for example "json+gzip+aes-256-gcm".
const (
	PayloadField  = "payload"
	EncodingField = "encoding"
)

// Encoding layer names.
const (
	EncodingJSON = "json"
	EncodingGzip = "gzip"
)

func payloadOf(doc report.Document) (data, encoding string, err error) {
	v, _ := doc.Get(PayloadField)
	data, ok := v.(string)
	if !ok {
		return "", "", fmt.Errorf("document has no %s string", PayloadField)
	}
	e, _ := doc.Get(EncodingField)
	encoding, ok = e.(string)
	if !ok || encoding == "" {
		return "", "", fmt.Errorf("document has no %s", EncodingField)
	}
	return data, encoding, nil
}

func payloadDoc(data, encoding string) (report.Document, error) {
	return report.NewDocument(map[string]any{
		PayloadField:  data,
		EncodingField: encoding,
	})
}

// pushLayer returns encoding with layer applied on top.
func pushLayer(encoding, layer string) string {
	return encoding + "+" + layer
}

// popLayer removes layer from the top of encoding. It fails when layer is
// not the outermost one, or is the only one left.
func popLayer(encoding, layer string) (string, error) {
	rest, ok := strings.CutSuffix(encoding, "+"+layer)
	if !ok || rest == "" {
		return "", fmt.Errorf("expected outermost layer %q, got encoding %q", layer, encoding)
	}
	return rest, nil
}

// eachPayload applies fn to the payload of every report, tagging failures
// with format and report id.
func eachPayload(format string, fn func(id, data, encoding string) (string, string, error)) func(string, report.Document) (report.Document, error) {
	return func(id string, doc report.Document) (report.Document, error) {
		data, encoding, err := payloadOf(doc)
		if err != nil {
			return report.Document{}, apperrors.EncodingFailed(format, id, err)
		}
		data, encoding, err = fn(id, data, encoding)
		if err != nil {
			return report.Document{}, apperrors.EncodingFailed(format, id, err)
		}
		return payloadDoc(data, encoding)
	}
}

// jsonString renders v as compact JSON, or with %v if it cannot be encoded.
func jsonString(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
