package filters

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"

	apperrors "github.com/kbukum/reportflow/errors"
	"github.com/kbukum/reportflow/filter"
	"github.com/kbukum/reportflow/report"
)

// EncodeJSON replaces every report with its JSON encoding.
func EncodeJSON(name string) filter.Filter {
	return filter.Each(name, func(id string, doc report.Document) (report.Document, error) {
		b, err := json.Marshal(doc)
		if err != nil {
			return report.Document{}, apperrors.EncodingFailed(EncodingJSON, id, err)
		}
		return payloadDoc(string(b), EncodingJSON)
	})
}

// DecodeJSON parses JSON payloads back into documents. The payload must
// have no further encoding layers applied.
func DecodeJSON(name string) filter.Filter {
	return filter.Each(name, func(id string, doc report.Document) (report.Document, error) {
		data, encoding, err := payloadOf(doc)
		if err == nil && encoding != EncodingJSON {
			err = fmt.Errorf("expected encoding %q, got %q", EncodingJSON, encoding)
		}
		if err != nil {
			return report.Document{}, apperrors.EncodingFailed(EncodingJSON, id, err)
		}
		out, err := report.ParseDocument([]byte(data))
		if err != nil {
			return report.Document{}, apperrors.EncodingFailed(EncodingJSON, id, err)
		}
		return out, nil
	})
}

// Gzip compresses every payload at level and stores it base64 encoded.
func Gzip(name string, level int) (filter.Filter, error) {
	if _, err := gzip.NewWriterLevel(io.Discard, level); err != nil {
		return nil, apperrors.InvalidInput("level", err.Error())
	}
	return filter.Each(name, eachPayload(EncodingGzip, func(_, data, encoding string) (string, string, error) {
		var buf bytes.Buffer
		zw, err := gzip.NewWriterLevel(&buf, level)
		if err != nil {
			return "", "", err
		}
		if _, err := io.WriteString(zw, data); err != nil {
			return "", "", err
		}
		if err := zw.Close(); err != nil {
			return "", "", err
		}
		return base64.StdEncoding.EncodeToString(buf.Bytes()), pushLayer(encoding, EncodingGzip), nil
	})), nil
}

// Gunzip reverses Gzip.
func Gunzip(name string) filter.Filter {
	return filter.Each(name, eachPayload(EncodingGzip, func(_, data, encoding string) (string, string, error) {
		rest, err := popLayer(encoding, EncodingGzip)
		if err != nil {
			return "", "", err
		}
		raw, err := base64.StdEncoding.DecodeString(data)
		if err != nil {
			return "", "", fmt.Errorf("decode base64: %w", err)
		}
		zr, err := gzip.NewReader(bytes.NewReader(raw))
		if err != nil {
			return "", "", err
		}
		defer zr.Close()
		plain, err := io.ReadAll(zr)
		if err != nil {
			return "", "", err
		}
		return string(plain), rest, nil
	}))
}
