package publicdata

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/net/html/charset"
)

// ErrMalformedPayload is returned when a payload is neither a portal response nor an error envelope
var ErrMalformedPayload = errors.New("malformed portal payload")

// Item is one flattened record of a response body. Values are trimmed text.
type Item map[string]string

// ServiceError is a failure reported by the portal itself
type ServiceError struct {
	Code    string
	Message string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("portal error %s: %s", e.Code, e.Message)
}

// Decode parses an XML or JSON portal payload into items
func Decode(payload []byte) ([]Item, error) {
	trimmed := bytes.TrimLeft(payload, " \t\r\n")
	trimmed = bytes.TrimSpace(bytes.TrimPrefix(trimmed, []byte("\xef\xbb\xbf")))
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrMalformedPayload)
	}
	switch trimmed[0] {
	case '<':
		return decodeXML(trimmed)
	case '{':
		return decodeJSON(trimmed)
	default:
		return nil, fmt.Errorf("%w: unexpected leading byte %q", ErrMalformedPayload, trimmed[0])
	}
}

type resultHeader struct {
	ResultCode string `xml:"resultCode" json:"resultCode"`
	ResultMsg  string `xml:"resultMsg" json:"resultMsg"`
}

// check maps a header to nil, errNoData or a *ServiceError
func (h resultHeader) check() error {
	code := strings.TrimSpace(h.ResultCode)
	switch code {
	case "", ResultCodeOK:
		return nil
	case ResultCodeNoData:
		return errNoData
	default:
		return &ServiceError{Code: code, Message: strings.TrimSpace(h.ResultMsg)}
	}
}

var errNoData = errors.New("no data")

type errorEnvelope struct {
	Header struct {
		ErrMsg           string `xml:"errMsg"`
		ReturnAuthMsg    string `xml:"returnAuthMsg"`
		ReturnReasonCode string `xml:"returnReasonCode"`
	} `xml:"cmmMsgHeader"`
}

func (e errorEnvelope) err() *ServiceError {
	msg := strings.TrimSpace(e.Header.ErrMsg)
	if auth := strings.TrimSpace(e.Header.ReturnAuthMsg); auth != "" {
		msg = strings.TrimSpace(msg + " " + auth)
	}
	return &ServiceError{Code: strings.TrimSpace(e.Header.ReturnReasonCode), Message: msg}
}

type xmlResponse struct {
	Header resultHeader `xml:"header"`
	Body   struct {
		Items struct {
			Item []Item `xml:"item"`
		} `xml:"items"`
	} `xml:"body"`
}

// UnmarshalXML flattens the child elements of an <item> into the map
func (i *Item) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	out := Item{}
	for {
		tok, err := d.Token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			var value string
			if err := d.DecodeElement(&value, &t); err != nil {
				return err
			}
			out[t.Name.Local] = strings.TrimSpace(value)
		case xml.EndElement:
			*i = out
			return nil
		}
	}
}

func decodeXML(payload []byte) ([]Item, error) {
	dec := xml.NewDecoder(bytes.NewReader(payload))
	dec.CharsetReader = charset.NewReaderLabel

	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}

		switch start.Name.Local {
		case "OpenAPI_ServiceResponse":
			var env errorEnvelope
			if err := dec.DecodeElement(&env, &start); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
			}
			return nil, env.err()
		case "response":
			var resp xmlResponse
			if err := dec.DecodeElement(&resp, &start); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
			}
			if err := resp.Header.check(); err != nil {
				if errors.Is(err, errNoData) {
					return nil, nil
				}
				return nil, err
			}
			return resp.Body.Items.Item, nil
		default:
			return nil, fmt.Errorf("%w: unexpected root <%s>", ErrMalformedPayload, start.Name.Local)
		}
	}
}

type jsonResponse struct {
	Response *struct {
		Header resultHeader `json:"header"`
		Body   struct {
			Items json.RawMessage `json:"items"`
		} `json:"body"`
	} `json:"response"`
}

func decodeJSON(payload []byte) ([]Item, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()

	var resp jsonResponse
	if err := dec.Decode(&resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if resp.Response == nil {
		return nil, fmt.Errorf("%w: missing response object", ErrMalformedPayload)
	}
	if err := resp.Response.Header.check(); err != nil {
		if errors.Is(err, errNoData) {
			return nil, nil
		}
		return nil, err
	}
	return decodeJSONItems(resp.Response.Body.Items)
}

// decodeJSONItems accepts items absent, "", null, {"item": {...}} and {"item": [...]}
func decodeJSONItems(raw json.RawMessage) ([]Item, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return nil, nil
	}

	var wrapper struct {
		Item json.RawMessage `json:"item"`
	}
	if err := unmarshalNumbers(raw, &wrapper); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	item := bytes.TrimSpace(wrapper.Item)
	if len(item) == 0 {
		return nil, nil
	}

	var objects []map[string]interface{}
	switch item[0] {
	case '[':
		if err := unmarshalNumbers(item, &objects); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
		}
	case '{':
		var single map[string]interface{}
		if err := unmarshalNumbers(item, &single); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
		}
		objects = append(objects, single)
	default:
		return nil, nil
	}

	items := make([]Item, 0, len(objects))
	for _, obj := range objects {
		if obj == nil {
			continue
		}
		it := make(Item, len(obj))
		for k, v := range obj {
			if s, ok := scalarString(v); ok {
				it[k] = s
			}
		}
		items = append(items, it)
	}
	return items, nil
}

func unmarshalNumbers(data []byte, v interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}

func scalarString(v interface{}) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", false
	case string:
		return strings.TrimSpace(t), true
	case json.Number:
		return t.String(), true
	case bool:
		return strconv.FormatBool(t), true
	default:
		return "", false
	}
}
