package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ErrNoBody is returned for an empty request body, JSON null or {}.
var ErrNoBody = errors.New("no message body")

// ValidationError reports a body that does not match its schema.
type ValidationError struct {
	Schema string
	Detail string
}

func (e *ValidationError) Error() string {
	return e.Detail
}

const bidSchema = `{
  "type": "object",
  "properties": {
    "type": {"type": "string"},
    "price": {
      "type": ["object", "null"],
      "properties": {"value": {"type": "number"}, "unit": {"type": "string"}}
    },
    "quantity": {
      "type": ["object", "null"],
      "additionalProperties": {"type": "number", "minimum": 0}
    }
  },
  "required": ["type"]
}`

const inboundSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "id": {"type": "string"},
    "text": {"type": "string"},
    "speaker": {"type": ["string", "null"]},
    "addressee": {"type": ["string", "null"]},
    "role": {"type": ["string", "null"]},
    "environmentUUID": {"type": ["string", "null"]},
    "timestamp": {"type": ["number", "null"]},
    "bid": {"oneOf": [{"type": "null"}, ` + bidSchema + `]}
  },
  "required": ["text"]
}`

const rejectionSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "text": {"type": ["string", "null"]},
    "speaker": {"type": ["string", "null"]},
    "addressee": {"type": ["string", "null"]},
    "role": {"type": ["string", "null"]},
    "environmentUUID": {"type": ["string", "null"]},
    "timestamp": {"type": ["number", "null"]},
    "rationale": {"type": ["string", "null"]},
    "rational": {"type": ["string", "null"]},
    "bid": {"oneOf": [{"type": "null"}, ` + bidSchema + `]}
  }
}`

const utilitySchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "name": {"type": ["string", "null"]},
    "currencyUnit": {"type": ["string", "null"]},
    "utility": {
      "type": "object",
      "additionalProperties": {
        "type": "object",
        "properties": {
          "type": {"type": "string"},
          "parameters": {
            "type": "object",
            "properties": {"unitcost": {"type": "number"}},
            "required": ["unitcost"]
          }
        },
        "required": ["parameters"]
      }
    }
  },
  "required": ["utility"]
}`

const startRoundSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "roundDuration": {"type": ["number", "null"], "exclusiveMinimum": 0},
    "roundNumber": {"type": ["integer", "null"]}
  }
}`

var (
	inboundValidator    = jsonschema.MustCompileString("inbound.schema.json", inboundSchema)
	rejectionValidator  = jsonschema.MustCompileString("rejection.schema.json", rejectionSchema)
	utilityValidator    = jsonschema.MustCompileString("utility.schema.json", utilitySchema)
	startRoundValidator = jsonschema.MustCompileString("start_round.schema.json", startRoundSchema)
)

// DecodeInbound validates and decodes a /receiveMessage body.
func DecodeInbound(body []byte) (InboundMessage, error) {
	var m InboundMessage
	err := decode(body, inboundValidator, "inbound", &m)
	return m, err
}

func DecodeRejection(body []byte) (RejectionNotice, error) {
	var m RejectionNotice
	err := decode(body, rejectionValidator, "rejection", &m)
	return m, err
}

func DecodeUtility(body []byte) (UtilityInfo, error) {
	var m UtilityInfo
	err := decode(body, utilityValidator, "utility", &m)
	return m, err
}

// DecodeStartRound accepts an empty body as a request with no overrides.
func DecodeStartRound(body []byte) (StartRoundRequest, error) {
	var m StartRoundRequest
	err := decode(body, startRoundValidator, "start_round", &m)
	if errors.Is(err, ErrNoBody) {
		return m, nil
	}
	return m, err
}

func decode(body []byte, s *jsonschema.Schema, name string, out any) error {
	if isEmptyBody(body) {
		return ErrNoBody
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return &ValidationError{Schema: name, Detail: "invalid json: " + err.Error()}
	}
	if err := s.Validate(v); err != nil {
		return &ValidationError{Schema: name, Detail: validationDetail(err)}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &ValidationError{Schema: name, Detail: err.Error()}
	}
	return nil
}

func isEmptyBody(body []byte) bool {
	t := bytes.TrimSpace(body)
	if len(t) == 0 || bytes.Equal(t, []byte("null")) {
		return true
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(t, &m); err == nil && len(m) == 0 {
		return true
	}
	return false
}

// validationDetail reduces a schema error to its first leaf cause.
func validationDetail(err error) string {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return err.Error()
	}
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	loc := ve.InstanceLocation
	if loc == "" {
		loc = "/"
	}
	return fmt.Sprintf("%s: %s", loc, strings.TrimSpace(ve.Message))
}
