package webhook

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/unicode/norm"

	"devopsmirror/internal/services"
)

const (
	fieldState       = "System.State"
	fieldTitle       = "System.Title"
	fieldChangedBy   = "System.ChangedBy"
	fieldChangedDate = "System.ChangedDate"

	// DefaultTitle is used when the payload carries no title.
	DefaultTitle = "Untitled"
	// DefaultChangedBy is used when the payload carries no author.
	DefaultChangedBy = "Unknown"
)

// TransitionEvent is the validated content of one workitem.updated notification.
type TransitionEvent struct {
	ExternalID string
	Title      string
	FromState  string
	ToState    string
	ChangedBy  string
	ChangedAt  time.Time
}

var reasonPrinter = message.NewPrinter(language.English)

// Offset-less layouts are read as UTC.
var changedDateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
}

// Normalize validates raw and extracts the state transition it describes.
func Normalize(raw []byte) (TransitionEvent, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return TransitionEvent{}, invalid("request body is empty")
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return TransitionEvent{}, invalid("body is not valid JSON: %v", err)
	}

	schema, err := payloadSchema()
	if err != nil {
		return TransitionEvent{}, services.Wrap(services.ErrComputation, "webhook", "load schema", "", err)
	}
	if err := schema.Validate(doc); err != nil {
		var verr *jsonschema.ValidationError
		if errors.As(err, &verr) {
			return TransitionEvent{}, invalid("payload does not match workitem.updated shape: %s", schemaReason(verr))
		}
		return TransitionEvent{}, invalid("payload does not match workitem.updated shape: %v", err)
	}

	payload := doc.(map[string]any)
	resource, _ := payload["resource"].(map[string]any)
	fields, _ := resource["fields"].(map[string]any)
	revision, _ := resource["revision"].(map[string]any)
	revisionFields, _ := revision["fields"].(map[string]any)

	externalID, err := extractExternalID(resource)
	if err != nil {
		return TransitionEvent{}, err
	}

	stateChange, ok := revisionFields[fieldState].(map[string]any)
	if !ok {
		return TransitionEvent{}, invalid("resource.revision.fields[%q] is missing", fieldState)
	}
	fromState := canonical(stringValue(stateChange["oldValue"]))
	toState := canonical(stringValue(stateChange["newValue"]))
	if fromState == "" {
		return TransitionEvent{}, invalid("%s.oldValue is missing", fieldState)
	}
	if toState == "" {
		return TransitionEvent{}, invalid("%s.newValue is missing", fieldState)
	}

	rawDate := firstString(fieldChangedDate, fields, revisionFields)
	if rawDate == "" {
		return TransitionEvent{}, invalid("%s is missing", fieldChangedDate)
	}
	changedAt, err := parseChangedDate(rawDate)
	if err != nil {
		return TransitionEvent{}, err
	}

	title := canonical(firstString(fieldTitle, fields, revisionFields))
	if title == "" {
		title = DefaultTitle
	}

	changedBy := canonical(extractChangedBy(fields, revisionFields))
	if changedBy == "" {
		changedBy = DefaultChangedBy
	}

	return TransitionEvent{
		ExternalID: externalID,
		Title:      title,
		FromState:  fromState,
		ToState:    toState,
		ChangedBy:  changedBy,
		ChangedAt:  changedAt,
	}, nil
}

func extractExternalID(resource map[string]any) (string, error) {
	value, ok := resource["id"]
	if !ok || value == nil {
		value = resource["workItemId"]
	}
	switch v := value.(type) {
	case nil:
		return "", invalid("resource.id is missing")
	case json.Number:
		n, err := integerID(v)
		if err != nil {
			return "", err
		}
		if n == 0 {
			return "", invalid("resource.id must be non-zero")
		}
		return strconv.FormatInt(n, 10), nil
	case string:
		id := CanonicalExternalID(v)
		if id == "" {
			return "", invalid("resource.id must be non-empty")
		}
		return id, nil
	default:
		return "", invalid("resource.id has unsupported type %T", value)
	}
}

// integerID accepts any JSON spelling of a whole number (42, 42.0, 4.2e1)
// that fits in an int64.
func integerID(v json.Number) (int64, error) {
	if n, err := strconv.ParseInt(v.String(), 10, 64); err == nil {
		return n, nil
	}
	f, _, err := big.ParseFloat(v.String(), 10, 256, big.ToNearestEven)
	if err != nil {
		return 0, invalid("resource.id %s is not a number", v.String())
	}
	if !f.IsInt() {
		return 0, invalid("resource.id %s is not a whole number", v.String())
	}
	n, acc := f.Int64()
	if acc != big.Exact {
		return 0, invalid("resource.id %s is out of range", v.String())
	}
	return n, nil
}

// CanonicalExternalID trims and NFC-normalizes an external id and rewrites
// integer ids in canonical base 10, so "042" and 42 name the same item.
func CanonicalExternalID(raw string) string {
	id := canonical(raw)
	if n, err := strconv.ParseInt(id, 10, 64); err == nil {
		return strconv.FormatInt(n, 10)
	}
	return id
}

// extractChangedBy reads an identity object's displayName or the
// "Name <email>" string form.
func extractChangedBy(sources ...map[string]any) string {
	for _, source := range sources {
		switch v := source[fieldChangedBy].(type) {
		case map[string]any:
			if name := strings.TrimSpace(stringValue(v["displayName"])); name != "" {
				return name
			}
		case string:
			name := v
			if idx := strings.Index(name, "<"); idx > 0 {
				name = name[:idx]
			}
			if name = strings.TrimSpace(name); name != "" {
				return name
			}
		}
	}
	return ""
}

func parseChangedDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if strings.HasSuffix(value, "Z") {
		value = strings.TrimSuffix(value, "Z") + "+00:00"
	}
	for _, layout := range changedDateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, invalid("%s %q is not an ISO 8601 date-time", fieldChangedDate, value)
}

func firstString(key string, sources ...map[string]any) string {
	for _, source := range sources {
		if s := strings.TrimSpace(stringValue(source[key])); s != "" {
			return s
		}
	}
	return ""
}

func stringValue(value any) string {
	s, _ := value.(string)
	return s
}

func canonical(value string) string {
	return norm.NFC.String(strings.TrimSpace(value))
}

func schemaReason(verr *jsonschema.ValidationError) string {
	leaf := verr
	for len(leaf.Causes) > 0 {
		leaf = leaf.Causes[0]
	}
	location := "/" + strings.Join(leaf.InstanceLocation, "/")
	if leaf.ErrorKind == nil {
		return "at " + location
	}
	return fmt.Sprintf("at %s: %s", location, leaf.ErrorKind.LocalizedString(reasonPrinter))
}

func invalid(format string, args ...any) error {
	return services.Wrap(services.ErrValidation, "webhook", "normalize", fmt.Sprintf(format, args...), nil)
}
