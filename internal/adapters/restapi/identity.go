package restapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	domainauth "github.com/target/mmk-console/internal/domain/auth"
)

// identityFromValue maps a decoded JSON object onto an Identity.
// The backend sends numeric or string ids and either snake or camel case timestamps.
func identityFromValue(v any) (domainauth.Identity, error) {
	obj, ok := v.(map[string]any)
	if !ok {
		return domainauth.Identity{}, errors.New("identity payload is not an object")
	}

	id, err := stringField(obj["id"])
	if err != nil {
		return domainauth.Identity{}, fmt.Errorf("identity id: %w", err)
	}
	if id == "" {
		return domainauth.Identity{}, errors.New("identity id is missing")
	}

	name, _ := obj["name"].(string)
	email, _ := obj["email"].(string)

	out := domainauth.Identity{ID: id, Name: name, Email: email}
	for _, key := range []string{"created_at", "createdAt"} {
		raw, exists := obj[key].(string)
		if !exists || raw == "" {
			continue
		}
		ts, perr := time.Parse(time.RFC3339Nano, raw)
		if perr != nil {
			return domainauth.Identity{}, fmt.Errorf("identity %s: %w", key, perr)
		}
		out.CreatedAt = ts.UTC()
		break
	}
	return out, nil
}

func stringField(v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return strings.TrimSpace(t), nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	case json.Number:
		return t.String(), nil
	default:
		return "", fmt.Errorf("unsupported type %T", v)
	}
}
