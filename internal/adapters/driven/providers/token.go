package providers

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/riatzukiza/mcp-sub003/internal/core/domain"
)

// maxResponseBytes bounds provider response bodies
const maxResponseBytes = 1 << 20

// DecodeJSONBody decodes a provider response body into a raw map,
// bounding the read to a sane size.
func DecodeJSONBody(r io.Reader) (map[string]any, error) {
	body, err := io.ReadAll(io.LimitReader(r, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	payload := make(map[string]any)
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return payload, nil
}

// TokenFromPayload builds an OAuthToken from a raw token response,
// preserving the payload. Returns an error when the provider reported
// an error field or omitted the access token.
func TokenFromPayload(payload map[string]any) (*domain.OAuthToken, error) {
	if errCode := StringValue(payload, "error"); errCode != "" {
		desc := StringValue(payload, "error_description")
		if desc != "" {
			return nil, fmt.Errorf("oauth error: %s - %s", errCode, desc)
		}
		return nil, fmt.Errorf("oauth error: %s", errCode)
	}

	accessToken := StringValue(payload, "access_token")
	if accessToken == "" {
		return nil, fmt.Errorf("token response missing access_token")
	}

	return &domain.OAuthToken{
		AccessToken:  accessToken,
		RefreshToken: StringValue(payload, "refresh_token"),
		IDToken:      StringValue(payload, "id_token"),
		TokenType:    StringValue(payload, "token_type"),
		ExpiresIn:    Int64Value(payload, "expires_in"),
		Scope:        StringValue(payload, "scope"),
		Raw:          payload,
	}, nil
}

// StringValue reads a string field from a raw payload
func StringValue(payload map[string]any, key string) string {
	if v, ok := payload[key].(string); ok {
		return v
	}
	return ""
}

// Int64Value reads a numeric field from a raw payload. JSON numbers
// decode as float64; some providers send them as strings.
func Int64Value(payload map[string]any, key string) int64 {
	switch v := payload[key].(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case json.Number:
		n, _ := v.Int64()
		return n
	}
	return 0
}

// BoolValue reads a boolean field from a raw payload
func BoolValue(payload map[string]any, key string) bool {
	if v, ok := payload[key].(bool); ok {
		return v
	}
	return false
}
