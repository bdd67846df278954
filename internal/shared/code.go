// Utilities for extracting one-time codes from pasted material.
package shared

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"
)

var codePattern = regexp.MustCompile(`^[0-9a-fA-F]{32}$`)

// ExtractCodeFile reads a file and extracts a one-time code from its contents.
func ExtractCodeFile(filepath string) (string, error) {
	content, err := os.ReadFile(filepath)
	if err != nil {
		return "", fmt.Errorf("failed to read code file: %w", err)
	}

	return ExtractCode(string(content))
}

// ExtractCode pulls a one-time code out of whatever the user pasted.
//
// Accepts the bare 32-hex code, a redirect URL carrying a `code` query
// parameter, or the JSON body of the exchange endpoint ({"code": "..."}).
func ExtractCode(input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", fmt.Errorf("%w: empty code input", ErrMissingArgument)
	}

	if codePattern.MatchString(input) {
		return strings.ToLower(input), nil
	}

	if strings.HasPrefix(input, "{") {
		var body struct {
			Code string `json:"code"`
		}
		if err := json.Unmarshal([]byte(input), &body); err != nil {
			return "", fmt.Errorf("%w: unparseable JSON code input", ErrInvalidArgument)
		}
		if !codePattern.MatchString(body.Code) {
			return "", fmt.Errorf("%w: JSON input has no usable code field", ErrInvalidArgument)
		}
		return strings.ToLower(body.Code), nil
	}

	if strings.Contains(input, "://") {
		parsed, err := url.Parse(input)
		if err != nil {
			return "", fmt.Errorf("%w: unparseable URL code input", ErrInvalidArgument)
		}
		code := parsed.Query().Get("code")
		if !codePattern.MatchString(code) {
			return "", fmt.Errorf("%w: URL has no usable code parameter", ErrInvalidArgument)
		}
		return strings.ToLower(code), nil
	}

	return "", fmt.Errorf("%w: %q does not look like a one-time code", ErrInvalidArgument, Redact(input))
}
