package tokenfan

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// DefaultCounterPath is the JSON path used when no extractor is configured.
const DefaultCounterPath = "AccountInfo.Likes"

// CounterExtractor reads the counter value from a status response body.
//
// Extractors are called within a panic recovery boundary. A panicking
// extractor is treated as a failed counter read.
type CounterExtractor func(body []byte) (int64, error)

// errNoCounter is returned when an extractor finds no usable value.
var errNoCounter = errors.New("counter not found in response")

// JSONCounterExtractor returns a [CounterExtractor] that reads an integer
// from a JSON field using dot notation to navigate nested objects.
//
// Numbers and numeric strings are accepted. Fractional values are rejected.
//
// Example:
//
//	// For response: {"AccountInfo": {"Likes": 1204}}
//	extractor := tokenfan.JSONCounterExtractor("AccountInfo.Likes")
func JSONCounterExtractor(path string) CounterExtractor {
	parts := strings.Split(path, ".")

	return func(body []byte) (int64, error) {
		dec := json.NewDecoder(bytes.NewReader(body))
		dec.UseNumber()

		var data interface{}
		if err := dec.Decode(&data); err != nil {
			return 0, fmt.Errorf("decode status response: %w", err)
		}

		value, ok := extractJSONPath(data, parts)
		if !ok {
			return 0, fmt.Errorf("%w: %s", errNoCounter, path)
		}
		return value, nil
	}
}

// extractJSONPath walks a JSON structure using dot notation parts and
// returns the integer found there.
func extractJSONPath(data interface{}, parts []string) (int64, bool) {
	current := data

	for _, part := range parts {
		obj, ok := current.(map[string]interface{})
		if !ok {
			return 0, false
		}
		current, ok = obj[part]
		if !ok {
			return 0, false
		}
	}

	switch v := current.(type) {
	case json.Number:
		return parseCount(v.String())
	case string:
		return parseCount(strings.TrimSpace(v))
	default:
		return 0, false
	}
}

func parseCount(s string) (int64, bool) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// RegexCounterExtractor returns a [CounterExtractor] that matches the
// response body against a regular expression and parses the first capture
// group as an integer.
//
// Returns an error if the pattern is invalid or has no capture group.
//
// Example:
//
//	extractor, err := tokenfan.RegexCounterExtractor(`"likes":\s*(\d+)`)
func RegexCounterExtractor(pattern string) (CounterExtractor, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	if re.NumSubexp() < 1 {
		return nil, errors.New("pattern must contain a capture group")
	}

	return func(body []byte) (int64, error) {
		matches := re.FindSubmatch(body)
		if len(matches) < 2 {
			return 0, fmt.Errorf("%w: no match for %s", errNoCounter, pattern)
		}
		n, ok := parseCount(string(matches[1]))
		if !ok {
			return 0, fmt.Errorf("%w: %q is not an integer", errNoCounter, matches[1])
		}
		return n, nil
	}, nil
}

// MustRegexCounterExtractor is like [RegexCounterExtractor] but panics if
// the pattern is invalid.
func MustRegexCounterExtractor(pattern string) CounterExtractor {
	extractor, err := RegexCounterExtractor(pattern)
	if err != nil {
		panic("tokenfan: invalid regex pattern: " + err.Error())
	}
	return extractor
}

// FirstCounter returns a [CounterExtractor] that tries extractors in order
// and returns the first successful read. If all fail, the last error is
// returned.
func FirstCounter(extractors ...CounterExtractor) CounterExtractor {
	return func(body []byte) (int64, error) {
		err := errNoCounter
		for _, extractor := range extractors {
			n, e := extractor(body)
			if e == nil {
				return n, nil
			}
			err = e
		}
		return 0, err
	}
}

// DefaultCounterExtractor reads [DefaultCounterPath].
var DefaultCounterExtractor = JSONCounterExtractor(DefaultCounterPath)
