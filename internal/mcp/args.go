package mcp

import (
	"fmt"
	"strconv"
	"strings"
)

// parseStringArg extracts a string argument from an MCP arguments map.
// Returns an error if the argument is required but missing or invalid.
func parseStringArg(argsMap map[string]interface{}, key string, required bool) (string, error) {
	val, ok := argsMap[key]
	if !ok {
		if required {
			return "", fmt.Errorf("%s parameter is required", key)
		}
		return "", nil
	}

	str, ok := val.(string)
	if !ok {
		return "", fmt.Errorf("%s must be a string", key)
	}

	if required && strings.TrimSpace(str) == "" {
		return "", fmt.Errorf("%s cannot be empty", key)
	}

	return str, nil
}

// parseEnumArg extracts an optional string argument that must be one of
// allowed. Returns defaultVal when the argument is missing or empty.
func parseEnumArg(argsMap map[string]interface{}, key, defaultVal string, allowed ...string) (string, error) {
	val, err := parseStringArg(argsMap, key, false)
	if err != nil {
		return "", err
	}
	if val == "" {
		return defaultVal, nil
	}
	for _, a := range allowed {
		if val == a {
			return val, nil
		}
	}
	return "", fmt.Errorf("invalid %s: %s (must be one of: %s)", key, val, strings.Join(allowed, ", "))
}

// parseIntArg extracts an integer argument from an MCP arguments map.
// MCP sends numbers as float64; some clients send them as strings.
// Returns defaultVal if the argument is missing or invalid.
func parseIntArg(argsMap map[string]interface{}, key string, defaultVal int) int {
	switch v := argsMap[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return defaultVal
}

// parseBoolArg extracts a boolean argument from an MCP arguments map.
// Returns defaultVal if the argument is missing or invalid.
func parseBoolArg(argsMap map[string]interface{}, key string, defaultVal bool) bool {
	switch v := argsMap[key].(type) {
	case bool:
		return v
	case string:
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
	}
	return defaultVal
}

// parseClampedInt extracts an integer argument and clamps it to [min, max].
// Returns defaultVal if the argument is missing or invalid.
func parseClampedInt(argsMap map[string]interface{}, key string, defaultVal, min, max int) int {
	val := parseIntArg(argsMap, key, defaultVal)
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}

// argumentsMap returns the tool arguments as a map.
func argumentsMap(arguments any) (map[string]interface{}, error) {
	if arguments == nil {
		return map[string]interface{}{}, nil
	}
	argsMap, ok := arguments.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid arguments format")
	}
	return argsMap, nil
}
