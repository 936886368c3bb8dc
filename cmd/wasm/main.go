//go:build js && wasm

// Package main provides WASM bindings for the formwork runtime.
// This allows forms to be evaluated in browsers for reactive UI validation.
package main

import (
	"syscall/js"
	"time"

	json "github.com/goccy/go-json"

	"github.com/dlovans/formwork/pkg/formwork"
	"github.com/dlovans/formwork/pkg/lint"
)

func main() {
	js.Global().Set("FormworkRun", js.FuncOf(formworkRun))
	js.Global().Set("FormworkVerify", js.FuncOf(formworkVerify))
	js.Global().Set("FormworkLint", js.FuncOf(formworkLint))

	// Keep the Go runtime alive
	select {}
}

// formworkRun is the JS-callable wrapper for formwork.Run()
// Usage: FormworkRun(jsonString, isoDateString?) -> { result: object, error?: string }
func formworkRun(this js.Value, args []js.Value) any {
	if len(args) < 1 {
		return makeError("FormworkRun requires a document argument")
	}

	now := time.Now()
	if len(args) > 1 && args[1].Type() == js.TypeString && args[1].String() != "" {
		dateStr := args[1].String()
		var err error
		now, err = time.Parse(time.RFC3339, dateStr)
		if err != nil {
			now, err = time.Parse("2006-01-02", dateStr)
			if err != nil {
				return makeError("Invalid date format. Use ISO 8601 (YYYY-MM-DD or RFC3339)")
			}
		}
	}

	result, err := formwork.Run(args[0].String(), now)
	if err != nil {
		return makeError(err.Error())
	}
	return makeResult(result)
}

// formworkVerify is the JS-callable wrapper for formwork.Verify()
// Usage: FormworkVerify(payloadJson, schemaJson) -> { valid: boolean, error?: string }
func formworkVerify(this js.Value, args []js.Value) any {
	if len(args) < 2 {
		return makeError("FormworkVerify requires 2 arguments: payloadJson, schemaJson")
	}

	valid, err := formwork.Verify(args[0].String(), args[1].String())
	if err != nil {
		return map[string]any{
			"valid": false,
			"error": err.Error(),
		}
	}
	return map[string]any{
		"valid": valid,
	}
}

// formworkLint is the JS-callable wrapper for lint.Run()
// Usage: FormworkLint(schemaJson) -> { result: object, error?: string }
func formworkLint(this js.Value, args []js.Value) any {
	if len(args) < 1 {
		return makeError("FormworkLint requires a schema argument")
	}
	res, err := lint.Run(args[0].String())
	if err != nil {
		return makeError(err.Error())
	}
	data, err := json.Marshal(res)
	if err != nil {
		return makeError(err.Error())
	}
	return makeResult(string(data))
}

// makeError creates a JS-friendly error response
func makeError(msg string) map[string]any {
	return map[string]any{
		"error": msg,
	}
}

// makeResult creates a JS-friendly success response
func makeResult(jsonStr string) map[string]any {
	// Parse the result to return as a JS object instead of string
	var result any
	if err := json.Unmarshal([]byte(jsonStr), &result); err != nil {
		// Fall back to string if parsing fails
		return map[string]any{
			"result": jsonStr,
		}
	}

	return map[string]any{
		"result": result,
	}
}
