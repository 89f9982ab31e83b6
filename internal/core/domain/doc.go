// Package domain defines the vocabulary of the deployment engine: tools,
// actions, validation policies and the inbound request.
//
// Everything here is a value type with pure functions. The workflow engine
// (internal/shell/workflow) dispatches on these types.
//
//	req, err := domain.Request{Tool: "terraform", Content: hcl, Mode: "plan"}.Validate()
//	if err != nil {
//	    // 400: report the field error
//	}
package domain
