// ABOUTME: Closed taxonomy of engine failures and their JSON-RPC 2.0 codes
// ABOUTME: Kinds are mapped to protocol codes only where a payload becomes a response

package errors

import "fmt"

// Kind is one entry of the engine's error taxonomy.
type Kind int

const (
	KindUnknown Kind = iota
	KindParseError
	KindBadRequest
	KindBadMethod
	KindBadParams
	KindMethodAlreadyBound
	KindInternalError
)

// Standard JSON-RPC error codes plus the engine's server-defined ones.
const (
	CodeParseError         = -32700
	CodeInvalidRequest     = -32600
	CodeMethodNotFound     = -32601
	CodeInvalidParams      = -32602
	CodeInternalError      = -32603
	CodeMethodAlreadyBound = -32000
	// CodeUnknownNative carries the text of a foreign Go error as data.
	CodeUnknownNative = -32098
	CodeUnknown       = -32099
)

var kindInfo = map[Kind]struct {
	name    string
	code    int
	message string
}{
	KindUnknown:            {"unknown", CodeUnknown, "Unknown error occurred."},
	KindParseError:         {"parse_error", CodeParseError, "JSON parse error."},
	KindBadRequest:         {"bad_request", CodeInvalidRequest, "Invalid request."},
	KindBadMethod:          {"bad_method", CodeMethodNotFound, "Method not found."},
	KindBadParams:          {"bad_params", CodeInvalidParams, "Invalid method parameters."},
	KindMethodAlreadyBound: {"method_already_bound", CodeMethodAlreadyBound, "Method name unavailable."},
	KindInternalError:      {"internal_error", CodeInternalError, "Internal error."},
}

func (k Kind) String() string {
	if info, ok := kindInfo[k]; ok {
		return info.name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Code is the JSON-RPC code reported for k.
func (k Kind) Code() int {
	if info, ok := kindInfo[k]; ok {
		return info.code
	}
	return CodeUnknown
}

// Message is the fixed JSON-RPC message reported for k.
func (k Kind) Message() string {
	if info, ok := kindInfo[k]; ok {
		return info.message
	}
	return kindInfo[KindUnknown].message
}
