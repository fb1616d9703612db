package errors

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category   Category
	Message    string
	Detail     string
	Suggestion string
}

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// ============================================
	// Config Errors (H100-H199)
	// ============================================

	"H100": {
		Category:   CategoryConfig,
		Message:    "Config file not found",
		Detail:     "No huddle.json or huddle.yaml was found.",
		Suggestion: "Create huddle.yaml or pass --config",
	},
	"H101": {
		Category:   CategoryConfig,
		Message:    "Invalid config file",
		Detail:     "The configuration file could not be parsed.",
		Suggestion: "Check that the file is valid JSON or YAML",
	},
	"H102": {
		Category: CategoryConfig,
		Message:  "Invalid config value",
		Detail:   "A configuration value is out of range or malformed.",
	},

	// ============================================
	// Connect and Session Errors (H200-H299)
	// ============================================

	"H200": {
		Category:   CategoryConnect,
		Message:    "Cannot reach the session endpoint",
		Detail:     "The registry endpoint did not accept the connection within the connect timeout.",
		Suggestion: "Start one with 'huddle registry' or check --server and --port",
	},
	"H201": {
		Category:   CategorySession,
		Message:    "Client name in use",
		Detail:     "Another client with this name has already joined the session.",
		Suggestion: "Pick another --name, or use --unique to append '+' until a free name is found",
	},
	"H202": {
		Category:   CategorySession,
		Message:    "No such session",
		Suggestion: "Pass --create to create the session",
	},
	"H203": {
		Category: CategorySession,
		Message:  "Permission denied",
		Detail:   "The endpoint's authorizer rejected this client.",
	},
	"H204": {
		Category:   CategorySession,
		Message:    "Session still in use",
		Detail:     "Other clients are still joined, so the session was not closed.",
		Suggestion: "Leave instead, or close with force",
	},
	"H205": {
		Category: CategorySession,
		Message:  "Session closed",
	},
	"H206": {
		Category: CategorySession,
		Message:  "Not joined",
		Detail:   "The client must join the channel or byte array first.",
	},
	"H207": {
		Category: CategorySession,
		Message:  "No such channel",
	},
	"H208": {
		Category: CategorySession,
		Message:  "No such byte array",
	},

	// ============================================
	// Registry Errors (H300-H399)
	// ============================================

	"H300": {
		Category:   CategoryRegistry,
		Message:    "Registry failed",
		Detail:     "The registry could not start or locate an endpoint.",
		Suggestion: "Check that the port is free and the session type is 'socket'",
	},
	"H301": {
		Category:   CategoryRegistry,
		Message:    "Redis directory unavailable",
		Suggestion: "Check --redis-url, or omit it to use the in-process directory",
	},

	// ============================================
	// Payload Errors (H400-H499)
	// ============================================

	"H400": {
		Category: CategoryPayload,
		Message:  "Malformed payload",
	},

	// ============================================
	// CLI Errors (H500-H599)
	// ============================================

	"H500": {
		Category: CategoryCLI,
		Message:  "Invalid argument",
	},
	"H501": {
		Category: CategoryCLI,
		Message:  "Command failed",
	},
}

// GetAllCodes returns all registered error codes.
func GetAllCodes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	return codes
}

// GetTemplate returns the template for an error code.
func GetTemplate(code string) (ErrorTemplate, bool) {
	t, ok := registry[code]
	return t, ok
}
