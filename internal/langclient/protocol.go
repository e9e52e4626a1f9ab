package langclient

import "encoding/json"

// Language server protocol methods used by the client.
const (
	MethodInitialize         = "initialize"
	MethodInitialized        = "initialized"
	MethodDidOpen            = "textDocument/didOpen"
	MethodPublishDiagnostics = "textDocument/publishDiagnostics"
	MethodLogMessage         = "window/logMessage"
	MethodShowMessage        = "window/showMessage"
	MethodRegisterCapability = "client/registerCapability"
	MethodWorkDoneCreate     = "window/workDoneProgress/create"
	MethodConfiguration      = "workspace/configuration"
)

// ClientInfo identifies the client during initialize.
type ClientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

// ServerInfo identifies the server in the initialize result.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

type initializeParams struct {
	ProcessID             int            `json:"processId"`
	ClientInfo            *ClientInfo    `json:"clientInfo,omitempty"`
	RootURI               *string        `json:"rootUri"`
	Capabilities          map[string]any `json:"capabilities"`
	InitializationOptions any            `json:"initializationOptions,omitempty"`
}

type initializeResult struct {
	Capabilities json.RawMessage `json:"capabilities"`
	ServerInfo   *ServerInfo     `json:"serverInfo,omitempty"`
}

// TextDocumentItem is an opened document.
type TextDocumentItem struct {
	URI        string `json:"uri"`
	LanguageID string `json:"languageId"`
	Version    int    `json:"version"`
	Text       string `json:"text"`
}

type didOpenParams struct {
	TextDocument TextDocumentItem `json:"textDocument"`
}

type logMessageParams struct {
	Type    int    `json:"type"`
	Message string `json:"message"`
}

type configurationParams struct {
	Items []json.RawMessage `json:"items"`
}

func clientCapabilities() map[string]any {
	return map[string]any{
		"textDocument": map[string]any{
			"synchronization": map[string]any{
				"dynamicRegistration": false,
				"didSave":             false,
			},
			"publishDiagnostics": map[string]any{
				"relatedInformation": true,
			},
		},
		"workspace": map[string]any{
			"configuration": true,
		},
	}
}
