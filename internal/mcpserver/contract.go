package mcpserver

// KeyContract describes how authoring keys reach the language server.
const KeyContract = `# initializeLuis Contract

Raido pushes the authoring key of every loaded document to the language
server in a single JSON-RPC request.

## When

- Once per session, after the ` + "`" + `initialize` + "`" + ` / ` + "`" + `initialized` + "`" + ` handshake completes.
- Never before the handshake. A reconnect starts a new session and the keys are sent again.
- The request is not retried and its response is not awaited.

## Payload

` + "```" + `json
{
  "data": [
    {"textDocument": {"uri": "inmemory://model1.json"}, "LUISAuthoringKey": ""},
    {"textDocument": {"uri": "inmemory://model2.json"}, "LUISAuthoringKey": "<key>"}
  ]
}
` + "```" + `

## Rules

1. Entries follow document order, independent of which document is active.
2. A document without a key is sent with ` + "`" + `""` + "`" + `, never ` + "`" + `null` + "`" + `.
3. With no documents loaded the request carries ` + "`" + `{"data":[]}` + "`" + `.
4. Keys are never returned by any Raido tool or API.
`
