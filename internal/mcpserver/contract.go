package mcpserver

// Usage is sent to clients as the server's instructions. It describes the
// resources and the stored instruction format.
const Usage = `# Workspaces

This server manages project workspaces and reusable markdown instructions.

## Resources

- ` + "`workspace://{name}`" + ` returns a workspace's metadata as JSON.
- ` + "`instruction://global`" + ` returns the global instructions. It always exists.
- ` + "`instruction://shared/{name}`" + ` returns a shared instruction.

## Names

Workspace and instruction names use letters, digits, ` + "`_`" + ` and ` + "`-`" + `,
are at most 100 characters and must not start or end with ` + "`-`" + `.
` + "`SHARED_INSTRUCTIONS`" + ` and ` + "`GLOBAL`" + ` are reserved.

## Instruction format

Shared instructions are stored as Markdown. A description, when given, is kept
in a YAML frontmatter block:

` + "```" + `markdown
---
description: Conventions for Go services
---
# Go services

Use structured logging.
` + "```" + `

Content is limited to 100000 characters. Empty content is allowed.
`
