// Package logs reads the fulfill log file for the CLI: the last N lines,
// then optionally new lines as they are appended. A substring filter narrows
// the output to one run ID, serial number, or outbound order.
package logs
