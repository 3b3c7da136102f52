// Package policy lints day graph definitions with Rego policies evaluated
// by Open Policy Agent.
//
// Every policy is a Rego module whose package defines a deny set. The graph
// definition is available as input.graph using the same field names as the
// JSON graph format, and input.context carries the source file and the
// operation. A deny member is either a message string or an object:
//
//	package team.lint.names
//
//	import rego.v1
//
//	deny contains violation if {
//		some node in input.graph.nodes
//		node.name == ""
//		violation := {"subject": node.id, "message": "node has no name", "severity": "info"}
//	}
//
// The built-in policies check that death nodes are terminal, that revelation
// nodes teach something, that knowledge checks name learnable facts, that the
// day has one start, that predicates and effects name a fact, that nodes fall
// inside the day, and that no transition has probability zero.
//
// Loader reads user policies from .rego files, JSON policy files and JSON
// bundles. A "# severity: error" line in the leading comment of a .rego file
// sets its default severity. Loader.Watch reloads policies when their files
// change; pass Engine.Reload as the callback to swap them in.
//
// Violations at error or critical severity make a Result disallowed.
package policy
