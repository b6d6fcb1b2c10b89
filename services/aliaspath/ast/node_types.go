// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ast

// Tree-sitter node types for the JavaScript, TypeScript and TSX grammars.
const (
	nodeExportStatement   = "export_statement"
	nodeExportClause      = "export_clause"
	nodeExportSpecifier   = "export_specifier"
	nodeNamespaceExport   = "namespace_export"
	nodeDefault           = "default"
	nodeEquals            = "="
	nodeAssignment        = "assignment_expression"
	nodeMemberExpression  = "member_expression"
	nodeIdentifier        = "identifier"
	nodeTypeIdentifier    = "type_identifier"
	nodePropertyIdent     = "property_identifier"
	nodeString            = "string"
	nodeObject            = "object"
	nodePair              = "pair"
	nodeShorthandProperty = "shorthand_property_identifier"
	nodeMethodDefinition  = "method_definition"

	nodeLexicalDeclaration  = "lexical_declaration"
	nodeVariableDeclaration = "variable_declaration"
	nodeVariableDeclarator  = "variable_declarator"
	nodeAmbientDeclaration  = "ambient_declaration"

	nodeObjectPattern           = "object_pattern"
	nodeArrayPattern            = "array_pattern"
	nodePairPattern             = "pair_pattern"
	nodeShorthandPattern        = "shorthand_property_identifier_pattern"
	nodeRestPattern             = "rest_pattern"
	nodeAssignmentPattern       = "assignment_pattern"
	nodeObjectAssignmentPattern = "object_assignment_pattern"

	nodeError = "ERROR"
)

// namedDeclarations are declaration nodes whose `name` field is the bound
// identifier.
var namedDeclarations = map[string]bool{
	"function_declaration":           true,
	"generator_function_declaration": true,
	"class_declaration":              true,
	"abstract_class_declaration":     true,
	"interface_declaration":          true,
	"type_alias_declaration":         true,
	"enum_declaration":               true,
	"function_signature":             true,
	"module":                         true,
	"internal_module":                true,
}

// namedDefaultValues are expression nodes that may carry a name when used as
// `export default <value>`.
var namedDefaultValues = map[string]bool{
	"function":            true,
	"function_expression": true,
	"generator_function":  true,
	"class":               true,
}

// Tree-sitter node types for the CSS grammar.
const (
	nodeClassSelector = "class_selector"
	nodeClassName     = "class_name"
	nodeIDSelector    = "id_selector"
	nodeIDName        = "id_name"
	nodeTagName       = "tag_name"
)
