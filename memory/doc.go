// Package memory holds the documentation snippets agents consult about the
// business domain, such as fiscal year conventions or date formats in the
// analytics tables.
//
// Documents are loaded from YAML with LoadDocuments and searched by keyword
// overlap. The store is process-local; a semantic index can replace it
// behind the same Search signature.
package memory
