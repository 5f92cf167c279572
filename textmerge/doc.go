// Package textmerge folds a remote revision of a document into locally
// edited text. It is a three-way merge over plain text: the change set
// between the shared base and the remote revision is replayed on top of
// the local text with fuzzy matching, so remote edits survive local
// typing elsewhere in the document.
package textmerge
