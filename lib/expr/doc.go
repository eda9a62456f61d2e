// Package expr turns CEL expressions into transaction operations.
//
// An expression sees the current document as `doc` and evaluates to a patch
// map that is merged into the document. Fields set to null are removed:
//
//	{"val": doc.val + 3.0}
//	{"tags": doc.tags + ["new"], "draft": null}
//	has(doc.count) ? {"count": doc.count + 1.0} : {"count": 1.0}
//
// Numbers read from JSON are doubles, so arithmetic on them needs double
// literals (3.0, not 3). The expression may also evaluate to null, which
// leaves the document unchanged.
package expr
