// Package errors provides the error taxonomy of the report filter engine.
//
// Every failure that leaves a filter is either a coded *AppError or is wrapped
// in one. Composites never change the kind of an error: they wrap it with the
// identity of the stage that produced it, so a terminal error reads as a path
// from the outermost composite down to the failing leaf.
//
//	err := errors.AtStage("upload", errors.AtStage("gzip", errors.FilterFailed("gzip", cause)))
//	errors.StagePath(err) // [upload gzip]
//	errors.CodeOf(err)    // FILTER_FAILED
package errors
