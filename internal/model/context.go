package model

import "context"

type sourceFileKey struct{}

// WithSourceFile returns a context carrying the path of the file a document
// was read from.
func WithSourceFile(ctx context.Context, path string) context.Context {
	return context.WithValue(ctx, sourceFileKey{}, path)
}

// SourceFileFrom returns the path set by WithSourceFile, or "".
func SourceFileFrom(ctx context.Context) string {
	path, _ := ctx.Value(sourceFileKey{}).(string)
	return path
}
