// Package logging holds request-scoped context keys shared by middleware
// and handlers.
package logging

import "context"

type contextKey string

const (
	// UserIDKey carries the authenticated user's ID.
	UserIDKey contextKey = "user_id"
	// UsernameKey carries the authenticated user's login name.
	UsernameKey contextKey = "username"
	// DisplayNameKey carries the authenticated user's display name.
	DisplayNameKey contextKey = "display_name"
	// GroupsKey carries the authenticated user's directory group names.
	GroupsKey contextKey = "groups"
	// TraceIDKey carries the request trace identifier.
	TraceIDKey contextKey = "trace_id"
)

// WithUserID stores the user ID in the context.
func WithUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, UserIDKey, id)
}

// GetUserID returns the user ID from the context, or "".
func GetUserID(ctx context.Context) string {
	v, _ := ctx.Value(UserIDKey).(string)
	return v
}

// WithUsername stores the username in the context.
func WithUsername(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, UsernameKey, name)
}

// GetUsername returns the username from the context, or "".
func GetUsername(ctx context.Context) string {
	v, _ := ctx.Value(UsernameKey).(string)
	return v
}

// WithDisplayName stores the display name in the context.
func WithDisplayName(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, DisplayNameKey, name)
}

// GetDisplayName returns the display name from the context, or "".
func GetDisplayName(ctx context.Context) string {
	v, _ := ctx.Value(DisplayNameKey).(string)
	return v
}

// WithGroups stores the group memberships in the context.
func WithGroups(ctx context.Context, groups []string) context.Context {
	return context.WithValue(ctx, GroupsKey, groups)
}

// GetGroups returns the group memberships from the context, or nil.
func GetGroups(ctx context.Context) []string {
	v, _ := ctx.Value(GroupsKey).([]string)
	return v
}

// WithTraceID stores the trace ID in the context.
func WithTraceID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, TraceIDKey, id)
}

// GetTraceID returns the trace ID from the context, or "".
func GetTraceID(ctx context.Context) string {
	v, _ := ctx.Value(TraceIDKey).(string)
	return v
}
