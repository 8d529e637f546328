package activity

// ListOptions filters the activity log. Results are newest first.
type ListOptions struct {
	ThreadID  string
	SessionID string
	Type      *Type
	Limit     int
	Offset    int
}
