package console

// Notifier receives operation outcomes for presentation (toasts, status
// bars). The store never touches presentation state directly.
type Notifier interface {
	Success(message string)
	Error(message string)
}

// NopNotifier discards all notifications.
type NopNotifier struct{}

func (NopNotifier) Success(string) {}
func (NopNotifier) Error(string)   {}
