package notifier

// Notifier delivers a human-readable message to one push channel.
type Notifier interface {
	Notify(content string) error
}
