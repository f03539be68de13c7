package bus

// Event type namespaces. Application events use bare type names; transports
// and the repository layer prefix theirs, so a socket event can never
// collide with an application event of the same name.
const (
	socketPrefix = "socket:"
	filePrefix   = "file:"
	repoPrefix   = "repo:"
	httpPrefix   = "http:"
)

// SocketEvent is the event type for an incoming socket event name.
func SocketEvent(name string) string { return socketPrefix + name }

// FileEvent is the event type for a change on a watched-file key.
func FileEvent(key string) string { return filePrefix + key }

// RepoEvent is the event type for a change in a named repository.
func RepoEvent(name string) string { return repoPrefix + name }

// HTTPEvent is the event type for a request hitting a served route.
func HTTPEvent(route string) string { return httpPrefix + route }
