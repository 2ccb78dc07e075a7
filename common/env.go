// Package common provides the constants and wire types shared by the
// warpmulti daemon and its clients.
package common

// Environment variable names for configuration.
const (
	// ConfigDirEnv overrides the configuration directory.
	ConfigDirEnv = "WARPMULTI_CONFIG_DIR"

	// SocketPathEnv is the environment variable for custom socket path.
	SocketPathEnv = "WARPMULTI_SOCKET_PATH"

	// PipeNameEnv overrides the Windows named pipe name.
	PipeNameEnv = "WARPMULTI_PIPE_NAME"

	// ListenEnv is the TCP address of the WebSocket endpoint.
	ListenEnv = "WARPMULTI_LISTEN"

	// ProxyEnv is the proxy URL used for transfers.
	ProxyEnv = "WARPMULTI_PROXY"

	// WaitTimeoutEnv is the wait used when the engine gives no advice.
	WaitTimeoutEnv = "WARPMULTI_WAIT_TIMEOUT"

	// MaxWaitEnv caps every engine wait.
	MaxWaitEnv = "WARPMULTI_MAX_WAIT"

	// MaxWorkersEnv limits concurrently running pool workers.
	MaxWorkersEnv = "WARPMULTI_MAX_WORKERS"

	// MaxTriesEnv bounds attempts per transfer.
	MaxTriesEnv = "WARPMULTI_MAX_TRIES"

	// LockOSThreadEnv pins workers to OS threads when "true".
	LockOSThreadEnv = "WARPMULTI_LOCK_OS_THREAD"

	// HistoryDBEnv is the path of the run history database.
	HistoryDBEnv = "WARPMULTI_HISTORY_DB"

	// ScriptEnv is the default completion hook script.
	ScriptEnv = "WARPMULTI_SCRIPT"

	// LogFormatEnv selects "text" or "json" daemon logs.
	LogFormatEnv = "WARPMULTI_LOG_FORMAT"

	// DebugEnv is the environment variable to enable debug logging.
	DebugEnv = "WARPMULTI_DEBUG"
)
