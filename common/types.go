package common

import "time"

type VersionResult struct {
	Version   string `json:"version"`
	Commit    string `json:"commit,omitempty"`
	BuildType string `json:"buildType,omitempty"`
}

type SubmitParams struct {
	URLs []string `json:"urls"`
	Dir  string   `json:"dir,omitempty"`
}

type SubmitResult struct {
	ID string `json:"id"`
}

type StatusParams struct {
	ID string `json:"id"`
}

// PoolStatus describes one pool known to the daemon.
type PoolStatus struct {
	ID        string    `json:"id"`
	State     string    `json:"state"`
	URLs      []string  `json:"urls"`
	Dir       string    `json:"dir,omitempty"`
	Submitted time.Time `json:"submitted"`
	// Set once the pool has completed.
	Result *CompletedNotification `json:"result,omitempty"`
}

type ListResult struct {
	Pools []*PoolStatus `json:"pools"`
}

// CompletedNotification is the payload of pool.completed.
type CompletedNotification struct {
	ID         string           `json:"id"`
	Transfers  int              `json:"transfers"`
	Failed     int              `json:"failed"`
	Bytes      int64            `json:"bytes"`
	Advances   int              `json:"advances"`
	Waits      int              `json:"waits"`
	DurationMs int64            `json:"durationMs"`
	Cancelled  bool             `json:"cancelled,omitempty"`
	Error      string           `json:"error,omitempty"`
	Results    []TransferResult `json:"results,omitempty"`
}

type TransferResult struct {
	URL   string `json:"url"`
	Path  string `json:"path,omitempty"`
	Bytes int64  `json:"bytes"`
	Error string `json:"error,omitempty"`
}
