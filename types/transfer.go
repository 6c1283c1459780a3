package types

// TransferStatus mirrors the transfer daemon's integer status codes.
type TransferStatus int

const (
	TransferStopped TransferStatus = iota
	TransferCheckWait
	TransferCheck
	TransferDownloadWait
	TransferDownload
	TransferSeedWait
	TransferSeed
)

// String returns a human-readable label for the status.
func (s TransferStatus) String() string {
	switch s {
	case TransferStopped:
		return "stopped"
	case TransferCheckWait:
		return "check-wait"
	case TransferCheck:
		return "checking"
	case TransferDownloadWait:
		return "download-wait"
	case TransferDownload:
		return "downloading"
	case TransferSeedWait:
		return "seed-wait"
	case TransferSeed:
		return "seeding"
	default:
		return "unknown"
	}
}

// Transfer is one download job as reported by the external transfer daemon.
type Transfer struct {
	ID           int64          `json:"id"`
	Name         string         `json:"name"`
	PercentDone  float64        `json:"percentDone"` // 0.0 - 1.0
	TotalSize    int64          `json:"totalSize"`   // bytes
	RateDownload int64          `json:"rateDownload"`
	RateUpload   int64          `json:"rateUpload"`
	ETA          int64          `json:"eta"` // seconds, -1 = unknown
	Status       TransferStatus `json:"status"`
}

// Done reports whether the daemon considers the transfer complete.
func (t Transfer) Done() bool {
	return t.PercentDone >= 1.0
}
