package asynq

const (
	SnapshotArchiveTask = "snapshot:archive"
)

type SnapshotArchivePayload struct {
	Role        string `json:"role"`
	BusinessDay string `json:"business_day"`
}
