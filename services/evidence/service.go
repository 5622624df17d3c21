package evidence

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"shiftops-controlplane/pkg/config"
	"shiftops-controlplane/services/workday"

	"github.com/bwmarrin/snowflake"
	"github.com/minio/minio-go/v7"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Store keeps captured evidence payloads (photo/audio bytes from the
// capture dialogs) and hands back the object key recorded on the
// submission. Capture itself is a collaborator; only storage lives here.
// The caller supplies the clock so objects file under the session's day
// even when a test clock is pinned.
type Store interface {
	Put(ctx context.Context, taskID string, kind workday.UploadKind, payload []byte, now time.Time) (string, error)
}

type minioStore struct {
	client *minio.Client
	bucket string
	node   *snowflake.Node
}

type Params struct {
	fx.In
	Client *minio.Client
	Config *config.Config
	Node   *snowflake.Node
}

func NewStore(p Params) Store {
	return &minioStore{
		client: p.Client,
		bucket: p.Config.Minio.BucketName,
		node:   p.Node,
	}
}

func (s *minioStore) Put(ctx context.Context, taskID string, kind workday.UploadKind, payload []byte, now time.Time) (string, error) {
	key := objectKey(taskID, kind, s.node.Generate().String(), now)

	_, err := s.client.PutObject(ctx, s.bucket, key,
		bytes.NewReader(payload), int64(len(payload)),
		minio.PutObjectOptions{ContentType: contentType(kind)},
	)
	if err != nil {
		zap.L().Error("[Evidence] failed to store object",
			zap.String("task_id", taskID), zap.String("key", key), zap.Error(err))
		return "", err
	}

	return key, nil
}

// objectKey files evidence by day, then task, then a unique object id.
func objectKey(taskID string, kind workday.UploadKind, id string, now time.Time) string {
	return fmt.Sprintf("%s/%s/%s%s", now.Format("2006-01-02"), taskID, id, extension(kind))
}

func extension(kind workday.UploadKind) string {
	switch kind {
	case workday.UploadPhoto:
		return ".jpg"
	case workday.UploadAudio:
		return ".webm"
	default:
		return ".bin"
	}
}

func contentType(kind workday.UploadKind) string {
	switch kind {
	case workday.UploadPhoto:
		return "image/jpeg"
	case workday.UploadAudio:
		return "audio/webm"
	default:
		return "application/octet-stream"
	}
}

var Module = fx.Module("evidence.store",
	fx.Provide(NewStore),
)
