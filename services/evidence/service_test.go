package evidence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"shiftops-controlplane/services/workday"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func TestObjectKeyUsesSuppliedClock(t *testing.T) {
	// Objects file under the caller's day, not the wall clock, so a pinned
	// test clock keeps evidence on its business day.
	now := time.Date(2026, 8, 26, 14, 30, 0, 0, time.UTC)

	key := objectKey("lunch-duty-manager-1", workday.UploadPhoto, "42", now)
	require.Equal(t, "2026-08-26/lunch-duty-manager-1/42.jpg", key)

	nextDay := now.AddDate(0, 0, 1)
	require.Equal(t, "2026-08-27/lunch-duty-manager-1/42.jpg",
		objectKey("lunch-duty-manager-1", workday.UploadPhoto, "42", nextDay))
}

func TestObjectKeyExtensionByKind(t *testing.T) {
	now := time.Date(2026, 8, 26, 10, 0, 0, 0, time.UTC)

	require.Equal(t, "2026-08-26/t/1.jpg", objectKey("t", workday.UploadPhoto, "1", now))
	require.Equal(t, "2026-08-26/t/1.webm", objectKey("t", workday.UploadAudio, "1", now))
	require.Equal(t, "2026-08-26/t/1.bin", objectKey("t", workday.UploadList, "1", now))
}

func TestContentTypeByKind(t *testing.T) {
	require.Equal(t, "image/jpeg", contentType(workday.UploadPhoto))
	require.Equal(t, "audio/webm", contentType(workday.UploadAudio))
	require.Equal(t, "application/octet-stream", contentType(workday.UploadList))
}
