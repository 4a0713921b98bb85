package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
)

// FirebaseStore keeps artifacts in a Firebase Storage (GCS) bucket and
// serves them through Firebase download-token URLs.
type FirebaseStore struct {
	bucket     *storage.BucketHandle
	bucketName string
	log        *zap.Logger
}

// NewFirebaseStore wraps a bucket handle obtained from the Firebase app.
func NewFirebaseStore(bucket *storage.BucketHandle, bucketName string, log *zap.Logger) *FirebaseStore {
	return &FirebaseStore{
		bucket:     bucket,
		bucketName: bucketName,
		log:        log.Named("FirebaseStore"),
	}
}

// Put implements ArtifactStore.
func (s *FirebaseStore) Put(ctx context.Context, key, contentType string, body io.Reader) (string, error) {
	token := uuid.NewString()

	w := s.bucket.Object(key).NewWriter(ctx)
	w.ContentType = contentType
	w.CacheControl = "public, max-age=31536000"
	w.Metadata = map[string]string{"firebaseStorageDownloadTokens": token}

	if _, err := io.Copy(w, body); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("write object %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("close object writer %s: %w", key, err)
	}

	return fmt.Sprintf("https://firebasestorage.googleapis.com/v0/b/%s/o/%s?alt=media&token=%s",
		s.bucketName, url.PathEscape(key), token), nil
}

// Delete implements ArtifactStore.
func (s *FirebaseStore) Delete(ctx context.Context, key string) error {
	err := s.bucket.Object(key).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("delete object %s: %w", key, err)
	}
	return nil
}

// DeletePrefix implements ArtifactStore.
func (s *FirebaseStore) DeletePrefix(ctx context.Context, prefix string) error {
	it := s.bucket.Objects(ctx, &storage.Query{Prefix: prefix})
	deleted := 0
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return fmt.Errorf("list objects under %s: %w", prefix, err)
		}
		if err := s.Delete(ctx, attrs.Name); err != nil {
			return err
		}
		deleted++
	}
	s.log.Debug("Deleted objects by prefix", zap.String("prefix", prefix), zap.Int("count", deleted))
	return nil
}
