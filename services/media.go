package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	appContext "github.com/alphabatem/common/context"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	log "github.com/sirupsen/logrus"
)

// MediaService mirrors cover art into object storage so the queue doesn't
// depend on the catalog CDN staying up. Without a configured endpoint the
// service is disabled and covers are served from their original URLs.
type MediaService struct {
	appContext.DefaultService

	client     *minio.Client
	bucketName string
	enabled    bool

	httpClient *http.Client
}

const MEDIA_SVC = "media_svc"

const mediaDownloadMaxBytes = 5 << 20

func (svc MediaService) Id() string {
	return MEDIA_SVC
}

func (svc *MediaService) Configure(ctx *appContext.Context) error {
	endpoint := os.Getenv("MINIO_ENDPOINT")
	if endpoint == "" {
		log.Warn("MINIO_ENDPOINT not set, cover mirroring disabled")
		return svc.DefaultService.Configure(ctx)
	}

	accessKey := os.Getenv("MINIO_ACCESS_KEY")
	secretKey := os.Getenv("MINIO_SECRET_KEY")
	useSSL := os.Getenv("MINIO_USE_SSL") == "true"

	svc.bucketName = os.Getenv("MINIO_BUCKET")
	if svc.bucketName == "" {
		svc.bucketName = "encore-covers"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return fmt.Errorf("failed to create minio client: %w", err)
	}

	svc.client = client
	svc.enabled = true
	svc.httpClient = &http.Client{Timeout: 10 * time.Second}

	return svc.DefaultService.Configure(ctx)
}

func (svc *MediaService) Start() error {
	if !svc.enabled {
		return nil
	}
	return svc.ensureBucket(context.Background())
}

func (svc *MediaService) Enabled() bool {
	return svc.enabled
}

func (svc *MediaService) ensureBucket(ctx context.Context) error {
	exists, err := svc.client.BucketExists(ctx, svc.bucketName)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}
	if exists {
		return nil
	}

	if err := svc.client.MakeBucket(ctx, svc.bucketName, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed to create bucket: %w", err)
	}

	log.WithField("bucket", svc.bucketName).Info("Created media bucket")
	return nil
}

// MirrorCover downloads the cover image and stores it under the queue entry's
// id. Returns the object key, or an empty string when mirroring is disabled or
// there is nothing to mirror.
func (svc *MediaService) MirrorCover(ctx context.Context, entryID, coverURL string) (string, error) {
	if !svc.enabled || coverURL == "" {
		return "", nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, coverURL, nil)
	if err != nil {
		return "", err
	}

	resp, err := svc.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to download cover: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("cover download returned status %d", resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		return "", fmt.Errorf("cover is not an image: %s", contentType)
	}

	objectKey := fmt.Sprintf("covers/%s%s", entryID, extensionFor(contentType))

	_, err = svc.client.PutObject(ctx, svc.bucketName, objectKey,
		io.LimitReader(resp.Body, mediaDownloadMaxBytes), -1,
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("failed to store cover: %w", err)
	}

	return objectKey, nil
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	default:
		return ".jpg"
	}
}
