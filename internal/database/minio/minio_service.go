package minio

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"strconv"

	"rbac-service/internal/config"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const AvatarBucket = "user-avatars"

type MinioClient struct {
	client *minio.Client
	url    string
}

func NewMinioClient(cfg config.MinioConfig) (*MinioClient, error) {
	isSecure, err := strconv.ParseBool(cfg.MinioSecure)
	if err != nil {
		log.Printf("invalid value for MinIO secure flag: %v, defaulting to false", err)
		isSecure = false
	}
	client, err := minio.New(cfg.MinioUrl, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: isSecure,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to minio: %w", err)
	}

	if err := ensureBucket(client, AvatarBucket, cfg.MinioLocation); err != nil {
		return nil, err
	}
	if err := setPublicBucketPolicy(client, AvatarBucket); err != nil {
		return nil, err
	}

	scheme := "http"
	if isSecure {
		scheme = "https"
	}
	return &MinioClient{
		client: client,
		url:    fmt.Sprintf("%s://%s", scheme, cfg.MinioUrl),
	}, nil
}

func ensureBucket(client *minio.Client, bucketName, location string) error {
	ctx := context.Background()

	exists, err := client.BucketExists(ctx, bucketName)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if !exists {
		err := client.MakeBucket(ctx, bucketName, minio.MakeBucketOptions{Region: location})
		if err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", bucketName, err)
		}
		log.Printf("bucket %s created", bucketName)
	}
	return nil
}

// Avatars are served directly, so the bucket allows anonymous GetObject.
func setPublicBucketPolicy(client *minio.Client, bucketName string) error {
	policy := map[string]any{
		"Version": "2012-10-17",
		"Statement": []map[string]any{
			{
				"Action":    []string{"s3:GetObject"},
				"Effect":    "Allow",
				"Principal": map[string]any{"AWS": []string{"*"}},
				"Resource":  []string{fmt.Sprintf("arn:aws:s3:::%s/*", bucketName)},
			},
		},
	}

	policyBytes, err := json.Marshal(policy)
	if err != nil {
		return fmt.Errorf("error marshalling policy: %w", err)
	}
	if err := client.SetBucketPolicy(context.Background(), bucketName, string(policyBytes)); err != nil {
		return fmt.Errorf("error setting bucket policy: %w", err)
	}
	return nil
}

// UploadAvatar stores an avatar object and returns its public URL.
func (mc *MinioClient) UploadAvatar(ctx context.Context, objectName, contentType string, reader io.Reader, size int64) (string, error) {
	_, err := mc.client.PutObject(ctx, AvatarBucket, objectName, reader, size,
		minio.PutObjectOptions{ContentType: contentType},
	)
	if err != nil {
		return "", fmt.Errorf("failed to upload avatar: %w", err)
	}
	return fmt.Sprintf("%s/%s/%s", mc.url, AvatarBucket, objectName), nil
}

func (mc *MinioClient) DeleteAvatar(ctx context.Context, objectName string) error {
	if objectName == "" {
		return fmt.Errorf("objectName cannot be empty")
	}
	err := mc.client.RemoveObject(ctx, AvatarBucket, objectName, minio.RemoveObjectOptions{})
	if err != nil {
		return fmt.Errorf("failed to delete avatar %s: %w", objectName, err)
	}
	return nil
}
