package db

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

const blobURLPrefix = "/api/profile/image/"

// BlobStore stores opaque binary blobs and hands back a serveable URL.
type BlobStore interface {
	Upload(ctx context.Context, data []byte, ownerKey, contentType string) (string, error)
	Download(ctx context.Context, url string, w io.Writer) (string, error)
	Delete(ctx context.Context, url string) error
}

type gridFSBlobStore struct {
	bucket *gridfs.Bucket
	logger *zap.Logger
}

// NewGridFSBlobStore creates a BlobStore backed by a GridFS bucket in the
// given database.
func NewGridFSBlobStore(database *mongo.Database, logger *zap.Logger) (BlobStore, error) {
	bucket, err := gridfs.NewBucket(database, options.GridFSBucket().SetName("profile_images"))
	if err != nil {
		return nil, fmt.Errorf("failed to create gridfs bucket: %w", err)
	}

	return &gridFSBlobStore{bucket: bucket, logger: logger}, nil
}

func (s *gridFSBlobStore) Upload(ctx context.Context, data []byte, ownerKey, contentType string) (string, error) {
	opts := options.GridFSUpload().SetMetadata(bson.M{
		"owner":       ownerKey,
		"contentType": contentType,
	})

	fileID, err := s.bucket.UploadFromStream(ownerKey, bytes.NewReader(data), opts)
	if err != nil {
		s.logger.Error("blob upload failed", zap.String("owner", ownerKey), zap.Error(err))
		return "", fmt.Errorf("failed to upload blob: %w", err)
	}

	s.logger.Debug("blob uploaded",
		zap.String("owner", ownerKey),
		zap.String("file_id", fileID.Hex()),
		zap.Int("size", len(data)),
	)
	return blobURLPrefix + fileID.Hex(), nil
}

// Download streams the blob at url into w and returns its content type.
func (s *gridFSBlobStore) Download(ctx context.Context, url string, w io.Writer) (string, error) {
	fileID, err := parseBlobURL(url)
	if err != nil {
		return "", err
	}

	stream, err := s.bucket.OpenDownloadStream(fileID)
	if err != nil {
		return "", fmt.Errorf("failed to open blob %s: %w", fileID.Hex(), err)
	}
	defer stream.Close()

	contentType := ""
	if file := stream.GetFile(); file != nil && file.Metadata != nil {
		var meta struct {
			ContentType string `bson:"contentType"`
		}
		if err := bson.Unmarshal(file.Metadata, &meta); err == nil {
			contentType = meta.ContentType
		}
	}

	if _, err := io.Copy(w, stream); err != nil {
		return "", fmt.Errorf("failed to read blob %s: %w", fileID.Hex(), err)
	}
	return contentType, nil
}

func (s *gridFSBlobStore) Delete(ctx context.Context, url string) error {
	fileID, err := parseBlobURL(url)
	if err != nil {
		return err
	}

	if err := s.bucket.Delete(fileID); err != nil {
		return fmt.Errorf("failed to delete blob %s: %w", fileID.Hex(), err)
	}
	return nil
}

func parseBlobURL(url string) (primitive.ObjectID, error) {
	hex := strings.TrimPrefix(url, blobURLPrefix)
	fileID, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("invalid blob url %q: %w", url, err)
	}
	return fileID, nil
}
