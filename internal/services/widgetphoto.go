package services

import (
	"context"
	"fmt"
	"time"

	appconfig "couple-sync-backend/internal/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// WidgetPhotoService handles the couple's single widget photo: a presigned
// S3 upload plus the URL pointer on the couple document
type WidgetPhotoService struct {
	couples  CoupleStore
	sync     Synchronizer
	s3Client *s3.Client
	s3Bucket string
	region   string
}

// NewWidgetPhotoService creates a new widget photo service
func NewWidgetPhotoService(couples CoupleStore, sync Synchronizer, awsCfg appconfig.AWSConfig) (*WidgetPhotoService, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(awsCfg.Region),
	}
	if awsCfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(awsCfg.AccessKey, awsCfg.SecretKey, ""),
		))
	}

	cfg, err := config.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	s3Client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if awsCfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(awsCfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &WidgetPhotoService{
		couples:  couples,
		sync:     sync,
		s3Client: s3Client,
		s3Bucket: awsCfg.S3Bucket,
		region:   awsCfg.Region,
	}, nil
}

// UploadResponse carries the presigned upload target
type UploadResponse struct {
	UploadURL string `json:"upload_url"`
	PhotoURL  string `json:"photo_url"`
	ExpiresIn int    `json:"expires_in"`
}

// GetUploadURL presigns a PUT for the couple's widget photo
func (s *WidgetPhotoService) GetUploadURL(ctx context.Context, coupleID, contentType string) (*UploadResponse, error) {
	key := fmt.Sprintf("%s/widget/%s.jpg", coupleID, uuid.New().String())

	presignClient := s3.NewPresignClient(s.s3Client)
	request, err := presignClient.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.s3Bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = 5 * time.Minute
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate pre-signed URL: %w", err)
	}

	photoURL := fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.s3Bucket, s.region, key)
	return &UploadResponse{
		UploadURL: request.URL,
		PhotoURL:  photoURL,
		ExpiresIn: 300,
	}, nil
}

// Confirm records the uploaded photo's URL on the couple and fans the
// change out to both members
func (s *WidgetPhotoService) Confirm(ctx context.Context, coupleID, actorID, photoURL string) error {
	if err := s.couples.SetWidgetPhotoURL(ctx, coupleID, photoURL); err != nil {
		return fmt.Errorf("failed to confirm widget photo: %w", err)
	}
	s.sync.CoupleChanged(ctx, coupleID, "status", actorID)
	return nil
}
