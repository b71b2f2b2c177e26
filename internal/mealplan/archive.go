package mealplan

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/dukerupert/mealplan/internal/model"
)

// ErrNoPlan means the user has no archived plan.
var ErrNoPlan = errors.New("no archived meal plan")

type s3Client interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, input *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Config points at any S3-compatible bucket.
type S3Config struct {
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
}

func (c S3Config) configured() bool {
	return c.Bucket != "" && c.AccessKey != "" && c.SecretKey != ""
}

// Archived is the stored form of a generated plan.
type Archived struct {
	GeneratedAt time.Time            `json:"generatedAt"`
	Input       model.MealPlanInput  `json:"input"`
	MealPlan    model.WeeklyMealPlan `json:"mealPlan"`
}

// Archive keeps each user's most recent plan in object storage.
type Archive struct {
	client s3Client
	bucket string
}

// NewArchive returns nil when the bucket or credentials are missing.
func NewArchive(cfg S3Config) *Archive {
	if !cfg.configured() {
		return nil
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	opts := s3.Options{
		Region:       region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return &Archive{client: s3.New(opts), bucket: cfg.Bucket}
}

func latestKey(userID string) string {
	return fmt.Sprintf("mealplans/%s/latest.json", url.PathEscape(userID))
}

func (a *Archive) Save(ctx context.Context, userID string, doc Archived) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal meal plan: %w", err)
	}
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(a.bucket),
		Key:           aws.String(latestKey(userID)),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("upload meal plan: %w", err)
	}
	return nil
}

func (a *Archive) Latest(ctx context.Context, userID string) (*Archived, error) {
	out, err := a.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(latestKey(userID)),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, ErrNoPlan
		}
		return nil, fmt.Errorf("download meal plan: %w", err)
	}
	defer out.Body.Close()

	var doc Archived
	if err := json.NewDecoder(out.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode meal plan: %w", err)
	}
	return &doc, nil
}
