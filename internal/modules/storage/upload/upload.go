// Package upload issues presigned S3 URLs for diary images.
package upload

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/traveldiary/server/internal/config"
	"github.com/traveldiary/server/internal/middleware"
	"github.com/traveldiary/server/internal/pkg/response"
	"github.com/traveldiary/server/internal/pkg/validate"
)

var ErrUnsupportedType = errors.New("unsupported content type")

var imageExtensions = map[string]string{
	"image/jpeg":    ".jpg",
	"image/png":     ".png",
	"image/gif":     ".gif",
	"image/webp":    ".webp",
	"image/avif":    ".avif",
	"image/heic":    ".heic",
	"image/svg+xml": ".svg",
}

// Presigner signs a PUT for one object key.
type Presigner interface {
	PresignPut(ctx context.Context, key, contentType string, ttl time.Duration) (string, error)
}

type s3Presigner struct {
	client *s3.PresignClient
	bucket string
}

// NewS3Presigner builds a presigner from static credentials. Endpoint, when
// set, points the client at an S3-compatible store.
func NewS3Presigner(ctx context.Context, cfg config.S3Config) (Presigner, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})
	return &s3Presigner{client: s3.NewPresignClient(client), bucket: cfg.Bucket}, nil
}

func (p *s3Presigner) PresignPut(ctx context.Context, key, contentType string, ttl time.Duration) (string, error) {
	req, err := p.client.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", err
	}
	return req.URL, nil
}

// Upload is a pending client-side upload.
type Upload struct {
	Key       string `json:"key"`
	UploadURL string `json:"uploadUrl"`
	PublicURL string `json:"publicUrl"`
	ExpiresIn int    `json:"expiresIn"`
}

type Service struct {
	presigner Presigner
	publicURL string
	ttl       time.Duration
	now       func() time.Time
}

func NewService(presigner Presigner, cfg config.S3Config) *Service {
	ttl := cfg.PresignTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Service{
		presigner: presigner,
		publicURL: strings.TrimRight(strings.TrimSpace(cfg.PublicURL), "/"),
		ttl:       ttl,
		now:       time.Now,
	}
}

// Presign reserves a key under the user's prefix and signs a PUT for it.
func (s *Service) Presign(ctx context.Context, userID, contentType string) (*Upload, error) {
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	ext, ok := imageExtensions[contentType]
	if !ok {
		return nil, ErrUnsupportedType
	}

	d := s.now().UTC()
	key := path.Join("diaries", userID, fmt.Sprintf("%04d", d.Year()), fmt.Sprintf("%02d", int(d.Month())), uuid.NewString()+ext)

	signed, err := s.presigner.PresignPut(ctx, key, contentType, s.ttl)
	if err != nil {
		return nil, fmt.Errorf("presign %s: %w", key, err)
	}

	return &Upload{
		Key:       key,
		UploadURL: signed,
		PublicURL: s.objectURL(key, signed),
		ExpiresIn: int(s.ttl.Seconds()),
	}, nil
}

func (s *Service) objectURL(key, signed string) string {
	if s.publicURL != "" {
		return s.publicURL + "/" + key
	}
	u, err := url.Parse(signed)
	if err != nil {
		return ""
	}
	u.RawQuery = ""
	return u.String()
}

type presignDTO struct {
	ContentType string `json:"contentType" binding:"required,max=64"`
}

type Handler struct {
	svc *Service
}

// NewHandler accepts a nil service when object storage is not configured.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	rg.POST("/uploads/presign", authMW, h.presign)
}

func (h *Handler) presign(c *gin.Context) {
	if h.svc == nil {
		response.ServiceUnavailable(c, "Object storage is not configured")
		return
	}
	var dto presignDTO
	if !validate.BindJSON(c, &dto) {
		return
	}
	up, err := h.svc.Presign(c.Request.Context(), middleware.CurrentUserID(c), dto.ContentType)
	if err != nil {
		if errors.Is(err, ErrUnsupportedType) {
			response.ValidationFailed(c, validate.Field("contentType", "must be a supported image type"))
			return
		}
		response.InternalError(c, err)
		return
	}
	response.OK(c, up)
}
