// Package store pushes paks to and pulls them from S3 compatible object storage.
package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/client"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/dustin/go-humanize"

	sspak "github.com/vansante/go-sspak"
	"github.com/vansante/go-sspak/archive"
)

const locationScheme = "s3"

var (
	ErrInvalidLocation = errors.New("invalid object location")
	ErrObjectNotFound  = errors.New("object not found")
)

// Location addresses an object in a bucket
type Location struct {
	Bucket string
	Key    string
}

// ParseLocation parses a location of the form s3://bucket/key
func ParseLocation(location string) (Location, error) {
	u, err := url.Parse(location)
	if err != nil {
		return Location{}, fmt.Errorf("%w: %w", ErrInvalidLocation, err)
	}
	key := strings.TrimPrefix(u.Path, "/")
	if u.Scheme != locationScheme || u.Host == "" || key == "" || strings.HasSuffix(key, "/") {
		return Location{}, fmt.Errorf("%w: %q, expected %s://bucket/key", ErrInvalidLocation, location, locationScheme)
	}
	return Location{Bucket: u.Host, Key: key}, nil
}

func (l Location) String() string {
	return locationScheme + "://" + l.Bucket + "/" + l.Key
}

// Store transfers paks between local files and object storage
type Store struct {
	client *s3.S3
	config Config
	logger *slog.Logger
}

// New creates a store with a client for the configured endpoint
func New(conf Config, logger *slog.Logger) (*Store, error) {
	awsConf := &aws.Config{
		Region:           aws.String(conf.Region),
		S3ForcePathStyle: aws.Bool(conf.Endpoint != ""),
		HTTPClient: &http.Client{
			Transport: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				ResponseHeaderTimeout: time.Minute,
				ExpectContinueTimeout: 5 * time.Second,
				IdleConnTimeout:       90 * time.Second,
			},
		},
		Retryer: client.DefaultRetryer{
			NumMaxRetries: conf.MaxRetries,
			MinRetryDelay: time.Second,
			MaxRetryDelay: 30 * time.Second,
		},
	}
	if conf.Endpoint != "" {
		awsConf.Endpoint = aws.String(conf.Endpoint)
	}
	if conf.AccessKey != "" {
		awsConf.Credentials = credentials.NewStaticCredentials(conf.AccessKey, conf.SecretKey, "")
	}

	sess, err := session.NewSession(awsConf)
	if err != nil {
		return nil, fmt.Errorf("error creating session: %w", err)
	}
	return &Store{
		client: s3.New(sess),
		config: conf,
		logger: logger,
	}, nil
}

func (s *Store) timeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, time.Duration(s.config.TimeoutSeconds)*time.Second)
}

func isNotFound(err error) bool {
	var aerr awserr.Error
	if errors.As(err, &aerr) {
		switch aerr.Code() {
		case s3.ErrCodeNoSuchKey, "NotFound":
			return true
		}
	}
	return false
}

// Exists returns whether the object exists
func (s *Store) Exists(ctx context.Context, loc Location) (bool, error) {
	_, err := s.client.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(loc.Bucket),
		Key:    aws.String(loc.Key),
	})
	switch {
	case isNotFound(err):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("error checking %s: %w", loc, err)
	}
	return true, nil
}

// Push uploads the pak at path to the location. An existing object is only replaced when configured to.
func (s *Store) Push(ctx context.Context, path string, loc Location) error {
	ctx, cancel := s.timeout(ctx)
	defer cancel()

	// Reading the entries rejects anything that is not a pak
	_, err := archive.Open(path).Entries()
	if err != nil {
		return err
	}

	if !s.config.Overwrite {
		exists, err := s.Exists(ctx, loc)
		if err != nil {
			return err
		}
		if exists {
			return sspak.Preconditionf("object %s already exists", loc)
		}
	}

	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()
	stat, err := file.Stat()
	if err != nil {
		return err
	}

	_, err = s.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(loc.Bucket),
		Key:           aws.String(loc.Key),
		Body:          file,
		ContentLength: aws.Int64(stat.Size()),
		ContentType:   aws.String("application/x-tar"),
	})
	if err != nil {
		return fmt.Errorf("error uploading to %s: %w", loc, err)
	}

	s.logger.Info("sspak.store.Store.Push: Pushed archive",
		"file", path,
		"location", loc.String(),
		"size", humanize.IBytes(uint64(stat.Size())),
	)
	return nil
}

// Pull downloads the object at the location into a new local file at path. A partial download is removed again.
func (s *Store) Pull(ctx context.Context, loc Location, path string) error {
	ctx, cancel := s.timeout(ctx)
	defer cancel()

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, os.ErrExist) {
		return sspak.Preconditionf("file %s already exists", path)
	}
	if err != nil {
		return err
	}

	n, err := s.download(ctx, loc, file)
	closeErr := file.Close()
	if err == nil {
		err = closeErr
	}
	if err == nil {
		_, err = archive.Open(path).Entries()
	}
	if err != nil {
		_ = os.Remove(path)
		return err
	}

	s.logger.Info("sspak.store.Store.Pull: Pulled archive",
		"location", loc.String(),
		"file", path,
		"size", humanize.IBytes(uint64(n)),
	)
	return nil
}

func (s *Store) download(ctx context.Context, loc Location, w io.Writer) (int64, error) {
	resp, err := s.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(loc.Bucket),
		Key:    aws.String(loc.Key),
	})
	if isNotFound(err) {
		return 0, fmt.Errorf("%w: %s", ErrObjectNotFound, loc)
	}
	if err != nil {
		return 0, fmt.Errorf("error downloading %s: %w", loc, err)
	}
	defer resp.Body.Close()

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("error downloading %s: %w", loc, err)
	}
	return n, nil
}
