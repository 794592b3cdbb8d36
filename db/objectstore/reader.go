// Package objectstore reads invoice extraction exports from an S3
// compatible bucket.
package objectstore

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"

	"github.com/pg-png/wwithai-foodcost-sentinel/pkg/api"
)

// API is the subset of the S3 client the reader calls.
type API interface {
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Options configures the bucket connection. Endpoint and keys are only
// needed for non-AWS providers.
type Options struct {
	Bucket    string
	Prefix    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

// Reader lists and decodes export objects.
type Reader struct {
	client API
	bucket string
	prefix string
}

// NewReader wraps an S3 client.
func NewReader(client API, bucket, prefix string) *Reader {
	return &Reader{client: client, bucket: bucket, prefix: prefix}
}

// NewS3Reader builds a reader from the default AWS configuration chain.
func NewS3Reader(ctx context.Context, o Options) (*Reader, error) {
	if o.Bucket == "" {
		return nil, fmt.Errorf("export bucket not set")
	}
	opts := []func(*config.LoadOptions) error{config.WithRegion(o.Region)}
	if o.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(o.AccessKey, o.SecretKey, ""),
		))
	}
	if o.Endpoint != "" {
		opts = append(opts, config.WithEndpointResolverWithOptions(
			aws.EndpointResolverWithOptionsFunc(
				func(service, region string, options ...interface{}) (aws.Endpoint, error) {
					if service == s3.ServiceID {
						return aws.Endpoint{URL: o.Endpoint, SigningRegion: o.Region}, nil
					}
					return aws.Endpoint{}, &aws.EndpointNotFoundError{}
				},
			),
		))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	client := s3.NewFromConfig(cfg, func(so *s3.Options) {
		so.UsePathStyle = o.Endpoint != ""
	})
	return NewReader(client, o.Bucket, o.Prefix), nil
}

// Keys lists the JSON export objects under the prefix, sorted.
func (r *Reader) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	p := s3.NewListObjectsV2Paginator(r.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(r.bucket),
		Prefix: aws.String(r.prefix),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list s3://%s/%s: %w", r.bucket, r.prefix, err)
		}
		for _, obj := range page.Contents {
			if k := aws.ToString(obj.Key); strings.HasSuffix(strings.ToLower(k), ".json") {
				keys = append(keys, k)
			}
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Read fetches and decodes one export object.
func (r *Reader) Read(ctx context.Context, key string) ([]api.InvoiceLineItem, error) {
	out, err := r.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get s3://%s/%s: %w", r.bucket, key, err)
	}
	defer out.Body.Close()
	items, err := Decode(out.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	return items, nil
}

// ListInvoiceItems reads every export and keeps lines dated inside rng.
// Unreadable objects are logged and skipped.
func (r *Reader) ListInvoiceItems(ctx context.Context, rng api.DateRange) ([]api.InvoiceLineItem, error) {
	keys, err := r.Keys(ctx)
	if err != nil {
		return nil, err
	}
	out := []api.InvoiceLineItem{}
	for _, k := range keys {
		items, err := r.Read(ctx, k)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Warn().Err(err).Str("key", k).Msg("Skipping export")
			continue
		}
		for _, it := range items {
			if rng.Contains(it.InvoiceDate) {
				out = append(out, it)
			}
		}
	}
	return out, nil
}

// export is one extracted invoice document.
type export struct {
	InvoiceID   string       `json:"invoice_id"`
	Supplier    string       `json:"supplier"`
	InvoiceDate string       `json:"invoice_date"`
	Items       []exportLine `json:"items"`
}

type exportLine struct {
	ProductName string  `json:"product_name"`
	UnitPrice   float64 `json:"unit_price"`
	Quantity    float64 `json:"quantity"`
	Unit        string  `json:"unit"`
	InvoiceDate string  `json:"invoice_date"`
}

// Decode reads an export: one invoice object or an array of them.
// Malformed JSON from the extractor is repaired before decoding.
func Decode(rd io.Reader) ([]api.InvoiceLineItem, error) {
	raw, err := io.ReadAll(rd)
	if err != nil {
		return nil, fmt.Errorf("failed to read export: %w", err)
	}
	if !json.Valid(raw) {
		fixed, err := jsonrepair.RepairJSON(string(raw))
		if err != nil {
			return nil, fmt.Errorf("failed to repair export: %w", err)
		}
		raw = []byte(fixed)
	}

	var docs []export
	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, "[") {
		err = json.Unmarshal(raw, &docs)
	} else {
		var one export
		err = json.Unmarshal(raw, &one)
		docs = []export{one}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode export: %w", err)
	}

	var out []api.InvoiceLineItem
	for _, d := range docs {
		for i, l := range d.Items {
			if strings.TrimSpace(l.ProductName) == "" {
				continue
			}
			it := api.InvoiceLineItem{
				ProductName: strings.TrimSpace(l.ProductName),
				UnitPrice:   l.UnitPrice,
				Quantity:    l.Quantity,
				Unit:        l.Unit,
				InvoiceID:   d.InvoiceID,
				Supplier:    d.Supplier,
			}
			if d.InvoiceID != "" {
				it.ID = fmt.Sprintf("%s-%d", d.InvoiceID, i+1)
			}
			date := l.InvoiceDate
			if date == "" {
				date = d.InvoiceDate
			}
			if date != "" {
				it.InvoiceDate = &date
			}
			out = append(out, it)
		}
	}
	return out, nil
}
