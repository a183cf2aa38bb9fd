package registry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"sort"
	"strings"

	"github.com/bytedance/sonic"
	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"
	"gopkg.in/yaml.v3"

	"github.com/tbxark/flowagent/log"
	"github.com/tbxark/flowagent/types"

	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/memblob"
)

var (
	ErrFlowNotFound  = errors.New("flow not found")
	ErrBadDefinition = errors.New("invalid flow definition")
)

var definitionSuffixes = []string{".json", ".yaml", ".yml"}

// Executor runs a flow resolved from a bucket definition.
type Executor func(ctx context.Context, schema *types.FlowSchema, inputs map[string]any) (any, error)

// BucketRegistry serves flow definitions stored as "<id>.json", "<id>.yaml"
// or "<id>.yml" objects in a blob bucket.
type BucketRegistry struct {
	bucket   *blob.Bucket
	prefix   string
	executor Executor
}

var _ Registry = (*BucketRegistry)(nil)

type BucketOption func(*BucketRegistry)

// WithPrefix restricts the registry to keys under prefix.
func WithPrefix(prefix string) BucketOption {
	return func(r *BucketRegistry) {
		r.prefix = prefix
	}
}

// WithExecutor replaces the default echo execution.
func WithExecutor(exec Executor) BucketOption {
	return func(r *BucketRegistry) {
		r.executor = exec
	}
}

// OpenBucketRegistry opens a bucket URL such as "file:///srv/flows" or "mem://".
func OpenBucketRegistry(ctx context.Context, bucketURL string, opts ...BucketOption) (*BucketRegistry, error) {
	bucket, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, fmt.Errorf("open bucket %s: %w", bucketURL, err)
	}
	return NewBucketRegistry(bucket, opts...), nil
}

func NewBucketRegistry(bucket *blob.Bucket, opts ...BucketOption) *BucketRegistry {
	r := &BucketRegistry{bucket: bucket, executor: echoExecutor}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

func (r *BucketRegistry) Close() error {
	return r.bucket.Close()
}

func (r *BucketRegistry) ListFlows(ctx context.Context) ([]types.FlowSummary, error) {
	iter := r.bucket.List(&blob.ListOptions{Prefix: r.prefix})
	var flows []types.FlowSummary
	seen := map[string]bool{}
	for {
		obj, err := iter.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: list definitions: %w", types.ErrRegistry, err)
		}
		if obj.IsDir {
			continue
		}
		id, ok := r.idFromKey(obj.Key)
		if !ok || seen[id] {
			continue
		}
		schema, err := r.read(ctx, obj.Key, id)
		if err != nil {
			slog.Warn("Skipping unreadable flow definition",
				slog.String("key", obj.Key), log.Error(err))
			continue
		}
		seen[id] = true
		flows = append(flows, schema.SummaryEntry())
	}
	sort.Slice(flows, func(i, j int) bool { return flows[i].ID < flows[j].ID })
	return flows, nil
}

func (r *BucketRegistry) GetFlowSchema(ctx context.Context, flowID string) (*types.FlowSchema, error) {
	if flowID == "" || strings.Contains(flowID, "/") {
		return nil, fmt.Errorf("%w: %w: %q", types.ErrRegistry, ErrFlowNotFound, flowID)
	}
	for _, suffix := range definitionSuffixes {
		key := r.prefix + flowID + suffix
		schema, err := r.read(ctx, key, flowID)
		if gcerrors.Code(err) == gcerrors.NotFound {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", types.ErrRegistry, err)
		}
		return schema, nil
	}
	return nil, fmt.Errorf("%w: %w: %s", types.ErrRegistry, ErrFlowNotFound, flowID)
}

func (r *BucketRegistry) Execute(ctx context.Context, flowID string, inputs map[string]any) (any, error) {
	schema, err := r.GetFlowSchema(ctx, flowID)
	if err != nil {
		return nil, err
	}
	slog.Info("Executing flow", log.FlowID(flowID), slog.Any("inputs", inputs))
	res, err := r.executor(ctx, schema, inputs)
	if err != nil {
		return nil, fmt.Errorf("%w: execute %s: %w", types.ErrRegistry, flowID, err)
	}
	return res, nil
}

// Put stores a definition as JSON under "<id>.json".
func (r *BucketRegistry) Put(ctx context.Context, schema *types.FlowSchema) error {
	if schema.ID == "" {
		return fmt.Errorf("%w: missing id", ErrBadDefinition)
	}
	data, err := sonic.ConfigStd.MarshalIndent(schema, "", "  ")
	if err != nil {
		return err
	}
	return r.bucket.WriteAll(ctx, r.prefix+schema.ID+".json", data, &blob.WriterOptions{
		ContentType: "application/json",
	})
}

func (r *BucketRegistry) idFromKey(key string) (string, bool) {
	name := strings.TrimPrefix(key, r.prefix)
	if strings.Contains(name, "/") {
		return "", false
	}
	ext := path.Ext(name)
	for _, suffix := range definitionSuffixes {
		if ext == suffix {
			return strings.TrimSuffix(name, ext), true
		}
	}
	return "", false
}

func (r *BucketRegistry) read(ctx context.Context, key, id string) (*types.FlowSchema, error) {
	data, err := r.bucket.ReadAll(ctx, key)
	if err != nil {
		return nil, err
	}
	schema, err := decodeDefinition(path.Ext(key), data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrBadDefinition, key, err)
	}
	// the object name is authoritative
	schema.ID = id
	return schema, nil
}

func decodeDefinition(ext string, data []byte) (*types.FlowSchema, error) {
	if ext == ".yaml" || ext == ".yml" {
		var raw map[string]any
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
		var err error
		data, err = sonic.Marshal(raw)
		if err != nil {
			return nil, err
		}
	}
	var schema types.FlowSchema
	if err := sonic.Unmarshal(data, &schema); err != nil {
		return nil, err
	}
	return &schema, nil
}

func echoExecutor(_ context.Context, schema *types.FlowSchema, inputs map[string]any) (any, error) {
	return map[string]any{
		"status": "executed",
		"flow":   schema.ID,
		"inputs": inputs,
	}, nil
}
