package registry_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocloud.dev/blob"

	"github.com/tbxark/flowagent/registry"
	"github.com/tbxark/flowagent/types"
)

const yamlDefinition = `
name: Create team
description: Creates a team in an organization
inputs:
  - name: org
    type: string
    label: Organization
    required: true
    validation:
      url: http://localhost:3003/validate/orgs
      errorMessage: Unknown organization
  - name: members
    type: array
    itemType: string
    label: Members
outputs:
  - name: teamId
    type: string
    description: Team identifier
`

func openMemRegistry(t *testing.T, opts ...registry.BucketOption) (*registry.BucketRegistry, *blob.Bucket) {
	t.Helper()
	ctx := context.Background()
	bucket, err := blob.OpenBucket(ctx, "mem://")
	require.NoError(t, err)
	t.Cleanup(func() { _ = bucket.Close() })
	return registry.NewBucketRegistry(bucket, opts...), bucket
}

func TestBucketRegistryListAndGet(t *testing.T) {
	ctx := context.Background()
	reg, bucket := openMemRegistry(t)

	require.NoError(t, reg.Put(ctx, &types.FlowSchema{
		ID:          "book-flight",
		Description: "Book a flight",
		Inputs:      []types.FieldSpec{{Name: "destination", Type: types.FieldString, Label: "Destination", Required: true}},
	}))
	require.NoError(t, bucket.WriteAll(ctx, "create-team.yaml", []byte(yamlDefinition), nil))
	require.NoError(t, bucket.WriteAll(ctx, "README.md", []byte("ignored"), nil))
	require.NoError(t, bucket.WriteAll(ctx, "broken.json", []byte("{"), nil))

	flows, err := reg.ListFlows(ctx)
	require.NoError(t, err)
	require.Len(t, flows, 2)
	assert.Equal(t, "book-flight", flows[0].ID)
	assert.Equal(t, "create-team", flows[1].ID)
	assert.Equal(t, "Creates a team in an organization", flows[1].Description)

	schema, err := reg.GetFlowSchema(ctx, "create-team")
	require.NoError(t, err)
	assert.Equal(t, "create-team", schema.ID)
	org, ok := schema.Field("org")
	require.True(t, ok)
	require.NotNil(t, org.Validation)
	assert.Equal(t, "Unknown organization", org.Validation.ErrorMessage)
	members, _ := schema.Field("members")
	assert.Equal(t, types.FieldArray, members.Type)
	assert.Equal(t, types.FieldString, members.ItemType)
	require.Len(t, schema.Outputs, 1)
}

func TestBucketRegistryMissingFlow(t *testing.T) {
	reg, _ := openMemRegistry(t)

	_, err := reg.GetFlowSchema(context.Background(), "ghost")
	assert.ErrorIs(t, err, registry.ErrFlowNotFound)
	assert.ErrorIs(t, err, types.ErrRegistry)

	_, err = reg.GetFlowSchema(context.Background(), "../etc/passwd")
	assert.ErrorIs(t, err, registry.ErrFlowNotFound)
}

func TestBucketRegistryEchoExecute(t *testing.T) {
	ctx := context.Background()
	reg, _ := openMemRegistry(t)
	require.NoError(t, reg.Put(ctx, &types.FlowSchema{ID: "ping", Description: "Ping"}))

	res, err := reg.Execute(ctx, "ping", map[string]any{"n": 1.0})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"status": "executed",
		"flow":   "ping",
		"inputs": map[string]any{"n": 1.0},
	}, res)
}

func TestBucketRegistryCustomExecutor(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("downstream unavailable")
	reg, _ := openMemRegistry(t,
		registry.WithPrefix("flows/"),
		registry.WithExecutor(func(context.Context, *types.FlowSchema, map[string]any) (any, error) {
			return nil, boom
		}),
	)
	require.NoError(t, reg.Put(ctx, &types.FlowSchema{ID: "ping", Description: "Ping"}))

	flows, err := reg.ListFlows(ctx)
	require.NoError(t, err)
	assert.Len(t, flows, 1)

	_, err = reg.Execute(ctx, "ping", nil)
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, err, types.ErrRegistry)
}
