package config

import (
	"context"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSSMClient struct {
	batches [][]string
	invalid []string
}

func (c *fakeSSMClient) GetParameters(_ context.Context, in *ssm.GetParametersInput, _ ...func(*ssm.Options)) (*ssm.GetParametersOutput, error) {
	c.batches = append(c.batches, in.Names)
	out := &ssm.GetParametersOutput{InvalidParameters: c.invalid}
	for _, name := range in.Names {
		out.Parameters = append(out.Parameters, ssmtypes.Parameter{
			Name:  aws.String(name),
			Value: aws.String("v:" + name),
		})
	}
	return out, nil
}

func TestSSMProvider_BatchesByTen(t *testing.T) {
	client := &fakeSSMClient{}
	p := newSSMProviderWithClient("us-east-1", client)

	keys := make([]string, 23)
	for i := range keys {
		keys[i] = fmt.Sprintf("/dev/clinicremind/k%02d", i)
	}

	out, err := p.GetParametersBatch(context.Background(), keys)
	require.NoError(t, err)

	require.Len(t, client.batches, 3)
	assert.Len(t, client.batches[0], 10)
	assert.Len(t, client.batches[2], 3)
	assert.Len(t, out, 23)
	assert.Equal(t, "v:/dev/clinicremind/k07", out["/dev/clinicremind/k07"])
}

func TestSSMProvider_InvalidParameters(t *testing.T) {
	p := newSSMProviderWithClient("us-east-1", &fakeSSMClient{invalid: []string{"/dev/missing"}})

	_, err := p.GetParametersBatch(context.Background(), []string{"/dev/missing"})

	assert.ErrorContains(t, err, "/dev/missing")
}

func TestSSMProvider_CancelledContext(t *testing.T) {
	p := newSSMProviderWithClient("us-east-1", &fakeSSMClient{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.GetParametersBatch(ctx, []string{"/dev/a"})

	assert.ErrorIs(t, err, context.Canceled)
}

func TestSSMProvider_EmptyKeys(t *testing.T) {
	out, err := NewSSMProvider("us-east-1").GetParametersBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, out)
}
