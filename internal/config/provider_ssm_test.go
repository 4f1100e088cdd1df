package config

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
)

// fakeSSMClient records GetParameters batches and answers from a map.
type fakeSSMClient struct {
	values  map[string]string
	err     error
	batches [][]string
}

func (c *fakeSSMClient) GetParameters(_ context.Context, in *ssm.GetParametersInput, _ ...func(*ssm.Options)) (*ssm.GetParametersOutput, error) {
	c.batches = append(c.batches, in.Names)
	if c.err != nil {
		return nil, c.err
	}
	if in.WithDecryption == nil || !*in.WithDecryption {
		return nil, errors.New("decryption not requested")
	}
	out := &ssm.GetParametersOutput{}
	for _, name := range in.Names {
		if v, ok := c.values[name]; ok {
			out.Parameters = append(out.Parameters, ssmtypes.Parameter{Name: aws.String(name), Value: aws.String(v)})
		} else {
			out.InvalidParameters = append(out.InvalidParameters, name)
		}
	}
	return out, nil
}

func TestSSMProviderSatisfiesSecretProvider(t *testing.T) {
	var _ SecretProvider = NewSSMProvider("us-east-1", "dev")
}

func TestParameterPath(t *testing.T) {
	tests := []struct {
		env, key, want string
	}{
		{"dev", "auth/jwt_secret", "/dev/bizpulse/auth/jwt_secret"},
		{"prod", "/billing/stripe_secret_key/", "/prod/bizpulse/billing/stripe_secret_key"},
		{"staging", "/staging/bizpulse/database/url", "/staging/bizpulse/database/url"},
	}
	for _, tt := range tests {
		if got := ParameterPath(tt.env, tt.key); got != tt.want {
			t.Errorf("ParameterPath(%q, %q) = %q, want %q", tt.env, tt.key, got, tt.want)
		}
	}
}

func TestSSMProviderBatchesByTen(t *testing.T) {
	client := &fakeSSMClient{values: map[string]string{}}
	keys := make([]string, 0, 23)
	for i := 0; i < 23; i++ {
		k := "/dev/bizpulse/key" + string(rune('a'+i))
		keys = append(keys, k)
		client.values[k] = "v" + string(rune('a'+i))
	}

	provider := newSSMProviderWithClient("dev", client)
	result, err := provider.GetParametersBatch(context.Background(), keys)
	if err != nil {
		t.Fatalf("GetParametersBatch returned error: %v", err)
	}
	if len(result) != 23 {
		t.Errorf("len(result) = %d, want 23", len(result))
	}
	if len(client.batches) != 3 {
		t.Fatalf("batches = %d, want 3", len(client.batches))
	}
	if len(client.batches[0]) != 10 || len(client.batches[2]) != 3 {
		t.Errorf("batch sizes = %d/%d, want 10/3", len(client.batches[0]), len(client.batches[2]))
	}
	if result["/dev/bizpulse/keya"] != "va" {
		t.Errorf("result[keya] = %q, want %q", result["/dev/bizpulse/keya"], "va")
	}
}

func TestSSMProviderResolvesRelativeKeys(t *testing.T) {
	client := &fakeSSMClient{values: map[string]string{
		"/prod/bizpulse/auth/jwt_secret": "s3cret",
	}}
	provider := newSSMProviderWithClient("prod", client)

	result, err := provider.GetParametersBatch(context.Background(), []string{
		"auth/jwt_secret",
		"/prod/bizpulse/auth/jwt_secret",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result["auth/jwt_secret"] != "s3cret" || result["/prod/bizpulse/auth/jwt_secret"] != "s3cret" {
		t.Errorf("result keyed by request keys = %v", result)
	}
	if len(client.batches) != 1 || len(client.batches[0]) != 1 {
		t.Errorf("duplicate path fetched more than once: %v", client.batches)
	}
}

func TestSSMProviderRejectsForeignNamespace(t *testing.T) {
	for _, key := range []string{"/prod/bizpulse/auth/jwt_secret", "/dev/otherapp/key", "/dev/bizpulse/"} {
		client := &fakeSSMClient{}
		provider := newSSMProviderWithClient("dev", client)

		_, err := provider.GetParametersBatch(context.Background(), []string{key})
		if !errors.Is(err, ErrParameterOutsideNamespace) {
			t.Errorf("key %q: err = %v, want ErrParameterOutsideNamespace", key, err)
		}
		if len(client.batches) != 0 {
			t.Errorf("key %q: client called before namespace check", key)
		}
	}
}

func TestSSMProviderWithoutEnvRequiresAbsolutePaths(t *testing.T) {
	provider := newSSMProviderWithClient("", &fakeSSMClient{values: map[string]string{"/x/y": "z"}})

	if _, err := provider.GetParametersBatch(context.Background(), []string{"auth/jwt_secret"}); err == nil {
		t.Fatal("expected error for relative key without environment")
	}
	result, err := provider.GetParametersBatch(context.Background(), []string{"/x/y"})
	if err != nil || result["/x/y"] != "z" {
		t.Fatalf("absolute path: result=%v err=%v", result, err)
	}
}

func TestSSMProviderReportsInvalidParameters(t *testing.T) {
	client := &fakeSSMClient{values: map[string]string{"/dev/bizpulse/jwt_secret": "x"}}
	provider := newSSMProviderWithClient("dev", client)

	_, err := provider.GetParametersBatch(context.Background(), []string{"/dev/bizpulse/jwt_secret", "missing"})
	if !errors.Is(err, ErrParameterNotFound) {
		t.Fatalf("err = %v, want ErrParameterNotFound", err)
	}
	if !strings.Contains(err.Error(), "/dev/bizpulse/missing") {
		t.Errorf("error should name the missing parameter, got: %v", err)
	}
}

func TestSSMProviderClientError(t *testing.T) {
	client := &fakeSSMClient{err: errors.New("throttled")}
	provider := newSSMProviderWithClient("dev", client)

	_, err := provider.GetParametersBatch(context.Background(), []string{"/dev/bizpulse/a"})
	if err == nil || !strings.Contains(err.Error(), "throttled") {
		t.Fatalf("expected wrapped client error, got %v", err)
	}
}

func TestSSMProviderEmptyKeysSkipsClient(t *testing.T) {
	client := &fakeSSMClient{}
	provider := newSSMProviderWithClient("dev", client)

	result, err := provider.GetParametersBatch(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result == nil || len(result) != 0 {
		t.Errorf("expected empty non-nil map, got %v", result)
	}
	if len(client.batches) != 0 {
		t.Errorf("client called %d times, want 0", len(client.batches))
	}
}

func TestSSMProviderContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	provider := newSSMProviderWithClient("dev", &fakeSSMClient{})
	_, err := provider.GetParametersBatch(ctx, []string{"/dev/bizpulse/a"})
	if err == nil || !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
